package processors

import "fmt"

// BySource maps source names to per-source results, remembering insertion order.
type BySource[T any] struct {
	order  []string
	values map[string]T
}

func NewBySource[T any]() *BySource[T] {
	return &BySource[T]{values: make(map[string]T)}
}

// Add records the result of a source. Source names must be unique.
func (b *BySource[T]) Add(source string, v T) error {
	if _, dup := b.values[source]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateSource, source)
	}
	b.order = append(b.order, source)
	b.values[source] = v
	return nil
}

func (b *BySource[T]) Get(source string) (T, bool) {
	v, ok := b.values[source]
	return v, ok
}

// Sources returns the source names in insertion order.
func (b *BySource[T]) Sources() []string {
	return append([]string(nil), b.order...)
}

func (b *BySource[T]) Len() int { return len(b.order) }

// MergeLists concatenates per-source lists in source order.
func MergeLists[T any](in *BySource[[]T]) []T {
	var out []T
	for _, s := range in.order {
		out = append(out, in.values[s]...)
	}
	return out
}

// MergeGroups unions per-source groupings, concatenating the lists of keys
// present in several sources in source order.
func MergeGroups[K comparable, T any](in *BySource[map[K][]T]) map[K][]T {
	out := make(map[K][]T)
	for _, s := range in.order {
		for k, list := range in.values[s] {
			out[k] = append(out[k], list...)
		}
	}
	return out
}
