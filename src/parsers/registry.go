package parsers

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/username/taxfolio/declaration/src/parsers/csv"
	"github.com/username/taxfolio/declaration/src/parsers/degiro"
	"github.com/username/taxfolio/declaration/src/parsers/ibkr"
)

var ErrUnsupportedParser = errors.New("unsupported parser")

// Factory creates a parser for one statement.
type Factory func() Parser

// Registry maps parser names to factories. It is built once at startup and
// passed to whoever needs to resolve parser names.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry knows every parser shipped with the module.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register("degiro", func() Parser { return degiro.NewParser() })
	_ = r.Register("ibkr", func() Parser { return ibkr.NewParser() })
	_ = r.Register("csv", func() Parser { return csv.NewParser() })
	return r
}

func (r *Registry) Register(name string, f Factory) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || f == nil {
		return errors.New("parser name and factory are required")
	}
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("parser %q already registered", name)
	}
	r.factories[name] = f
	return nil
}

// Get returns a fresh parser for name.
func (r *Registry) Get(name string) (Parser, error) {
	f, ok := r.factories[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedParser, name)
	}
	return f(), nil
}

// Names returns the registered parser names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Unsupported returns the names that have no registered parser.
func (r *Registry) Unsupported(names []string) []string {
	var out []string
	for _, n := range names {
		if _, ok := r.factories[strings.ToLower(strings.TrimSpace(n))]; !ok {
			out = append(out, n)
		}
	}
	return out
}
