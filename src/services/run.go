package services

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Stage is a step of a processing run. Runs only move forward.
type Stage int

const (
	StageInit Stage = iota
	StageLotsPopulated
	StageSalesMatched
	StageDividendsAggregated
	StageMerged
	StageExported
)

var stageNames = [...]string{"init", "lots_populated", "sales_matched", "dividends_aggregated", "merged", "exported"}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

var ErrInvalidTransition = errors.New("invalid run transition")

// Run tracks the progress of one report computation.
type Run struct {
	ID        string
	StartedAt time.Time

	mu    sync.Mutex
	stage Stage
}

func NewRun() *Run {
	return &Run{ID: uuid.NewString(), StartedAt: time.Now().UTC(), stage: StageInit}
}

func (r *Run) Stage() Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stage
}

// Advance moves the run to a later stage. Skipping stages is allowed, going
// back or staying put is not, except that a run may be exported repeatedly.
func (r *Run) Advance(to Stage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if to == StageExported && r.stage == StageExported {
		return nil
	}
	if to <= r.stage || to > StageExported {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.stage, to)
	}
	r.stage = to
	return nil
}
