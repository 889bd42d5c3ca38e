package improvement

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/GoSim-25-26J-441/form-optimizer/internal/field"
	"github.com/GoSim-25-26J-441/form-optimizer/pkg/config"
	"github.com/GoSim-25-26J-441/form-optimizer/pkg/logger"
)

// SearchState is the phase of a per-field search
type SearchState string

const (
	StateInit       SearchState = "init"
	StateBroadSweep SearchState = "broad_sweep"
	StateFineClimb  SearchState = "fine_climb"
	StateConverged  SearchState = "converged"
)

// FieldResult summarizes the search of one field
type FieldResult struct {
	FieldID    string
	Start      float64
	Value      float64
	Option     string
	Best       Reading
	Improved   bool
	Trials     int
	Unreadable int
	State      SearchState
	Cancelled  bool
}

// valueTrial writes a value and returns the value written and its reading
type valueTrial func(ctx context.Context, v float64) (float64, Reading, error)

// improveFunc is called for every strict improvement, before the search
// moves on
type improveFunc func(value float64, option string, r Reading) error

// LocalSearch is a coordinate-wise hill climber for one numeric field.
// It starts at the rendered value, optionally sweeps the category's
// candidate list, then climbs with each step of a decreasing schedule,
// trying best−step before best+step and accepting only strict improvements.
// When neither direction improves the step shrinks; the smallest step
// exhausted means converged, and the field is written back to its best value.
type LocalSearch struct {
	steps      []float64
	broadSweep bool
	explorer   ParameterExplorer
	log        *slog.Logger
}

// NewLocalSearch creates a local search over the given step schedule
func NewLocalSearch(steps []float64, broadSweep bool, explorer ParameterExplorer) (*LocalSearch, error) {
	if err := config.ValidateSteps(steps); err != nil {
		return nil, fmt.Errorf("invalid step schedule: %w", err)
	}
	if explorer == nil {
		explorer = NewStepExplorer(2)
	}
	return &LocalSearch{
		steps:      append([]float64(nil), steps...),
		broadSweep: broadSweep,
		explorer:   explorer,
		log:        logger.Component("local_search"),
	}, nil
}

// Optimize searches field d starting from incumbent, the reading of the page
// as it stands. Cancellation is observed between trials; the field is still
// written back to its best value before returning.
func (ls *LocalSearch) Optimize(ctx context.Context, d field.Descriptor, incumbent Reading, trial valueTrial, onImprove improveFunc) (FieldResult, error) {
	if d.Class == nil {
		return FieldResult{}, fmt.Errorf("field %s is not classified", d.ID)
	}
	cls := *d.Class

	res := FieldResult{FieldID: d.ID, Start: d.Value, Value: d.Value, Best: incumbent, State: StateInit}
	bestScore := math.Inf(-1)
	if incumbent.OK {
		bestScore = incumbent.Score
	}
	live := d.Value

	evaluate := func(v float64) (bool, error) {
		written, r, err := trial(ctx, v)
		live = written
		res.Trials++
		if err != nil {
			return false, err
		}
		if !r.OK {
			res.Unreadable++
			return false, nil
		}
		if !(r.Score > bestScore) {
			return false, nil
		}
		bestScore = r.Score
		res.Value = written
		res.Best = r
		res.Improved = true
		if onImprove != nil {
			if err := onImprove(written, "", r); err != nil {
				return true, err
			}
		}
		return true, nil
	}

	err := ls.climb(ctx, cls, &res, evaluate)
	if err == nil && live != res.Value {
		// converged (or cancelled) away from the best value
		_, _, err = trial(ctx, res.Value)
		res.Trials++
	}
	if err != nil {
		return res, err
	}
	if !res.Cancelled {
		res.State = StateConverged
	}
	ls.log.Debug("field search finished",
		"field", d.ID, "start", res.Start, "best", res.Value, "trials", res.Trials,
		"unreadable", res.Unreadable, "improved", res.Improved, "cancelled", res.Cancelled)
	return res, nil
}

func (ls *LocalSearch) climb(ctx context.Context, cls field.Classification, res *FieldResult, evaluate func(float64) (bool, error)) error {
	if ls.broadSweep && len(cls.Sweep) > 0 {
		res.State = StateBroadSweep
		for _, v := range ls.explorer.Sweep(cls) {
			if ctx.Err() != nil {
				res.Cancelled = true
				return nil
			}
			if v == res.Value {
				continue
			}
			if _, err := evaluate(v); err != nil {
				return err
			}
		}
	}

	res.State = StateFineClimb
	for _, step := range ls.steps {
		moveCap := MoveCap(cls, step)
		for moves := 0; moves < moveCap; moves++ {
			moved := false
			for _, v := range ls.explorer.Neighbors(res.Value, step, cls) {
				if ctx.Err() != nil {
					res.Cancelled = true
					return nil
				}
				improved, err := evaluate(v)
				if err != nil {
					return err
				}
				if improved {
					moved = true
					break
				}
			}
			if !moved {
				break
			}
		}
	}
	return nil
}
