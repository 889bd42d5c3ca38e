package improvement

import (
	"context"
	"math"
)

// optionTrial selects an option and returns its reading
type optionTrial func(ctx context.Context, option string) (Reading, error)

// ChoiceSearch tries every option of a choice field and keeps the strict best
type ChoiceSearch struct{}

// Optimize evaluates each option other than the current one in order, then
// restores the best option if the page was left on another.
func (cs *ChoiceSearch) Optimize(ctx context.Context, id, selected string, options []string, incumbent Reading, trial optionTrial, onImprove improveFunc) (FieldResult, error) {
	res := FieldResult{FieldID: id, Option: selected, Best: incumbent, State: StateInit}
	bestScore := math.Inf(-1)
	if incumbent.OK {
		bestScore = incumbent.Score
	}
	live := selected

	res.State = StateFineClimb
	for _, option := range options {
		if option == selected {
			continue
		}
		if ctx.Err() != nil {
			res.Cancelled = true
			break
		}
		r, err := trial(ctx, option)
		live = option
		res.Trials++
		if err != nil {
			return res, err
		}
		if !r.OK {
			res.Unreadable++
			continue
		}
		if !(r.Score > bestScore) {
			continue
		}
		bestScore = r.Score
		res.Option = option
		res.Best = r
		res.Improved = true
		if onImprove != nil {
			if err := onImprove(0, option, r); err != nil {
				return res, err
			}
		}
	}

	if live != res.Option {
		res.Trials++
		if _, err := trial(ctx, res.Option); err != nil {
			return res, err
		}
	}
	if !res.Cancelled {
		res.State = StateConverged
	}
	return res, nil
}
