package improvement

import (
	"github.com/GoSim-25-26J-441/form-optimizer/internal/field"
	"github.com/GoSim-25-26J-441/form-optimizer/pkg/utils"
)

// ParameterExplorer proposes candidate values for one numeric field
type ParameterExplorer interface {
	// Sweep returns the broad-sweep candidates, in evaluation order.
	Sweep(cls field.Classification) []float64
	// Neighbors returns the fine-climb candidates around current for step,
	// in evaluation order.
	Neighbors(current, step float64, cls field.Classification) []float64
	// Name returns the name of the exploration strategy
	Name() string
}

// StepExplorer walks down first, then up, by a fixed step
type StepExplorer struct {
	precision int
}

// NewStepExplorer creates an explorer that rounds candidates to precision decimals
func NewStepExplorer(precision int) *StepExplorer {
	return &StepExplorer{precision: precision}
}

func (e *StepExplorer) Name() string {
	return "step"
}

// Normalize clamps v into the range and rounds it
func (e *StepExplorer) Normalize(v float64, cls field.Classification) float64 {
	return utils.Round(cls.Clamp(v), e.precision)
}

// Sweep returns the normalized sweep list without duplicates
func (e *StepExplorer) Sweep(cls field.Classification) []float64 {
	out := make([]float64, 0, len(cls.Sweep))
	seen := make(map[float64]bool, len(cls.Sweep))
	for _, v := range cls.Sweep {
		v = e.Normalize(v, cls)
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// Neighbors returns current−step then current+step, clamped and rounded.
// Candidates equal to current are dropped, so a value pinned at a bound
// yields only the inward neighbor.
func (e *StepExplorer) Neighbors(current, step float64, cls field.Classification) []float64 {
	out := make([]float64, 0, 2)
	for _, dir := range []float64{-1, 1} {
		v := e.Normalize(current+dir*step, cls)
		if v == current {
			continue
		}
		out = append(out, v)
	}
	return out
}
