package improvement

import (
	"math"

	"github.com/GoSim-25-26J-441/form-optimizer/internal/measure"
)

// ObjectiveFunction turns a metric snapshot into a scalar score. Higher is
// better. reference is the snapshot of the best result seen before this
// reading and may be empty. ok is false when the snapshot cannot be scored,
// which makes the trial non-improving.
type ObjectiveFunction interface {
	Evaluate(snap, reference measure.Snapshot) (score float64, ok bool)
	Name() string
}

// ObjectiveType represents the type of objective function
type ObjectiveType string

const (
	// ObjectiveEPS maximizes earnings per share
	ObjectiveEPS ObjectiveType = "eps"
	// ObjectiveComposite maximizes EPS with a bonus for secondary gains
	ObjectiveComposite ObjectiveType = "composite"
)

// NewObjectiveFunction creates an objective function from a type string
func NewObjectiveFunction(objType string) (ObjectiveFunction, error) {
	switch ObjectiveType(objType) {
	case ObjectiveEPS, "":
		return &EPSObjective{}, nil
	case ObjectiveComposite:
		return NewCompositeObjective(), nil
	default:
		return nil, &UnknownObjectiveError{ObjectiveType: objType}
	}
}

// EPSObjective scores a snapshot by its EPS reading
type EPSObjective struct{}

func (o *EPSObjective) Name() string {
	return string(ObjectiveEPS)
}

func (o *EPSObjective) Evaluate(snap, _ measure.Snapshot) (float64, bool) {
	return snap.Objective()
}

// CompositeObjective scores eps·1000 plus, for each secondary metric, its
// weight times the relative gain over the reference reading. Losses earn
// nothing. Snapshots without a positive EPS cannot be scored.
type CompositeObjective struct {
	Weights map[string]float64
}

// DefaultCompositeWeights are the secondary weights in measure.SecondaryKeys order
var DefaultCompositeWeights = []float64{50, 40, 30, 20, 25, 35, 25}

// NewCompositeObjective creates a composite objective with the default weights
func NewCompositeObjective() *CompositeObjective {
	weights := make(map[string]float64, len(measure.SecondaryKeys))
	for i, key := range measure.SecondaryKeys {
		weights[key] = DefaultCompositeWeights[i]
	}
	return &CompositeObjective{Weights: weights}
}

func (o *CompositeObjective) Name() string {
	return string(ObjectiveComposite)
}

func (o *CompositeObjective) Evaluate(snap, reference measure.Snapshot) (float64, bool) {
	eps, ok := snap.Objective()
	if !ok || eps <= 0 {
		return 0, false
	}
	score := eps * 1000
	for key, weight := range o.Weights {
		cur, ok := snap.Get(key)
		if !ok {
			continue
		}
		base, ok := reference.Get(key)
		if !ok || base == 0 {
			continue
		}
		score += weight * math.Max((cur-base)/math.Abs(base), 0)
	}
	return score, true
}

// UnknownObjectiveError indicates an unknown objective type
type UnknownObjectiveError struct {
	ObjectiveType string
}

func (e *UnknownObjectiveError) Error() string {
	return "unknown objective type: " + e.ObjectiveType
}
