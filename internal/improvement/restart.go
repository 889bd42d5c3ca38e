package improvement

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/cwbudde/mayfly"

	"github.com/GoSim-25-26J-441/form-optimizer/internal/field"
	"github.com/GoSim-25-26J-441/form-optimizer/pkg/config"
	"github.com/GoSim-25-26J-441/form-optimizer/pkg/utils"
)

// RestartResult reports the outcome of a randomized restart
type RestartResult struct {
	Improved    bool
	Attempts    int
	Best        Reading
	Combination field.Combination
}

// RestartStrategy escapes a local optimum by evaluating points far from the
// current best. The first strict improvement is adopted; when none is found
// the best combination is restored on the page.
type RestartStrategy interface {
	Restart(ctx context.Context, b *bench, fields []field.Descriptor, best Reading, bestCombo field.Combination) (RestartResult, error)
	Name() string
}

// NewRestartStrategy creates the configured restart strategy
func NewRestartStrategy(cfg config.Restart) (RestartStrategy, error) {
	settle, err := cfg.GetSettleDelay()
	if err != nil {
		return nil, fmt.Errorf("invalid restart settle_delay: %w", err)
	}
	rng := utils.NewRandSource(cfg.Seed)
	switch cfg.Strategy {
	case "random", "":
		return NewRandomRestart(cfg.Attempts, settle, rng), nil
	case "swarm":
		return NewSwarmRestart(cfg.Attempts, cfg.SwarmPopulation, settle, rng), nil
	default:
		return nil, fmt.Errorf("unknown restart strategy: %s", cfg.Strategy)
	}
}

// restartTargets selects the classified numeric fields
func restartTargets(fields []field.Descriptor) []field.Descriptor {
	var out []field.Descriptor
	for _, d := range fields {
		if d.Kind == field.KindNumeric && d.Classified() {
			out = append(out, d)
		}
	}
	return out
}

func beats(r, best Reading) bool {
	return r.OK && (!best.OK || r.Score > best.Score)
}

func restoreBest(ctx context.Context, b *bench, bestCombo field.Combination) error {
	if len(bestCombo) == 0 {
		return nil
	}
	if _, err := b.apply(ctx, bestCombo); err != nil {
		return fmt.Errorf("failed to restore best combination: %w", err)
	}
	return nil
}

// RandomRestart draws every target uniformly from its range
type RandomRestart struct {
	attempts int
	settle   time.Duration
	rng      *utils.RandSource
}

// NewRandomRestart creates a uniform random restart
func NewRandomRestart(attempts int, settle time.Duration, rng *utils.RandSource) *RandomRestart {
	if rng == nil {
		rng = utils.NewRandSource(0)
	}
	return &RandomRestart{attempts: attempts, settle: settle, rng: rng}
}

func (r *RandomRestart) Name() string {
	return "random"
}

func (r *RandomRestart) Restart(ctx context.Context, b *bench, fields []field.Descriptor, best Reading, bestCombo field.Combination) (RestartResult, error) {
	var res RestartResult
	targets := restartTargets(fields)
	if len(targets) == 0 {
		return res, nil
	}

	values := make([]float64, len(targets))
	for attempt := 1; attempt <= r.attempts; attempt++ {
		if ctx.Err() != nil {
			break
		}
		for i, d := range targets {
			values[i] = r.rng.UniformFloat64(d.Class.Min, d.Class.Max)
		}
		written, reading, err := b.tryValues(ctx, targets, values, r.settle)
		res.Attempts = attempt
		if err != nil {
			return res, err
		}
		if beats(reading, best) {
			combo := bestCombo.Clone()
			for i, d := range targets {
				combo.Set(d, written[i], "")
			}
			res.Improved = true
			res.Best = reading
			res.Combination = combo
			return res, nil
		}
	}
	return res, restoreBest(ctx, b, bestCombo)
}

// SwarmRestart searches the joint space of all targets with the mayfly
// algorithm, normalized to the unit cube, under the same evaluation budget
// as the random restart.
type SwarmRestart struct {
	attempts   int
	population int
	settle     time.Duration
	rng        *utils.RandSource
}

// NewSwarmRestart creates a mayfly-driven restart
func NewSwarmRestart(attempts, population int, settle time.Duration, rng *utils.RandSource) *SwarmRestart {
	if population <= 0 {
		population = 6
	}
	if rng == nil {
		rng = utils.NewRandSource(0)
	}
	return &SwarmRestart{attempts: attempts, population: population, settle: settle, rng: rng}
}

func (s *SwarmRestart) Name() string {
	return "swarm"
}

func (s *SwarmRestart) Restart(ctx context.Context, b *bench, fields []field.Descriptor, best Reading, bestCombo field.Combination) (RestartResult, error) {
	var res RestartResult
	targets := restartTargets(fields)
	if len(targets) == 0 {
		return res, nil
	}

	var evalErr error
	values := make([]float64, len(targets))
	cost := func(x []float64) float64 {
		// once the budget is spent, an improvement adopted, or the run
		// stopped, the page is left alone
		if res.Improved || evalErr != nil || res.Attempts >= s.attempts || ctx.Err() != nil {
			return math.MaxFloat64
		}
		for i, d := range targets {
			values[i] = d.Class.Min + utils.Clamp(x[i], 0, 1)*d.Class.Width()
		}
		written, reading, err := b.tryValues(ctx, targets, values, s.settle)
		res.Attempts++
		if err != nil {
			evalErr = err
			return math.MaxFloat64
		}
		if !reading.OK {
			return math.MaxFloat64
		}
		if beats(reading, best) {
			combo := bestCombo.Clone()
			for i, d := range targets {
				combo.Set(d, written[i], "")
			}
			res.Improved = true
			res.Best = reading
			res.Combination = combo
		}
		return -reading.Score
	}

	cfg := mayfly.NewDefaultConfig()
	cfg.ObjectiveFunc = cost
	cfg.ProblemSize = len(targets)
	cfg.NPop = s.population
	cfg.MaxIterations = int(math.Ceil(float64(s.attempts)/float64(s.population))) + 1
	cfg.LowerBound = 0
	cfg.UpperBound = 1
	cfg.Rand = s.rng.Derive()

	if _, err := mayfly.Optimize(cfg); err != nil && evalErr == nil && !res.Improved {
		return res, fmt.Errorf("swarm restart failed: %w", err)
	}
	if evalErr != nil {
		return res, evalErr
	}
	if res.Improved {
		return res, nil
	}
	return res, restoreBest(ctx, b, bestCombo)
}
