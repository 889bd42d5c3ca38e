package control

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/GoSim-25-26J-441/form-optimizer/internal/field"
	"github.com/GoSim-25-26J-441/form-optimizer/internal/form"
	"github.com/GoSim-25-26J-441/form-optimizer/internal/form/sim"
	"github.com/GoSim-25-26J-441/form-optimizer/internal/history"
	"github.com/GoSim-25-26J-441/form-optimizer/internal/improvement"
	"github.com/GoSim-25-26J-441/form-optimizer/internal/measure"
	"github.com/GoSim-25-26J-441/form-optimizer/internal/metrics"
	"github.com/GoSim-25-26J-441/form-optimizer/internal/persist"
	"github.com/GoSim-25-26J-441/form-optimizer/pkg/utils"
)

// pricePage renders one price input whose eps peaks at 430
func pricePage() *sim.Page {
	layout := sim.Layout{Inputs: []sim.InputSpec{{ID: "na-price", Label: "N.A. Wholesale Price", Value: 500}}}
	return sim.New(sim.WithLayout(layout), sim.WithScore(func(in map[string]float64, _ map[string]string) map[string]float64 {
		d := (in["na-price"] - 430) / 10
		return map[string]float64{"eps": 10 - d*d}
	}))
}

type fixture struct {
	page   *sim.Page
	runner *Runner
	store  *improvement.BestStore
	ledger *history.Ledger
	hub    *Hub
}

// newFixture builds a runner over a price page. continuous keeps the
// session running until stopped; otherwise it ends after one pass.
func newFixture(t *testing.T, continuous bool) *fixture {
	t.Helper()
	ctx := context.Background()

	page := pricePage()
	m := form.NewMutator(page, form.MutatorOptions{Precision: 2})
	m.SetSleep(func(context.Context, time.Duration) {})

	store, err := improvement.NewBestStore(ctx, persist.NewMemoryStore())
	if err != nil {
		t.Fatalf("NewBestStore: %v", err)
	}
	ledger, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() { ledger.Close() })

	opts := improvement.Options{
		Steps:             []float64{100, 50, 10, 5, 1},
		BroadSweep:        true,
		Precision:         2,
		StagnationTimeout: time.Hour,
		MaxPasses:         1,
		Restart:           improvement.NewRandomRestart(10, 0, utils.NewRandSource(7)),
		Discover:          field.DiscoverOptions{InputClass: "input-field", IgnoreSelectClass: "entry-assumptions-select"},
		Sleep:             func(ctx context.Context, _ time.Duration) error { return ctx.Err() },
	}
	if continuous {
		opts.MaxPasses = 0
		opts.Sleep = func(ctx context.Context, _ time.Duration) error {
			<-ctx.Done()
			return ctx.Err()
		}
	}

	hub := NewHub()
	t.Cleanup(hub.Close)
	runner := NewRunner(Deps{
		Mutator:   m,
		Reader:    measure.NewReader(nil),
		Store:     store,
		Options:   opts,
		Ledger:    ledger,
		Hub:       hub,
		Collector: metrics.NewCollector(func() float64 { return float64(m.MissedRecalculations()) }),
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = runner.Stop(ctx)
		_ = runner.Wait(ctx)
	})
	return &fixture{page: page, runner: runner, store: store, ledger: ledger, hub: hub}
}

func (f *fixture) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := f.runner.Wait(ctx); err != nil {
		t.Fatalf("session did not finish: %v", err)
	}
}

// waitFor polls cond until it holds or the deadline passes
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
