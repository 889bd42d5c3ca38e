package improvement

import (
	"context"
	"testing"

	"github.com/GoSim-25-26J-441/form-optimizer/internal/field"
	"github.com/GoSim-25-26J-441/form-optimizer/pkg/config"
	"github.com/GoSim-25-26J-441/form-optimizer/pkg/utils"
)

func restartFixture(t *testing.T, eps func(float64) float64) (*bench, []field.Descriptor, field.Combination) {
	t.Helper()
	page := pricePage(500, eps)
	b := newTestBench(page)
	fields, err := b.fields(context.Background())
	if err != nil {
		t.Fatalf("fields: %v", err)
	}
	return b, fields, field.Capture(fields)
}

func flat(float64) float64 { return 5 }

func linear(p float64) float64 { return p / 100 }

func TestRandomRestartRestoresBestAfterFailures(t *testing.T) {
	b, fields, bestCombo := restartFixture(t, flat)
	r := NewRandomRestart(10, 0, utils.NewRandSource(42))

	res, err := r.Restart(context.Background(), b, fields, Reading{Score: 5, OK: true}, bestCombo)
	if err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if res.Improved || res.Attempts != 10 {
		t.Fatalf("expected 10 failed attempts, got %+v", res)
	}
	page := b.mutator.Page()
	doc, _ := page.HTML(context.Background())
	restored, _ := b.fields(context.Background())
	if restored[0].Value != 500 {
		t.Fatalf("best combination not restored, page:\n%s", doc)
	}
}

func TestRandomRestartAdoptsFirstImprovement(t *testing.T) {
	b, fields, bestCombo := restartFixture(t, linear)
	r := NewRandomRestart(10, 0, utils.NewRandSource(42))

	res, err := r.Restart(context.Background(), b, fields, Reading{Score: 0.5, OK: true}, bestCombo)
	if err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if !res.Improved || res.Attempts != 1 {
		t.Fatalf("expected improvement on the first attempt, got %+v", res)
	}
	live, _ := b.fields(context.Background())
	if got := res.Combination["na-price"].Value; got != live[0].Value {
		t.Fatalf("combination %f does not match page %f", got, live[0].Value)
	}
	if v := live[0].Value; v < 75 || v > 1000 {
		t.Fatalf("restart value %f outside the price range", v)
	}
	if res.Best.Score <= 0.5 {
		t.Fatalf("adopted reading does not improve: %f", res.Best.Score)
	}
}

func TestRandomRestartWithoutTargets(t *testing.T) {
	b, _, _ := restartFixture(t, flat)
	res, err := NewRandomRestart(10, 0, nil).Restart(context.Background(), b, nil, Reading{}, nil)
	if err != nil || res.Attempts != 0 {
		t.Fatalf("expected no attempts, got %+v err=%v", res, err)
	}
}

func TestSwarmRestartRespectsBudgetAndRestores(t *testing.T) {
	b, fields, bestCombo := restartFixture(t, flat)
	s := NewSwarmRestart(10, 4, 0, utils.NewRandSource(3))

	res, err := s.Restart(context.Background(), b, fields, Reading{Score: 5, OK: true}, bestCombo)
	if err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if res.Improved || res.Attempts == 0 || res.Attempts > 10 {
		t.Fatalf("unexpected swarm result: %+v", res)
	}
	restored, _ := b.fields(context.Background())
	if restored[0].Value != 500 {
		t.Fatalf("best combination not restored: %f", restored[0].Value)
	}
}

func TestSwarmRestartAdoptsImprovement(t *testing.T) {
	b, fields, bestCombo := restartFixture(t, linear)
	s := NewSwarmRestart(10, 4, 0, utils.NewRandSource(3))

	res, err := s.Restart(context.Background(), b, fields, Reading{Score: 0.5, OK: true}, bestCombo)
	if err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if !res.Improved {
		t.Fatalf("expected improvement, got %+v", res)
	}
	live, _ := b.fields(context.Background())
	if got := res.Combination["na-price"].Value; got != live[0].Value {
		t.Fatalf("page moved after the improvement: combination %f, page %f", got, live[0].Value)
	}
}

func TestNewRestartStrategy(t *testing.T) {
	tests := []struct {
		strategy string
		want     string
		wantErr  bool
	}{
		{"random", "random", false},
		{"", "random", false},
		{"swarm", "swarm", false},
		{"annealing", "", true},
	}
	for _, tt := range tests {
		r, err := NewRestartStrategy(config.Restart{Strategy: tt.strategy, Attempts: 10, SettleDelay: "2s", SwarmPopulation: 6})
		if tt.wantErr {
			if err == nil {
				t.Errorf("%q: expected error", tt.strategy)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: %v", tt.strategy, err)
		}
		if r.Name() != tt.want {
			t.Errorf("%q: Name() = %s", tt.strategy, r.Name())
		}
	}

	if _, err := NewRestartStrategy(config.Restart{Strategy: "random", SettleDelay: "soon"}); err == nil {
		t.Fatal("expected error for a bad settle delay")
	}
}

func TestApplyCombination(t *testing.T) {
	page := pricePage(500, peakedPrice)
	snap, err := Apply(context.Background(), newTestMutator(page), nil, nil, testDiscover, combo("na-price", 430))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if eps, ok := snap.Objective(); !ok || eps != 10 {
		t.Fatalf("eps after apply = %f (%v)", eps, ok)
	}
	if text := page.InputText("na-price"); text != "430.00" {
		t.Fatalf("na-price = %q", text)
	}
}
