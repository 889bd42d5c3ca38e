package improvement

import (
	"context"
	"testing"
	"time"

	"github.com/GoSim-25-26J-441/form-optimizer/internal/field"
	"github.com/GoSim-25-26J-441/form-optimizer/internal/form"
	"github.com/GoSim-25-26J-441/form-optimizer/internal/form/sim"
	"github.com/GoSim-25-26J-441/form-optimizer/internal/measure"
	"github.com/GoSim-25-26J-441/form-optimizer/internal/persist"
	"github.com/GoSim-25-26J-441/form-optimizer/pkg/utils"
)

var testDiscover = field.DiscoverOptions{InputClass: "input-field", IgnoreSelectClass: "entry-assumptions-select"}

func noSleep(context.Context, time.Duration) {}

func newTestMutator(page form.Page) *form.Mutator {
	m := form.NewMutator(page, form.MutatorOptions{Precision: 2})
	m.SetSleep(noSleep)
	return m
}

func newTestBench(page form.Page) *bench {
	return &bench{
		mutator:    newTestMutator(page),
		reader:     measure.NewReader(nil),
		objective:  &EPSObjective{},
		discover:   testDiscover,
		classifier: field.DefaultClassifier,
		reference:  func() measure.Snapshot { return measure.Snapshot{} },
		recorder:   nopRecorder{},
	}
}

// pricePage renders a single "N.A. Wholesale Price" input scored by eps
func pricePage(start float64, eps func(price float64) float64) *sim.Page {
	layout := sim.Layout{Inputs: []sim.InputSpec{{ID: "na-price", Label: "N.A. Wholesale Price", Value: start}}}
	return sim.New(sim.WithLayout(layout), sim.WithScore(func(in map[string]float64, _ map[string]string) map[string]float64 {
		return map[string]float64{"eps": eps(in["na-price"])}
	}))
}

func peakedPrice(p float64) float64 {
	d := (p - 430) / 10
	return 10 - d*d
}

type testSession struct {
	page    *sim.Page
	store   *BestStore
	mem     *persist.MemoryStore
	session *Session
	clock   *fakeClock
}

func newTestSession(t *testing.T, page *sim.Page, configure func(*Options)) *testSession {
	t.Helper()
	return newTestSessionWithStore(t, page, persist.NewMemoryStore(), configure)
}

func newTestSessionWithStore(t *testing.T, page *sim.Page, mem *persist.MemoryStore, configure func(*Options)) *testSession {
	t.Helper()
	ctx := context.Background()
	store, err := NewBestStore(ctx, mem)
	if err != nil {
		t.Fatalf("NewBestStore: %v", err)
	}
	clock := newFakeClock()
	opts := Options{
		Objective:         &EPSObjective{},
		Steps:             defaultSteps,
		BroadSweep:        true,
		Precision:         2,
		StagnationTimeout: 5 * time.Minute,
		MaxPasses:         1,
		Restart:           NewRandomRestart(10, 0, utils.NewRandSource(7)),
		Discover:          testDiscover,
		Clock:             clock.Now,
		Sleep:             func(ctx context.Context, _ time.Duration) error { return ctx.Err() },
	}
	if configure != nil {
		configure(&opts)
	}
	s, err := NewSession(newTestMutator(page), measure.NewReader(nil), field.DefaultClassifier(), store, opts)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return &testSession{page: page, store: store, mem: mem, session: s, clock: clock}
}

// collect runs the session to completion, calling each for every event
func (ts *testSession) collect(each func(ProgressEvent)) []ProgressEvent {
	var events []ProgressEvent
	for ev := range ts.session.Run(context.Background()) {
		events = append(events, ev)
		if each != nil {
			each(ev)
		}
	}
	return events
}

func ofType(events []ProgressEvent, typ EventType) []ProgressEvent {
	var out []ProgressEvent
	for _, ev := range events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}
