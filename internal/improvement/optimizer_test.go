package improvement

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/GoSim-25-26J-441/form-optimizer/internal/field"
	"github.com/GoSim-25-26J-441/form-optimizer/pkg/utils"
)

var defaultSteps = []float64{100, 50, 25, 10, 5, 1}

var (
	priceClass     = field.Classification{Category: "price", Min: 75, Max: 1000}
	marketingClass = field.Classification{
		Category: "marketing", Min: 0, Max: 10000,
		Sweep: []float64{0, 250, 500, 750, 1000, 1500, 2000, 2500, 3000, 4000, 5000, 6000, 7500, 9000, 10000},
	}
)

// fakeField stands in for a page with one field: it rounds like the
// mutator and scores the written value with fn.
type fakeField struct {
	cls   field.Classification
	fn    func(v float64) (float64, bool)
	live  float64
	raw   []float64
	calls int
}

func (f *fakeField) trial(_ context.Context, v float64) (float64, Reading, error) {
	f.raw = append(f.raw, v)
	f.calls++
	written := utils.Round(f.cls.Clamp(v), 2)
	f.live = written
	score, ok := f.fn(written)
	return written, Reading{Score: score, OK: ok}, nil
}

func (f *fakeField) incumbent(start float64) Reading {
	score, ok := f.fn(start)
	return Reading{Score: score, OK: ok}
}

func descriptor(id string, value float64, cls field.Classification) field.Descriptor {
	return field.Descriptor{ID: id, Label: id, Kind: field.KindNumeric, Value: value, Class: &cls}
}

func peakAt(center, scale float64) func(float64) (float64, bool) {
	return func(v float64) (float64, bool) {
		d := (v - center) / scale
		return 10 - d*d, true
	}
}

func newSearch(t *testing.T, broadSweep bool) *LocalSearch {
	t.Helper()
	ls, err := NewLocalSearch(defaultSteps, broadSweep, NewStepExplorer(2))
	if err != nil {
		t.Fatalf("NewLocalSearch: %v", err)
	}
	return ls
}

func TestNewLocalSearchRejectsBadSteps(t *testing.T) {
	for _, steps := range [][]float64{nil, {5, 2}, {1, 5}, {10, 0, 1}} {
		if _, err := NewLocalSearch(steps, false, nil); err == nil {
			t.Errorf("NewLocalSearch(%v) should fail", steps)
		}
	}
}

func TestLocalSearchFindsInteriorOptimum(t *testing.T) {
	f := &fakeField{cls: priceClass, fn: peakAt(430, 10), live: 500}
	ls := newSearch(t, true)

	res, err := ls.Optimize(context.Background(), descriptor("na-price", 500, priceClass), f.incumbent(500), f.trial, nil)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if math.Abs(res.Value-430) > 1 {
		t.Fatalf("expected optimum near 430, got %f", res.Value)
	}
	if !res.Improved || res.State != StateConverged {
		t.Fatalf("unexpected result: %+v", res)
	}
	if f.live != res.Value {
		t.Fatalf("field left at %f, best is %f", f.live, res.Value)
	}
}

func TestLocalSearchClampsEveryCandidate(t *testing.T) {
	increasing := func(v float64) (float64, bool) { return v, true }
	for _, start := range []float64{75, 990, 1000} {
		f := &fakeField{cls: priceClass, fn: increasing, live: start}
		ls := newSearch(t, false)
		res, err := ls.Optimize(context.Background(), descriptor("p", start, priceClass), f.incumbent(start), f.trial, nil)
		if err != nil {
			t.Fatalf("Optimize: %v", err)
		}
		for _, v := range f.raw {
			if v < priceClass.Min || v > priceClass.Max {
				t.Fatalf("start %f: candidate %f outside [%f,%f]", start, v, priceClass.Min, priceClass.Max)
			}
		}
		if res.Value != priceClass.Max {
			t.Fatalf("start %f: expected climb to the upper bound, got %f", start, res.Value)
		}
	}
}

func TestLocalSearchBoundedConvergence(t *testing.T) {
	tests := []struct {
		name  string
		cls   field.Classification
		start float64
		fn    func(float64) (float64, bool)
	}{
		{"monotone", marketingClass, 0, func(v float64) (float64, bool) { return v, true }},
		{"wavy", marketingClass, 5000, func(v float64) (float64, bool) { return math.Sin(v/300) - math.Abs(v-3333)/5000, true }},
		{"peak", priceClass, 500, peakAt(430, 10)},
		{"flat", priceClass, 500, func(float64) (float64, bool) { return 1, true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeField{cls: tt.cls, fn: tt.fn, live: tt.start}
			ls := newSearch(t, true)
			res, err := ls.Optimize(context.Background(), descriptor("f", tt.start, tt.cls), f.incumbent(tt.start), f.trial, nil)
			if err != nil {
				t.Fatalf("Optimize: %v", err)
			}
			bound := TrialBound(tt.cls, defaultSteps, len(tt.cls.Sweep))
			if res.Trials > bound || f.calls != res.Trials {
				t.Fatalf("trials=%d calls=%d bound=%d", res.Trials, f.calls, bound)
			}
			if res.State != StateConverged {
				t.Fatalf("State = %s", res.State)
			}
		})
	}
}

func TestLocalSearchStrictImprovementOnly(t *testing.T) {
	f := &fakeField{cls: priceClass, fn: func(float64) (float64, bool) { return 7, true }, live: 500}
	ls := newSearch(t, false)
	res, err := ls.Optimize(context.Background(), descriptor("p", 500, priceClass), f.incumbent(500), f.trial, nil)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if res.Improved || res.Value != 500 {
		t.Fatalf("a flat objective must not move the field: %+v", res)
	}
	if f.live != 500 {
		t.Fatalf("field should be written back to 500, got %f", f.live)
	}
}

func TestLocalSearchMonotonicImprovements(t *testing.T) {
	f := &fakeField{cls: marketingClass, fn: peakAt(2600, 400), live: 1000}
	ls := newSearch(t, true)

	var scores []float64
	onImprove := func(_ float64, _ string, r Reading) error {
		scores = append(scores, r.Score)
		return nil
	}
	if _, err := ls.Optimize(context.Background(), descriptor("ad", 1000, marketingClass), f.incumbent(1000), f.trial, onImprove); err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if len(scores) == 0 {
		t.Fatal("expected improvements")
	}
	start, _ := f.fn(1000)
	prev := start
	for _, s := range scores {
		if !(s > prev) {
			t.Fatalf("improvements not strictly increasing: %v", scores)
		}
		prev = s
	}
}

func TestLocalSearchUnreadableTrials(t *testing.T) {
	peak := peakAt(430, 10)
	broken := 3
	f := &fakeField{cls: priceClass, live: 500}
	f.fn = func(v float64) (float64, bool) {
		if broken > 0 && f.calls > 0 {
			broken--
			return 0, false
		}
		return peak(v)
	}
	incumbent := f.incumbent(500)
	ls := newSearch(t, false)
	res, err := ls.Optimize(context.Background(), descriptor("p", 500, priceClass), incumbent, f.trial, nil)
	if err != nil {
		t.Fatalf("unreadable trials must not be errors: %v", err)
	}
	if res.Unreadable != 3 {
		t.Fatalf("Unreadable = %d", res.Unreadable)
	}
	if res.Best.Score < incumbent.Score {
		t.Fatalf("best dropped below the incumbent: %f < %f", res.Best.Score, incumbent.Score)
	}
}

func TestLocalSearchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &fakeField{cls: priceClass, fn: peakAt(430, 10), live: 500}
	ls := newSearch(t, true)
	res, err := ls.Optimize(ctx, descriptor("p", 500, priceClass), f.incumbent(500), f.trial, nil)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if !res.Cancelled || res.Trials != 0 || res.State == StateConverged {
		t.Fatalf("unexpected cancelled result: %+v", res)
	}
}

func TestLocalSearchErrors(t *testing.T) {
	ls := newSearch(t, false)
	if _, err := ls.Optimize(context.Background(), field.Descriptor{ID: "x"}, Reading{}, nil, nil); err == nil {
		t.Fatal("expected error for an unclassified field")
	}

	boom := errors.New("page gone")
	failing := func(context.Context, float64) (float64, Reading, error) { return 0, Reading{}, boom }
	if _, err := ls.Optimize(context.Background(), descriptor("p", 500, priceClass), Reading{}, failing, nil); !errors.Is(err, boom) {
		t.Fatalf("expected trial error, got %v", err)
	}

	f := &fakeField{cls: priceClass, fn: peakAt(430, 10), live: 500}
	stop := errors.New("persist failed")
	onImprove := func(float64, string, Reading) error { return stop }
	if _, err := ls.Optimize(context.Background(), descriptor("p", 500, priceClass), f.incumbent(500), f.trial, onImprove); !errors.Is(err, stop) {
		t.Fatalf("expected improve error, got %v", err)
	}
}
