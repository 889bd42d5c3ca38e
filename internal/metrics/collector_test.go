package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorCounters(t *testing.T) {
	missed := 3.0
	c := NewCollector(func() float64 { return missed })

	c.ObserveTrial(true)
	c.ObserveTrial(true)
	c.ObserveTrial(false)
	c.ObserveBest(10)
	c.ObserveBest(12.5)
	c.ObserveRestart(false)
	c.ObservePass()

	if got := testutil.ToFloat64(c.trials.WithLabelValues("ok")); got != 2 {
		t.Fatalf("ok trials = %f", got)
	}
	if got := testutil.ToFloat64(c.trials.WithLabelValues("unreadable")); got != 1 {
		t.Fatalf("unreadable trials = %f", got)
	}
	if got := testutil.ToFloat64(c.improvements); got != 2 {
		t.Fatalf("improvements = %f", got)
	}
	if got := testutil.ToFloat64(c.bestScore); got != 12.5 {
		t.Fatalf("best score = %f", got)
	}
	if got := testutil.ToFloat64(c.restarts.WithLabelValues("failed")); got != 1 {
		t.Fatalf("failed restarts = %f", got)
	}
	if got := testutil.ToFloat64(c.passes); got != 1 {
		t.Fatalf("passes = %f", got)
	}

	pts := c.Series().Points(SeriesBestScore)
	if len(pts) != 2 || pts[1].Value != 12.5 {
		t.Fatalf("best score series = %+v", pts)
	}
}

func TestCollectorHandler(t *testing.T) {
	c := NewCollector(func() float64 { return 4 })
	c.ObserveTrial(true)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`formopt_search_trials_total{result="ok"} 1`,
		"formopt_form_missed_recalculations_total 4",
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics output missing %q:\n%s", want, body)
		}
	}
}

func TestSeparateRegistries(t *testing.T) {
	a := NewCollector(nil)
	b := NewCollector(nil)
	a.ObservePass()
	if testutil.ToFloat64(b.passes) != 0 {
		t.Fatal("collectors share state")
	}
}

func TestSeriesAggregate(t *testing.T) {
	s := NewSeries(0)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, v := range []float64{4, 1, 3, 2, 5} {
		s.Record("score", v, base.Add(time.Duration(i)*time.Second))
	}
	agg := s.Aggregate("score")
	if agg == nil {
		t.Fatal("expected aggregation")
	}
	if agg.Count != 5 || agg.Sum != 15 || agg.Min != 1 || agg.Max != 5 || agg.Mean != 3 || agg.P50 != 3 {
		t.Fatalf("unexpected aggregation: %+v", agg)
	}
	if s.Aggregate("missing") != nil {
		t.Fatal("empty series should not aggregate")
	}
	if names := s.Names(); len(names) != 1 || names[0] != "score" {
		t.Fatalf("Names() = %v", names)
	}
	s.Clear()
	if len(s.Points("score")) != 0 {
		t.Fatal("Clear should drop points")
	}
}

func TestSeriesLimit(t *testing.T) {
	s := NewSeries(2)
	now := time.Now()
	s.Record("x", 1, now)
	s.Record("x", 2, now)
	s.Record("x", 3, now)
	pts := s.Points("x")
	if len(pts) != 2 || pts[0].Value != 2 || pts[1].Value != 3 {
		t.Fatalf("Points = %+v", pts)
	}
}

func TestCalculatePercentile(t *testing.T) {
	tests := []struct {
		values []float64
		p      float64
		want   float64
	}{
		{nil, 0.5, 0},
		{[]float64{7}, 0.99, 7},
		{[]float64{1, 2, 3, 4}, 0.5, 2.5},
		{[]float64{1, 2, 3, 4}, 1, 4},
	}
	for _, tt := range tests {
		if got := calculatePercentile(tt.values, tt.p); got != tt.want {
			t.Errorf("calculatePercentile(%v, %v) = %v, want %v", tt.values, tt.p, got, tt.want)
		}
	}
}
