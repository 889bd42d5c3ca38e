// Package metrics exposes search counters to Prometheus and keeps a short
// in-memory history of best scores.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "formopt"

// Series names
const (
	SeriesBestScore = "best_score"
)

// Collector counts trials, improvements, restarts and passes. It satisfies
// improvement.Recorder. Each Collector owns its registry so several can live
// in one process.
type Collector struct {
	registry     *prometheus.Registry
	trials       *prometheus.CounterVec
	improvements prometheus.Counter
	bestScore    prometheus.Gauge
	restarts     *prometheus.CounterVec
	passes       prometheus.Counter
	series       *Series
	now          func() time.Time
}

// NewCollector creates a collector with its own registry. missed, when not
// nil, is exported as the count of trials that found no recalculate action.
func NewCollector(missed func() float64) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		trials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "trials_total",
			Help:      "Evaluations of candidate values by result",
		}, []string{"result"}),
		improvements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "improvements_total",
			Help:      "Strict improvements of the best score",
		}),
		bestScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "best_score",
			Help:      "Best objective score of the current session",
		}),
		restarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "restarts_total",
			Help:      "Randomized restarts by outcome",
		}, []string{"result"}),
		passes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "passes_total",
			Help:      "Completed passes over all fields",
		}),
		series: NewSeries(1000),
		now:    time.Now,
	}
	c.registry.MustRegister(c.trials, c.improvements, c.bestScore, c.restarts, c.passes)
	if missed != nil {
		c.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "form",
			Name:      "missed_recalculations_total",
			Help:      "Recompute requests that found no recalculate action",
		}, missed))
	}
	return c
}

// ObserveTrial counts one evaluation
func (c *Collector) ObserveTrial(ok bool) {
	result := "ok"
	if !ok {
		result = "unreadable"
	}
	c.trials.WithLabelValues(result).Inc()
}

// ObserveBest records a new best score
func (c *Collector) ObserveBest(score float64) {
	c.improvements.Inc()
	c.bestScore.Set(score)
	c.series.Record(SeriesBestScore, score, c.now())
}

// ObserveRestart counts a finished restart
func (c *Collector) ObserveRestart(improved bool) {
	result := "failed"
	if improved {
		result = "improved"
	}
	c.restarts.WithLabelValues(result).Inc()
}

// ObservePass counts a completed pass
func (c *Collector) ObservePass() {
	c.passes.Inc()
}

// Series returns the in-memory score history
func (c *Collector) Series() *Series {
	return c.series
}

// Registry returns the collector's registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
