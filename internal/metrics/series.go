package metrics

import (
	"sort"
	"sync"
	"time"
)

// Point is one recorded value
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Aggregation summarizes the points of one series
type Aggregation struct {
	Count int64   `json:"count"`
	Sum   float64 `json:"sum"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
}

// Series keeps named time series in memory
type Series struct {
	mu     sync.RWMutex
	points map[string][]Point
	limit  int
}

// NewSeries creates a series store keeping at most limit points per name.
// limit <= 0 keeps everything.
func NewSeries(limit int) *Series {
	return &Series{points: make(map[string][]Point), limit: limit}
}

// Record appends a value to the named series
func (s *Series) Record(name string, value float64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pts := append(s.points[name], Point{Timestamp: at, Value: value})
	if s.limit > 0 && len(pts) > s.limit {
		pts = append([]Point(nil), pts[len(pts)-s.limit:]...)
	}
	s.points[name] = pts
}

// Points returns a copy of the named series
func (s *Series) Points(name string) []Point {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pts := s.points[name]
	if pts == nil {
		return nil
	}
	return append([]Point(nil), pts...)
}

// Names returns the recorded series names, sorted
func (s *Series) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.points))
	for name := range s.points {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Aggregate computes statistics over the named series, nil when empty
func (s *Series) Aggregate(name string) *Aggregation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return calculateAggregation(s.points[name])
}

// Clear drops every series
func (s *Series) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = make(map[string][]Point)
}

// calculateAggregation calculates aggregated statistics from points
func calculateAggregation(points []Point) *Aggregation {
	if len(points) == 0 {
		return nil
	}

	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	sort.Float64s(values)

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	count := int64(len(values))

	return &Aggregation{
		Count: count,
		Sum:   sum,
		Min:   values[0],
		Max:   values[len(values)-1],
		Mean:  sum / float64(count),
		P50:   calculatePercentile(values, 0.50),
		P95:   calculatePercentile(values, 0.95),
		P99:   calculatePercentile(values, 0.99),
	}
}

// calculatePercentile interpolates the percentile of a sorted slice
func calculatePercentile(sortedValues []float64, p float64) float64 {
	if len(sortedValues) == 0 {
		return 0.0
	}
	if len(sortedValues) == 1 {
		return sortedValues[0]
	}

	index := p * float64(len(sortedValues)-1)
	lower := int(index)
	upper := lower + 1
	if upper >= len(sortedValues) {
		return sortedValues[len(sortedValues)-1]
	}

	weight := index - float64(lower)
	return sortedValues[lower]*(1-weight) + sortedValues[upper]*weight
}
