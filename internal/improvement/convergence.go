package improvement

import (
	"math"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/form-optimizer/internal/field"
)

// StagnationDetector tracks the time since the last improvement
type StagnationDetector struct {
	mu      sync.Mutex
	timeout time.Duration
	now     func() time.Time
	last    time.Time
}

// NewStagnationDetector creates a detector; a nil clock uses time.Now
func NewStagnationDetector(timeout time.Duration, now func() time.Time) *StagnationDetector {
	if now == nil {
		now = time.Now
	}
	return &StagnationDetector{timeout: timeout, now: now, last: now()}
}

// Mark records an improvement now
func (d *StagnationDetector) Mark() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.last = d.now()
}

// Since returns the time elapsed since the last improvement
func (d *StagnationDetector) Since() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.now().Sub(d.last)
}

// Stagnant reports whether more than the timeout has passed without improvement
func (d *StagnationDetector) Stagnant() bool {
	return d.Since() > d.timeout
}

// MoveCap bounds the number of accepted moves at one step size so a climb
// always terminates: ceil(range/step)+1.
func MoveCap(cls field.Classification, step float64) int {
	if step <= 0 {
		return 1
	}
	return int(math.Ceil(cls.Width()/step)) + 1
}

// TrialBound is the worst-case number of evaluations a local search spends
// on one field: the sweep, two neighbors per move at every step, and the
// final write-back.
func TrialBound(cls field.Classification, steps []float64, sweep int) int {
	n := sweep + 1
	for _, step := range steps {
		n += 2 * (MoveCap(cls, step) + 1)
	}
	return n
}
