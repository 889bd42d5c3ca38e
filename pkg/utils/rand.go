package utils

import (
	"math/rand"
	"sync"
	"time"
)

// RandSource is a seeded, mutex-guarded generator shared by the restart
// strategies and retry jitter
type RandSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandSource creates a source for seed. A zero seed draws one from the clock.
func NewRandSource(seed int64) *RandSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandSource{rng: rand.New(rand.NewSource(seed))}
}

// Float64 returns a draw in [0, 1)
func (r *RandSource) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64()
}

// UniformFloat64 returns a draw in [lo, hi). A degenerate range returns lo.
func (r *RandSource) UniformFloat64(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + r.Float64()*(hi-lo)
}

// Derive returns an independent generator seeded from this source, for
// libraries that take their own *rand.Rand
func (r *RandSource) Derive() *rand.Rand {
	r.mu.Lock()
	defer r.mu.Unlock()
	return rand.New(rand.NewSource(r.rng.Int63()))
}
