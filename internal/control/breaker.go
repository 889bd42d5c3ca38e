package control

import (
	"sync"
	"time"
)

// CircuitState is the state of the webhook circuit breaker
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half_open"
)

// breaker stops webhook deliveries after repeated failed deliveries and lets
// a single trial through once the cooldown has passed. A delivery counts as
// failed only after its retries are exhausted.
type breaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	state     CircuitState
	failures  int
	changedAt time.Time
	trial     bool
	now       func() time.Time
}

func newBreaker(threshold int, cooldown time.Duration) *breaker {
	return &breaker{
		threshold: threshold,
		cooldown:  cooldown,
		state:     CircuitClosed,
		now:       time.Now,
	}
}

// Allow reports whether a delivery may be attempted. In the half-open state
// only one delivery is in flight at a time.
func (b *breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advanceLocked()
	switch b.state {
	case CircuitOpen:
		return false
	case CircuitHalfOpen:
		if b.trial {
			return false
		}
		b.trial = true
	}
	return true
}

// Success closes the circuit
func (b *breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.trial = false
	if b.state != CircuitClosed {
		b.setLocked(CircuitClosed)
	}
}

// Failure counts a failed delivery; a failed trial reopens the circuit
func (b *breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	switch b.state {
	case CircuitHalfOpen:
		b.trial = false
		b.setLocked(CircuitOpen)
	case CircuitClosed:
		if b.failures >= b.threshold {
			b.setLocked(CircuitOpen)
		}
	}
}

// State returns the current state
func (b *breaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advanceLocked()
	return b.state
}

func (b *breaker) advanceLocked() {
	if b.state == CircuitOpen && b.now().Sub(b.changedAt) >= b.cooldown {
		b.setLocked(CircuitHalfOpen)
	}
}

func (b *breaker) setLocked(s CircuitState) {
	b.state = s
	b.changedAt = b.now()
}
