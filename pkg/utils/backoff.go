package utils

import (
	"context"
	"math"
	"time"
)

// RetryKind names how the delay between delivery attempts grows
type RetryKind string

const (
	RetryConstant    RetryKind = "constant"
	RetryLinear      RetryKind = "linear"
	RetryExponential RetryKind = "exponential"
)

// defaultRetryCap bounds the delay when no maximum is configured
const defaultRetryCap = 30 * time.Second

// RetryDelay computes the pause before the next attempt of an outbound
// delivery. Exponential delays double per attempt and, with jitter, are
// scaled by a factor drawn from [0.5, 1.5).
type RetryDelay struct {
	Kind   RetryKind
	Base   time.Duration
	Cap    time.Duration
	Jitter *RandSource
}

// NewRetryDelay builds a retry delay from millisecond settings. Unknown or
// empty kinds fall back to jittered exponential growth.
func NewRetryDelay(kind string, baseMs, capMs int) RetryDelay {
	d := RetryDelay{
		Kind: RetryKind(kind),
		Base: time.Duration(baseMs) * time.Millisecond,
		Cap:  time.Duration(capMs) * time.Millisecond,
	}
	if d.Cap <= 0 {
		d.Cap = defaultRetryCap
	}
	switch d.Kind {
	case RetryConstant, RetryLinear:
	default:
		d.Kind = RetryExponential
		d.Jitter = NewRandSource(0)
	}
	return d
}

// After returns the delay before retry number attempt (0-indexed)
func (d RetryDelay) After(attempt int) time.Duration {
	var delay float64
	switch d.Kind {
	case RetryConstant:
		return d.Base
	case RetryLinear:
		delay = float64(d.Base) * float64(attempt+1)
	default:
		delay = float64(d.Base) * math.Pow(2, float64(attempt))
	}
	delay = math.Min(delay, float64(d.Cap))
	if d.Jitter != nil {
		delay *= 0.5 + d.Jitter.Float64()
	}
	return time.Duration(delay)
}

// Wait sleeps before retry number attempt, returning early with the context
// error when ctx is done first
func (d RetryDelay) Wait(ctx context.Context, attempt int) error {
	timer := time.NewTimer(d.After(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
