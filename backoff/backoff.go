// Package backoff provides delay strategies and a supervision loop for
// long-running calls that must be restarted when they fail, such as the
// failure listeners of networked backends. Strategies are stateless and safe
// for concurrent use.
package backoff

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before a restart attempt.
type Strategy interface {
	// Delay returns how long to wait before restart attempt n (1-indexed).
	Delay(attempt int) time.Duration
}

// ──────────────────────────────────────────────────
// Constant
// ──────────────────────────────────────────────────

// Constant always returns the same delay regardless of attempt number.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant backoff strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// ──────────────────────────────────────────────────
// Exponential
// ──────────────────────────────────────────────────

// Exponential doubles the delay each attempt.
// Delay = min(Initial * 2^(attempt-1), Max).
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponential creates an exponential backoff strategy.
func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay}
}

// Delay returns Initial * 2^(attempt-1), capped at Max.
func (e *Exponential) Delay(attempt int) time.Duration {
	return capped(e.Initial, e.Max, attempt)
}

// ──────────────────────────────────────────────────
// ExponentialWithJitter (full jitter)
// ──────────────────────────────────────────────────

// ExponentialWithJitter applies full jitter to an exponential base so that
// many listeners losing the same server do not reconnect in lockstep.
// Delay = random value in [0, min(Initial * 2^(attempt-1), Max)].
type ExponentialWithJitter struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponentialWithJitter creates an exponential backoff with full jitter.
func NewExponentialWithJitter(initial, maxDelay time.Duration) *ExponentialWithJitter {
	return &ExponentialWithJitter{Initial: initial, Max: maxDelay}
}

// Delay returns a random duration in [0, min(Initial * 2^(attempt-1), Max)].
func (e *ExponentialWithJitter) Delay(attempt int) time.Duration {
	base := capped(e.Initial, e.Max, attempt)
	return time.Duration(rand.Float64() * float64(base)) //nolint:gosec // jitter intentionally uses non-crypto rand
}

func capped(initial, maxDelay time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(initial) * math.Pow(2, float64(attempt-1))
	if maxDelay > 0 && d > float64(maxDelay) {
		return maxDelay
	}
	return time.Duration(d)
}

// DefaultStrategy returns the reconnect backoff used for failure listeners:
// ExponentialWithJitter with 500ms initial and 30s max.
func DefaultStrategy() Strategy {
	return NewExponentialWithJitter(500*time.Millisecond, 30*time.Second)
}

// ──────────────────────────────────────────────────
// Supervise
// ──────────────────────────────────────────────────

// StableAfter is how long a call must run before a later failure is treated
// as a fresh first attempt.
const StableAfter = time.Minute

// Supervise calls fn until ctx is done, waiting s.Delay(attempt) between
// calls. A call that returns early counts as a failed attempt even when it
// returns nil. onRestart, when non-nil, is told about every restart before
// the wait. Supervise returns ctx's error.
func Supervise(ctx context.Context, s Strategy, fn func(ctx context.Context) error, onRestart func(attempt int, err error, delay time.Duration)) error {
	attempt := 0
	for {
		started := time.Now()
		err := fn(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if time.Since(started) >= StableAfter {
			attempt = 0
		}
		attempt++
		delay := s.Delay(attempt)
		if onRestart != nil {
			onRestart(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
