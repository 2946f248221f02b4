package retry

import (
	"math"
	"time"
)

/* Policy computes backoff delays and retry eligibility.
 * Deterministic and stateless so it can be unit-tested independent of
 * time and I/O. The durable schedule lives on the delivery record, not
 * here; the worker persists NextRetryAt between ticks.
 */
type Policy struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	MaxAttempts  int
}

// DefaultPolicy mirrors the configuration defaults: 1s initial delay,
// doubling per attempt, capped at one hour, five attempts total.
func DefaultPolicy() Policy {
	return Policy{
		InitialDelay: time.Second,
		Multiplier:   2.0,
		MaxDelay:     time.Hour,
		MaxAttempts:  5,
	}
}

// Delay returns the backoff before the next attempt, given the number of
// attempts already made: min(initial * multiplier^(attempt-1), max).
// Attempt counts below 1 are treated as 1.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

// ShouldRetry reports whether another attempt is allowed after the given
// number of attempts already made.
func (p Policy) ShouldRetry(attempt int) bool {
	return attempt < p.MaxAttempts
}
