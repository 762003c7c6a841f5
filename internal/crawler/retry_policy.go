package crawler

import (
	"context"
	"errors"
	"time"
)

// Retry defaults for the remote fetch service.
const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 2 * time.Second
)

// FixedDelayRetryPolicy retries server-side (5xx) failures with a constant
// delay between attempts.
type FixedDelayRetryPolicy struct {
	maxAttempts int
	delay       time.Duration
}

// NewFixedDelayRetryPolicy builds a policy allowing maxAttempts total
// attempts. Non-positive values fall back to the defaults.
func NewFixedDelayRetryPolicy(maxAttempts int, delay time.Duration) *FixedDelayRetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if delay < 0 {
		delay = DefaultRetryDelay
	}
	return &FixedDelayRetryPolicy{
		maxAttempts: maxAttempts,
		delay:       delay,
	}
}

// MaxAttempts returns the total number of attempts allowed.
func (p *FixedDelayRetryPolicy) MaxAttempts() int {
	return p.maxAttempts
}

// ShouldRetry decides whether the error after the given 1-based attempt is
// retried.
func (p *FixedDelayRetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.maxAttempts {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return IsServerError(err)
}

// Backoff returns the wait before the next attempt.
func (p *FixedDelayRetryPolicy) Backoff(int) time.Duration {
	return p.delay
}
