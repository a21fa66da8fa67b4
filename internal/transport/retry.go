package transport

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryConfig configures retry behavior for failed registry calls.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts. Zero disables
	// retries.
	MaxRetries int
	// BaseDelay is the initial delay between retry attempts.
	BaseDelay time.Duration
	// MaxDelay caps the delay between retry attempts.
	MaxDelay time.Duration
	// Multiplier is the factor by which the delay grows after each attempt.
	Multiplier float64
	// Jitter is the randomization factor (0.0 to 1.0) applied to delays.
	Jitter float64
	// RetryableOn reports whether a status code should trigger a retry.
	RetryableOn func(statusCode int) bool
}

// DefaultRetryConfig returns a configuration with retries disabled and the
// backoff parameters used once MaxRetries is raised.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:  0,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Multiplier:  2.0,
		Jitter:      0.2,
		RetryableOn: DefaultRetryableOn,
	}
}

// DefaultRetryableOn reports whether statusCode is a transient gateway or
// throttling response. 500 is excluded: the registry may have processed the
// transaction.
func DefaultRetryableOn(statusCode int) bool {
	switch statusCode {
	case 408, 429, 502, 503, 504:
		return true
	default:
		return false
	}
}

// ShouldRetry determines if a call that ended with statusCode should be
// retried. A zero statusCode stands for a network failure.
func (r *RetryConfig) ShouldRetry(attempt int, statusCode int) bool {
	if r == nil || attempt >= r.MaxRetries {
		return false
	}
	if statusCode == 0 {
		return true
	}
	if r.RetryableOn == nil {
		return DefaultRetryableOn(statusCode)
	}
	return r.RetryableOn(statusCode)
}

// Delay calculates the delay before the next attempt.
func (r *RetryConfig) Delay(attempt int) time.Duration {
	delay := float64(r.BaseDelay) * math.Pow(r.Multiplier, float64(attempt))
	if r.MaxDelay > 0 && delay > float64(r.MaxDelay) {
		delay = float64(r.MaxDelay)
	}

	if r.Jitter > 0 {
		jitterAmount := delay * r.Jitter
		delay = delay - jitterAmount + (rand.Float64() * 2 * jitterAmount)
	}

	return time.Duration(delay)
}

// Wait blocks for the delay before the next attempt or until ctx is done.
func (r *RetryConfig) Wait(ctx context.Context, attempt int) error {
	timer := time.NewTimer(r.Delay(attempt))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
