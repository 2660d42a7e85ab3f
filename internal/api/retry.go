package api

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// RetryConfig configures retries of idempotent requests. A hosted backend
// that was asleep often fails the first call while it starts.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// DefaultRetryConfig returns the retry policy used by the CLI and the TUI.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		InitialWait: time.Second,
		MaxWait:     8 * time.Second,
		Multiplier:  2,
	}
}

// WithRetry retries bodiless GET requests that fail with a retryable error.
func WithRetry(cfg RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

// idempotent reports whether r may be sent again unchanged.
func (r request) idempotent() bool {
	return r.method == "GET" && r.body == nil
}

// withRetry runs send until it succeeds, fails permanently or runs out of
// attempts.
func (c *Client) withRetry(ctx context.Context, r request, send func() error) error {
	attempts := c.retry.MaxAttempts
	if attempts < 1 || !r.idempotent() {
		attempts = 1
	}

	var lastErr error
	for attempt := range attempts {
		err := send()
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) || attempt == attempts-1 {
			break
		}

		wait := c.retry.backoff(attempt)
		c.log.Debug("retrying request", "op", r.op, "attempt", attempt+1, "wait", wait.String(), "error", err)
		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(wait):
		}
	}
	return lastErr
}

// backoff computes the wait before the next attempt.
func (cfg RetryConfig) backoff(attempt int) time.Duration {
	mult := cfg.Multiplier
	if mult < 1 {
		mult = 1
	}
	wait := float64(cfg.InitialWait) * math.Pow(mult, float64(attempt))
	if cfg.MaxWait > 0 && wait > float64(cfg.MaxWait) {
		wait = float64(cfg.MaxWait)
	}

	// ±20% jitter.
	wait += wait * 0.2 * (2*rand.Float64() - 1)
	if wait < 0 {
		wait = 0
	}
	return time.Duration(wait)
}
