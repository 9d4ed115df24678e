package ml

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy retries a provider call a bounded number of times with a fixed
// backoff. Only errors accepted by ShouldRetry are retried.
type RetryPolicy struct {
	Attempts    int
	Backoff     time.Duration
	ShouldRetry func(error) bool
}

// DefaultRetryPolicy makes up to 3 attempts one second apart, retrying only
// invalid image errors
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Backoff: time.Second, ShouldRetry: IsInvalidImage}
}

// Do runs fn until it succeeds, fails with a non-retryable error or the
// attempts are exhausted. The last error is returned.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	shouldRetry := p.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsInvalidImage
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if !shouldRetry(err) || attempt == attempts {
			return err
		}

		zap.L().Warn("retrying provider call",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Duration("backoff", p.Backoff),
			zap.Error(err))

		timer := time.NewTimer(p.Backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
