package cloudwatch

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

const (
	maxRetries     = 3
	initialBackoff = 100 * time.Millisecond
)

// newRequestLimiter paces API calls below the per-account TPS quota.
func newRequestLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

// withRetry runs call up to maxRetries times with exponential backoff,
// waiting on the limiter before every attempt.
func withRetry(ctx context.Context, limiter *rate.Limiter, call func() error) error {
	var lastErr error
	backoff := initialBackoff

	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}

		lastErr = call()
		if lastErr == nil {
			return nil
		}

		if attempt < maxRetries-1 {
			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}
