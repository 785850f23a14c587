package utils

import (
	"context"
	"time"
)

// RetryBackoffDelay is 50ms doubled per attempt, capped at 1s.
func RetryBackoffDelay(attempt int) time.Duration {
	d := 50 * time.Millisecond
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= time.Second {
			return time.Second
		}
	}
	return d
}

// WithRetry runs fn up to maxAttempts times while it returns a retryable error.
func WithRetry(ctx context.Context, maxAttempts int, fn func(attempt int) error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn(attempt)
		if err == nil || !IsRetryable(err) || attempt == maxAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(RetryBackoffDelay(attempt)):
		}
	}
	return err
}
