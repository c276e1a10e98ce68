package utils

import (
	"context"
	"fmt"
	"time"
)

// CallWithRetry calls a function, retrying up to maxAttempts times while it returns an error
// that retryable accepts. A nil retryable retries every error.
// If after maxAttempts the function still returns an error, it returns the zero value of T and the last error.
func CallWithRetry[T any](ctx context.Context, fn func() (T, error), maxAttempts int, backoff time.Duration, retryable func(error) bool) (T, error) {
	var zero T
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var err error
	for i := 0; i < maxAttempts; i++ {
		var t T
		t, err = fn()
		if err == nil {
			return t, nil
		}
		if retryable != nil && !retryable(err) {
			return zero, err
		}
		if i == maxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("failed to call with retry: %w", ctx.Err())
		case <-time.After(backoff):
		}
	}
	return zero, fmt.Errorf("failed to call with retry after %d attempts: %w", maxAttempts, err)
}
