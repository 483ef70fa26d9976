// Package retry provides a bounded retry combinator.
package retry

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoAttempts is returned when Do is called with fewer than one attempt.
var ErrNoAttempts = errors.New("retry: at least one attempt is required")

// Do runs op up to maxAttempts times and returns the first successful
// result. Attempts are numbered from 1 and run back to back. When every
// attempt fails the returned error wraps the last attempt's error.
// A cancelled ctx stops further attempts.
func Do[T any](ctx context.Context, maxAttempts int, op func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	if maxAttempts < 1 {
		return zero, ErrNoAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				return zero, err
			}
			return zero, fmt.Errorf("retry: cancelled after %d attempts: %w", attempt-1, lastErr)
		}
		v, err := op(ctx, attempt)
		if err == nil {
			return v, nil
		}
		lastErr = err
	}
	return zero, fmt.Errorf("retry: giving up after %d attempts: %w", maxAttempts, lastErr)
}
