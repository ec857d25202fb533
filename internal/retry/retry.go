// Package retry is the single home of the client's retry policy: linear
// backoff, transient failures only.
package retry

import (
	"context"
	"time"
)

// Classifier decides whether a failure is worth another attempt.
type Classifier func(error) bool

// Do invokes fn up to attempts times. After a failure the classifier decides:
// non-transient errors are returned immediately without consuming the
// remaining attempts; transient ones wait baseDelay * attemptIndex (linear,
// no jitter) and try again. The last error is returned once attempts run out.
func Do[T any](ctx context.Context, attempts int, baseDelay time.Duration, transient Classifier, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, baseDelay*time.Duration(attempt)); err != nil {
				return zero, err
			}
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !transient(err) {
			return zero, err
		}
	}

	return zero, lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
