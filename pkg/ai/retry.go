package ai

import (
	"context"
	"time"
)

// DefaultRetryDelay is the fixed pause before the single retry.
const DefaultRetryDelay = 2 * time.Second

// WithRetry runs fn and, if it fails with a transient error, waits delay and
// runs it exactly once more. The second error is returned as is.
func WithRetry[T any](ctx context.Context, delay time.Duration, fn func(context.Context) (T, error)) (T, error) {
	out, err := fn(ctx)
	if err == nil || !IsTransient(err) {
		return out, err
	}
	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return out, err
		case <-timer.C:
		}
	}
	return fn(ctx)
}
