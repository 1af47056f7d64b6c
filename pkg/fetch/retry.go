package fetch

import (
	"context"
	"time"
)

// Retry controls how many times a failing collaborator call is repeated
// before the error is surfaced. The zero value means a single attempt.
type Retry struct {
	// Attempts is the total number of tries, including the first.
	Attempts int

	// Delay is the wait before each re-attempt.
	Delay time.Duration

	// Backoff doubles the delay after every failure: the wait before
	// attempt n+1 is Delay * 2^(n-1).
	Backoff bool
}

func (r Retry) normalized() Retry {
	if r.Attempts < 1 {
		r.Attempts = 1
	}
	if r.Delay < 0 {
		r.Delay = 0
	}
	return r
}

// waitBefore returns the delay preceding the given re-attempt, where
// failures=1 means the first attempt just failed.
func (r Retry) waitBefore(failures int) time.Duration {
	if !r.Backoff || failures <= 1 {
		return r.Delay
	}
	return r.Delay << (failures - 1)
}

// retryFetch runs fn up to policy.Attempts times, sleeping between tries.
// It reports the number of attempts actually made. Context cancellation
// aborts the wait and returns the context error, or the last fetch error
// when one already happened.
func retryFetch[T any](ctx context.Context, policy Retry, fn func(context.Context) (T, error)) (T, int, error) {
	var zero T
	policy = policy.normalized()

	var lastErr error
	for attempt := 1; attempt <= policy.Attempts; attempt++ {
		if attempt > 1 {
			wait := policy.waitBefore(attempt - 1)
			if wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-timer.C:
				case <-ctx.Done():
					timer.Stop()
					return zero, attempt - 1, ctx.Err()
				}
			}
		}

		out, err := fn(ctx)
		if err == nil {
			return out, attempt, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, attempt, lastErr
		}
	}
	return zero, policy.Attempts, lastErr
}
