package market

import (
	"context"
	"time"
)

// RetryPolicy is a bounded retry with a fixed backoff schedule, applied
// uniformly at the data-fetch boundary. It replaces ad hoc
// retry-with-sleep loops.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultRetryPolicy returns the standard fetch-boundary policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: 500 * time.Millisecond}
}

// Do runs fn up to MaxAttempts times, sleeping Backoff between attempts.
// The context aborts the wait between attempts, not fn itself; fn is
// expected to honor ctx on its own.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-time.After(p.Backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
