package gateway

import (
	"context"
	"fmt"
	"time"
)

const (
	// DefaultRetries is the number of retries after the first failed attempt.
	DefaultRetries = 1
	// DefaultBackoff is the fixed wait between attempts.
	DefaultBackoff = 1500 * time.Millisecond
)

// RetryPolicy is a fixed-delay retry schedule.
type RetryPolicy struct {
	Retries int
	Backoff time.Duration
}

// DefaultRetryPolicy returns one retry after 1.5s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Retries: DefaultRetries, Backoff: DefaultBackoff}
}

// Wait sleeps for the backoff or until ctx is done.
func (p RetryPolicy) Wait(ctx context.Context) error {
	if p.Backoff <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(p.Backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("retry wait: %w", ctx.Err())
	case <-t.C:
		return nil
	}
}
