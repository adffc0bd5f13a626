// Package retry runs fallible operations with bounded exponential backoff.
package retry

import (
	"context"
	"time"
)

// Policy describes how failures are retried. BaseDelay doubles on every
// attempt; MaxDelay caps the growth when positive and leaves it unbounded
// when zero.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration

	// Sleep is swapped out in tests. Nil means a context-aware time.Sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Classifier reports whether an error is worth retrying.
type Classifier func(error) bool

// Delay returns the backoff delay preceding the given retry attempt,
// counted from zero.
func (p Policy) Delay(attempt int) time.Duration {
	d := p.BaseDelay << uint(attempt)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do invokes op, retrying recoverable failures up to MaxRetries times.
// The operation runs at most MaxRetries+1 times. Non-recoverable errors
// propagate unchanged and immediately; op must tolerate re-invocation.
func Do[T any](ctx context.Context, policy Policy, recoverable Classifier, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if attempt >= policy.MaxRetries || recoverable == nil || !recoverable(err) {
			return zero, err
		}
		if sleepErr := policy.sleep(ctx, policy.Delay(attempt)); sleepErr != nil {
			return zero, sleepErr
		}
	}
}
