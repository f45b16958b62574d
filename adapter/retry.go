package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// BaseBackoff is the delay before the first retry.
const BaseBackoff = 500 * time.Millisecond

// MaxRetryAfter caps a server-requested delay.
const MaxRetryAfter = 30 * time.Second

// Backoff returns the exponential delay before retry attempt n (n >= 1).
func Backoff(n int) time.Duration {
	if n < 1 {
		return 0
	}
	return time.Duration(1<<uint(n-1)) * BaseBackoff
}

// Sleep waits for d or until ctx is done, returning ctx.Err() in the latter case.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Retry returns it at once.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// RetryAfterError is implemented by failures that carry a server-requested
// delay, such as a 429 with Retry-After.
type RetryAfterError interface {
	error
	RetryAfter() time.Duration
}

// Retry calls attempt once plus up to retries more times, sleeping Backoff(n)
// between calls, or the requested delay when the previous failure was a
// RetryAfterError. name prefixes returned errors.
func Retry(ctx context.Context, name string, retries int, attempt func(ctx context.Context) error) error {
	attempts := 1 + retries
	var lastErr error
	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context canceled: %w", name, err)
		}
		if i > 0 {
			if err := Sleep(ctx, retryDelay(i, lastErr)); err != nil {
				return fmt.Errorf("%s: context canceled during backoff: %w", name, err)
			}
		}

		lastErr = attempt(ctx)
		if lastErr == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return fmt.Errorf("%s: non-retriable error: %w", name, perm.err)
		}
	}
	return fmt.Errorf("%s: failed after %d attempts: %w", name, attempts, lastErr)
}

func retryDelay(n int, prev error) time.Duration {
	var ra RetryAfterError
	if errors.As(prev, &ra) {
		if d := ra.RetryAfter(); d > 0 {
			return min(d, MaxRetryAfter)
		}
	}
	return Backoff(n)
}
