// Package retry is a small bounded-retry combinator with exponential
// backoff and jitter. It knows nothing about storage; callers mark
// errors that must not be retried with Permanent.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Policy bounds a retried operation.
type Policy struct {
	// Attempts is the total number of tries, including the first.
	Attempts int
	// BaseDelay seeds the backoff: delay before attempt n (0-based
	// retries) is BaseDelay * 2^n plus jitter in [0, BaseDelay).
	BaseDelay time.Duration
	// MaxDelay caps a single backoff sleep. Zero means no cap.
	MaxDelay time.Duration
}

// DefaultPolicy matches the bid coordinator's budget: 3 attempts,
// 25ms base delay.
var DefaultPolicy = Policy{Attempts: 3, BaseDelay: 25 * time.Millisecond, MaxDelay: time.Second}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so Do stops immediately and returns it unwrapped.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs op until it succeeds, returns a permanent error, the attempt
// budget is spent, or ctx is done. The last error seen is returned.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := p.backoff(attempt - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		lastErr = err
	}
	return lastErr
}

func (p Policy) backoff(retryNum int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		return 0
	}
	delay := base << uint(retryNum)
	delay += time.Duration(rand.Int63n(int64(base)))
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}
