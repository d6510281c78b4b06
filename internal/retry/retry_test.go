package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Policy{Attempts: 3, BaseDelay: time.Millisecond}.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesTransientErrors(t *testing.T) {
	transient := errors.New("conflict")
	calls := 0
	err := Policy{Attempts: 3, BaseDelay: time.Millisecond}.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return transient
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsBudget(t *testing.T) {
	transient := errors.New("conflict")
	calls := 0
	err := Policy{Attempts: 3, BaseDelay: time.Millisecond}.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return transient
	})
	assert.ErrorIs(t, err, transient)
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	terminal := errors.New("rejected")
	calls := 0
	err := Policy{Attempts: 5, BaseDelay: time.Millisecond}.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Permanent(terminal)
	})
	assert.ErrorIs(t, err, terminal)
	assert.Equal(t, 1, calls)

	// The permanent wrapper is stripped before returning.
	assert.Equal(t, terminal, err)
}

func TestDo_ContextCancelStopsBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	transient := errors.New("conflict")
	calls := 0
	err := Policy{Attempts: 10, BaseDelay: time.Hour}.Do(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return transient
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	err := Policy{}.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestBackoff_GrowsAndCaps(t *testing.T) {
	p := Policy{Attempts: 5, BaseDelay: 10 * time.Millisecond, MaxDelay: 35 * time.Millisecond}

	for retryNum := 0; retryNum < 4; retryNum++ {
		d := p.backoff(retryNum)
		min := p.BaseDelay << uint(retryNum)
		if min > p.MaxDelay {
			min = p.MaxDelay
		}
		assert.GreaterOrEqual(t, d, min, "retry %d", retryNum)
		assert.LessOrEqual(t, d, p.MaxDelay+p.BaseDelay, "retry %d", retryNum)
	}
}

func TestPermanent_NilPassthrough(t *testing.T) {
	assert.NoError(t, Permanent(nil))
}
