package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{Attempts: 3, Delay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RecoversAfterFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{Attempts: 5, Delay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAfterExactlyNAttempts(t *testing.T) {
	boom := errors.New("broker unreachable")
	calls := 0
	var attempts []int

	p := Policy{
		Attempts: 4,
		Delay:    time.Millisecond,
		OnAttempt: func(attempt int, err error) {
			attempts = append(attempts, attempt)
		},
	}

	err := Do(context.Background(), p, func(ctx context.Context) error {
		calls++
		return boom
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []int{1, 2, 3, 4}, attempts)
}

func TestDo_WaitsBetweenAttempts(t *testing.T) {
	start := time.Now()
	err := Do(context.Background(), Policy{Attempts: 3, Delay: 20 * time.Millisecond}, func(ctx context.Context) error {
		return errors.New("nope")
	})
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrExhausted)
	// Two delays between three attempts.
	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
}

func TestDo_CancelledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := Do(ctx, Policy{Attempts: 10, Delay: time.Minute}, func(ctx context.Context) error {
		calls++
		return errors.New("nope")
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDo_CancelledBeforeFirstAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, Policy{Attempts: 3, Delay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return nil
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{}, func(ctx context.Context) error {
		calls++
		return errors.New("nope")
	})

	require.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 1, calls)
}
