package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSleep records requested delays without waiting.
func fakeSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var delays []time.Duration
	orig := sleep
	sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	t.Cleanup(func() { sleep = orig })
	return &delays
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	delays := fakeSleep(t)

	calls := 0
	err := Do(context.Background(), Config{}, func(context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *delays)
}

func TestDo_RetriesTransientThenSucceeds(t *testing.T) {
	delays := fakeSleep(t)

	calls := 0
	err := Do(context.Background(), Config{MaxAttempts: 5}, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("timeout")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, *delays, 2)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	fakeSleep(t)

	boom := errors.New("still down")
	calls := 0
	err := Do(context.Background(), Config{MaxAttempts: 3}, func(context.Context) error {
		calls++
		return boom
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	delays := fakeSleep(t)

	denied := errors.New("401 unauthorized")
	calls := 0
	err := Do(context.Background(), Config{MaxAttempts: 5}, func(context.Context) error {
		calls++
		return Permanent(denied)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, denied, err)
	assert.Empty(t, *delays)
}

func TestDo_BackoffGrowsAndCaps(t *testing.T) {
	delays := fakeSleep(t)

	cfg := Config{
		MaxAttempts:  5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     350 * time.Millisecond,
		Multiplier:   2,
	}
	err := Do(context.Background(), cfg, func(context.Context) error {
		return errors.New("rate limited")
	})

	require.Error(t, err)
	require.Len(t, *delays, 4)
	assert.Equal(t, 100*time.Millisecond, (*delays)[0])
	assert.Equal(t, 200*time.Millisecond, (*delays)[1])
	assert.Equal(t, 350*time.Millisecond, (*delays)[2])
	assert.Equal(t, 350*time.Millisecond, (*delays)[3])
}

func TestDo_ContextCancelled(t *testing.T) {
	orig := sleep
	sleep = func(ctx context.Context, _ time.Duration) error {
		return ctx.Err()
	}
	t.Cleanup(func() { sleep = orig })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, Config{MaxAttempts: 3}, func(context.Context) error {
		return errors.New("timeout")
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestPermanent_NilPassthrough(t *testing.T) {
	assert.NoError(t, Permanent(nil))
}
