package genai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateBackoff(t *testing.T) {
	initial := 500 * time.Millisecond
	max := 3 * time.Second

	assert.Equal(t, time.Duration(0), CalculateBackoff(0, initial, max))
	assert.Equal(t, time.Duration(0), CalculateBackoff(-1, initial, max))

	// Full jitter: delay is uniform in [0, min(max, initial*2^(n-1))).
	for attempt := 1; attempt <= 5; attempt++ {
		bound := time.Duration(float64(initial) * float64(int(1)<<(attempt-1)))
		if bound > max {
			bound = max
		}
		for i := 0; i < 20; i++ {
			d := CalculateBackoff(attempt, initial, max)
			assert.GreaterOrEqual(t, d, time.Duration(0))
			assert.Less(t, d, bound+time.Nanosecond)
		}
	}
}

func TestWithRetrySucceedsAfterTransientError(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	calls := 0
	err := WithRetry(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return errors.New("503 service unavailable")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryStopsOnPermanentError(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	calls := 0
	permanent := errors.New("401 unauthorized")
	err := WithRetry(context.Background(), cfg, func() error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	calls := 0
	transient := errors.New("connection reset")
	err := WithRetry(context.Background(), cfg, func() error {
		calls++
		return transient
	})
	assert.ErrorIs(t, err, transient)
	assert.Equal(t, 2, calls)
}

func TestWithRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithRetry(ctx, DefaultRetryConfig, func() error {
		t.Fatal("fn should not run with cancelled context")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSleepCancellable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Second), context.Canceled)
	assert.NoError(t, Sleep(context.Background(), 0))
}
