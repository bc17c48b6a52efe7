package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/findigest/internal/retry"
)

var errFlaky = errors.New("flaky")

func TestWithRetry_SingleAttempt(t *testing.T) {
	calls := 0
	err := retry.WithRetry(context.Background(), retry.Once, func(int) error {
		calls++
		return errFlaky
	})
	assert.Equal(t, 1, calls)
	assert.Equal(t, errFlaky, err)
}

func TestWithRetry_SucceedsEventually(t *testing.T) {
	var attempts []int
	cfg := retry.RetryConfig{MaxAttempts: 3, Delay: time.Millisecond}
	err := retry.WithRetry(context.Background(), cfg, func(attempt int) error {
		attempts = append(attempts, attempt)
		if attempt < 3 {
			return errFlaky
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, attempts)
}

func TestWithRetry_Exhausted(t *testing.T) {
	calls := 0
	cfg := retry.RetryConfig{MaxAttempts: 2, Delay: time.Millisecond, Backoff: true}
	err := retry.WithRetry(context.Background(), cfg, func(int) error {
		calls++
		return errFlaky
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 2, calls)
}

func TestWithRetry_PermanentStops(t *testing.T) {
	calls := 0
	cfg := retry.RetryConfig{MaxAttempts: 5, Delay: time.Millisecond}
	err := retry.WithRetry(context.Background(), cfg, func(int) error {
		calls++
		return retry.Permanent(errFlaky)
	})
	assert.Equal(t, 1, calls)
	assert.True(t, retry.IsPermanent(err))
	assert.ErrorIs(t, err, errFlaky)
	assert.Nil(t, retry.Permanent(nil))
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := retry.RetryConfig{MaxAttempts: 3, Delay: time.Hour}
	err := retry.WithRetry(ctx, cfg, func(int) error {
		cancel()
		return errFlaky
	})
	assert.ErrorIs(t, err, context.Canceled)
}
