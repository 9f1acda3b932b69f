package publish_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/gopost/internal/publish"
)

func TestRetryPolicy_SucceedsAfterTransientFailures(t *testing.T) {
	policy := publish.RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicy_ExhaustsAttempts(t *testing.T) {
	policy := publish.RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond}

	retries := 0
	policy.OnRetry = func(int, error) { retries++ }

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		return errors.New("still down")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, publish.ErrAttemptsExhausted)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, retries, "a retry fires between attempts, not after the last")
}

func TestRetryPolicy_ValidationErrorShortCircuits(t *testing.T) {
	policy := publish.RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		return &publish.ValidationError{Platform: "instagram", Reason: "media is required"}
	})

	require.Error(t, err)
	var validationErr *publish.ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, 1, calls, "validation failures must not be retried")
}

func TestRetryPolicy_ContextCancellation(t *testing.T) {
	policy := publish.RetryPolicy{MaxAttempts: 5, Delay: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- policy.Do(ctx, func() error {
			calls++
			return errors.New("transient")
		})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not honor context cancellation")
	}
}
