package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fastRetry() RetryConfig {
	return RetryConfig{MaxRetries: 4, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
}

func TestRetryOnConflict_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := retryOnConflict(context.Background(), fastRetry(), zap.NewNop().Sugar(), "test", func() error {
		calls++
		if calls < 3 {
			return ErrConflict
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryOnConflict_GivesUp(t *testing.T) {
	calls := 0
	err := retryOnConflict(context.Background(), fastRetry(), zap.NewNop().Sugar(), "test", func() error {
		calls++
		return ErrConflict
	})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 4, calls)
}

func TestRetryOnConflict_OtherErrorsReturnImmediately(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := retryOnConflict(context.Background(), fastRetry(), zap.NewNop().Sugar(), "test", func() error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestBackoff_CappedAtMaxDelay(t *testing.T) {
	cfg := RetryConfig{InitialDelay: 10 * time.Millisecond, MaxDelay: 40 * time.Millisecond, Multiplier: 2}
	assert.Equal(t, 10*time.Millisecond, backoff(cfg, 1))
	assert.Equal(t, 20*time.Millisecond, backoff(cfg, 2))
	assert.Equal(t, 40*time.Millisecond, backoff(cfg, 3))
	assert.Equal(t, 40*time.Millisecond, backoff(cfg, 9))
}
