package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"staking-ledger/metrics"
)

// RetryConfig bounds how often a read-modify-write is retried after a CAS conflict.
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	Multiplier    float64
	JitterEnabled bool
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    8,
		InitialDelay:  5 * time.Millisecond,
		MaxDelay:      250 * time.Millisecond,
		Multiplier:    2.0,
		JitterEnabled: true,
	}
}

// retryOnConflict runs fn until it returns something other than ErrConflict.
func retryOnConflict(ctx context.Context, cfg RetryConfig, logger *zap.SugaredLogger, collection string, fn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}

		lastErr = fn()
		if !errors.Is(lastErr, ErrConflict) {
			return lastErr
		}
		metrics.StoreConflicts.WithLabelValues(collection).Inc()

		if attempt == cfg.MaxRetries {
			break
		}

		delay := backoff(cfg, attempt)
		logger.Debugf("[STORE] %s write conflict, attempt %d/%d, retrying in %s", collection, attempt, cfg.MaxRetries, delay)

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("%s update failed after %d attempts: %w", collection, cfg.MaxRetries, lastErr)
}

func backoff(cfg RetryConfig, attempt int) time.Duration {
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.JitterEnabled {
		jitter := rand.Float64() * 0.3 * delay
		delay = delay + jitter - (0.15 * delay)
	}
	return time.Duration(delay)
}
