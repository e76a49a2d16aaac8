// workers/session_sweeper.go
package workers

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type SessionSweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// PollExpiredSessions closes expired sessions every interval until ctx ends.
func PollExpiredSessions(ctx context.Context, sweeper SessionSweeper, interval time.Duration, logger *zap.SugaredLogger) {
	logger = logger.Named("sweeper")
	logger.Infof("Starting session sweeper (every %s)...", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Session sweeper stopped.")
			return
		case <-ticker.C:
			n, err := sweeper.SweepExpired(ctx)
			if err != nil {
				logger.Errorf("❌ Error sweeping sessions: %v", err)
				continue
			}
			if n > 0 {
				logger.Infof("🧹 Closed %d expired session(s)", n)
			}
		}
	}
}
