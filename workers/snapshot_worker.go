// workers/snapshot_worker.go
package workers

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SnapshotSource exports and uploads one ledger snapshot, returning its key.
type SnapshotSource interface {
	UploadSnapshot(ctx context.Context) (string, error)
}

// SnapshotFunc adapts a plain function to SnapshotSource.
type SnapshotFunc func(ctx context.Context) (string, error)

func (f SnapshotFunc) UploadSnapshot(ctx context.Context) (string, error) {
	return f(ctx)
}

type SnapshotWorker struct {
	source   SnapshotSource
	interval time.Duration
	logger   *zap.SugaredLogger
}

func NewSnapshotWorker(source SnapshotSource, interval time.Duration, logger *zap.SugaredLogger) *SnapshotWorker {
	return &SnapshotWorker{
		source:   source,
		interval: interval,
		logger:   logger.Named("snapshot"),
	}
}

func (w *SnapshotWorker) Start(ctx context.Context) {
	w.logger.Infof("🔁 Starting snapshot worker (every %s)", w.interval)
	go w.run(ctx)
}

func (w *SnapshotWorker) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.runOnce(ctx)
		case <-ctx.Done():
			w.logger.Info("⏹️ Snapshot worker stopped")
			return
		}
	}
}

func (w *SnapshotWorker) runOnce(ctx context.Context) {
	key, err := w.source.UploadSnapshot(ctx)
	if err != nil {
		// keep ticking, the next window retries a fresh snapshot
		w.logger.Errorf("[SNAPSHOT] ❌ upload failed: %v", err)
		return
	}
	w.logger.Infof("[SNAPSHOT] ✅ stored %s", key)
}
