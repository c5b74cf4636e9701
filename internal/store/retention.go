package store

import (
	"context"
	"log/slog"
	"time"
)

const retentionWorkerInterval = time.Hour

// StartRetentionWorker runs a background goroutine that periodically deletes
// reports and exchanges older than retention. It stops when ctx is done; the
// returned channel is closed once it has exited.
func StartRetentionWorker(ctx context.Context, repo Repository, retention, interval time.Duration) <-chan struct{} {
	if interval <= 0 {
		interval = retentionWorkerInterval
	}
	done := make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		slog.Info("Retention worker started", "interval", interval, "retention", retention)

		for {
			select {
			case <-ticker.C:
				sweepExpired(ctx, repo, retention)
			case <-ctx.Done():
				slog.Info("Retention worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
	return done
}

func sweepExpired(ctx context.Context, repo Repository, retention time.Duration) {
	reports, exchanges, err := repo.DeleteReportsBefore(ctx, time.Now().Add(-retention))
	if err != nil {
		if ctx.Err() != nil {
			slog.Debug("Retention worker: context canceled during sweep", "error", err)
			return
		}
		slog.Error("Retention worker failed to delete expired records", "error", err)
		return
	}
	if reports > 0 || exchanges > 0 {
		slog.Info("Retention worker removed expired records", "reports", reports, "exchanges", exchanges)
	}
}
