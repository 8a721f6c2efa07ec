package runner

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Janitor deletes sessions past retention and logs session statistics.
type Janitor struct {
	store     Cleaner
	retention time.Duration
	interval  time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewJanitor creates a Janitor. Zero durations default to 30 days retention and a daily pass.
func NewJanitor(store Cleaner, retention, interval time.Duration, logger *zap.Logger) *Janitor {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Janitor{store: store, retention: retention, interval: interval, logger: logger, now: time.Now}
}

// RunOnce performs one cleanup pass and returns the number of sessions removed.
func (j *Janitor) RunOnce(ctx context.Context) (int, error) {
	cutoff := j.now().Add(-j.retention)
	removed, err := j.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		j.logger.Error("session cleanup failed", zap.Error(err))
		return 0, err
	}

	stats, err := j.store.Stats(ctx)
	if err != nil {
		j.logger.Warn("session stats failed", zap.Error(err))
		return removed, nil
	}
	j.logger.Info("session cleanup",
		zap.Int("removed", removed),
		zap.Time("cutoff", cutoff),
		zap.Int("total", stats.Total),
		zap.Int("completed", stats.Completed),
		zap.Int("failed", stats.Failed),
		zap.Int("in_progress", stats.InProgress),
		zap.Float64("avg_processing_seconds", stats.AvgProcessingSeconds),
	)
	return removed, nil
}

// Start runs a pass immediately and then every interval until ctx ends.
func (j *Janitor) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		_, _ = j.RunOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
