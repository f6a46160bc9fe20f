package database

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// SnapshotRetention periodically deletes snapshots older than the retention period.
type SnapshotRetention struct {
	db       *DB
	days     int
	interval time.Duration
	logger   *zerolog.Logger
}

// NewSnapshotRetention keeps days of snapshots; days <= 0 disables pruning.
func NewSnapshotRetention(db *DB, days int, logger *zerolog.Logger) *SnapshotRetention {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &SnapshotRetention{db: db, days: days, interval: time.Hour, logger: logger}
}

func (r *SnapshotRetention) Start(ctx context.Context) {
	if r.days <= 0 {
		r.logger.Info().Msg("Snapshot retention is disabled")
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.Prune(ctx, time.Now())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Prune(ctx, time.Now())
		}
	}
}

// Prune deletes snapshots taken before now minus the retention period.
func (r *SnapshotRetention) Prune(ctx context.Context, now time.Time) int64 {
	if r.days <= 0 {
		return 0
	}
	removed, err := r.db.DeleteSnapshotsBefore(ctx, now.AddDate(0, 0, -r.days))
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to prune snapshots")
		return 0
	}
	if removed > 0 {
		r.logger.Info().Int64("removed", removed).Int("days", r.days).Msg("Old snapshots pruned")
	}
	return removed
}
