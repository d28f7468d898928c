package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cinafi/leverbot/internal/domain"
)

// ArchiveRunner moves old action and audit rows from the database to S3 cold
// storage on a fixed interval.
type ArchiveRunner struct {
	archiver      domain.Archiver
	retentionDays int
	interval      time.Duration
	logger        *slog.Logger
}

// NewArchiveRunner creates an ArchiveRunner. Rows older than retentionDays are
// exported on every run.
func NewArchiveRunner(archiver domain.Archiver, retentionDays int, interval time.Duration, logger *slog.Logger) *ArchiveRunner {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &ArchiveRunner{
		archiver:      archiver,
		retentionDays: retentionDays,
		interval:      interval,
		logger:        logger.With("component", "archiver"),
	}
}

// Run executes a single archive pass. The cutoff is retentionDays before now;
// rows are only pruned after their export has been verified upstream.
func (r *ArchiveRunner) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -r.retentionDays)
	r.logger.Info("starting archive run", "cutoff", cutoff, "retention_days", r.retentionDays)

	actionsArchived, err := r.archiver.ArchiveActions(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("pipeline: archiving actions before %v: %w", cutoff, err)
	}

	auditArchived, err := r.archiver.ArchiveAudit(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("pipeline: archiving audit log before %v: %w", cutoff, err)
	}

	r.logger.Info("archive run complete",
		"actions_archived", actionsArchived,
		"audit_archived", auditArchived,
	)
	return nil
}

// RunLoop runs one pass immediately and then on every interval tick until the
// context is cancelled. A failed pass is logged and retried on the next tick.
func (r *ArchiveRunner) RunLoop(ctx context.Context) error {
	if err := r.Run(ctx); err != nil {
		r.logger.Error("archive run failed", "err", err)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Run(ctx); err != nil {
				r.logger.Error("archive run failed", "err", err)
			}
		}
	}
}
