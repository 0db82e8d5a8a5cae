package jobs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lexwatch/lexwatch/internal/config"
	"github.com/lexwatch/lexwatch/internal/services"
	"github.com/lexwatch/lexwatch/internal/utils"
)

const archivePruneTimeout = 30 * time.Second

// ArchivePruner deletes resolved archive rows older than a cutoff
type ArchivePruner interface {
	DeleteAlerts(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupJob keeps the in-memory alert set, the correlation history and
// the archive bounded
type CleanupJob struct {
	manager   *services.AlertManager
	archive   ArchivePruner
	interval  time.Duration
	maxAge    time.Duration
	retention time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// NewCleanupJob creates the job. archive may be nil when no archive is
// configured.
func NewCleanupJob(manager *services.AlertManager, archive ArchivePruner, cfg *config.Config, logger *zap.Logger) *CleanupJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CleanupJob{
		manager:   manager,
		archive:   archive,
		interval:  cfg.CleanupInterval,
		maxAge:    cfg.ResolvedAlertMaxAge,
		retention: cfg.ArchiveRetention,
		now:       time.Now,
		logger:    logger.Named("cleanup"),
	}
}

// Run performs one cleanup pass and returns the number of in-memory
// alerts removed. Archive failures are returned after the in-memory work
// is done.
func (j *CleanupJob) Run() (int, error) {
	removed := j.manager.CleanupOldAlerts(j.maxAge)
	trimmed := j.manager.Engine().Cleanup()

	if removed > 0 || trimmed > 0 {
		j.logger.Info("cleanup pass",
			zap.Int("alerts_removed", removed),
			zap.Int("history_trimmed", trimmed),
			zap.String("max_age", utils.FormatDuration(j.maxAge)))
	}

	if j.archive == nil || j.retention <= 0 {
		return removed, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), archivePruneTimeout)
	defer cancel()
	deleted, err := j.archive.DeleteAlerts(ctx, j.now().Add(-j.retention))
	if err != nil {
		return removed, fmt.Errorf("prune archive: %w", err)
	}
	if deleted > 0 {
		j.logger.Info("pruned archive",
			zap.Int64("rows", deleted),
			zap.String("retention", utils.FormatDuration(j.retention)))
	}
	return removed, nil
}

// Start runs the job every interval until stop is closed
func (j *CleanupJob) Start(stop <-chan struct{}) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := j.Run(); err != nil {
				j.logger.Error("cleanup failed", zap.Error(err))
			}
		case <-stop:
			j.logger.Info("cleanup job stopped")
			return
		}
	}
}
