package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-wms/internal/jobs"
)

// NewHistoryRetentionTask builds the cron task.
func NewHistoryRetentionTask() *asynq.Task {
	return asynq.NewTask(TaskPasswordHistoryRetention, nil)
}

// HistoryPruner deletes history rows beyond the newest keep per user.
type HistoryPruner interface {
	PruneBeyond(ctx context.Context, keep int) (int64, error)
}

// HistoryRetentionJob trims password history. It always keeps at least the
// rows the reuse check reads.
type HistoryRetentionJob struct {
	Pruner  HistoryPruner
	Keep    int
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewHistoryRetentionJob returns a job keeping max(keep, historyCount) rows.
func NewHistoryRetentionJob(pruner HistoryPruner, keep, historyCount int, logger *slog.Logger, metrics *jobmetrics.Metrics) *HistoryRetentionJob {
	if historyCount > keep {
		keep = historyCount
	}
	if keep < 1 {
		keep = 1
	}
	return &HistoryRetentionJob{Pruner: pruner, Keep: keep, Logger: logger, Metrics: metrics}
}

// Handle executes one retention pass.
func (j *HistoryRetentionJob) Handle(ctx context.Context, _ *asynq.Task) (resultErr error) {
	if j == nil || j.Pruner == nil {
		return errors.New("history retention: handler not configured")
	}
	tracker := j.Metrics.Track(TaskPasswordHistoryRetention)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	removed, err := j.Pruner.PruneBeyond(ctx, j.Keep)
	if err != nil {
		logger.Error("history retention failed", slog.Any("error", err))
		return err
	}
	j.Metrics.AddItems(TaskPasswordHistoryRetention, removed)
	logger.Info("history retention completed", slog.Int("keep", j.Keep), slog.Int64("removed", removed))
	return nil
}
