package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/packdrop-backend/pkg/logger"
)

const (
	outboxRetentionDays = 30
	outboxPruneBatch    = 1000
)

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	Repository outboxPruner
	Retention  int
	BatchSize  int
}

type outboxPruner interface {
	DeletePublishedBatch(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// NewOutboxRetentionJob prunes published outbox rows older than Retention
// days in batches of BatchSize. Unpublished rows stay until the publisher
// either sends them or moves them to the DLQ.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	job := &outboxRetentionJob{
		logg:      params.Logger,
		repo:      params.Repository,
		retention: params.Retention,
		batch:     params.BatchSize,
		now:       time.Now,
	}
	if job.retention <= 0 {
		job.retention = outboxRetentionDays
	}
	if job.batch <= 0 {
		job.batch = outboxPruneBatch
	}
	return job, nil
}

type outboxRetentionJob struct {
	logg      *logger.Logger
	repo      outboxPruner
	retention int
	batch     int
	now       func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().AddDate(0, 0, -j.retention)
	var total int64
	batches := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := j.repo.DeletePublishedBatch(ctx, cutoff, j.batch)
		if err != nil {
			return fmt.Errorf("prune outbox before %s after %d rows: %w", cutoff.Format(time.RFC3339), total, err)
		}
		total += n
		batches++
		if n < int64(j.batch) {
			break
		}
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   total,
		"batches":        batches,
	}), "outbox.retention_complete")
	return nil
}
