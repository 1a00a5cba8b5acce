package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/agrilink/agrilink-backend/pkg/logger"
	"gorm.io/gorm"
)

// Published settlement events age out after a month. Dead letters stay three
// times as long because they are the only record of money-moving events that
// never reached the bus.
const (
	publishedRetentionDays  = 30
	deadLetterRetentionDays = 90
	outboxMinAttempts       = 5
)

type OutboxRetentionJobParams struct {
	Logger              *logger.Logger
	DB                  txRunner
	Repository          outboxRetentionRepo
	DLQ                 deadLetterSweeper
	Retention           int
	DeadLetterRetention int
	MinAttempts         int
}

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

type deadLetterSweeper interface {
	DeleteFailedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	if params.DLQ == nil {
		return nil, fmt.Errorf("dead letter repository required")
	}
	job := &outboxRetentionJob{
		logg:         params.Logger,
		db:           params.DB,
		repo:         params.Repository,
		dlq:          params.DLQ,
		retention:    params.Retention,
		dlqRetention: params.DeadLetterRetention,
		minAttempts:  params.MinAttempts,
		now:          time.Now,
	}
	if job.retention <= 0 {
		job.retention = publishedRetentionDays
	}
	if job.dlqRetention <= 0 {
		job.dlqRetention = deadLetterRetentionDays
	}
	if job.minAttempts <= 0 {
		job.minAttempts = outboxMinAttempts
	}
	return job, nil
}

type outboxRetentionJob struct {
	logg         *logger.Logger
	db           txRunner
	repo         outboxRetentionRepo
	dlq          deadLetterSweeper
	retention    int
	dlqRetention int
	minAttempts  int
	now          func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	publishedCutoff := now.Add(-time.Duration(j.retention) * 24 * time.Hour)
	dlqCutoff := now.Add(-time.Duration(j.dlqRetention) * 24 * time.Hour)

	var publishedDeleted, dlqDeleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		if publishedDeleted, err = j.repo.DeletePublishedBefore(ctx, tx, publishedCutoff, j.minAttempts); err != nil {
			return fmt.Errorf("delete published: %w", err)
		}
		if dlqDeleted, err = j.dlq.DeleteFailedBefore(ctx, tx, dlqCutoff); err != nil {
			return fmt.Errorf("sweep dead letters: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"published_cutoff":  publishedCutoff,
		"dlq_cutoff":        dlqCutoff,
		"min_attempts":      j.minAttempts,
		"published_deleted": publishedDeleted,
		"dlq_deleted":       dlqDeleted,
	})
	j.logg.Info(logCtx, "outbox retention cleanup complete")
	return nil
}
