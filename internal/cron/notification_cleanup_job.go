package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/agrilink/agrilink-backend/pkg/logger"
	"gorm.io/gorm"
)

// Read notices age out after a month. Unread notices get a full season so a
// buyer who checks in rarely still sees what happened to their orders.
const (
	readNoticeRetentionDays   = 30
	unreadNoticeRetentionDays = 180
)

type NotificationCleanupJobParams struct {
	Logger          *logger.Logger
	DB              txRunner
	Repository      notificationPruner
	ReadRetention   int
	UnreadRetention int
}

type notificationPruner interface {
	PruneRead(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
	PruneUnread(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	job := &notificationCleanupJob{
		logg:            params.Logger,
		db:              params.DB,
		repo:            params.Repository,
		readRetention:   params.ReadRetention,
		unreadRetention: params.UnreadRetention,
		now:             time.Now,
	}
	if job.readRetention <= 0 {
		job.readRetention = readNoticeRetentionDays
	}
	if job.unreadRetention <= 0 {
		job.unreadRetention = unreadNoticeRetentionDays
	}
	if job.unreadRetention < job.readRetention {
		return nil, fmt.Errorf("unread retention must not be shorter than read retention")
	}
	return job, nil
}

type notificationCleanupJob struct {
	logg            *logger.Logger
	db              txRunner
	repo            notificationPruner
	readRetention   int
	unreadRetention int
	now             func() time.Time
}

func (j *notificationCleanupJob) Name() string { return "notification-cleanup" }

func (j *notificationCleanupJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	readCutoff := now.Add(-time.Duration(j.readRetention) * 24 * time.Hour)
	unreadCutoff := now.Add(-time.Duration(j.unreadRetention) * 24 * time.Hour)

	var readPruned, unreadPruned int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		if readPruned, err = j.repo.PruneRead(ctx, tx, readCutoff); err != nil {
			return fmt.Errorf("prune read: %w", err)
		}
		if unreadPruned, err = j.repo.PruneUnread(ctx, tx, unreadCutoff); err != nil {
			return fmt.Errorf("prune unread: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("notification cleanup: %w", err)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"read_cutoff":   readCutoff,
		"unread_cutoff": unreadCutoff,
		"read_pruned":   readPruned,
		"unread_pruned": unreadPruned,
	})
	j.logg.Info(logCtx, "notification cleanup complete")
	return nil
}
