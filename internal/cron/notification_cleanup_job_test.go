package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agrilink/agrilink-backend/pkg/logger"
	"gorm.io/gorm"
)

func TestNotificationCleanupJobPrunesReadAndUnreadTiers(t *testing.T) {
	now := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	repo := &fakeNotificationRepo{readRows: 42, unreadRows: 3}
	job := newNotificationCleanupJob(t, repo)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantRead := now.Add(-readNoticeRetentionDays * 24 * time.Hour)
	if !repo.readCutoff.Equal(wantRead) {
		t.Fatalf("expected read cutoff %s, got %s", wantRead, repo.readCutoff)
	}
	wantUnread := now.Add(-unreadNoticeRetentionDays * 24 * time.Hour)
	if !repo.unreadCutoff.Equal(wantUnread) {
		t.Fatalf("expected unread cutoff %s, got %s", wantUnread, repo.unreadCutoff)
	}
	if repo.readCalls != 1 || repo.unreadCalls != 1 {
		t.Fatalf("expected one prune per tier, got read=%d unread=%d", repo.readCalls, repo.unreadCalls)
	}
}

func TestNotificationCleanupJobPropagatesErrors(t *testing.T) {
	repo := &fakeNotificationRepo{err: errors.New("boom")}
	job := newNotificationCleanupJob(t, repo)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestNotificationCleanupJobRejectsInvertedRetention(t *testing.T) {
	_, err := NewNotificationCleanupJob(NotificationCleanupJobParams{
		Logger:          logger.New(logger.Options{ServiceName: "test"}),
		DB:              notificationFakeTxRunner{},
		Repository:      &fakeNotificationRepo{},
		ReadRetention:   60,
		UnreadRetention: 30,
	})
	if err == nil {
		t.Fatal("expected error for unread retention shorter than read retention")
	}
}

func newNotificationCleanupJob(t *testing.T, repo *fakeNotificationRepo) *notificationCleanupJob {
	t.Helper()
	jobIface, err := NewNotificationCleanupJob(NotificationCleanupJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		DB:         notificationFakeTxRunner{},
		Repository: repo,
	})
	if err != nil {
		t.Fatalf("NewNotificationCleanupJob: %v", err)
	}
	job, ok := jobIface.(*notificationCleanupJob)
	if !ok {
		t.Fatalf("expected notificationCleanupJob, got %T", jobIface)
	}
	return job
}

type fakeNotificationRepo struct {
	readCutoff   time.Time
	unreadCutoff time.Time
	readRows     int64
	unreadRows   int64
	err          error
	readCalls    int
	unreadCalls  int
}

func (f *fakeNotificationRepo) PruneRead(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	f.readCalls++
	f.readCutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	return f.readRows, nil
}

func (f *fakeNotificationRepo) PruneUnread(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	f.unreadCalls++
	f.unreadCutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	return f.unreadRows, nil
}

type notificationFakeTxRunner struct{}

func (notificationFakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}
