package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agrilink/agrilink-backend/pkg/logger"
	"gorm.io/gorm"
)

func TestOutboxRetentionJobDeletesPublishedAndDeadLetters(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	repo := &fakeOutboxRetentionRepo{}
	dlq := &fakeDeadLetterSweeper{}
	job := newOutboxRetentionJob(t, repo, dlq)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	wantPublished := now.Add(-publishedRetentionDays * 24 * time.Hour)
	if !repo.lastCutoff.Equal(wantPublished) {
		t.Fatalf("expected published cutoff %s, got %s", wantPublished, repo.lastCutoff)
	}
	if repo.minAttempts != outboxMinAttempts {
		t.Fatalf("expected min attempts %d, got %d", outboxMinAttempts, repo.minAttempts)
	}
	wantDLQ := now.Add(-deadLetterRetentionDays * 24 * time.Hour)
	if !dlq.lastCutoff.Equal(wantDLQ) {
		t.Fatalf("expected dlq cutoff %s, got %s", wantDLQ, dlq.lastCutoff)
	}
	if repo.called != 1 || dlq.called != 1 {
		t.Fatalf("expected one delete per table, got published=%d dlq=%d", repo.called, dlq.called)
	}
}

func TestOutboxRetentionJobPropagatesError(t *testing.T) {
	repo := &fakeOutboxRetentionRepo{err: errors.New("boom")}
	job := newOutboxRetentionJob(t, repo, &fakeDeadLetterSweeper{})

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestOutboxRetentionJobPropagatesDeadLetterError(t *testing.T) {
	dlq := &fakeDeadLetterSweeper{err: errors.New("boom")}
	job := newOutboxRetentionJob(t, &fakeOutboxRetentionRepo{}, dlq)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func newOutboxRetentionJob(t *testing.T, repo *fakeOutboxRetentionRepo, dlq *fakeDeadLetterSweeper) *outboxRetentionJob {
	t.Helper()
	jobIface, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		DB:         outboxRetentionTxRunner{},
		Repository: repo,
		DLQ:        dlq,
	})
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	job, ok := jobIface.(*outboxRetentionJob)
	if !ok {
		t.Fatalf("expected outboxRetentionJob, got %T", jobIface)
	}
	return job
}

type fakeOutboxRetentionRepo struct {
	lastCutoff  time.Time
	minAttempts int
	called      int
	err         error
}

func (f *fakeOutboxRetentionRepo) DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error) {
	f.called++
	f.lastCutoff = cutoff
	f.minAttempts = minAttemptCount
	if f.err != nil {
		return 0, f.err
	}
	return 7, nil
}

type fakeDeadLetterSweeper struct {
	lastCutoff time.Time
	called     int
	err        error
}

func (f *fakeDeadLetterSweeper) DeleteFailedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	f.called++
	f.lastCutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	return 2, nil
}

type outboxRetentionTxRunner struct{}

func (outboxRetentionTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}
