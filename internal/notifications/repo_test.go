package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/agrilink/agrilink-backend/pkg/db/models"
	"github.com/agrilink/agrilink-backend/pkg/enums"
)

func newRepoTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:notifications_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Notification{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedNotification(t *testing.T, db *gorm.DB, userID uuid.UUID, createdAt time.Time, readAt *time.Time) uuid.UUID {
	t.Helper()
	n := &models.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      enums.NotificationTypeOrder,
		Title:     "order update",
		Message:   "state changed",
		ReadAt:    readAt,
		CreatedAt: createdAt,
	}
	if err := db.Create(n).Error; err != nil {
		t.Fatalf("seed notification: %v", err)
	}
	return n.ID
}

func remainingIDs(t *testing.T, db *gorm.DB) map[uuid.UUID]bool {
	t.Helper()
	var rows []models.Notification
	if err := db.Find(&rows).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	kept := map[uuid.UUID]bool{}
	for _, n := range rows {
		kept[n.ID] = true
	}
	return kept
}

func TestPruneReadKeepsUnread(t *testing.T) {
	db := newRepoTestDB(t)
	repo := NewRepository(db)
	now := time.Now().UTC()
	cutoff := now.Add(-30 * 24 * time.Hour)
	readLongAgo := now.Add(-40 * 24 * time.Hour)

	staleRead := seedNotification(t, db, uuid.New(), now.Add(-45*24*time.Hour), &readLongAgo)
	staleUnread := seedNotification(t, db, uuid.New(), now.Add(-45*24*time.Hour), nil)
	freshRead := seedNotification(t, db, uuid.New(), now.Add(-time.Hour), &now)

	deleted, err := repo.PruneRead(context.Background(), nil, cutoff)
	if err != nil {
		t.Fatalf("prune read: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted row, got %d", deleted)
	}

	kept := remainingIDs(t, db)
	if kept[staleRead] {
		t.Fatal("expected stale read notification to be deleted")
	}
	if !kept[staleUnread] || !kept[freshRead] {
		t.Fatal("expected unread and recent notifications to survive")
	}
}

func TestPruneUnreadDropsOnlyAncientRows(t *testing.T) {
	db := newRepoTestDB(t)
	repo := NewRepository(db)
	now := time.Now().UTC()
	cutoff := now.Add(-180 * 24 * time.Hour)

	ancientUnread := seedNotification(t, db, uuid.New(), now.Add(-200*24*time.Hour), nil)
	staleUnread := seedNotification(t, db, uuid.New(), now.Add(-45*24*time.Hour), nil)
	ancientRead := seedNotification(t, db, uuid.New(), now.Add(-200*24*time.Hour), &now)

	deleted, err := repo.PruneUnread(context.Background(), nil, cutoff)
	if err != nil {
		t.Fatalf("prune unread: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted row, got %d", deleted)
	}

	kept := remainingIDs(t, db)
	if kept[ancientUnread] {
		t.Fatal("expected ancient unread notification to be deleted")
	}
	if !kept[staleUnread] {
		t.Fatal("expected recent unread notification to survive")
	}
	if !kept[ancientRead] {
		t.Fatal("expected read notification to be left for the read prune")
	}
}

func TestCountUnreadScopedToUser(t *testing.T) {
	db := newRepoTestDB(t)
	repo := NewRepository(db)
	now := time.Now().UTC()
	buyer := uuid.New()
	other := uuid.New()

	seedNotification(t, db, buyer, now.Add(-2*time.Hour), nil)
	seedNotification(t, db, buyer, now.Add(-time.Hour), nil)
	seedNotification(t, db, buyer, now.Add(-time.Minute), &now)
	seedNotification(t, db, other, now.Add(-time.Hour), nil)

	count, err := repo.CountUnread(context.Background(), buyer)
	if err != nil {
		t.Fatalf("count unread: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 unread for buyer, got %d", count)
	}
}
