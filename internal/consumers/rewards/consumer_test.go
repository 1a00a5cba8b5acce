package rewards

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agrilink/agrilink-backend/pkg/db/models"
	"github.com/agrilink/agrilink-backend/pkg/enums"
	"github.com/agrilink/agrilink-backend/pkg/logger"
	"github.com/agrilink/agrilink-backend/pkg/outbox"
)

type fakeRepo struct {
	users         map[uuid.UUID]*models.User
	txns          []*models.LoyaltyTransaction
	notifications []*models.Notification
	bonusGranted  bool
	createErr     error
	bonusCheckErr error
}

func (f *fakeRepo) CreateLoyaltyTransaction(_ context.Context, txn *models.LoyaltyTransaction) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.txns = append(f.txns, txn)
	return nil
}

func (f *fakeRepo) CreateNotification(_ context.Context, notification *models.Notification) error {
	f.notifications = append(f.notifications, notification)
	return nil
}

func (f *fakeRepo) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, errors.New("user not found")
	}
	return user, nil
}

func (f *fakeRepo) HasReferralBonus(_ context.Context, _ uuid.UUID) (bool, error) {
	return f.bonusGranted, f.bonusCheckErr
}

type fakeIdempotency struct {
	already bool
	err     error
	deleted bool
}

func (f *fakeIdempotency) CheckAndMarkProcessed(_ context.Context, _ string, _ uuid.UUID) (bool, error) {
	return f.already, f.err
}

func (f *fakeIdempotency) Delete(_ context.Context, _ string, _ uuid.UUID) error {
	f.deleted = true
	return nil
}

func buildEnvelope(t *testing.T, data map[string]any) outbox.PayloadEnvelope {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
		Data:       raw,
	}
}

func newConsumer(t *testing.T, repo *fakeRepo, manager *fakeIdempotency) *Consumer {
	t.Helper()
	consumer, err := NewConsumer(repo, manager, logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled}))
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}
	return consumer
}

func TestProcessAccruesLoyaltyPoints(t *testing.T) {
	buyerID := uuid.New()
	orderID := uuid.New()
	repo := &fakeRepo{users: map[uuid.UUID]*models.User{buyerID: {ID: buyerID}}}
	consumer := newConsumer(t, repo, &fakeIdempotency{})

	envelope := buildEnvelope(t, map[string]any{
		"order_id": orderID.String(),
		"buyer_id": buyerID.String(),
		"total":    "250",
	})
	if err := consumer.Process(context.Background(), enums.EventOrderSettled, envelope); err != nil {
		t.Fatalf("process: %v", err)
	}

	if len(repo.txns) != 1 {
		t.Fatalf("expected 1 loyalty txn, got %d", len(repo.txns))
	}
	txn := repo.txns[0]
	if txn.UserID != buyerID || txn.OrderID != orderID {
		t.Fatal("loyalty txn addressed wrongly")
	}
	if txn.Points != 25 {
		t.Fatalf("expected 25 points for total 250, got %d", txn.Points)
	}
	if txn.Reason != enums.LoyaltyTxnReasonOrderSettled {
		t.Fatalf("unexpected reason %s", txn.Reason)
	}
	if len(repo.notifications) != 1 {
		t.Fatalf("expected a rewards notification, got %d", len(repo.notifications))
	}
	if repo.notifications[0].UserID != buyerID || repo.notifications[0].Type != enums.NotificationTypeRewards {
		t.Fatalf("unexpected notification: %+v", repo.notifications[0])
	}
}

func TestProcessGrantsReferralBonusOnce(t *testing.T) {
	buyerID := uuid.New()
	referrerID := uuid.New()
	repo := &fakeRepo{users: map[uuid.UUID]*models.User{
		buyerID: {ID: buyerID, ReferrerID: &referrerID},
	}}
	consumer := newConsumer(t, repo, &fakeIdempotency{})

	envelope := buildEnvelope(t, map[string]any{
		"order_id": uuid.NewString(),
		"buyer_id": buyerID.String(),
		"total":    "100",
	})
	if err := consumer.Process(context.Background(), enums.EventOrderSettled, envelope); err != nil {
		t.Fatalf("process: %v", err)
	}

	if len(repo.txns) != 2 {
		t.Fatalf("expected loyalty plus referral txns, got %d", len(repo.txns))
	}
	bonus := repo.txns[1]
	if bonus.UserID != referrerID {
		t.Fatal("bonus must go to the referrer")
	}
	if bonus.Points != referralBonusPoints || bonus.Reason != enums.LoyaltyTxnReasonReferralBonus {
		t.Fatalf("unexpected bonus txn: %+v", bonus)
	}
	if len(repo.notifications) != 2 {
		t.Fatalf("expected buyer and referrer notifications, got %d", len(repo.notifications))
	}
	if repo.notifications[1].UserID != referrerID {
		t.Fatal("referral notification must go to the referrer")
	}

	// A second settled order must not pay the referrer again.
	repo.bonusGranted = true
	repo.txns = nil
	envelope = buildEnvelope(t, map[string]any{
		"order_id": uuid.NewString(),
		"buyer_id": buyerID.String(),
		"total":    "100",
	})
	if err := consumer.Process(context.Background(), enums.EventOrderSettled, envelope); err != nil {
		t.Fatalf("process: %v", err)
	}
	for _, txn := range repo.txns {
		if txn.Reason == enums.LoyaltyTxnReasonReferralBonus {
			t.Fatal("referral bonus granted twice")
		}
	}
}

func TestProcessIgnoresOtherEvents(t *testing.T) {
	repo := &fakeRepo{}
	consumer := newConsumer(t, repo, &fakeIdempotency{})

	envelope := buildEnvelope(t, map[string]any{"order_id": uuid.NewString()})
	if err := consumer.Process(context.Background(), enums.EventOrderCancelled, envelope); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(repo.txns) != 0 {
		t.Fatal("cancellation events must not grant rewards")
	}
}

func TestProcessSkipsAlreadyProcessed(t *testing.T) {
	buyerID := uuid.New()
	repo := &fakeRepo{users: map[uuid.UUID]*models.User{buyerID: {ID: buyerID}}}
	consumer := newConsumer(t, repo, &fakeIdempotency{already: true})

	envelope := buildEnvelope(t, map[string]any{
		"order_id": uuid.NewString(),
		"buyer_id": buyerID.String(),
		"total":    "100",
	})
	if err := consumer.Process(context.Background(), enums.EventOrderSettled, envelope); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(repo.txns) != 0 {
		t.Fatal("duplicate event must be dropped")
	}
}

func TestProcessSwallowsHandlerFailures(t *testing.T) {
	buyerID := uuid.New()
	repo := &fakeRepo{
		users:     map[uuid.UUID]*models.User{buyerID: {ID: buyerID}},
		createErr: errors.New("insert failed"),
	}
	consumer := newConsumer(t, repo, &fakeIdempotency{})

	envelope := buildEnvelope(t, map[string]any{
		"order_id": uuid.NewString(),
		"buyer_id": buyerID.String(),
		"total":    "100",
	})
	// Settlement is final; reward failures are logged and acked.
	if err := consumer.Process(context.Background(), enums.EventOrderSettled, envelope); err != nil {
		t.Fatalf("process must not propagate handler failures, got %v", err)
	}
}

func TestProcessZeroTotalNoPoints(t *testing.T) {
	buyerID := uuid.New()
	repo := &fakeRepo{users: map[uuid.UUID]*models.User{buyerID: {ID: buyerID}}}
	consumer := newConsumer(t, repo, &fakeIdempotency{})

	envelope := buildEnvelope(t, map[string]any{
		"order_id": uuid.NewString(),
		"buyer_id": buyerID.String(),
		"total":    "5",
	})
	if err := consumer.Process(context.Background(), enums.EventOrderSettled, envelope); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(repo.txns) != 0 {
		t.Fatal("totals under the point threshold must not accrue")
	}
}
