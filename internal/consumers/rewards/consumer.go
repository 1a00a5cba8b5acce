package rewards

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/agrilink/agrilink-backend/pkg/db/models"
	"github.com/agrilink/agrilink-backend/pkg/enums"
	"github.com/agrilink/agrilink-backend/pkg/logger"
	"github.com/agrilink/agrilink-backend/pkg/outbox"
)

const rewardsConsumerName = "rewards"

// One point per ten currency units spent; a flat grant for the referrer the
// first time their referee settles an order.
const (
	pointsPerCurrencyUnits = 10
	referralBonusPoints    = 50
)

type repository interface {
	CreateLoyaltyTransaction(ctx context.Context, txn *models.LoyaltyTransaction) error
	CreateNotification(ctx context.Context, notification *models.Notification) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	HasReferralBonus(ctx context.Context, refereeID uuid.UUID) (bool, error)
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer grants loyalty points and referral bonuses after settlement.
// Reward failures are logged, never surfaced to the publisher: settlement is
// already final by the time these run.
type Consumer struct {
	repo    repository
	manager idempotencyChecker
	logg    *logger.Logger
}

// NewConsumer builds a rewards consumer.
func NewConsumer(repo repository, manager idempotencyChecker, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("rewards repository required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{repo: repo, manager: manager, logg: logg}, nil
}

type orderSettledPayload struct {
	OrderID uuid.UUID       `json:"order_id"`
	BuyerID uuid.UUID       `json:"buyer_id"`
	Total   decimal.Decimal `json:"total"`
}

// Process handles a settlement event end to end. It is safe to call with
// any event type; unsupported types are ignored.
func (c *Consumer) Process(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id":   envelope.EventID,
		"event_type": eventType,
	})

	if eventType != enums.EventOrderSettled {
		return nil
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		return fmt.Errorf("parse event id: %w", err)
	}

	already, err := c.manager.CheckAndMarkProcessed(ctx, rewardsConsumerName, eventID)
	if err != nil {
		return fmt.Errorf("idempotency check: %w", err)
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return nil
	}

	var payload orderSettledPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to parse settlement payload", err)
		_ = c.manager.Delete(ctx, rewardsConsumerName, eventID)
		return err
	}
	if payload.BuyerID == uuid.Nil || payload.OrderID == uuid.Nil {
		c.logg.Warn(logCtx, "settlement payload incomplete, skipping rewards")
		return nil
	}

	combined := multierr.Append(
		c.accrueLoyalty(ctx, payload),
		c.grantReferralBonus(ctx, payload.OrderID, payload.BuyerID),
	)
	if combined != nil {
		c.logg.Error(logCtx, "reward handling incomplete", combined)
	} else {
		c.logg.Info(logCtx, "rewards granted")
	}
	return nil
}

func (c *Consumer) accrueLoyalty(ctx context.Context, payload orderSettledPayload) error {
	points := int(payload.Total.Div(decimal.NewFromInt(pointsPerCurrencyUnits)).IntPart())
	if points <= 0 {
		return nil
	}
	err := c.repo.CreateLoyaltyTransaction(ctx, &models.LoyaltyTransaction{
		UserID:  payload.BuyerID,
		OrderID: payload.OrderID,
		Reason:  enums.LoyaltyTxnReasonOrderSettled,
		Points:  points,
	})
	if err != nil {
		return err
	}
	return c.repo.CreateNotification(ctx, &models.Notification{
		UserID:  payload.BuyerID,
		Type:    enums.NotificationTypeRewards,
		Title:   "Points earned",
		Message: fmt.Sprintf("You earned %d loyalty points on your order.", points),
	})
}

func (c *Consumer) grantReferralBonus(ctx context.Context, orderID, buyerID uuid.UUID) error {
	buyer, err := c.repo.GetUser(ctx, buyerID)
	if err != nil {
		return fmt.Errorf("load buyer: %w", err)
	}
	if buyer.ReferrerID == nil {
		return nil
	}

	granted, err := c.repo.HasReferralBonus(ctx, buyerID)
	if err != nil {
		return fmt.Errorf("check referral bonus: %w", err)
	}
	if granted {
		return nil
	}

	err = c.repo.CreateLoyaltyTransaction(ctx, &models.LoyaltyTransaction{
		UserID:  *buyer.ReferrerID,
		OrderID: orderID,
		Reason:  enums.LoyaltyTxnReasonReferralBonus,
		Points:  referralBonusPoints,
	})
	if err != nil {
		return err
	}
	return c.repo.CreateNotification(ctx, &models.Notification{
		UserID:  *buyer.ReferrerID,
		Type:    enums.NotificationTypeRewards,
		Title:   "Referral bonus",
		Message: fmt.Sprintf("You earned %d bonus points because someone you referred placed their first order.", referralBonusPoints),
	})
}
