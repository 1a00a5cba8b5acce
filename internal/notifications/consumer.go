package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/agrilink/agrilink-backend/pkg/db/models"
	"github.com/agrilink/agrilink-backend/pkg/enums"
	"github.com/agrilink/agrilink-backend/pkg/logger"
	"github.com/agrilink/agrilink-backend/pkg/outbox"
	"github.com/agrilink/agrilink-backend/pkg/outbox/idempotency"
)

const orderNotificationConsumer = "order-notifications"

type consumerRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	GetOrderBuyer(ctx context.Context, orderID uuid.UUID) (uuid.UUID, error)
}

// Consumer watches domain events and turns order and delivery transitions
// into in-app notifications for the buyer.
type Consumer struct {
	repo         consumerRepository
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds an order notification consumer.
func NewConsumer(repo consumerRepository, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if !c.handles(eventType) {
		c.logg.Info(logCtx, "skipping unhandled event")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, orderNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if err := c.handleEvent(ctx, enums.OutboxEventType(eventType), envelope.Data, logCtx); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		_ = c.idempotency.Delete(ctx, orderNotificationConsumer, eventID)
		return processResult{nack: true}
	}

	return processResult{ack: true}
}

func (c *Consumer) handles(eventType string) bool {
	switch enums.OutboxEventType(eventType) {
	case enums.EventOrderSettled, enums.EventOrderCancelled, enums.EventPaymentFailed, enums.EventDeliveryJobAdvanced:
		return true
	default:
		return false
	}
}

func (c *Consumer) handleEvent(ctx context.Context, eventType enums.OutboxEventType, data json.RawMessage, logCtx context.Context) error {
	switch eventType {
	case enums.EventOrderSettled:
		return c.notifyOrderSettled(ctx, data, logCtx)
	case enums.EventOrderCancelled:
		return c.notifyOrderCancelled(ctx, data, logCtx)
	case enums.EventPaymentFailed:
		return c.notifyPaymentFailed(ctx, data, logCtx)
	case enums.EventDeliveryJobAdvanced:
		return c.notifyDeliveryProgress(ctx, data, logCtx)
	default:
		return nil
	}
}

type orderEventPayload struct {
	OrderID uuid.UUID `json:"order_id"`
	BuyerID uuid.UUID `json:"buyer_id"`
	Reason  string    `json:"reason,omitempty"`
}

type deliveryEventPayload struct {
	OrderID uuid.UUID               `json:"order_id"`
	From    enums.DeliveryJobStatus `json:"from"`
	To      enums.DeliveryJobStatus `json:"to"`
}

func (c *Consumer) notifyOrderSettled(ctx context.Context, data json.RawMessage, logCtx context.Context) error {
	payload, err := parseOrderPayload(data)
	if err != nil {
		return err
	}
	notification := &models.Notification{
		UserID:  payload.BuyerID,
		Type:    enums.NotificationTypeOrder,
		Title:   "Order confirmed",
		Message: fmt.Sprintf("Your order %s has been confirmed and is being prepared.", shortID(payload.OrderID)),
		Link:    orderLink(payload.OrderID),
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(logCtx, "buyer notified of settled order")
	return nil
}

func (c *Consumer) notifyOrderCancelled(ctx context.Context, data json.RawMessage, logCtx context.Context) error {
	payload, err := parseOrderPayload(data)
	if err != nil {
		return err
	}
	notification := &models.Notification{
		UserID:  payload.BuyerID,
		Type:    enums.NotificationTypeOrder,
		Title:   "Order cancelled",
		Message: fmt.Sprintf("Your order %s has been cancelled.", shortID(payload.OrderID)),
		Link:    orderLink(payload.OrderID),
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(logCtx, "buyer notified of cancelled order")
	return nil
}

func (c *Consumer) notifyPaymentFailed(ctx context.Context, data json.RawMessage, logCtx context.Context) error {
	payload, err := parseOrderPayload(data)
	if err != nil {
		return err
	}
	message := fmt.Sprintf("Payment for order %s failed.", shortID(payload.OrderID))
	if payload.Reason != "" {
		message = fmt.Sprintf("Payment for order %s failed (%s). The order has been cancelled.", shortID(payload.OrderID), payload.Reason)
	}
	notification := &models.Notification{
		UserID:  payload.BuyerID,
		Type:    enums.NotificationTypeOrder,
		Title:   "Payment failed",
		Message: message,
		Link:    orderLink(payload.OrderID),
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(logCtx, "buyer notified of failed payment")
	return nil
}

func (c *Consumer) notifyDeliveryProgress(ctx context.Context, data json.RawMessage, logCtx context.Context) error {
	var payload deliveryEventPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse delivery payload: %w", err)
	}
	if payload.OrderID == uuid.Nil {
		return fmt.Errorf("order id missing")
	}

	var title, message string
	switch payload.To {
	case enums.DeliveryJobStatusDeliveryRequested:
		title = "Order out for delivery"
		message = fmt.Sprintf("Your order %s is on its way.", shortID(payload.OrderID))
	case enums.DeliveryJobStatusDelivered:
		title = "Order delivered"
		message = fmt.Sprintf("Your order %s has been delivered.", shortID(payload.OrderID))
	default:
		c.logg.Info(logCtx, "delivery transition not surfaced to buyer")
		return nil
	}

	buyerID, err := c.repo.GetOrderBuyer(ctx, payload.OrderID)
	if err != nil {
		return fmt.Errorf("resolve order buyer: %w", err)
	}

	notification := &models.Notification{
		UserID:  buyerID,
		Type:    enums.NotificationTypeDelivery,
		Title:   title,
		Message: message,
		Link:    orderLink(payload.OrderID),
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(logCtx, "buyer notified of delivery progress")
	return nil
}

func parseOrderPayload(data json.RawMessage) (orderEventPayload, error) {
	var payload orderEventPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return payload, fmt.Errorf("parse order payload: %w", err)
	}
	if payload.OrderID == uuid.Nil || payload.BuyerID == uuid.Nil {
		return payload, fmt.Errorf("order or buyer id missing")
	}
	return payload, nil
}

func orderLink(orderID uuid.UUID) *string {
	link := fmt.Sprintf("/orders/%s", orderID)
	return &link
}

func shortID(id uuid.UUID) string {
	s := id.String()
	if len(s) >= 8 {
		return s[:8]
	}
	return s
}
