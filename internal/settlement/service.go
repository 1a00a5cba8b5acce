package settlement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/agrilink/agrilink-backend/internal/assignment"
	"github.com/agrilink/agrilink-backend/internal/earnings"
	"github.com/agrilink/agrilink-backend/internal/inventory"
	"github.com/agrilink/agrilink-backend/pkg/db/models"
	"github.com/agrilink/agrilink-backend/pkg/enums"
	pkgerrors "github.com/agrilink/agrilink-backend/pkg/errors"
	"github.com/agrilink/agrilink-backend/pkg/logger"
	"github.com/agrilink/agrilink-backend/pkg/metrics"
	"github.com/agrilink/agrilink-backend/pkg/outbox"
	"github.com/agrilink/agrilink-backend/pkg/types"
)

// txRunner abstracts the transactional database client.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// SettleInput identifies the order to settle and how payment was confirmed.
type SettleInput struct {
	OrderID           uuid.UUID
	Mode              enums.SettlementMode
	GatewayPaymentRef *string
	Amount            *decimal.Decimal
}

// Result reports what a settlement run produced. Replays return the result
// of the original run.
type Result struct {
	OrderID        uuid.UUID
	Status         enums.OrderStatus
	DeliveryJobID  *uuid.UUID
	AgentID        *uuid.UUID
	AgentFee       *decimal.Decimal
	AlreadySettled bool
	Warnings       []string
}

// Service is the single entry point for both settlement paths: the payment
// gateway webhook and the synchronous cash-on-delivery checkout.
type Service interface {
	Settle(ctx context.Context, input SettleInput) (*Result, error)
	RecordPaymentFailure(ctx context.Context, orderID uuid.UUID, reason string) error
	Cancel(ctx context.Context, orderID uuid.UUID, actorID uuid.UUID) error
}

type service struct {
	tx         txRunner
	repo       Repository
	assignment assignment.Service
	feePolicy  earnings.FeePolicy
	outbox     *outbox.Service
	metrics    *metrics.SettlementMetrics
	logger     *logger.Logger
}

// ServiceParams wires the settlement dependencies.
type ServiceParams struct {
	Tx         txRunner
	Repo       Repository
	Assignment assignment.Service
	FeePolicy  earnings.FeePolicy
	Outbox     *outbox.Service
	Metrics    *metrics.SettlementMetrics
	Logger     *logger.Logger
}

// NewService validates dependencies and constructs the settlement service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("settlement tx runner is required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("settlement repository is required")
	}
	if params.Assignment == nil {
		return nil, fmt.Errorf("assignment resolver is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("settlement logger is required")
	}
	return &service{
		tx:         params.Tx,
		repo:       params.Repo,
		assignment: params.Assignment,
		feePolicy:  params.FeePolicy,
		outbox:     params.Outbox,
		metrics:    params.Metrics,
		logger:     params.Logger,
	}, nil
}

func (s *service) Settle(ctx context.Context, input SettleInput) (*Result, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !input.Mode.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid settlement mode %q", input.Mode))
	}

	ctx = s.logger.WithOrderID(ctx, input.OrderID.String())
	start := time.Now()

	var result *Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.GetOrderWithItems(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
		}

		// Idempotency guard: replayed callbacks rebuild and return the
		// prior result without touching inventory or earnings.
		if order.SettledAt != nil {
			result, err = s.priorResult(ctx, repo, order)
			if err != nil {
				return err
			}
			s.metrics.IncReplayed()
			s.logger.Info(ctx, "settlement replayed, returning prior result")
			return nil
		}
		if order.Status == enums.OrderStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot settle a cancelled order")
		}
		if len(order.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "order has no items")
		}

		requests := make([]inventory.ReservationRequest, len(order.Items))
		for i, item := range order.Items {
			requests[i] = inventory.ReservationRequest{ListingID: item.ListingID, Qty: item.Qty}
		}
		if err := inventory.Reserve(ctx, tx, order.ID, requests); err != nil {
			return err
		}

		var warnings []string
		for i := range order.Items {
			item := order.Items[i]
			split := earnings.ComputeSplit(item.StorePrice, item.FarmerPrice, item.Qty)
			if split.NegativeMargin {
				warning := fmt.Sprintf("negative platform margin on item %s", item.ID)
				warnings = append(warnings, warning)
				s.logger.Warn(ctx, warning)
			}

			itemID := item.ID
			if err := repo.CreateEarning(ctx, &models.Earning{
				OrderID:       order.ID,
				OrderItemID:   &itemID,
				BeneficiaryID: item.FarmerID,
				Role:          enums.ActorRoleFarmer,
				Amount:        split.FarmerShare,
				Status:        enums.EarningStatusPending,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record farmer earning")
			}
			if err := repo.CreateAdminRevenue(ctx, &models.AdminRevenue{
				OrderID:     order.ID,
				OrderItemID: itemID,
				Amount:      split.PlatformMargin,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record platform margin")
			}
		}

		if err := s.recordPayment(ctx, repo, order, input); err != nil {
			return err
		}

		job, jobWarnings, err := s.assignDelivery(ctx, repo, order)
		if err != nil {
			return err
		}
		warnings = append(warnings, jobWarnings...)

		now := time.Now()
		order.Status = enums.OrderStatusPaid
		order.SettledAt = &now
		if err := repo.SaveOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark order settled")
		}

		result = &Result{
			OrderID:  order.ID,
			Status:   order.Status,
			Warnings: warnings,
		}
		if job != nil {
			jobID := job.ID
			result.DeliveryJobID = &jobID
			result.AgentID = job.AgentID
			fee := job.Fee
			result.AgentFee = &fee
		}

		if s.outbox != nil {
			event := outbox.DomainEvent{
				EventType:     enums.EventOrderSettled,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Data: map[string]any{
					"order_id":   order.ID,
					"mode":       input.Mode,
					"buyer_id":   order.BuyerID,
					"total":      order.Total,
					"item_count": len(order.Items),
				},
			}
			if err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue settlement event")
			}
		}

		return nil
	})

	s.metrics.ObserveDuration(string(input.Mode), time.Since(start))
	if err != nil {
		reason := "internal"
		if typed := pkgerrors.As(err); typed != nil {
			reason = strings.ToLower(string(typed.Code()))
		}
		s.metrics.IncFailed(string(input.Mode), reason)
		return nil, err
	}

	if result.AlreadySettled {
		return result, nil
	}

	s.metrics.IncSettled(string(input.Mode))
	if result.DeliveryJobID == nil {
		s.metrics.IncUnassigned()
	}
	s.logger.Info(ctx, "order settled")
	return result, nil
}

// priorResult reassembles the original settlement outcome for a replay.
func (s *service) priorResult(ctx context.Context, repo Repository, order *models.Order) (*Result, error) {
	result := &Result{
		OrderID:        order.ID,
		Status:         order.Status,
		AlreadySettled: true,
	}

	job, err := repo.GetDeliveryJobByOrder(ctx, order.ID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return result, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load delivery job")
	}

	jobID := job.ID
	result.DeliveryJobID = &jobID
	result.AgentID = job.AgentID
	fee := job.Fee
	result.AgentFee = &fee
	return result, nil
}

func (s *service) recordPayment(ctx context.Context, repo Repository, order *models.Order, input SettleInput) error {
	now := time.Now()
	payment := &models.Payment{
		OrderID: order.ID,
		Amount:  order.Total,
	}

	switch input.Mode {
	case enums.SettlementModeGatewayWebhook:
		payment.Method = enums.PaymentMethodGateway
		payment.Status = enums.PaymentStatusSuccess
		payment.ProviderPaymentID = input.GatewayPaymentRef
		payment.ConfirmedAt = &now
		if input.Amount != nil {
			payment.Amount = *input.Amount
		}
	case enums.SettlementModeCashOnDelivery:
		// Cash settles at the door; the payment row stays pending until
		// the agent collects.
		payment.Method = enums.PaymentMethodCashOnDelivery
		payment.Status = enums.PaymentStatusPending
	}

	if existing, err := repo.GetPaymentByOrder(ctx, order.ID); err == nil {
		payment.ID = existing.ID
		payment.CreatedAt = existing.CreatedAt
	} else if err != gorm.ErrRecordNotFound {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment")
	}

	if err := repo.UpsertPayment(ctx, payment); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record payment")
	}
	return nil
}

// assignDelivery resolves an agent and opens the delivery job. A miss or a
// geocoding outage is a warning; everything else aborts the settlement, the
// statement already failed inside the shared transaction.
func (s *service) assignDelivery(ctx context.Context, repo Repository, order *models.Order) (*models.DeliveryJob, []string, error) {
	if order.DeliveryAddress == nil {
		s.logger.Warn(ctx, "order has no delivery address, skipping assignment")
		return nil, []string{"no delivery address on order"}, nil
	}

	target := assignment.Target{
		Lat:        order.DeliveryAddress.Lat,
		Lng:        order.DeliveryAddress.Lng,
		PostalCode: order.DeliveryAddress.PostalCode,
		City:       order.DeliveryAddress.City,
	}

	match, err := s.assignment.FindAgent(ctx, target)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeAssignmentMiss) || pkgerrors.IsCode(err, pkgerrors.CodeGeocoding) {
			s.logger.Warn(ctx, fmt.Sprintf("settling without delivery job: %s", err))
			return nil, []string{"no delivery agent assigned"}, nil
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve delivery agent")
	}

	samePostal := match.Agent.Address != nil &&
		strings.EqualFold(match.Agent.Address.PostalCode, order.DeliveryAddress.PostalCode)
	distance := match.DistanceKm
	if distance < 0 {
		// Locality fallback match: treat as a local hop.
		samePostal = true
		distance = 0
	}
	fee := s.feePolicy.DeliveryFee(distance, samePostal)

	job := &models.DeliveryJob{
		OrderID: order.ID,
		AgentID: &match.Agent.ID,
		Status:  enums.DeliveryJobStatusRequested,
		Fee:     fee,
		Dropoff: order.DeliveryAddress,
	}
	if match.DistanceKm >= 0 {
		d := match.DistanceKm
		job.DistanceKm = &d
	}
	if pickup := s.pickupAddress(ctx, repo, order); pickup != nil {
		job.Pickup = pickup
	}
	if coordinator, err := s.assignment.FindCoordinator(ctx, target); err == nil {
		job.CoordinatorID = &coordinator.Coordinator.ID
	} else if !pkgerrors.IsCode(err, pkgerrors.CodeAssignmentMiss) && !pkgerrors.IsCode(err, pkgerrors.CodeGeocoding) {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve coordinator")
	}

	if err := repo.CreateDeliveryJob(ctx, job); err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "open delivery job")
	}

	return job, nil, nil
}

// pickupAddress uses the first item's listing as the collection point.
func (s *service) pickupAddress(ctx context.Context, repo Repository, order *models.Order) *types.Address {
	if len(order.Items) == 0 {
		return nil
	}
	listing, err := repo.GetListing(ctx, order.Items[0].ListingID)
	if err != nil {
		s.logger.Warn(ctx, fmt.Sprintf("pickup address lookup failed: %s", err))
		return nil
	}
	return listing.PickupAddress
}

// RecordPaymentFailure marks the payment failed and cancels the order. Stock
// was never reserved for an unsettled order, so there is nothing to release.
func (s *service) RecordPaymentFailure(ctx context.Context, orderID uuid.UUID, reason string) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	ctx = s.logger.WithOrderID(ctx, orderID.String())
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.GetOrderWithItems(ctx, orderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
		}
		if order.SettledAt != nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already settled, refuse to fail payment")
		}
		if order.Status == enums.OrderStatusCancelled {
			return nil
		}

		failure := reason
		payment := &models.Payment{
			OrderID:       order.ID,
			Method:        enums.PaymentMethodGateway,
			Status:        enums.PaymentStatusFailed,
			Amount:        order.Total,
			FailureReason: &failure,
		}
		if existing, err := repo.GetPaymentByOrder(ctx, order.ID); err == nil {
			payment.ID = existing.ID
			payment.CreatedAt = existing.CreatedAt
		} else if err != gorm.ErrRecordNotFound {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment")
		}
		if err := repo.UpsertPayment(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record failed payment")
		}

		now := time.Now()
		order.Status = enums.OrderStatusCancelled
		order.CancelledAt = &now
		if err := repo.SaveOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancel order")
		}

		if s.outbox != nil {
			event := outbox.DomainEvent{
				EventType:     enums.EventPaymentFailed,
				AggregateType: enums.AggregatePayment,
				AggregateID:   order.ID,
				Data: map[string]any{
					"order_id": order.ID,
					"buyer_id": order.BuyerID,
					"reason":   reason,
				},
			}
			if err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue payment failure event")
			}
		}

		s.logger.Warn(ctx, "payment failed, order cancelled")
		return nil
	})
}

// Cancel reverses a settled order: inventory released, delivery job
// cancelled, order closed, all in one transaction. Unsettled orders just
// transition.
func (s *service) Cancel(ctx context.Context, orderID uuid.UUID, actorID uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	ctx = s.logger.WithOrderID(ctx, orderID.String())
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.GetOrderWithItems(ctx, orderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
		}
		if order.Status == enums.OrderStatusCancelled {
			return nil
		}
		if order.Status == enums.OrderStatusDelivered {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "delivered orders cannot be cancelled")
		}

		if order.SettledAt != nil {
			if err := inventory.Release(ctx, tx, order.ID); err != nil {
				return err
			}

			job, err := repo.GetDeliveryJobByOrder(ctx, order.ID)
			if err == nil && !job.Status.IsTerminal() {
				job.Status = enums.DeliveryJobStatusCancelled
				if err := repo.SaveDeliveryJob(ctx, job); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancel delivery job")
				}
			} else if err != nil && err != gorm.ErrRecordNotFound {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load delivery job")
			}
		}

		now := time.Now()
		order.Status = enums.OrderStatusCancelled
		order.CancelledAt = &now
		if err := repo.SaveOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancel order")
		}

		if s.outbox != nil {
			event := outbox.DomainEvent{
				EventType:     enums.EventOrderCancelled,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Actor:         &outbox.ActorRef{UserID: actorID},
				Data: map[string]any{
					"order_id":    order.ID,
					"buyer_id":    order.BuyerID,
					"was_settled": order.SettledAt != nil,
				},
			}
			if err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue cancellation event")
			}
		}

		s.logger.Info(ctx, "order cancelled")
		return nil
	})
}
