package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agrilink/agrilink-backend/internal/inventory"
	"github.com/agrilink/agrilink-backend/pkg/db/models"
	"github.com/agrilink/agrilink-backend/pkg/enums"
	pkgerrors "github.com/agrilink/agrilink-backend/pkg/errors"
	"github.com/agrilink/agrilink-backend/pkg/logger"
	"github.com/agrilink/agrilink-backend/pkg/outbox"
)

// txRunner abstracts the transactional database client.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// TransitionInput describes a requested job transition and who asked for it.
type TransitionInput struct {
	JobID     uuid.UUID
	ActorID   uuid.UUID
	ActorRole enums.ActorRole
	Next      enums.DeliveryJobStatus
	// Note is mandatory when a customer rejects a delivery request.
	Note *string
}

// Service advances delivery jobs through their state machine.
type Service interface {
	Transition(ctx context.Context, input TransitionInput) (*models.DeliveryJob, error)
	JobForOrder(ctx context.Context, orderID uuid.UUID) (*models.DeliveryJob, error)
	AgentJobs(ctx context.Context, agentID uuid.UUID) ([]models.DeliveryJob, error)
}

type service struct {
	tx     txRunner
	repo   Repository
	outbox *outbox.Service
	logger *logger.Logger
}

// ServiceParams wires the delivery service dependencies.
type ServiceParams struct {
	Tx     txRunner
	Repo   Repository
	Outbox *outbox.Service
	Logger *logger.Logger
}

// NewService validates dependencies and constructs the delivery service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("delivery tx runner is required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("delivery repository is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("delivery logger is required")
	}
	return &service{tx: params.Tx, repo: params.Repo, outbox: params.Outbox, logger: params.Logger}, nil
}

// orderStatusFor maps a job transition onto the buyer-visible order status.
func orderStatusFor(status enums.DeliveryJobStatus) (enums.OrderStatus, bool) {
	switch status {
	case enums.DeliveryJobStatusPickedUp:
		return enums.OrderStatusPickedUp, true
	case enums.DeliveryJobStatusDeliveryRequested:
		return enums.OrderStatusOutForDelivery, true
	case enums.DeliveryJobStatusDelivered:
		return enums.OrderStatusDelivered, true
	default:
		return "", false
	}
}

func (s *service) Transition(ctx context.Context, input TransitionInput) (*models.DeliveryJob, error) {
	if input.JobID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "job id is required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id is required")
	}
	if !input.Next.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid job status %q", input.Next))
	}

	var updated *models.DeliveryJob
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		job, err := repo.GetJob(ctx, input.JobID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "delivery job not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load delivery job")
		}

		if !job.Status.CanTransitionTo(input.Next) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot move job from %s to %s", job.Status, input.Next)).
				WithDetails(map[string]any{"current": job.Status, "requested": input.Next})
		}

		if err := authorizeTransition(job, input); err != nil {
			return err
		}

		now := time.Now()
		previous := job.Status
		job.Status = input.Next
		switch input.Next {
		case enums.DeliveryJobStatusAccepted:
			job.AcceptedAt = &now
		case enums.DeliveryJobStatusPickedUp:
			if previous == enums.DeliveryJobStatusAccepted {
				job.PickedUpAt = &now
			}
		case enums.DeliveryJobStatusDelivered:
			job.DeliveredAt = &now
		}

		if err := repo.SaveJob(ctx, job); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save delivery job")
		}

		if orderStatus, ok := orderStatusFor(input.Next); ok {
			if err := repo.UpdateOrderStatus(ctx, job.OrderID, orderStatus); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
			}
		}

		if input.Next == enums.DeliveryJobStatusDelivered {
			if err := s.settleDelivered(ctx, tx, job); err != nil {
				return err
			}
		}

		if s.outbox != nil {
			event := outbox.DomainEvent{
				EventType:     enums.EventDeliveryJobAdvanced,
				AggregateType: enums.AggregateDeliveryJob,
				AggregateID:   job.ID,
				Actor:         &outbox.ActorRef{UserID: input.ActorID, Role: string(input.ActorRole)},
				Data: map[string]any{
					"order_id": job.OrderID,
					"from":     previous,
					"to":       job.Status,
					"note":     input.Note,
				},
			}
			if err := s.outbox.Emit(ctx, tx, event); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue delivery event")
			}
		}

		updated = job
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logger.WithOrderID(ctx, updated.OrderID.String())
	s.logger.Info(logCtx, fmt.Sprintf("delivery job moved to %s", updated.Status))
	return updated, nil
}

// settleDelivered finalizes stock counters and pays the agent fee once the
// customer confirms receipt.
func (s *service) settleDelivered(ctx context.Context, tx *gorm.DB, job *models.DeliveryJob) error {
	if err := inventory.CommitDelivered(ctx, tx, job.OrderID); err != nil {
		return err
	}

	if job.AgentID == nil || job.Fee.IsZero() {
		return nil
	}

	earning := &models.Earning{
		OrderID:       job.OrderID,
		BeneficiaryID: *job.AgentID,
		Role:          enums.ActorRoleDeliveryAgent,
		Amount:        job.Fee,
		Status:        enums.EarningStatusPending,
	}
	if err := tx.WithContext(ctx).Create(earning).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record agent earning")
	}
	return nil
}

func authorizeTransition(job *models.DeliveryJob, input TransitionInput) error {
	agentMove := input.Next == enums.DeliveryJobStatusAccepted ||
		input.Next == enums.DeliveryJobStatusDeliveryRequested ||
		(input.Next == enums.DeliveryJobStatusPickedUp && job.Status == enums.DeliveryJobStatusAccepted)
	customerResolve := job.Status == enums.DeliveryJobStatusDeliveryRequested &&
		(input.Next == enums.DeliveryJobStatusDelivered || input.Next == enums.DeliveryJobStatusPickedUp)

	switch {
	case agentMove:
		if input.ActorRole != enums.ActorRoleDeliveryAgent || job.AgentID == nil || *job.AgentID != input.ActorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the assigned agent may advance this job")
		}
	case customerResolve:
		if input.ActorRole != enums.ActorRoleCustomer {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the customer may resolve a delivery request")
		}
		if input.Next == enums.DeliveryJobStatusPickedUp && (input.Note == nil || *input.Note == "") {
			return pkgerrors.New(pkgerrors.CodeValidation, "a note is required when rejecting delivery")
		}
	case input.Next == enums.DeliveryJobStatusCancelled:
		if input.ActorRole != enums.ActorRoleAdmin && input.ActorRole != enums.ActorRoleRegionalCoordinator {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only staff may cancel a delivery job")
		}
	}
	return nil
}

func (s *service) JobForOrder(ctx context.Context, orderID uuid.UUID) (*models.DeliveryJob, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	job, err := s.repo.GetJobByOrderID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery job not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load delivery job")
	}
	return job, nil
}

func (s *service) AgentJobs(ctx context.Context, agentID uuid.UUID) ([]models.DeliveryJob, error) {
	if agentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "agent id is required")
	}
	jobs, err := s.repo.ListJobsByAgent(ctx, agentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list agent jobs")
	}
	return jobs, nil
}
