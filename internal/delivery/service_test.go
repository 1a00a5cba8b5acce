package delivery

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/agrilink/agrilink-backend/pkg/db/models"
	"github.com/agrilink/agrilink-backend/pkg/enums"
	pkgerrors "github.com/agrilink/agrilink-backend/pkg/errors"
	"github.com/agrilink/agrilink-backend/pkg/logger"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

type fixture struct {
	db      *gorm.DB
	svc     Service
	job     *models.DeliveryJob
	agentID uuid.UUID
	buyerID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := "file:delivery_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Order{}, &models.OrderItem{}, &models.DeliveryJob{}, &models.Listing{}, &models.InventoryTransaction{}, &models.Earning{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	agentID := uuid.New()
	buyerID := uuid.New()
	order := &models.Order{
		ID:            uuid.New(),
		BuyerID:       buyerID,
		Status:        enums.OrderStatusPaid,
		PaymentMethod: enums.PaymentMethodGateway,
		Total:         decimal.NewFromInt(150),
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}

	job := &models.DeliveryJob{
		ID:      uuid.New(),
		OrderID: order.ID,
		AgentID: &agentID,
		Status:  enums.DeliveryJobStatusRequested,
		Fee:     decimal.NewFromInt(25),
	}
	if err := db.Create(job).Error; err != nil {
		t.Fatalf("seed job: %v", err)
	}

	svc, err := NewService(ServiceParams{
		Tx:     gormTxRunner{db: db},
		Repo:   NewRepository(db),
		Logger: logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled}),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	return &fixture{db: db, svc: svc, job: job, agentID: agentID, buyerID: buyerID}
}

func (f *fixture) transition(t *testing.T, actorID uuid.UUID, role enums.ActorRole, next enums.DeliveryJobStatus, note *string) (*models.DeliveryJob, error) {
	t.Helper()
	return f.svc.Transition(context.Background(), TransitionInput{
		JobID:     f.job.ID,
		ActorID:   actorID,
		ActorRole: role,
		Next:      next,
		Note:      note,
	})
}

func (f *fixture) mustTransition(t *testing.T, actorID uuid.UUID, role enums.ActorRole, next enums.DeliveryJobStatus, note *string) *models.DeliveryJob {
	t.Helper()
	job, err := f.transition(t, actorID, role, next, note)
	if err != nil {
		t.Fatalf("transition to %s: %v", next, err)
	}
	return job
}

func TestTransitionHappyPath(t *testing.T) {
	f := newFixture(t)

	job := f.mustTransition(t, f.agentID, enums.ActorRoleDeliveryAgent, enums.DeliveryJobStatusAccepted, nil)
	if job.AcceptedAt == nil {
		t.Fatal("accepted timestamp missing")
	}

	f.mustTransition(t, f.agentID, enums.ActorRoleDeliveryAgent, enums.DeliveryJobStatusPickedUp, nil)
	f.mustTransition(t, f.agentID, enums.ActorRoleDeliveryAgent, enums.DeliveryJobStatusDeliveryRequested, nil)
	job = f.mustTransition(t, f.buyerID, enums.ActorRoleCustomer, enums.DeliveryJobStatusDelivered, nil)
	if job.DeliveredAt == nil {
		t.Fatal("delivered timestamp missing")
	}

	var order models.Order
	if err := f.db.First(&order, "id = ?", f.job.OrderID).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	if order.Status != enums.OrderStatusDelivered {
		t.Fatalf("order status should track the job, got %s", order.Status)
	}

	var earning models.Earning
	if err := f.db.First(&earning, "order_id = ?", f.job.OrderID).Error; err != nil {
		t.Fatalf("load agent earning: %v", err)
	}
	if earning.BeneficiaryID != f.agentID || earning.Role != enums.ActorRoleDeliveryAgent {
		t.Fatalf("unexpected earning %+v", earning)
	}
	if !earning.Amount.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("expected agent fee 25, got %s", earning.Amount)
	}
}

func TestTransitionRejectionReturnsToPickedUp(t *testing.T) {
	f := newFixture(t)
	f.mustTransition(t, f.agentID, enums.ActorRoleDeliveryAgent, enums.DeliveryJobStatusAccepted, nil)
	f.mustTransition(t, f.agentID, enums.ActorRoleDeliveryAgent, enums.DeliveryJobStatusPickedUp, nil)
	f.mustTransition(t, f.agentID, enums.ActorRoleDeliveryAgent, enums.DeliveryJobStatusDeliveryRequested, nil)

	_, err := f.transition(t, f.buyerID, enums.ActorRoleCustomer, enums.DeliveryJobStatusPickedUp, nil)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("rejection without a note must fail, got %v", err)
	}

	note := "wrong produce delivered"
	job := f.mustTransition(t, f.buyerID, enums.ActorRoleCustomer, enums.DeliveryJobStatusPickedUp, &note)
	if job.Status != enums.DeliveryJobStatusPickedUp {
		t.Fatalf("expected picked_up after rejection, got %s", job.Status)
	}
	if job.AgentID == nil || *job.AgentID != f.agentID {
		t.Fatal("rejection must keep the job assigned to the same agent")
	}
}

func TestTransitionWrongAgentForbidden(t *testing.T) {
	f := newFixture(t)
	_, err := f.transition(t, uuid.New(), enums.ActorRoleDeliveryAgent, enums.DeliveryJobStatusAccepted, nil)
	if !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden for unassigned agent, got %v", err)
	}
}

func TestTransitionCustomerCannotAdvanceEarlyStates(t *testing.T) {
	f := newFixture(t)
	_, err := f.transition(t, f.buyerID, enums.ActorRoleCustomer, enums.DeliveryJobStatusAccepted, nil)
	if !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden for customer accept, got %v", err)
	}
}

func TestTransitionInvalidMove(t *testing.T) {
	f := newFixture(t)
	_, err := f.transition(t, f.agentID, enums.ActorRoleDeliveryAgent, enums.DeliveryJobStatusDelivered, nil)
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict for requested->delivered, got %v", err)
	}
}

func TestTransitionTerminalJobLocked(t *testing.T) {
	f := newFixture(t)
	f.mustTransition(t, f.agentID, enums.ActorRoleDeliveryAgent, enums.DeliveryJobStatusAccepted, nil)
	f.mustTransition(t, f.agentID, enums.ActorRoleDeliveryAgent, enums.DeliveryJobStatusPickedUp, nil)
	f.mustTransition(t, f.agentID, enums.ActorRoleDeliveryAgent, enums.DeliveryJobStatusDeliveryRequested, nil)
	f.mustTransition(t, f.buyerID, enums.ActorRoleCustomer, enums.DeliveryJobStatusDelivered, nil)

	_, err := f.transition(t, uuid.New(), enums.ActorRoleAdmin, enums.DeliveryJobStatusCancelled, nil)
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("delivered job must be terminal, got %v", err)
	}
}

func TestJobForOrderAndAgentJobs(t *testing.T) {
	f := newFixture(t)

	job, err := f.svc.JobForOrder(context.Background(), f.job.OrderID)
	if err != nil {
		t.Fatalf("job for order: %v", err)
	}
	if job.ID != f.job.ID {
		t.Fatalf("unexpected job %s", job.ID)
	}

	jobs, err := f.svc.AgentJobs(context.Background(), f.agentID)
	if err != nil {
		t.Fatalf("agent jobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected one job, got %d", len(jobs))
	}

	if _, err := f.svc.JobForOrder(context.Background(), uuid.New()); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
