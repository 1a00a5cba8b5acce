package delivery

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agrilink/agrilink-backend/pkg/db/models"
	"github.com/agrilink/agrilink-backend/pkg/enums"
)

// Repository manages persistence for delivery jobs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetJob(ctx context.Context, jobID uuid.UUID) (*models.DeliveryJob, error)
	GetJobByOrderID(ctx context.Context, orderID uuid.UUID) (*models.DeliveryJob, error)
	SaveJob(ctx context.Context, job *models.DeliveryJob) error
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error
	ListJobsByAgent(ctx context.Context, agentID uuid.UUID) ([]models.DeliveryJob, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a delivery repository bound to the database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetJob(ctx context.Context, jobID uuid.UUID) (*models.DeliveryJob, error) {
	var job models.DeliveryJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", jobID).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *repository) GetJobByOrderID(ctx context.Context, orderID uuid.UUID) (*models.DeliveryJob, error) {
	var job models.DeliveryJob
	if err := r.db.WithContext(ctx).First(&job, "order_id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *repository) SaveJob(ctx context.Context, job *models.DeliveryJob) error {
	return r.db.WithContext(ctx).Save(job).Error
}

func (r *repository) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("status", status).Error
}

func (r *repository) ListJobsByAgent(ctx context.Context, agentID uuid.UUID) ([]models.DeliveryJob, error) {
	var jobs []models.DeliveryJob
	if err := r.db.WithContext(ctx).
		Where("agent_id = ?", agentID).
		Order("created_at DESC").
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}
