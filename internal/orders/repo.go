package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agrilink/agrilink-backend/pkg/db/models"
	"github.com/agrilink/agrilink-backend/pkg/enums"
)

// Repository exposes the persistence surface for buyer orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID, filters ListFilters) ([]models.Order, error)
	GetListings(ctx context.Context, ids []uuid.UUID) ([]models.Listing, error)
	GetDeliveryJobByOrder(ctx context.Context, orderID uuid.UUID) (*models.DeliveryJob, error)
	FindUnpaidBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListByBuyer(ctx context.Context, buyerID uuid.UUID, filters ListFilters) ([]models.Order, error) {
	query := r.db.WithContext(ctx).
		Preload("Items").
		Where("buyer_id = ?", buyerID).
		Order("created_at DESC")
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}

	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) GetListings(ctx context.Context, ids []uuid.UUID) ([]models.Listing, error) {
	var listings []models.Listing
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&listings).Error
	if err != nil {
		return nil, err
	}
	return listings, nil
}

func (r *repository) GetDeliveryJobByOrder(ctx context.Context, orderID uuid.UUID) (*models.DeliveryJob, error) {
	var job models.DeliveryJob
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// FindUnpaidBefore returns orders still awaiting payment that were created
// before the cutoff.
func (r *repository) FindUnpaidBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.OrderStatusCreated).
		Where("created_at < ?", cutoff).
		Order("created_at ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}
