package settlement

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agrilink/agrilink-backend/pkg/db/models"
)

// Repository covers every row the settlement transaction touches.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetOrderWithItems(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	SaveOrder(ctx context.Context, order *models.Order) error
	GetListing(ctx context.Context, listingID uuid.UUID) (*models.Listing, error)
	CreateEarning(ctx context.Context, earning *models.Earning) error
	CreateAdminRevenue(ctx context.Context, revenue *models.AdminRevenue) error
	CountEarningsByOrder(ctx context.Context, orderID uuid.UUID) (int64, error)
	CreateDeliveryJob(ctx context.Context, job *models.DeliveryJob) error
	GetDeliveryJobByOrder(ctx context.Context, orderID uuid.UUID) (*models.DeliveryJob, error)
	SaveDeliveryJob(ctx context.Context, job *models.DeliveryJob) error
	UpsertPayment(ctx context.Context, payment *models.Payment) error
	GetPaymentByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a settlement repository bound to the database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetOrderWithItems(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Preload("Items").
		First(&order, "id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) SaveOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit("Items").Save(order).Error
}

func (r *repository) GetListing(ctx context.Context, listingID uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	if err := r.db.WithContext(ctx).First(&listing, "id = ?", listingID).Error; err != nil {
		return nil, err
	}
	return &listing, nil
}

func (r *repository) CreateEarning(ctx context.Context, earning *models.Earning) error {
	return r.db.WithContext(ctx).Create(earning).Error
}

func (r *repository) CreateAdminRevenue(ctx context.Context, revenue *models.AdminRevenue) error {
	return r.db.WithContext(ctx).Create(revenue).Error
}

func (r *repository) CountEarningsByOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Earning{}).
		Where("order_id = ?", orderID).
		Count(&count).Error
	return count, err
}

func (r *repository) CreateDeliveryJob(ctx context.Context, job *models.DeliveryJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *repository) GetDeliveryJobByOrder(ctx context.Context, orderID uuid.UUID) (*models.DeliveryJob, error) {
	var job models.DeliveryJob
	if err := r.db.WithContext(ctx).First(&job, "order_id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *repository) SaveDeliveryJob(ctx context.Context, job *models.DeliveryJob) error {
	return r.db.WithContext(ctx).Save(job).Error
}

func (r *repository) UpsertPayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Save(payment).Error
}

func (r *repository) GetPaymentByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		First(&payment, "order_id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}
