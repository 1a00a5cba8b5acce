package rewards

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agrilink/agrilink-backend/pkg/db/models"
	"github.com/agrilink/agrilink-backend/pkg/enums"
)

type gormRepository struct {
	db *gorm.DB
}

// NewRepository builds a rewards repository bound to the provided DB.
func NewRepository(db *gorm.DB) *gormRepository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreateLoyaltyTransaction(ctx context.Context, txn *models.LoyaltyTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *gormRepository) CreateNotification(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *gormRepository) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// HasReferralBonus reports whether the referee's referrer was already paid:
// the bonus is granted once, on the referee's first settled order.
func (r *gormRepository) HasReferralBonus(ctx context.Context, refereeID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.LoyaltyTransaction{}).
		Joins("JOIN orders ON orders.id = loyalty_transactions.order_id").
		Where("orders.buyer_id = ?", refereeID).
		Where("loyalty_transactions.reason = ?", enums.LoyaltyTxnReasonReferralBonus).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
