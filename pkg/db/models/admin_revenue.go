package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AdminRevenue records the platform margin taken per settled order item.
// The per-item unique index keeps settlement replays from doubling revenue.
type AdminRevenue struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	OrderItemID uuid.UUID       `gorm:"column:order_item_id;type:uuid;not null;uniqueIndex"`
	Amount      decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// BeforeCreate assigns an id when the caller has not set one.
func (r *AdminRevenue) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
