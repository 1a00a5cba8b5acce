package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderItem snapshots one listing line within an order. Store and farmer
// prices are frozen at order creation so settlement math never re-reads the
// listing.
type OrderItem struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ListingID   uuid.UUID       `gorm:"column:listing_id;type:uuid;not null"`
	FarmerID    uuid.UUID       `gorm:"column:farmer_id;type:uuid;not null"`
	Title       string          `gorm:"column:title;not null"`
	Unit        string          `gorm:"column:unit;not null"`
	StorePrice  decimal.Decimal `gorm:"column:store_price;type:numeric(12,2);not null"`
	FarmerPrice decimal.Decimal `gorm:"column:farmer_price;type:numeric(12,2);not null"`
	PlatformFee decimal.Decimal `gorm:"column:platform_fee;type:numeric(12,2);not null;default:0"`
	Qty         int             `gorm:"column:qty;not null"`
	LineTotal   decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns an id when the caller has not set one.
func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
