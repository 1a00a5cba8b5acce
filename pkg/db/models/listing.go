package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/agrilink/agrilink-backend/pkg/types"
)

// Listing is a farmer's produce offer with live stock counters.
type Listing struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	FarmerID      uuid.UUID       `gorm:"column:farmer_id;type:uuid;not null;index"`
	Title         string          `gorm:"column:title;not null"`
	Category      string          `gorm:"column:category;not null"`
	Unit          string          `gorm:"column:unit;not null;default:'kg'"`
	StorePrice    decimal.Decimal `gorm:"column:store_price;type:numeric(12,2);not null"`
	FarmerPrice   decimal.Decimal `gorm:"column:farmer_price;type:numeric(12,2);not null"`
	AvailableQty  int             `gorm:"column:available_qty;not null;default:0"`
	ReservedQty   int             `gorm:"column:reserved_qty;not null;default:0"`
	PickupAddress *types.Address  `gorm:"column:pickup_address;type:address_t"`
	IsActive      bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns an id when the caller has not set one.
func (l *Listing) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
