package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/agrilink/agrilink-backend/pkg/enums"
	"github.com/agrilink/agrilink-backend/pkg/types"
)

// Order is the buyer-facing order aggregate. Money fields are snapshots
// captured at settlement so later listing price edits never leak in.
type Order struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	BuyerID         uuid.UUID           `gorm:"column:buyer_id;type:uuid;not null;index"`
	Status          enums.OrderStatus   `gorm:"column:status;type:order_status;not null;default:'created'"`
	PaymentMethod   enums.PaymentMethod `gorm:"column:payment_method;type:payment_method;not null"`
	Subtotal        decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null;default:0"`
	DeliveryFee     decimal.Decimal     `gorm:"column:delivery_fee;type:numeric(12,2);not null;default:0"`
	Total           decimal.Decimal     `gorm:"column:total;type:numeric(12,2);not null;default:0"`
	DeliveryAddress *types.Address      `gorm:"column:delivery_address;type:address_t"`
	Notes           *string             `gorm:"column:notes"`
	Items           []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	SettledAt       *time.Time          `gorm:"column:settled_at"`
	CancelledAt     *time.Time          `gorm:"column:cancelled_at"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns an id when the caller has not set one.
func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
