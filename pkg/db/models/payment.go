package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/agrilink/agrilink-backend/pkg/enums"
)

// Payment tracks a single charge attempt against an order. ProviderPaymentID
// carries the gateway's payment identifier and is unique so replayed webhook
// deliveries collapse onto one row.
type Payment struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID           uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	ProviderPaymentID *string             `gorm:"column:provider_payment_id;uniqueIndex"`
	Method            enums.PaymentMethod `gorm:"column:method;type:payment_method;not null"`
	Status            enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'pending'"`
	Amount            decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	FailureReason     *string             `gorm:"column:failure_reason"`
	ConfirmedAt       *time.Time          `gorm:"column:confirmed_at"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns an id when the caller has not set one.
func (p *Payment) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
