package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/agrilink/agrilink-backend/pkg/enums"
)

// Earning records one beneficiary's payout share from a settled order.
type Earning struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID       uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	OrderItemID   *uuid.UUID          `gorm:"column:order_item_id;type:uuid;uniqueIndex"`
	BeneficiaryID uuid.UUID           `gorm:"column:beneficiary_id;type:uuid;not null;index"`
	Role          enums.ActorRole     `gorm:"column:role;type:actor_role;not null"`
	Amount        decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Status        enums.EarningStatus `gorm:"column:status;type:earning_status;not null;default:'pending'"`
	PaidAt        *time.Time          `gorm:"column:paid_at"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns an id when the caller has not set one.
func (e *Earning) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
