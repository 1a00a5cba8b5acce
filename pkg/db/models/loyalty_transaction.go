package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agrilink/agrilink-backend/pkg/enums"
)

// LoyaltyTransaction is one append-only points movement for a user. The
// order/reason pair is unique so replayed events cannot double-credit.
type LoyaltyTransaction struct {
	ID        uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID                `gorm:"column:user_id;type:uuid;not null;index"`
	OrderID   uuid.UUID                `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_loyalty_order_reason"`
	Reason    enums.LoyaltyTxnReason   `gorm:"column:reason;type:loyalty_txn_reason;not null;uniqueIndex:ux_loyalty_order_reason"`
	Points    int                      `gorm:"column:points;not null"`
	CreatedAt time.Time                `gorm:"column:created_at;autoCreateTime"`
}

// BeforeCreate assigns an id when the caller has not set one.
func (t *LoyaltyTransaction) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
