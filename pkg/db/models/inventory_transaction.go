package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agrilink/agrilink-backend/pkg/enums"
)

// InventoryTransaction is the append-only stock movement ledger. Quantity is
// signed: reservations are negative, releases and restocks positive.
type InventoryTransaction struct {
	ID        uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	ListingID uuid.UUID                `gorm:"column:listing_id;type:uuid;not null;index"`
	OrderID   *uuid.UUID               `gorm:"column:order_id;type:uuid;index"`
	Quantity  int                      `gorm:"column:quantity;not null"`
	Reason    enums.InventoryTxnReason `gorm:"column:reason;type:inventory_txn_reason;not null"`
	CreatedAt time.Time                `gorm:"column:created_at;autoCreateTime"`
}

// BeforeCreate assigns an id when the caller has not set one.
func (t *InventoryTransaction) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
