package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agrilink/agrilink-backend/pkg/db/models"
	pkgerrors "github.com/agrilink/agrilink-backend/pkg/errors"
	"github.com/agrilink/agrilink-backend/pkg/enums"
)

// Release returns every quantity reserved for the order back to available
// stock. Replaying a release is a no-op once compensating movements exist.
func Release(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "release requires a transaction")
	}
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	var movements []models.InventoryTransaction
	if err := tx.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&movements).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load inventory movements")
	}

	reserved := make(map[uuid.UUID]int)
	for _, movement := range movements {
		switch movement.Reason {
		case enums.InventoryTxnReasonOrderReserve:
			reserved[movement.ListingID] += -movement.Quantity
		case enums.InventoryTxnReasonOrderCancel:
			reserved[movement.ListingID] -= movement.Quantity
		}
	}

	for listingID, qty := range reserved {
		if qty <= 0 {
			continue
		}

		result := tx.WithContext(ctx).
			Model(&models.Listing{}).
			Where("id = ?", listingID).
			Updates(map[string]any{
				"available_qty": gorm.Expr("available_qty + ?", qty),
				"reserved_qty":  gorm.Expr("reserved_qty - ?", qty),
			})
		if result.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, result.Error, "restore listing stock")
		}

		movement := &models.InventoryTransaction{
			ListingID: listingID,
			OrderID:   &orderID,
			Quantity:  qty,
			Reason:    enums.InventoryTxnReasonOrderCancel,
		}
		if err := tx.WithContext(ctx).Create(movement).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record release movement")
		}
	}

	return nil
}

// CommitDelivered clears the reserved counters once stock physically left the
// farm. Available stock is untouched; it was decremented at settlement.
func CommitDelivered(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "commit requires a transaction")
	}
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	var movements []models.InventoryTransaction
	if err := tx.WithContext(ctx).
		Where("order_id = ? AND reason = ?", orderID, enums.InventoryTxnReasonOrderReserve).
		Find(&movements).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load reservation movements")
	}

	for _, movement := range movements {
		qty := -movement.Quantity
		if qty <= 0 {
			continue
		}
		result := tx.WithContext(ctx).
			Model(&models.Listing{}).
			Where("id = ? AND reserved_qty >= ?", movement.ListingID, qty).
			Update("reserved_qty", gorm.Expr("reserved_qty - ?", qty))
		if result.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, result.Error, "clear reserved stock")
		}
	}

	return nil
}
