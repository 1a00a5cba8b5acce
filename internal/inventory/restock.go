package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agrilink/agrilink-backend/pkg/db/models"
	pkgerrors "github.com/agrilink/agrilink-backend/pkg/errors"
	"github.com/agrilink/agrilink-backend/pkg/enums"
)

// Restock adds harvested stock onto a listing and records the movement.
func Restock(ctx context.Context, tx *gorm.DB, listingID uuid.UUID, qty int) error {
	return adjust(ctx, tx, listingID, qty, enums.InventoryTxnReasonRestock)
}

// Adjust applies a signed manual correction to available stock.
func Adjust(ctx context.Context, tx *gorm.DB, listingID uuid.UUID, delta int) error {
	return adjust(ctx, tx, listingID, delta, enums.InventoryTxnReasonAdjustment)
}

func adjust(ctx context.Context, tx *gorm.DB, listingID uuid.UUID, qty int, reason enums.InventoryTxnReason) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "stock adjustment requires a transaction")
	}
	if listingID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "listing id is required")
	}
	if qty == 0 || (reason == enums.InventoryTxnReasonRestock && qty < 0) {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid quantity %d", qty))
	}

	where := tx.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ?", listingID)
	if qty < 0 {
		where = where.Where("available_qty >= ?", -qty)
	}

	result := where.Update("available_qty", gorm.Expr("available_qty + ?", qty))
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, result.Error, "adjust listing stock")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("listing %s cannot absorb adjustment %d", listingID, qty))
	}

	movement := &models.InventoryTransaction{
		ListingID: listingID,
		Quantity:  qty,
		Reason:    reason,
	}
	if err := tx.WithContext(ctx).Create(movement).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record stock adjustment")
	}

	return nil
}
