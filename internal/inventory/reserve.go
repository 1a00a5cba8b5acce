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

// ReservationRequest asks for qty units of one listing.
type ReservationRequest struct {
	ListingID uuid.UUID
	Qty       int
}

// ShortageDetail names a listing that could not cover the requested quantity.
type ShortageDetail struct {
	ListingID uuid.UUID `json:"listing_id"`
	Requested int       `json:"requested"`
}

// Reserve atomically decrements available stock for every request and appends
// a signed movement row per line. The first listing that cannot cover its
// quantity aborts the whole batch; the caller's transaction rollback undoes
// any partial decrements.
func Reserve(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, requests []ReservationRequest) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "reserve requires a transaction")
	}
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if len(requests) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "no reservation lines provided")
	}

	for _, req := range requests {
		if req.ListingID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "listing id is required")
		}
		if req.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid quantity %d for listing %s", req.Qty, req.ListingID))
		}
	}

	for _, req := range requests {
		result := tx.WithContext(ctx).
			Model(&models.Listing{}).
			Where("id = ? AND is_active = ? AND available_qty >= ?", req.ListingID, true, req.Qty).
			Updates(map[string]any{
				"available_qty": gorm.Expr("available_qty - ?", req.Qty),
				"reserved_qty":  gorm.Expr("reserved_qty + ?", req.Qty),
			})
		if result.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, result.Error, "decrement listing stock")
		}
		if result.RowsAffected == 0 {
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("listing %s cannot cover quantity %d", req.ListingID, req.Qty)).
				WithDetails(ShortageDetail{ListingID: req.ListingID, Requested: req.Qty})
		}

		movement := &models.InventoryTransaction{
			ListingID: req.ListingID,
			OrderID:   &orderID,
			Quantity:  -req.Qty,
			Reason:    enums.InventoryTxnReasonOrderReserve,
		}
		if err := tx.WithContext(ctx).Create(movement).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record reservation movement")
		}
	}

	return nil
}
