package enums

import "fmt"

// InventoryTxnReason maps to the inventory_txn_reason enum in Postgres.
type InventoryTxnReason string

const (
	InventoryTxnReasonOrderReserve InventoryTxnReason = "order_reserve"
	InventoryTxnReasonOrderCancel  InventoryTxnReason = "order_cancel"
	InventoryTxnReasonRestock      InventoryTxnReason = "restock"
	InventoryTxnReasonAdjustment   InventoryTxnReason = "adjustment"
)

var validInventoryTxnReasons = []InventoryTxnReason{
	InventoryTxnReasonOrderReserve,
	InventoryTxnReasonOrderCancel,
	InventoryTxnReasonRestock,
	InventoryTxnReasonAdjustment,
}

// IsValid reports whether the value matches the canonical reason enum.
func (r InventoryTxnReason) IsValid() bool {
	for _, candidate := range validInventoryTxnReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseInventoryTxnReason converts raw input into an InventoryTxnReason.
func ParseInventoryTxnReason(value string) (InventoryTxnReason, error) {
	for _, candidate := range validInventoryTxnReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid inventory txn reason %q", value)
}
