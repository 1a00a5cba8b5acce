package payloads

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agrilink/agrilink-backend/pkg/enums"
)

// OrderSettledEvent is emitted once per order when settlement commits.
type OrderSettledEvent struct {
	OrderID   uuid.UUID            `json:"order_id"`
	BuyerID   uuid.UUID            `json:"buyer_id"`
	Mode      enums.SettlementMode `json:"mode"`
	Total     decimal.Decimal      `json:"total"`
	ItemCount int                  `json:"item_count"`
}

// OrderCancelledEvent is emitted when an order is cancelled, before or after settlement.
type OrderCancelledEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	BuyerID    uuid.UUID `json:"buyer_id"`
	WasSettled bool      `json:"was_settled"`
}

// PaymentFailedEvent reports a terminal gateway failure for an unsettled order.
type PaymentFailedEvent struct {
	OrderID uuid.UUID `json:"order_id"`
	BuyerID uuid.UUID `json:"buyer_id"`
	Reason  string    `json:"reason,omitempty"`
}

// DeliveryJobAdvancedEvent records a delivery job state transition.
type DeliveryJobAdvancedEvent struct {
	OrderID uuid.UUID               `json:"order_id"`
	From    enums.DeliveryJobStatus `json:"from"`
	To      enums.DeliveryJobStatus `json:"to"`
	Note    string                  `json:"note,omitempty"`
}
