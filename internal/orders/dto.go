package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agrilink/agrilink-backend/pkg/enums"
	"github.com/agrilink/agrilink-backend/pkg/types"
)

// CreateOrderLine is a single listing/quantity pair on a new order.
type CreateOrderLine struct {
	ListingID uuid.UUID `json:"listing_id" validate:"required"`
	Qty       int       `json:"qty" validate:"required,min=1"`
}

// CreateOrderInput carries everything needed to place an order.
type CreateOrderInput struct {
	BuyerID         uuid.UUID           `json:"-"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method" validate:"required"`
	DeliveryAddress *types.Address      `json:"delivery_address" validate:"required"`
	Notes           *string             `json:"notes,omitempty" validate:"omitempty,max=500"`
	Lines           []CreateOrderLine   `json:"lines" validate:"required,min=1,dive"`
}

// OrderItemView exposes a frozen line item.
type OrderItemView struct {
	ID        uuid.UUID       `json:"id"`
	ListingID uuid.UUID       `json:"listing_id"`
	Title     string          `json:"title"`
	Unit      string          `json:"unit"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Qty       int             `json:"qty"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// DeliveryJobView is the slice of the delivery job buyers can see.
type DeliveryJobView struct {
	ID     uuid.UUID               `json:"id"`
	Status enums.DeliveryJobStatus `json:"status"`
}

// OrderView is the buyer-facing representation of an order.
type OrderView struct {
	ID              uuid.UUID           `json:"id"`
	Status          enums.OrderStatus   `json:"status"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method"`
	Subtotal        decimal.Decimal     `json:"subtotal"`
	DeliveryFee     decimal.Decimal     `json:"delivery_fee"`
	Total           decimal.Decimal     `json:"total"`
	DeliveryAddress *types.Address      `json:"delivery_address,omitempty"`
	Items           []OrderItemView     `json:"items"`
	DeliveryJob     *DeliveryJobView    `json:"delivery_job,omitempty"`
	Warnings        []string            `json:"warnings,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	SettledAt       *time.Time          `json:"settled_at,omitempty"`
	CancelledAt     *time.Time          `json:"cancelled_at,omitempty"`
}

// ListFilters narrow the buyer order history.
type ListFilters struct {
	Status *enums.OrderStatus
	Limit  int
}
