package enums

import "fmt"

// OrderStatus maps to the order_status enum in Postgres.
type OrderStatus string

const (
	OrderStatusCreated        OrderStatus = "created"
	OrderStatusPaid           OrderStatus = "paid"
	OrderStatusPickedUp       OrderStatus = "picked_up"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusCreated,
	OrderStatusPaid,
	OrderStatusPickedUp,
	OrderStatusOutForDelivery,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// orderStatusRank orders the forward progression; cancelled sits outside it.
var orderStatusRank = map[OrderStatus]int{
	OrderStatusCreated:        0,
	OrderStatusPaid:           1,
	OrderStatusPickedUp:       2,
	OrderStatusOutForDelivery: 3,
	OrderStatusDelivered:      4,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed from the status.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransitionTo enforces monotonic forward movement, with cancellation
// reachable from every non-delivered state.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if !s.IsValid() || !next.IsValid() {
		return false
	}
	if next == OrderStatusCancelled {
		return s != OrderStatusDelivered && s != OrderStatusCancelled
	}
	from, ok := orderStatusRank[s]
	if !ok {
		return false
	}
	to, ok := orderStatusRank[next]
	if !ok {
		return false
	}
	return to > from
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
