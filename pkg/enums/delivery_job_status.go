package enums

import "fmt"

// DeliveryJobStatus maps to the delivery_job_status enum in Postgres.
type DeliveryJobStatus string

const (
	DeliveryJobStatusRequested         DeliveryJobStatus = "requested"
	DeliveryJobStatusAccepted          DeliveryJobStatus = "accepted"
	DeliveryJobStatusPickedUp          DeliveryJobStatus = "picked_up"
	DeliveryJobStatusDeliveryRequested DeliveryJobStatus = "delivery_requested"
	DeliveryJobStatusDelivered         DeliveryJobStatus = "delivered"
	DeliveryJobStatusCancelled         DeliveryJobStatus = "cancelled"
)

var validDeliveryJobStatuses = []DeliveryJobStatus{
	DeliveryJobStatusRequested,
	DeliveryJobStatusAccepted,
	DeliveryJobStatusPickedUp,
	DeliveryJobStatusDeliveryRequested,
	DeliveryJobStatusDelivered,
	DeliveryJobStatusCancelled,
}

// String implements fmt.Stringer.
func (s DeliveryJobStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known DeliveryJobStatus.
func (s DeliveryJobStatus) IsValid() bool {
	for _, candidate := range validDeliveryJobStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the job can no longer move.
func (s DeliveryJobStatus) IsTerminal() bool {
	return s == DeliveryJobStatusDelivered || s == DeliveryJobStatusCancelled
}

// CanTransitionTo enforces the job progression. A customer rejecting a
// delivery request sends the job back to picked_up, keeping the same agent.
func (s DeliveryJobStatus) CanTransitionTo(next DeliveryJobStatus) bool {
	if !s.IsValid() || !next.IsValid() {
		return false
	}
	if next == DeliveryJobStatusCancelled {
		return !s.IsTerminal()
	}
	switch s {
	case DeliveryJobStatusRequested:
		return next == DeliveryJobStatusAccepted
	case DeliveryJobStatusAccepted:
		return next == DeliveryJobStatusPickedUp
	case DeliveryJobStatusPickedUp:
		return next == DeliveryJobStatusDeliveryRequested
	case DeliveryJobStatusDeliveryRequested:
		return next == DeliveryJobStatusDelivered || next == DeliveryJobStatusPickedUp
	default:
		return false
	}
}

// ParseDeliveryJobStatus converts raw input into a DeliveryJobStatus.
func ParseDeliveryJobStatus(value string) (DeliveryJobStatus, error) {
	for _, candidate := range validDeliveryJobStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery job status %q", value)
}
