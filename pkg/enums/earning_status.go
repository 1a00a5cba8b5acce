package enums

import "fmt"

// EarningStatus tracks payout state for farmer earnings and platform margin rows.
type EarningStatus string

const (
	EarningStatusPending EarningStatus = "pending"
	EarningStatusPaid    EarningStatus = "paid"
)

var validEarningStatuses = []EarningStatus{
	EarningStatusPending,
	EarningStatusPaid,
}

// IsValid reports whether the value is a known EarningStatus.
func (s EarningStatus) IsValid() bool {
	for _, candidate := range validEarningStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseEarningStatus converts raw input into an EarningStatus.
func ParseEarningStatus(value string) (EarningStatus, error) {
	for _, candidate := range validEarningStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid earning status %q", value)
}
