package enums

import "fmt"

// SettlementMode distinguishes the two entry points into order settlement.
// Both paths share one coordinator so inventory and assignment behavior
// cannot drift between them.
type SettlementMode string

const (
	SettlementModeGatewayWebhook SettlementMode = "gateway_webhook"
	SettlementModeCashOnDelivery SettlementMode = "cash_on_delivery"
)

var validSettlementModes = []SettlementMode{
	SettlementModeGatewayWebhook,
	SettlementModeCashOnDelivery,
}

// IsValid reports whether the value is a known SettlementMode.
func (m SettlementMode) IsValid() bool {
	for _, candidate := range validSettlementModes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseSettlementMode converts raw input into a SettlementMode.
func ParseSettlementMode(value string) (SettlementMode, error) {
	for _, candidate := range validSettlementModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid settlement mode %q", value)
}
