package enums

import "fmt"

// LoyaltyTxnReason maps to the loyalty_txn_reason enum in Postgres.
type LoyaltyTxnReason string

const (
	LoyaltyTxnReasonOrderSettled  LoyaltyTxnReason = "order_settled"
	LoyaltyTxnReasonReferralBonus LoyaltyTxnReason = "referral_bonus"
)

var validLoyaltyTxnReasons = []LoyaltyTxnReason{
	LoyaltyTxnReasonOrderSettled,
	LoyaltyTxnReasonReferralBonus,
}

// IsValid reports whether the value is a known LoyaltyTxnReason.
func (r LoyaltyTxnReason) IsValid() bool {
	for _, candidate := range validLoyaltyTxnReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseLoyaltyTxnReason converts raw input into a LoyaltyTxnReason.
func ParseLoyaltyTxnReason(value string) (LoyaltyTxnReason, error) {
	for _, candidate := range validLoyaltyTxnReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid loyalty txn reason %q", value)
}
