package earnings

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeSplit(t *testing.T) {
	tests := []struct {
		name           string
		storePrice     string
		farmerPrice    string
		quantity       int
		wantFarmer     string
		wantMargin     string
		negativeMargin bool
	}{
		{name: "standard spread", storePrice: "50", farmerPrice: "40", quantity: 3, wantFarmer: "120", wantMargin: "30"},
		{name: "zero margin", storePrice: "25", farmerPrice: "25", quantity: 2, wantFarmer: "50", wantMargin: "0"},
		{name: "fractional prices", storePrice: "10.50", farmerPrice: "8.25", quantity: 4, wantFarmer: "33", wantMargin: "9"},
		{name: "negative margin surfaces", storePrice: "30", farmerPrice: "35", quantity: 2, wantFarmer: "70", wantMargin: "-10", negativeMargin: true},
		{name: "single unit", storePrice: "100", farmerPrice: "80", quantity: 1, wantFarmer: "80", wantMargin: "20"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			split := ComputeSplit(decimal.RequireFromString(tt.storePrice), decimal.RequireFromString(tt.farmerPrice), tt.quantity)
			assert.True(t, split.FarmerShare.Equal(decimal.RequireFromString(tt.wantFarmer)), "farmer share %s", split.FarmerShare)
			assert.True(t, split.PlatformMargin.Equal(decimal.RequireFromString(tt.wantMargin)), "platform margin %s", split.PlatformMargin)
			assert.Equal(t, tt.negativeMargin, split.NegativeMargin)
		})
	}
}

func TestDeliveryFeePerKm(t *testing.T) {
	policy := NewFeePolicy(8, 20, 30)

	fee := policy.DeliveryFee(12.5, false)
	require.True(t, fee.Equal(decimal.NewFromInt(100)), "expected 100, got %s", fee)

	fee = policy.DeliveryFee(0, false)
	require.True(t, fee.IsZero(), "zero distance should price to zero, got %s", fee)
}

func TestDeliveryFeeLocalBand(t *testing.T) {
	policy := NewFeePolicy(8, 20, 30).WithRand(rand.New(rand.NewSource(42)))

	min := decimal.NewFromInt(20)
	max := decimal.NewFromInt(30)
	for i := 0; i < 200; i++ {
		fee := policy.DeliveryFee(12.5, true)
		require.True(t, fee.GreaterThanOrEqual(min) && fee.LessThanOrEqual(max), "fee %s outside [20, 30]", fee)
	}
}

func TestDeliveryFeeLocalBandUniformSpread(t *testing.T) {
	policy := NewFeePolicy(8, 20, 30).WithRand(rand.New(rand.NewSource(7)))

	lower, upper := 0, 0
	for i := 0; i < 1000; i++ {
		fee := policy.DeliveryFee(1, true)
		if fee.LessThan(decimal.NewFromInt(25)) {
			lower++
		} else {
			upper++
		}
	}
	// A uniform draw lands in each half roughly 500 times.
	require.Greater(t, lower, 350)
	require.Greater(t, upper, 350)
}

func TestDeliveryFeeDegenerateBand(t *testing.T) {
	policy := NewFeePolicy(8, 25, 25)
	fee := policy.DeliveryFee(3, true)
	require.True(t, fee.Equal(decimal.NewFromInt(25)), "expected flat 25, got %s", fee)
}
