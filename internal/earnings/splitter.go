package earnings

import (
	"math/rand"

	"github.com/shopspring/decimal"
)

// Split is the per-line revenue division between farmer and platform.
type Split struct {
	FarmerShare    decimal.Decimal
	PlatformMargin decimal.Decimal
	// NegativeMargin flags farmer price above store price. The math still
	// holds; upstream surfaces it as a data-quality warning.
	NegativeMargin bool
}

// ComputeSplit divides one order line: the farmer earns farmerPrice per unit,
// the platform keeps the store/farmer price spread.
func ComputeSplit(storePrice, farmerPrice decimal.Decimal, quantity int) Split {
	qty := decimal.NewFromInt(int64(quantity))
	farmerShare := farmerPrice.Mul(qty)
	platformMargin := storePrice.Sub(farmerPrice).Mul(qty)

	return Split{
		FarmerShare:    farmerShare,
		PlatformMargin: platformMargin,
		NegativeMargin: platformMargin.IsNegative(),
	}
}

// FeePolicy carries the delivery fee tunables.
type FeePolicy struct {
	PerKmRate   float64
	LocalFeeMin float64
	LocalFeeMax float64

	// rng draws the local flat-rate fee; tests inject a seeded source.
	rng *rand.Rand
}

// NewFeePolicy builds a policy with the process-wide random source.
func NewFeePolicy(perKmRate, localMin, localMax float64) FeePolicy {
	return FeePolicy{PerKmRate: perKmRate, LocalFeeMin: localMin, LocalFeeMax: localMax}
}

// WithRand returns a copy using the supplied random source.
func (p FeePolicy) WithRand(rng *rand.Rand) FeePolicy {
	p.rng = rng
	return p
}

// DeliveryFee prices a delivery leg. Same-postal-code hops get a uniform
// random flat rate inside the configured band; everything else is metered
// per kilometre.
func (p FeePolicy) DeliveryFee(distanceKm float64, samePostalCode bool) decimal.Decimal {
	if samePostalCode {
		span := p.LocalFeeMax - p.LocalFeeMin
		if span <= 0 {
			return decimal.NewFromFloat(p.LocalFeeMin).Round(2)
		}
		fee := p.LocalFeeMin + p.float64()*span
		return decimal.NewFromFloat(fee).Round(2)
	}
	return decimal.NewFromFloat(p.PerKmRate * distanceKm).Round(2)
}

func (p FeePolicy) float64() float64 {
	if p.rng != nil {
		return p.rng.Float64()
	}
	return rand.Float64()
}
