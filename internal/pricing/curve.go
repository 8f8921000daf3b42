package pricing

import (
	fpmath "CoverPool/internal/fpmath"
)

// Prices are expressed in basis points of cover amount per year: a price of
// 200 means a 365-day cover costs 2% of the covered amount. Utilization
// ratios use 1e18 fixed point (1e18 = 100% of capacity).
const (
	PriceDenominator int64 = 10_000
	RatioPrecision   int64 = 1_000_000_000_000_000_000 // 1e18 = 100%
	RatioPoint       int64 = RatioPrecision / 100      // one percentage point

	// Base price decays toward the target by at most this many basis points
	// per day. Rises to a higher target are instant.
	PriceDropPerDay int64 = 100

	// Utilization above this ratio triggers surge loading.
	SurgeThreshold int64 = 8 * RatioPrecision / 10 // 80%

	// Extra basis points of price per percentage point of utilization past
	// the surge threshold.
	SurgeLoadingPerPoint int64 = 20

	// Basis points added to the recorded base price per full capacity
	// consumed by an allocation: 2000 bps over 100 points is +2% of price
	// per 10% of capacity used.
	PriceBumpRatio int64 = 2_000

	SecondsPerDay  int64 = 86_400
	SecondsPerYear int64 = 31_536_000
)

// Quote is the outcome of pricing one allocation.
type Quote struct {
	// Price actually charged, including surge loading (basis points).
	Price int64
	// Premium in smallest token units for the allocation's amount and period.
	Premium int64
	// Base price to record on the product after this allocation: the
	// interpolated base plus the consumption bump, excluding surge.
	BumpedBasePrice int64
}

// InterpolateBasePrice moves the recorded base price toward the target.
// A higher target applies immediately; a lower target is approached at
// PriceDropPerDay. The asymmetry keeps a pool from underpricing while risk
// is being repriced upward.
func InterpolateBasePrice(lastPrice, targetPrice, lastUpdate, now int64) int64 {
	if targetPrice >= lastPrice {
		return targetPrice
	}

	elapsed := now - lastUpdate
	if elapsed < 0 {
		elapsed = 0
	}

	drop := fpmath.MulDiv(PriceDropPerDay, elapsed, SecondsPerDay)
	return fpmath.Max(targetPrice, lastPrice-drop)
}

// SurgeLoading returns the basis points added on top of the base price for
// an allocation of amount against a product with activeCover already
// committed out of capacity. Zero below the threshold.
//
// Only the portion of the allocation past the threshold is surcharged: if
// utilization was already past the threshold the whole allocation pays the
// loading, otherwise the surcharge is scaled by the fraction of the
// allocation landing above it.
func SurgeLoading(amount, activeCover, capacity int64) int64 {
	if capacity <= 0 || amount <= 0 {
		return 0
	}

	activeRatio := fpmath.MulDiv(activeCover, RatioPrecision, capacity)
	newRatio := fpmath.MulDiv(activeCover+amount, RatioPrecision, capacity)

	if newRatio <= SurgeThreshold {
		return 0
	}

	surgeFraction := RatioPrecision
	if activeRatio < SurgeThreshold {
		surgeFraction = fpmath.MulDiv(newRatio-SurgeThreshold, RatioPrecision, newRatio-activeRatio)
	}

	loading := fpmath.MulDiv(SurgeLoadingPerPoint, newRatio-SurgeThreshold, RatioPoint)
	return fpmath.MulDiv(loading, surgeFraction, RatioPrecision)
}

// PriceBump returns the permanent basis-point increase of the recorded base
// price caused by consuming amount out of capacity.
func PriceBump(amount, capacity int64) int64 {
	if capacity <= 0 {
		return 0
	}
	return fpmath.MulDiv(amount, PriceBumpRatio, capacity)
}

// CalculatePremium prices an allocation. Returns ok=false when capacity or
// amount is zero — a legitimate decline for brand-new products, not a fault.
//
// period is in seconds. activeCover is the stake already committed before
// this allocation; capacity the utilization denominator at quote time.
func CalculatePremium(
	lastPrice, targetPrice, lastPriceUpdate, now int64,
	amount, activeCover, capacity, period int64,
) (Quote, bool) {
	if capacity <= 0 || amount <= 0 {
		return Quote{}, false
	}

	basePrice := InterpolateBasePrice(lastPrice, targetPrice, lastPriceUpdate, now)
	price := basePrice + SurgeLoading(amount, activeCover, capacity)

	premium := fpmath.MulDiv3(price, amount, period, PriceDenominator*SecondsPerYear)

	return Quote{
		Price:           price,
		Premium:         premium,
		BumpedBasePrice: basePrice + PriceBump(amount, capacity),
	}, true
}
