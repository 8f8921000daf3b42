package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const capacity int64 = 1_000_000_000_000 // 1M tokens at 1e6 scale

func TestInterpolateBasePrice_RisesInstantly(t *testing.T) {
	// Target above last price jumps immediately, regardless of elapsed time.
	got := InterpolateBasePrice(200, 500, 1000, 1001)
	assert.Equal(t, int64(500), got)
}

func TestInterpolateBasePrice_DecaysGradually(t *testing.T) {
	// 100 bps per day toward a lower target.
	lastUpdate := int64(0)

	got := InterpolateBasePrice(500, 200, lastUpdate, SecondsPerDay)
	assert.Equal(t, int64(400), got, "one day of decay")

	got = InterpolateBasePrice(500, 200, lastUpdate, SecondsPerDay/2)
	assert.Equal(t, int64(450), got, "half a day of decay")

	got = InterpolateBasePrice(500, 200, lastUpdate, 10*SecondsPerDay)
	assert.Equal(t, int64(200), got, "decay clamps at target")
}

func TestInterpolateBasePrice_NegativeElapsed(t *testing.T) {
	// Clock going backwards (replay artifacts) must not raise the price.
	got := InterpolateBasePrice(500, 200, 1000, 900)
	assert.Equal(t, int64(500), got)
}

func TestSurgeLoading_BelowThreshold(t *testing.T) {
	// 0% -> 79% utilization: no surge.
	amount := capacity * 79 / 100
	assert.Zero(t, SurgeLoading(amount, 0, capacity))
}

func TestSurgeLoading_CrossingThreshold(t *testing.T) {
	// 70% -> 90%: half the allocation is above the 80% threshold.
	active := capacity * 70 / 100
	amount := capacity * 20 / 100

	loading := SurgeLoading(amount, active, capacity)

	// 10 points past threshold * 20 bps * 1/2 surcharged fraction.
	assert.Equal(t, int64(100), loading)
}

func TestSurgeLoading_FullyAboveThreshold(t *testing.T) {
	// 85% -> 90%: the whole allocation is surcharged.
	active := capacity * 85 / 100
	amount := capacity * 5 / 100

	loading := SurgeLoading(amount, active, capacity)
	assert.Equal(t, int64(200), loading) // 10 points * 20 bps * 1
}

func TestSurgeLoading_ZeroCapacity(t *testing.T) {
	assert.Zero(t, SurgeLoading(100, 0, 0))
	assert.Zero(t, SurgeLoading(0, 0, capacity))
}

func TestPriceBump(t *testing.T) {
	// 10% of capacity consumed bumps the recorded base price by 200 bps.
	bump := PriceBump(capacity/10, capacity)
	assert.Equal(t, int64(200), bump)

	assert.Zero(t, PriceBump(100, 0))
}

func TestCalculatePremium_Linear(t *testing.T) {
	// 2% yearly price, full year, no surge: premium = 2% of amount.
	amount := int64(100_000_000) // 100 tokens
	quote, ok := CalculatePremium(200, 200, 0, 0, amount, 0, capacity, SecondsPerYear)
	require.True(t, ok)

	assert.Equal(t, int64(200), quote.Price)
	assert.Equal(t, int64(2_000_000), quote.Premium)

	// Half the period, half the premium.
	quote, ok = CalculatePremium(200, 200, 0, 0, amount, 0, capacity, SecondsPerYear/2)
	require.True(t, ok)
	assert.Equal(t, int64(1_000_000), quote.Premium)
}

func TestCalculatePremium_SurgeExceedsBase(t *testing.T) {
	// Allocation pushing utilization to 85% with an 80% threshold must cost
	// strictly more than the same amount priced below the threshold.
	amount := capacity * 5 / 100

	below, ok := CalculatePremium(200, 200, 0, 0, amount, 0, capacity, SecondsPerYear)
	require.True(t, ok)

	surged, ok := CalculatePremium(200, 200, 0, 0, amount, capacity*80/100, capacity, SecondsPerYear)
	require.True(t, ok)

	assert.Greater(t, surged.Premium, below.Premium)
	assert.Greater(t, surged.Price, below.Price)
}

func TestCalculatePremium_RecordsBump(t *testing.T) {
	amount := capacity / 10
	quote, ok := CalculatePremium(200, 200, 0, 0, amount, 0, capacity, SecondsPerYear)
	require.True(t, ok)

	// Recorded base price carries the bump but not the surge loading.
	assert.Equal(t, int64(400), quote.BumpedBasePrice)
}

func TestCalculatePremium_Declines(t *testing.T) {
	_, ok := CalculatePremium(200, 200, 0, 0, 100, 0, 0, SecondsPerYear)
	assert.False(t, ok, "zero capacity declines")

	_, ok = CalculatePremium(200, 200, 0, 0, 0, 0, capacity, SecondsPerYear)
	assert.False(t, ok, "zero amount declines")
}

func TestConsecutiveAllocationsGetMoreExpensive(t *testing.T) {
	// Without surge and without target-price movement, the bump alone makes
	// back-to-back allocations progressively pricier.
	amount := capacity / 20

	first, ok := CalculatePremium(200, 200, 0, 0, amount, 0, capacity, SecondsPerYear)
	require.True(t, ok)

	second, ok := CalculatePremium(first.BumpedBasePrice, 200, 0, 0, amount, amount, capacity, SecondsPerYear)
	require.True(t, ok)

	assert.Greater(t, second.Premium, first.Premium)
}
