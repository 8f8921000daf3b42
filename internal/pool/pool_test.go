package pool_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoverPool/internal/pool"
)

// All tests anchor time at the start of tranche 200, which is also the start
// of bucket 2600, so share math comes out in round numbers.
const (
	baseTime    = 200 * pool.TrancheDuration
	baseTranche = int64(200)

	oneMillion = int64(1_000_000_000_000) // 1M tokens at 1e6 scale
)

func newTestPool(t *testing.T, fee, maxFee int64) *pool.Pool {
	t.Helper()
	p, err := pool.New(1, uuid.New(), false, fee, maxFee, "ipfs://meta", baseTime)
	require.NoError(t, err)
	return p
}

func TestNew_Validation(t *testing.T) {
	manager := uuid.New()

	_, err := pool.New(1, manager, false, 0, 100, "", baseTime)
	assert.ErrorIs(t, err, pool.ErrMaxFeeOutOfRange, "max fee must stay under 100%")

	_, err = pool.New(1, manager, false, 30, 20, "", baseTime)
	assert.ErrorIs(t, err, pool.ErrFeeExceedsMax)

	p, err := pool.New(1, manager, true, 10, 20, "", baseTime)
	require.NoError(t, err)
	assert.True(t, p.IsPrivate)
	assert.Equal(t, baseTranche, p.FirstActiveTrancheID)
	assert.Equal(t, baseTime/pool.BucketDuration, p.FirstActiveBucketID)
}

func TestDepositTo_Bootstrap(t *testing.T) {
	p := newTestPool(t, 0, 20)

	res, err := p.DepositTo(baseTime, oneMillion, baseTranche, 1)
	require.NoError(t, err)

	// First deposit: sqrt(1e12) stake shares.
	assert.Equal(t, int64(1_000_000), res.StakeShares)

	// One tranche of remaining lock out of a ten-tranche horizon: 2% bonus.
	assert.Equal(t, int64(1_020_000), res.RewardsShares)
	assert.Zero(t, res.FeeRewardsShares)

	assert.Equal(t, oneMillion, p.ActiveStake)
	assert.Equal(t, int64(1_000_000), p.StakeSharesSupply)
	assert.Equal(t, int64(1_020_000), p.RewardsSharesSupply)
	require.NoError(t, p.CheckInvariants())
}

func TestDepositTo_ProRata(t *testing.T) {
	p := newTestPool(t, 0, 20)

	_, err := p.DepositTo(baseTime, oneMillion, baseTranche, 1)
	require.NoError(t, err)

	// Half the stake buys half the shares while the exchange rate is flat.
	res, err := p.DepositTo(baseTime, oneMillion/2, baseTranche, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(500_000), res.StakeShares)

	require.NoError(t, p.CheckInvariants())
}

func TestDepositTo_EqualDepositsEqualShares(t *testing.T) {
	p := newTestPool(t, 10, 20)

	first, err := p.DepositTo(baseTime, oneMillion, baseTranche, 1)
	require.NoError(t, err)

	second, err := p.DepositTo(baseTime, oneMillion, baseTranche, 2)
	require.NoError(t, err)

	// Same amount, instant and tranche: identical entitlement, whether the
	// shares came from the bootstrap or the pro-rata path.
	assert.Equal(t, first.StakeShares, second.StakeShares)
	assert.Equal(t, first.RewardsShares, second.RewardsShares)
	assert.Equal(t, first.FeeRewardsShares, second.FeeRewardsShares)

	require.NoError(t, p.CheckInvariants())
}

func TestDepositTo_LockBonus(t *testing.T) {
	p := newTestPool(t, 0, 20)

	short, err := p.DepositTo(baseTime, oneMillion, baseTranche, 1)
	require.NoError(t, err)

	long, err := p.DepositTo(baseTime, oneMillion, baseTranche+pool.MaxActiveTranches, 2)
	require.NoError(t, err)

	// Maximum lock earns the full 125/100 multiplier.
	assert.Equal(t, long.StakeShares*125/100, long.RewardsShares)
	assert.Greater(t, long.RewardsShares, short.RewardsShares)
}

func TestDepositTo_FeeShares(t *testing.T) {
	p := newTestPool(t, 10, 20)

	res, err := p.DepositTo(baseTime, oneMillion, baseTranche, 1)
	require.NoError(t, err)

	assert.Equal(t, int64(102_000), res.FeeRewardsShares)

	feeDeposit := p.Deposits[pool.ManagerPositionID][baseTranche]
	require.NotNil(t, feeDeposit)
	assert.Equal(t, int64(102_000), feeDeposit.RewardsShares)
	assert.Zero(t, feeDeposit.StakeShares, "fee shares carry no stake claim")

	assert.Equal(t, int64(1_122_000), p.RewardsSharesSupply)
	require.NoError(t, p.CheckInvariants())
}

func TestDepositTo_Validation(t *testing.T) {
	p := newTestPool(t, 0, 20)

	_, err := p.DepositTo(baseTime, 0, baseTranche, 1)
	assert.ErrorIs(t, err, pool.ErrZeroAmount)

	_, err = p.DepositTo(baseTime, oneMillion, baseTranche-1, 1)
	assert.ErrorIs(t, err, pool.ErrInvalidTranche, "expired tranche")

	_, err = p.DepositTo(baseTime, oneMillion, baseTranche+pool.MaxActiveTranches+1, 1)
	assert.ErrorIs(t, err, pool.ErrInvalidTranche, "beyond deposit horizon")

	assert.NoError(t, p.ValidateDeposit(baseTime, oneMillion, baseTranche))
	assert.ErrorIs(t, p.ValidateDeposit(baseTime, -5, baseTranche), pool.ErrZeroAmount)
}

func TestAdvance_TrancheExpiry(t *testing.T) {
	p := newTestPool(t, 0, 20)

	_, err := p.DepositTo(baseTime, oneMillion, baseTranche, 1)
	require.NoError(t, err)

	p.Advance(baseTime + pool.TrancheDuration)

	assert.Equal(t, baseTranche+1, p.FirstActiveTrancheID)
	assert.Zero(t, p.ActiveStake)
	assert.Zero(t, p.StakeSharesSupply)
	assert.Zero(t, p.RewardsSharesSupply)

	snap := p.ExpiredTranches[baseTranche]
	require.NotNil(t, snap)
	assert.Equal(t, oneMillion, snap.StakeAtExpiry)
	assert.Equal(t, int64(1_000_000), snap.ShareSupplyAtExpiry)

	require.NoError(t, p.CheckInvariants())
}

func TestWithdraw_ExpiredStake(t *testing.T) {
	p := newTestPool(t, 0, 20)

	_, err := p.DepositTo(baseTime, oneMillion, baseTranche, 1)
	require.NoError(t, err)

	later := baseTime + pool.TrancheDuration + 100
	res, err := p.Withdraw(later, 1, true, true, []int64{baseTranche})
	require.NoError(t, err)
	assert.Equal(t, oneMillion, res.TotalStake)

	// Re-running the same withdrawal pays nothing more.
	res, err = p.Withdraw(later+50, 1, true, true, []int64{baseTranche})
	require.NoError(t, err)
	assert.Zero(t, res.TotalStake)
	assert.Zero(t, res.TotalRewards)
}

func TestWithdraw_ActiveStakeStaysLocked(t *testing.T) {
	p := newTestPool(t, 0, 20)

	_, err := p.DepositTo(baseTime, oneMillion, baseTranche, 1)
	require.NoError(t, err)

	res, err := p.Withdraw(baseTime+100, 1, true, false, []int64{baseTranche})
	require.NoError(t, err)
	assert.Zero(t, res.TotalStake)

	// The deposit's shares survive untouched.
	d := p.Deposits[1][baseTranche]
	assert.Equal(t, int64(1_000_000), d.StakeShares)
}

func TestWithdraw_UnknownTranche(t *testing.T) {
	p := newTestPool(t, 0, 20)

	res, err := p.Withdraw(baseTime, 42, true, true, []int64{baseTranche})
	require.NoError(t, err)
	assert.Zero(t, res.TotalStake)
	assert.Len(t, res.Tranches, 1)
}

func TestWithdraw_RewardsAccrual(t *testing.T) {
	p := newTestPool(t, 0, 20)

	_, err := p.DepositTo(baseTime, oneMillion, baseTranche, 1)
	require.NoError(t, err)

	// A stream paying 1 token/second until the tranche boundary.
	endBucket := (baseTime + pool.TrancheDuration) / pool.BucketDuration
	p.RewardPerSecond = 1_000_000
	p.RewardBuckets[endBucket] = 1_000_000

	day := int64(86_400)
	res, err := p.Withdraw(baseTime+day, 1, false, true, []int64{baseTranche})
	require.NoError(t, err)

	// Sole rewards-share holder collects the whole day's stream, modulo
	// accumulator truncation.
	assert.InDelta(t, float64(day*1_000_000), float64(res.TotalRewards), 2)
}

func TestWithdraw_RewardsSharesSurvive(t *testing.T) {
	p := newTestPool(t, 0, 20)

	_, err := p.DepositTo(baseTime, oneMillion, baseTranche, 1)
	require.NoError(t, err)

	endBucket := (baseTime + pool.TrancheDuration) / pool.BucketDuration
	p.RewardPerSecond = 1_020_000 // exact per-share rate, no truncation
	p.RewardBuckets[endBucket] = 1_020_000

	first, err := p.Withdraw(baseTime+1000, 1, false, true, []int64{baseTranche})
	require.NoError(t, err)
	assert.Equal(t, int64(1000*1_020_000), first.TotalRewards)

	// Claiming rewards does not burn rewards shares; the stream keeps paying.
	second, err := p.Withdraw(baseTime+2000, 1, false, true, []int64{baseTranche})
	require.NoError(t, err)
	assert.Equal(t, int64(1000*1_020_000), second.TotalRewards)
}

func TestWithdraw_ExpiredRewardsCappedAtSnapshot(t *testing.T) {
	p := newTestPool(t, 0, 20)

	_, err := p.DepositTo(baseTime, oneMillion, baseTranche, 1)
	require.NoError(t, err)

	// Stream far past the tranche boundary.
	p.RewardPerSecond = 1_020_000
	p.RewardBuckets[(baseTime+10*pool.TrancheDuration)/pool.BucketDuration] = 1_020_000

	boundary := baseTime + pool.TrancheDuration
	res, err := p.Withdraw(boundary+5*86_400, 1, false, true, []int64{baseTranche})
	require.NoError(t, err)

	// Earnings stop at the boundary; the five extra days pay nothing.
	assert.Equal(t, pool.TrancheDuration*1_020_000, res.TotalRewards)

	res, err = p.Withdraw(boundary+10*86_400, 1, false, true, []int64{baseTranche})
	require.NoError(t, err)
	assert.Zero(t, res.TotalRewards)
}

func TestAdvance_JumpMatchesIncremental(t *testing.T) {
	build := func() *pool.Pool {
		p := newTestPool(t, 0, 20)
		_, err := p.DepositTo(baseTime, oneMillion, baseTranche, 1)
		require.NoError(t, err)
		p.RewardPerSecond = 1_020_000
		p.RewardBuckets[(baseTime+pool.TrancheDuration)/pool.BucketDuration] = 1_020_000
		return p
	}

	end := baseTime + pool.TrancheDuration + pool.BucketDuration/2

	jumped := build()
	jumped.Advance(end)

	stepped := build()
	stepped.Advance(baseTime + 86_400)
	stepped.Advance(baseTime + 40*86_400)
	stepped.Advance(baseTime + pool.TrancheDuration)
	stepped.Advance(end)

	assert.Equal(t, jumped.AccRewardsPerShare, stepped.AccRewardsPerShare)
	assert.Equal(t, jumped.ActiveStake, stepped.ActiveStake)
	assert.Equal(t, jumped.FirstActiveBucketID, stepped.FirstActiveBucketID)
	assert.Equal(t, jumped.FirstActiveTrancheID, stepped.FirstActiveTrancheID)
	assert.Equal(t, jumped.RewardPerSecond, stepped.RewardPerSecond)
	assert.Equal(t, jumped.ExpiredTranches[baseTranche], stepped.ExpiredTranches[baseTranche])
}

func TestAdvance_ZeroSupplyDropsRewards(t *testing.T) {
	p := newTestPool(t, 0, 20)
	p.RewardPerSecond = 1_000_000

	p.Advance(baseTime + 86_400)

	assert.Zero(t, p.AccRewardsPerShare)
	assert.Equal(t, baseTime+86_400, p.LastAccUpdate)
}

func setupAllocatablePool(t *testing.T) *pool.Pool {
	t.Helper()
	p := newTestPool(t, 0, 20)
	_, err := p.DepositTo(baseTime, oneMillion, baseTranche, 1)
	require.NoError(t, err)
	require.NoError(t, p.SetProduct(baseTime, 7, 100, 200))
	return p
}

func TestAllocateStake_FullFlow(t *testing.T) {
	p := setupAllocatablePool(t)

	const (
		period = 30 * 86_400
		grace  = 30 * 86_400
	)

	res, err := p.AllocateStake(baseTime, 7, oneMillion*40/100, period, grace, 5_000)
	require.NoError(t, err)

	assert.Equal(t, oneMillion*40/100, res.Amount)
	assert.Equal(t, int64(200), res.Price, "40% utilization stays under surge")

	// 2% yearly price on 400k tokens for 30 days.
	assert.Equal(t, int64(657_534_246), res.Premium)

	// Half the premium streams to stakers until the bucket boundary after
	// cover end: 657534246/2 over 3024000 seconds, rate truncated.
	assert.Equal(t, int64(108), res.RewardPerSecond)
	assert.Equal(t, int64(326_592_000), res.RewardsMinted)
	assert.Equal(t, int64(1_575_504_000), res.StreamEndsAt)
	assert.Equal(t, int64(1_577_923_200), res.CapacityReleaseAt)

	// The bump moves the recorded base price, surge-free.
	assert.Equal(t, int64(1_000), p.Products[7].LastPrice)

	// The sole staker collects the whole stream by its end.
	claimed, err := p.Withdraw(res.StreamEndsAt, 1, false, true, []int64{baseTranche})
	require.NoError(t, err)
	assert.InDelta(t, float64(res.RewardsMinted), float64(claimed.TotalRewards), 2)

	// Nothing accrues past the stream end.
	claimed, err = p.Withdraw(res.StreamEndsAt+86_400, 1, false, true, []int64{baseTranche})
	require.NoError(t, err)
	assert.Zero(t, claimed.TotalRewards)

	require.NoError(t, p.CheckInvariants())
}

func TestAccRewardsPerShareNeverDecreases(t *testing.T) {
	p := setupAllocatablePool(t)

	last := p.AccRewardsPerShare
	step := func(label string) {
		t.Helper()
		require.GreaterOrEqual(t, p.AccRewardsPerShare, last, label)
		last = p.AccRewardsPerShare
	}

	_, err := p.AllocateStake(baseTime, 7, oneMillion*40/100, 30*86_400, 30*86_400, 5_000)
	require.NoError(t, err)
	step("allocation")

	_, err = p.DepositTo(baseTime+pool.BucketDuration, oneMillion, baseTranche+1, 2)
	require.NoError(t, err)
	step("deposit across a bucket boundary")

	_, err = p.Withdraw(baseTime+2*pool.BucketDuration, 1, false, true, []int64{baseTranche})
	require.NoError(t, err)
	step("rewards claim")

	p.Advance(pool.TrancheEnd(baseTranche) + pool.BucketDuration)
	step("advance across the tranche expiry")

	p.Advance(pool.TrancheEnd(baseTranche+1) + pool.TrancheDuration)
	step("advance past the stream end")

	assert.Positive(t, p.AccRewardsPerShare, "the stream accrued something")
}

func TestAllocateStake_ClipsToCapacity(t *testing.T) {
	p := setupAllocatablePool(t)

	res, err := p.AllocateStake(baseTime, 7, 2*oneMillion, 30*86_400, 30*86_400, 5_000)
	require.NoError(t, err)
	assert.Equal(t, oneMillion, res.Amount, "request clipped to free capacity")
	assert.Equal(t, oneMillion, p.Products[7].AllocatedStake)

	// Pool is full: the next request gets zero, which is not an error.
	res, err = p.AllocateStake(baseTime+100, 7, oneMillion, 30*86_400, 30*86_400, 5_000)
	require.NoError(t, err)
	assert.Zero(t, res.Amount)
}

func TestAllocateStake_ExcludesUnlockingTranches(t *testing.T) {
	p := setupAllocatablePool(t)

	// Cover plus grace outlives the only staked tranche: no capacity.
	res, err := p.AllocateStake(baseTime, 7, oneMillion, 60*86_400, 32*86_400, 5_000)
	require.NoError(t, err)
	assert.Zero(t, res.Amount)
}

func TestAllocateStake_CapacityReleasedAfterExpiry(t *testing.T) {
	p := setupAllocatablePool(t)

	first, err := p.AllocateStake(baseTime, 7, oneMillion*40/100, 30*86_400, 30*86_400, 5_000)
	require.NoError(t, err)
	require.Equal(t, oneMillion*40/100, first.Amount)

	// At the release boundary the cut has fired; the full weight is free
	// again for a cover fitting in the tranche's remaining lock.
	res, err := p.AllocateStake(first.CapacityReleaseAt, 7, oneMillion, 14*86_400, 14*86_400, 5_000)
	require.NoError(t, err)
	assert.Equal(t, oneMillion, res.Amount)
}

func TestAllocateStake_Validation(t *testing.T) {
	p := setupAllocatablePool(t)

	_, err := p.AllocateStake(baseTime, 99, oneMillion, 86_400, 0, 5_000)
	assert.ErrorIs(t, err, pool.ErrUnknownProduct)

	_, err = p.AllocateStake(baseTime, 7, 0, 86_400, 0, 5_000)
	assert.ErrorIs(t, err, pool.ErrZeroAmount)

	_, err = p.AllocateStake(baseTime, 7, oneMillion, 0, 0, 5_000)
	assert.ErrorIs(t, err, pool.ErrInvalidPeriod)
}

func TestDeallocateStake(t *testing.T) {
	p := setupAllocatablePool(t)

	res, err := p.AllocateStake(baseTime, 7, oneMillion*40/100, 30*86_400, 30*86_400, 5_000)
	require.NoError(t, err)

	err = p.DeallocateStake(baseTime+86_400, 7, res.Amount, res.CapacityReleaseAt)
	require.NoError(t, err)
	assert.Zero(t, p.Products[7].AllocatedStake)

	// The scheduled cut was consumed; crossing the release boundary must not
	// drive the allocation negative.
	p2, err := p.AllocateStake(res.CapacityReleaseAt, 7, oneMillion, 14*86_400, 14*86_400, 5_000)
	require.NoError(t, err)
	assert.Equal(t, oneMillion, p2.Amount)
}

func TestSetPoolFee_Rebalance(t *testing.T) {
	p := newTestPool(t, 20, 20)

	_, err := p.DepositTo(baseTime, oneMillion, baseTranche, 1)
	require.NoError(t, err)

	endBucket := (baseTime + pool.TrancheDuration) / pool.BucketDuration
	p.RewardPerSecond = 1_000_000
	p.RewardBuckets[endBucket] = 1_000_000

	day := int64(86_400)
	require.NoError(t, p.SetPoolFee(baseTime+day, 10))

	feeDeposit := p.Deposits[pool.ManagerPositionID][baseTranche]
	require.NotNil(t, feeDeposit)

	// Halving the fee halves the manager's shares going forward...
	assert.Equal(t, int64(102_000), feeDeposit.RewardsShares)

	// ...but the first day's cut was banked at the old fee: 204000 of
	// 1224000 shares over one day of 1 token/second.
	assert.InDelta(t, float64(14_400_000_000), float64(feeDeposit.PendingRewards), 2)

	require.NoError(t, p.CheckInvariants())
}

func TestSetPoolFee_AboveMax(t *testing.T) {
	p := newTestPool(t, 10, 20)
	assert.ErrorIs(t, p.SetPoolFee(baseTime, 25), pool.ErrFeeExceedsMax)
}

func TestSetPoolPrivacy(t *testing.T) {
	p := newTestPool(t, 0, 20)
	p.SetPoolPrivacy(baseTime+10, true)
	assert.True(t, p.IsPrivate)
	p.SetPoolPrivacy(baseTime+20, false)
	assert.False(t, p.IsPrivate)
}

func TestSetProduct_Validation(t *testing.T) {
	p := newTestPool(t, 0, 20)

	assert.ErrorIs(t, p.SetProduct(baseTime, 1, 101, 200), pool.ErrInvalidWeight)
	require.NoError(t, p.SetProduct(baseTime, 1, 50, 200))

	prod := p.Products[1]
	require.NotNil(t, prod)
	assert.Equal(t, int64(200), prod.LastPrice, "new product starts at target")

	// Reconfiguring keeps the recorded price curve state.
	prod.LastPrice = 500
	require.NoError(t, p.SetProduct(baseTime+100, 1, 60, 300))
	assert.Equal(t, int64(500), p.Products[1].LastPrice)
	assert.Equal(t, int64(60), p.Products[1].TargetWeight)
}
