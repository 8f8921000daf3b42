package pool

import (
	fpmath "CoverPool/internal/fpmath"
)

// Advance catches the pool's accounting up to now. Every state-changing
// operation calls this first, so the pool never needs a background ticker:
// a pool untouched for months settles all crossed bucket and tranche
// boundaries in one pass the next time anything happens.
//
// Walking bucket by bucket (instead of jumping straight to now) matters
// because the reward rate and the rewards-share supply change at boundaries;
// each inter-boundary span must accrue at the rate that was live during it.
func (p *Pool) Advance(now int64) {
	if p.LastAccUpdate == 0 {
		// First activity: anchor the cursors, nothing to accrue.
		p.LastAccUpdate = now
		p.FirstActiveBucketID = BucketAt(now)
		p.FirstActiveTrancheID = TrancheAt(now)
		return
	}

	currentBucket := BucketAt(now)
	for p.FirstActiveBucketID < currentBucket {
		next := p.FirstActiveBucketID + 1
		p.accrue(next * BucketDuration)

		// Reward streams ending at this boundary stop paying.
		if cut, ok := p.RewardBuckets[next]; ok {
			p.RewardPerSecond -= cut
			delete(p.RewardBuckets, next)
		}
		p.FirstActiveBucketID = next

		if next%BucketsPerTranche == 0 {
			expiring := next/BucketsPerTranche - 1
			if expiring >= p.FirstActiveTrancheID {
				p.expireTranche(expiring)
			}
			p.FirstActiveTrancheID = next / BucketsPerTranche
		}
	}

	p.accrue(now)
}

// accrue extends the rewards-per-share accumulator to the given timestamp at
// the current rate. With no rewards shares outstanding the elapsed rewards
// have no one to go to and are dropped; the cursor still advances.
func (p *Pool) accrue(to int64) {
	elapsed := to - p.LastAccUpdate
	if elapsed <= 0 {
		return
	}
	if p.RewardsSharesSupply > 0 && p.RewardPerSecond > 0 {
		p.AccRewardsPerShare += fpmath.MulDiv3(
			elapsed, p.RewardPerSecond, fpmath.AccScale, p.RewardsSharesSupply)
	}
	p.LastAccUpdate = to
}

// expireTranche folds a tranche out of the active pool. The exchange rate is
// snapshotted before the fold so withdrawals from the expired tranche pay
// exactly what the tranche was worth at its boundary, however late they come.
func (p *Pool) expireTranche(trancheID int64) {
	t := p.Tranches[trancheID]
	if t == nil {
		// Nothing was ever deposited into this cohort.
		p.ExpiredTranches[trancheID] = &ExpiredTranche{
			AccRewardsPerShareAtExpiry: p.AccRewardsPerShare,
		}
		return
	}

	var trancheStake int64
	if p.StakeSharesSupply > 0 {
		trancheStake = fpmath.MulDiv(p.ActiveStake, t.StakeShares, p.StakeSharesSupply)
	}

	p.ExpiredTranches[trancheID] = &ExpiredTranche{
		AccRewardsPerShareAtExpiry: p.AccRewardsPerShare,
		StakeAtExpiry:              p.ActiveStake,
		ShareSupplyAtExpiry:        p.StakeSharesSupply,
	}

	p.ActiveStake -= trancheStake
	p.StakeSharesSupply -= t.StakeShares
	p.RewardsSharesSupply -= t.RewardsShares
	delete(p.Tranches, trancheID)
}

// advanceProduct releases the capacity of allocations whose cover (plus
// grace) has ended. Cuts are keyed by bucket, so a single map sweep settles
// any amount of dormancy.
func (p *Pool) advanceProduct(prod *Product, now int64) {
	current := BucketAt(now)
	for b, cut := range prod.AllocationCuts {
		if b <= current {
			prod.AllocatedStake -= fpmath.Min(cut, prod.AllocatedStake)
			delete(prod.AllocationCuts, b)
		}
	}
	if current > prod.LastBucketID {
		prod.LastBucketID = current
	}
}
