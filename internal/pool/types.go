package pool

import (
	"github.com/google/uuid"
)

// Time-bucketed accounting constants. A tranche is exactly BucketsPerTranche
// buckets, so every tranche boundary is also a bucket boundary.
const (
	BucketDuration  int64 = 7 * 86_400  // seconds
	TrancheDuration int64 = 91 * 86_400 // 13 buckets

	BucketsPerTranche = TrancheDuration / BucketDuration

	// Deposits may target the currently active tranche plus this many future
	// cohorts (~2.2 years of lock horizon).
	MaxActiveTranches int64 = 9

	// Rewards-share bonus for locking longer: a deposit locked for the
	// maximum horizon earns RewardBonusNumerator/RewardBonusDenominator
	// rewards shares per stake share; a deposit with no remaining lock
	// earns exactly one.
	RewardBonusNumerator   int64 = 125
	RewardBonusDenominator int64 = 100

	// Pool fee and product target weight are whole percentages.
	FeeDenominator    int64 = 100
	WeightDenominator int64 = 100

	// Cover reward ratio is in basis points of the premium.
	RewardRatioDenominator int64 = 10_000
)

// ManagerPositionID is the reserved position holding the manager's fee
// rewards. It is never minted to a depositor.
const ManagerPositionID int64 = 0

// BucketAt returns the bucket id containing the given unix timestamp.
func BucketAt(ts int64) int64 { return ts / BucketDuration }

// TrancheAt returns the tranche id containing the given unix timestamp.
func TrancheAt(ts int64) int64 { return ts / TrancheDuration }

// TrancheEnd returns the unix timestamp at which the tranche unlocks.
func TrancheEnd(trancheID int64) int64 { return (trancheID + 1) * TrancheDuration }

// Tranche aggregates the shares of every deposit locked into one 91-day
// cohort. Active while its id >= Pool.FirstActiveTrancheID.
type Tranche struct {
	StakeShares   int64 `json:"stake_shares"`
	RewardsShares int64 `json:"rewards_shares"`
}

// ExpiredTranche freezes the exchange rate at the instant a tranche stopped
// earning, so late withdrawals pay out correctly no matter how much later
// they arrive. StakeAtExpiry and ShareSupplyAtExpiry are the pool-wide
// values captured immediately before the tranche was folded out.
type ExpiredTranche struct {
	AccRewardsPerShareAtExpiry int64 `json:"acc_rewards_per_share_at_expiry"`
	StakeAtExpiry              int64 `json:"stake_at_expiry"`
	ShareSupplyAtExpiry        int64 `json:"share_supply_at_expiry"`
}

// Deposit is one position's stake inside one tranche.
type Deposit struct {
	StakeShares   int64 `json:"stake_shares"`
	RewardsShares int64 `json:"rewards_shares"`

	// Accumulator checkpoint: rewards owed since the checkpoint are
	// RewardsShares * (acc - LastAccRewardsPerShare) / AccScale.
	LastAccRewardsPerShare int64 `json:"last_acc_rewards_per_share"`

	// Rewards accrued before the last share-count change, not yet paid out.
	PendingRewards int64 `json:"pending_rewards"`
}

// Product tracks the underwriting capacity committed to one insurable
// product and the recorded state of its price curve.
type Product struct {
	AllocatedStake int64 `json:"allocated_stake"`

	// Cursor for lazily releasing expired allocations; advances like the
	// pool-wide bucket cursor but independently per product.
	LastBucketID int64 `json:"last_bucket_id"`

	// AllocationCuts[bucketID] is capacity to release back once that
	// bucket is reached.
	AllocationCuts map[int64]int64 `json:"allocation_cuts"`

	TargetWeight int64 `json:"target_weight"` // percent of pool capacity
	TargetPrice  int64 `json:"target_price"`  // basis points per year
	LastPrice    int64 `json:"last_price"`    // recorded base price
	LastPriceAt  int64 `json:"last_price_at"` // unix seconds
}

// Pool is the full accounting state of one staking pool. It is mutated only
// by the deterministic core, one operation at a time; there is no internal
// locking.
type Pool struct {
	ID           uint32    `json:"id"`
	Manager      uuid.UUID `json:"manager"`
	IsPrivate    bool      `json:"is_private"`
	PoolFee      int64     `json:"pool_fee"`      // percent of rewards
	MaxPoolFee   int64     `json:"max_pool_fee"`  // immutable cap
	MetadataHash string    `json:"metadata_hash"`

	ActiveStake         int64 `json:"active_stake"`
	StakeSharesSupply   int64 `json:"stake_shares_supply"`
	RewardsSharesSupply int64 `json:"rewards_shares_supply"`

	RewardPerSecond    int64 `json:"reward_per_second"`
	AccRewardsPerShare int64 `json:"acc_rewards_per_share"`
	LastAccUpdate      int64 `json:"last_acc_update"`

	FirstActiveBucketID  int64 `json:"first_active_bucket_id"`
	FirstActiveTrancheID int64 `json:"first_active_tranche_id"`

	Tranches        map[int64]*Tranche        `json:"tranches"`
	ExpiredTranches map[int64]*ExpiredTranche `json:"expired_tranches"`

	// RewardBuckets[bucketID] is the reward-per-second to shed once that
	// bucket is reached (an allocation's reward stream ends there).
	RewardBuckets map[int64]int64 `json:"reward_buckets"`

	Products map[uint32]*Product `json:"products"`

	// Deposits[positionID][trancheID].
	Deposits map[int64]map[int64]*Deposit `json:"deposits"`
}

// tranche returns the tranche record, creating it on first touch.
func (p *Pool) tranche(trancheID int64) *Tranche {
	t, ok := p.Tranches[trancheID]
	if !ok {
		t = &Tranche{}
		p.Tranches[trancheID] = t
	}
	return t
}

// deposit returns the deposit record for (position, tranche), creating it on
// first touch.
func (p *Pool) deposit(positionID, trancheID int64) *Deposit {
	byTranche, ok := p.Deposits[positionID]
	if !ok {
		byTranche = make(map[int64]*Deposit)
		p.Deposits[positionID] = byTranche
	}
	d, ok := byTranche[trancheID]
	if !ok {
		d = &Deposit{}
		byTranche[trancheID] = d
	}
	return d
}

// lookupDeposit returns the deposit record without creating it.
func (p *Pool) lookupDeposit(positionID, trancheID int64) *Deposit {
	if byTranche, ok := p.Deposits[positionID]; ok {
		return byTranche[trancheID]
	}
	return nil
}
