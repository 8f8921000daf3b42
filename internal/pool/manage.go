package pool

import (
	"fmt"

	"github.com/google/uuid"

	fpmath "CoverPool/internal/fpmath"
)

// New creates a pool with its cursors anchored at now. MaxPoolFee is fixed
// for the pool's lifetime; the current fee can move anywhere under it.
func New(id uint32, manager uuid.UUID, isPrivate bool, initialFee, maxFee int64, metadataHash string, now int64) (*Pool, error) {
	if maxFee < 0 || maxFee >= FeeDenominator {
		return nil, ErrMaxFeeOutOfRange
	}
	if initialFee < 0 || initialFee > maxFee {
		return nil, ErrFeeExceedsMax
	}

	return &Pool{
		ID:           id,
		Manager:      manager,
		IsPrivate:    isPrivate,
		PoolFee:      initialFee,
		MaxPoolFee:   maxFee,
		MetadataHash: metadataHash,

		LastAccUpdate:        now,
		FirstActiveBucketID:  BucketAt(now),
		FirstActiveTrancheID: TrancheAt(now),

		Tranches:        make(map[int64]*Tranche),
		ExpiredTranches: make(map[int64]*ExpiredTranche),
		RewardBuckets:   make(map[int64]int64),
		Products:        make(map[uint32]*Product),
		Deposits:        make(map[int64]map[int64]*Deposit),
	}, nil
}

// SetPoolFee changes the manager's cut of future rewards and rescales the
// already-minted fee shares to match, so the manager's claim on rewards
// accrued so far is unchanged: accrued rewards are banked at the old fee
// before the share counts move.
func (p *Pool) SetPoolFee(now, newFee int64) error {
	if newFee < 0 || newFee > p.MaxPoolFee {
		return ErrFeeExceedsMax
	}

	p.Advance(now)

	oldFee := p.PoolFee
	p.PoolFee = newFee
	if oldFee == 0 || newFee == oldFee {
		return nil
	}

	for trancheID, d := range p.Deposits[ManagerPositionID] {
		if trancheID < p.FirstActiveTrancheID || d.RewardsShares == 0 {
			continue
		}

		p.checkpoint(d, p.AccRewardsPerShare)

		rescaled := fpmath.MulDiv(d.RewardsShares, newFee, oldFee)
		delta := rescaled - d.RewardsShares
		d.RewardsShares = rescaled

		p.tranche(trancheID).RewardsShares += delta
		p.RewardsSharesSupply += delta
	}

	return nil
}

// SetPoolPrivacy toggles whether non-manager deposits are accepted.
func (p *Pool) SetPoolPrivacy(now int64, isPrivate bool) {
	p.Advance(now)
	p.IsPrivate = isPrivate
}

// SetProduct configures (or reconfigures) an insurable product. A new
// product's price curve starts at its target price.
func (p *Pool) SetProduct(now int64, productID uint32, targetWeight, targetPrice int64) error {
	if targetWeight < 0 || targetWeight > WeightDenominator {
		return ErrInvalidWeight
	}

	p.Advance(now)

	prod, ok := p.Products[productID]
	if !ok {
		prod = &Product{
			AllocationCuts: make(map[int64]int64),
			LastBucketID:   BucketAt(now),
			LastPrice:      targetPrice,
			LastPriceAt:    now,
		}
		p.Products[productID] = prod
	} else {
		p.advanceProduct(prod, now)
	}

	prod.TargetWeight = targetWeight
	prod.TargetPrice = targetPrice

	return nil
}

// CheckInvariants verifies the share-conservation identities. The core runs
// it after every mutation; a failure means the engine must halt rather than
// persist a corrupt state.
func (p *Pool) CheckInvariants() error {
	if p.ActiveStake < 0 || p.StakeSharesSupply < 0 || p.RewardsSharesSupply < 0 {
		return fmt.Errorf("pool %d: negative aggregate (stake=%d stakeShares=%d rewardsShares=%d)",
			p.ID, p.ActiveStake, p.StakeSharesSupply, p.RewardsSharesSupply)
	}
	if p.RewardPerSecond < 0 {
		return fmt.Errorf("pool %d: negative reward rate %d", p.ID, p.RewardPerSecond)
	}

	var stakeShares, rewardsShares int64
	for trancheID, t := range p.Tranches {
		if trancheID < p.FirstActiveTrancheID {
			return fmt.Errorf("pool %d: expired tranche %d still active", p.ID, trancheID)
		}
		stakeShares += t.StakeShares
		rewardsShares += t.RewardsShares
	}
	if stakeShares != p.StakeSharesSupply {
		return fmt.Errorf("pool %d: tranche stake shares %d != supply %d",
			p.ID, stakeShares, p.StakeSharesSupply)
	}
	if rewardsShares != p.RewardsSharesSupply {
		return fmt.Errorf("pool %d: tranche rewards shares %d != supply %d",
			p.ID, rewardsShares, p.RewardsSharesSupply)
	}

	return nil
}
