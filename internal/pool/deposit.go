package pool

import (
	fpmath "CoverPool/internal/fpmath"
)

// MaxLockDuration is the longest possible remaining lock: a deposit made the
// instant a tranche window opens, into the furthest allowed tranche.
const MaxLockDuration = (MaxActiveTranches + 1) * TrancheDuration

// DepositResult reports the shares minted by one deposit.
type DepositResult struct {
	PositionID       int64 `json:"position_id"`
	TrancheID        int64 `json:"tranche_id"`
	Amount           int64 `json:"amount"`
	StakeShares      int64 `json:"stake_shares"`
	RewardsShares    int64 `json:"rewards_shares"`
	FeeRewardsShares int64 `json:"fee_rewards_shares"`
}

// ValidateDeposit checks a deposit's preconditions without mutating share
// state, so callers can mint a position id only for deposits that will land.
// It still advances the clock: tranche bounds only make sense against the
// caught-up cursor.
func (p *Pool) ValidateDeposit(now, amount, trancheID int64) error {
	p.Advance(now)
	if amount <= 0 {
		return ErrZeroAmount
	}
	return p.checkTrancheRange(trancheID)
}

func (p *Pool) checkTrancheRange(trancheID int64) error {
	if trancheID < p.FirstActiveTrancheID || trancheID > p.FirstActiveTrancheID+MaxActiveTranches {
		return ErrInvalidTranche
	}
	return nil
}

// DepositTo stakes amount into the given tranche under positionID. The first
// deposit into an empty pool bootstraps the exchange rate at sqrt(amount);
// after that stake shares are minted pro rata against active stake.
//
// Rewards shares carry a lock-duration bonus, and the pool fee mints extra
// rewards shares to the reserved manager position in the same tranche.
func (p *Pool) DepositTo(now, amount, trancheID, positionID int64) (DepositResult, error) {
	p.Advance(now)

	if amount <= 0 {
		return DepositResult{}, ErrZeroAmount
	}
	if err := p.checkTrancheRange(trancheID); err != nil {
		return DepositResult{}, err
	}

	var newStakeShares int64
	if p.StakeSharesSupply == 0 {
		newStakeShares = fpmath.Sqrt(amount)
	} else {
		newStakeShares = fpmath.MulDiv(amount, p.StakeSharesSupply, p.ActiveStake)
	}
	newRewardsShares := rewardsSharesForLock(newStakeShares, trancheID, now)

	d := p.deposit(positionID, trancheID)
	p.checkpoint(d, p.AccRewardsPerShare)
	d.StakeShares += newStakeShares
	d.RewardsShares += newRewardsShares

	var feeShares int64
	if p.PoolFee > 0 {
		feeShares = fpmath.MulDiv(newRewardsShares, p.PoolFee, FeeDenominator)
		if feeShares > 0 {
			f := p.deposit(ManagerPositionID, trancheID)
			p.checkpoint(f, p.AccRewardsPerShare)
			f.RewardsShares += feeShares
		}
	}

	t := p.tranche(trancheID)
	t.StakeShares += newStakeShares
	t.RewardsShares += newRewardsShares + feeShares

	p.ActiveStake += amount
	p.StakeSharesSupply += newStakeShares
	p.RewardsSharesSupply += newRewardsShares + feeShares

	return DepositResult{
		PositionID:       positionID,
		TrancheID:        trancheID,
		Amount:           amount,
		StakeShares:      newStakeShares,
		RewardsShares:    newRewardsShares,
		FeeRewardsShares: feeShares,
	}, nil
}

// checkpoint banks a deposit's accrued rewards into PendingRewards and moves
// its accumulator mark. Must run before any change to the deposit's rewards
// shares, otherwise the new shares would retroactively earn (or the old ones
// retroactively lose) the already-elapsed stretch.
func (p *Pool) checkpoint(d *Deposit, acc int64) {
	if d.RewardsShares > 0 && acc > d.LastAccRewardsPerShare {
		d.PendingRewards += fpmath.MulDiv(
			d.RewardsShares, acc-d.LastAccRewardsPerShare, fpmath.AccScale)
	}
	d.LastAccRewardsPerShare = acc
}

// rewardsSharesForLock scales stake shares by the lock bonus: one rewards
// share per stake share with no remaining lock, rising linearly to
// RewardBonusNumerator/RewardBonusDenominator at the maximum horizon.
func rewardsSharesForLock(stakeShares, trancheID, now int64) int64 {
	remaining := TrancheEnd(trancheID) - now
	if remaining < 0 {
		remaining = 0
	}
	bonus := fpmath.MulDiv(RewardBonusNumerator-RewardBonusDenominator, remaining, MaxLockDuration)
	return fpmath.MulDiv(stakeShares, RewardBonusDenominator+bonus, RewardBonusDenominator)
}
