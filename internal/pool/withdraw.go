package pool

import (
	fpmath "CoverPool/internal/fpmath"
)

// TrancheWithdrawal is the per-tranche breakdown of one withdrawal.
type TrancheWithdrawal struct {
	TrancheID int64 `json:"tranche_id"`
	Stake     int64 `json:"stake"`
	Rewards   int64 `json:"rewards"`
}

// WithdrawalResult sums a withdrawal across the requested tranches. Stake
// and rewards are paid out as a single total; the per-tranche entries exist
// for the event log.
type WithdrawalResult struct {
	PositionID   int64               `json:"position_id"`
	Tranches     []TrancheWithdrawal `json:"tranches"`
	TotalStake   int64               `json:"total_stake"`
	TotalRewards int64               `json:"total_rewards"`
}

// Withdraw pays out stake and/or rewards from the given tranches of one
// position. Stake only leaves expired tranches; requesting it from a tranche
// still locked simply yields zero for that tranche. Rewards can always be
// claimed, valued at the live accumulator for active tranches and at the
// expiry snapshot for expired ones.
//
// Re-running the same withdrawal is harmless: emptied fields stay empty and
// the second pass pays zero.
func (p *Pool) Withdraw(now, positionID int64, withdrawStake, withdrawRewards bool, trancheIDs []int64) (WithdrawalResult, error) {
	p.Advance(now)

	res := WithdrawalResult{
		PositionID: positionID,
		Tranches:   make([]TrancheWithdrawal, 0, len(trancheIDs)),
	}

	for _, trancheID := range trancheIDs {
		entry := TrancheWithdrawal{TrancheID: trancheID}

		d := p.lookupDeposit(positionID, trancheID)
		if d == nil {
			res.Tranches = append(res.Tranches, entry)
			continue
		}

		expired := trancheID < p.FirstActiveTrancheID
		snap := p.ExpiredTranches[trancheID]

		if withdrawStake && expired && d.StakeShares > 0 {
			if snap != nil && snap.ShareSupplyAtExpiry > 0 {
				entry.Stake = fpmath.MulDiv(snap.StakeAtExpiry, d.StakeShares, snap.ShareSupplyAtExpiry)
			}
			d.StakeShares = 0
		}

		if withdrawRewards {
			// Expired tranches stopped earning at their boundary; the
			// snapshot accumulator caps what this deposit can claim.
			rate := p.AccRewardsPerShare
			if expired && snap != nil {
				rate = snap.AccRewardsPerShareAtExpiry
			}
			p.checkpoint(d, rate)
			entry.Rewards = d.PendingRewards
			d.PendingRewards = 0
		}

		res.Tranches = append(res.Tranches, entry)
		res.TotalStake += entry.Stake
		res.TotalRewards += entry.Rewards
	}

	return res, nil
}
