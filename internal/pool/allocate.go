package pool

import (
	fpmath "CoverPool/internal/fpmath"
	"CoverPool/internal/pricing"
)

// AllocationResult reports the outcome of one capacity allocation. A zero
// Amount is a valid outcome: the pool had no free capacity for the product,
// which is a policy decision, not a fault.
type AllocationResult struct {
	ProductID uint32 `json:"product_id"`
	Amount    int64  `json:"amount"`
	Premium   int64  `json:"premium"`
	Price     int64  `json:"price"`

	// Rewards minted to stakers for carrying this cover, streamed at
	// RewardPerSecond until StreamEndsAt (a bucket boundary).
	RewardsMinted   int64 `json:"rewards_minted"`
	RewardPerSecond int64 `json:"reward_per_second"`
	StreamEndsAt    int64 `json:"stream_ends_at"`

	// Unix time at which the allocation's capacity is released (cover end
	// plus grace, rounded up to a bucket boundary).
	CapacityReleaseAt int64 `json:"capacity_release_at"`
}

// AllocateStake commits pool capacity to a cover on the given product for
// period seconds. Capacity is bounded by the stake that stays locked through
// the cover plus its grace period, scaled by the product's target weight;
// the allocation is clipped to whatever is free.
//
// rewardRatio is the share of the premium minted to stakers, in basis points.
func (p *Pool) AllocateStake(now int64, productID uint32, amount, period, gracePeriod, rewardRatio int64) (AllocationResult, error) {
	p.Advance(now)

	res := AllocationResult{ProductID: productID}

	if amount <= 0 {
		return res, ErrZeroAmount
	}
	if period <= 0 {
		return res, ErrInvalidPeriod
	}
	prod, ok := p.Products[productID]
	if !ok {
		return res, ErrUnknownProduct
	}
	p.advanceProduct(prod, now)

	capacity := p.freeProductStake(prod, now+period+gracePeriod)
	allocated := fpmath.Min(amount, fpmath.Max(capacity-prod.AllocatedStake, 0))
	if allocated == 0 {
		return res, nil
	}

	quote, priced := pricing.CalculatePremium(
		prod.LastPrice, prod.TargetPrice, prod.LastPriceAt, now,
		allocated, prod.AllocatedStake, capacity, period)
	if !priced {
		return res, nil
	}

	prod.AllocatedStake += allocated
	prod.LastPrice = quote.BumpedBasePrice
	prod.LastPriceAt = now

	releaseBucket := fpmath.CeilDiv(now+period+gracePeriod, BucketDuration)
	prod.AllocationCuts[releaseBucket] += allocated

	// Stream the stakers' cut of the premium until the first bucket boundary
	// at or past cover end. Rounding the stream end up keeps the rate
	// shedding aligned with the bucket walk in Advance.
	rewards := fpmath.MulDiv(quote.Premium, rewardRatio, RewardRatioDenominator)
	streamEnd := fpmath.CeilDiv(now+period, BucketDuration) * BucketDuration
	streamSeconds := streamEnd - now

	var rate int64
	if streamSeconds > 0 {
		rate = rewards / streamSeconds
	}
	if rate > 0 {
		p.RewardPerSecond += rate
		p.RewardBuckets[streamEnd/BucketDuration] += rate
	}

	res.Amount = allocated
	res.Premium = quote.Premium
	res.Price = quote.Price
	res.RewardsMinted = rate * streamSeconds
	res.RewardPerSecond = rate
	res.StreamEndsAt = streamEnd
	res.CapacityReleaseAt = releaseBucket * BucketDuration

	return res, nil
}

// DeallocateStake releases capacity early, before the scheduled cut fires
// (cover buyback or claim settlement). capacityReleaseAt must be the value
// reported when the allocation was made; the matching cut is reduced so the
// release does not double-fire later. Reward streams are not clawed back.
func (p *Pool) DeallocateStake(now int64, productID uint32, amount, capacityReleaseAt int64) error {
	p.Advance(now)

	prod, ok := p.Products[productID]
	if !ok {
		return ErrUnknownProduct
	}
	p.advanceProduct(prod, now)

	releaseBucket := fpmath.CeilDiv(capacityReleaseAt, BucketDuration)
	cut, ok := prod.AllocationCuts[releaseBucket]
	if !ok {
		return nil
	}

	released := fpmath.Min(amount, cut)
	if released == cut {
		delete(prod.AllocationCuts, releaseBucket)
	} else {
		prod.AllocationCuts[releaseBucket] = cut - released
	}
	prod.AllocatedStake -= fpmath.Min(released, prod.AllocatedStake)

	return nil
}

// freeProductStake returns the product's capacity ceiling: the stake backed
// by shares that stay locked past lockedUntil, scaled by the product's
// target weight. Tranches unlocking too early cannot back the cover.
func (p *Pool) freeProductStake(prod *Product, lockedUntil int64) int64 {
	if p.StakeSharesSupply == 0 {
		return 0
	}

	eligibleShares := p.StakeSharesSupply
	for trancheID := p.FirstActiveTrancheID; TrancheEnd(trancheID) < lockedUntil; trancheID++ {
		if trancheID > p.FirstActiveTrancheID+MaxActiveTranches {
			break
		}
		if t := p.Tranches[trancheID]; t != nil {
			eligibleShares -= t.StakeShares
		}
	}
	if eligibleShares <= 0 {
		return 0
	}

	eligibleStake := fpmath.MulDiv(p.ActiveStake, eligibleShares, p.StakeSharesSupply)
	return fpmath.MulDiv(eligibleStake, prod.TargetWeight, WeightDenominator)
}
