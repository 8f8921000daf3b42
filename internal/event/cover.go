package event

import (
	"fmt"

	"github.com/google/uuid"
)

// CoverAllocated requests underwriting capacity from a pool for one cover.
type CoverAllocated struct {
	CoverID     uuid.UUID
	Buyer       uuid.UUID
	Pool        uint32
	Product     uint32
	Amount      int64
	Period      int64 // seconds
	GracePeriod int64 // seconds
	RewardRatio int64 // basis points of premium streamed to stakers
	Sequence    int64
	Timestamp   int64
}

func (c *CoverAllocated) IdempotencyKey() string {
	return c.CoverID.String()
}

func (c *CoverAllocated) EventType() EventType {
	return EventTypeCoverAllocated
}

func (c *CoverAllocated) PoolID() uint32 {
	return c.Pool
}

func (c *CoverAllocated) SourceSequence() int64 {
	return c.Sequence
}

func (c *CoverAllocated) EffectiveTime() int64 {
	return c.Timestamp
}

// CoverDeallocated releases a cover's capacity early (buyback or claim
// settlement). CapacityReleaseAt must match the value reported when the
// cover was allocated.
type CoverDeallocated struct {
	CoverID           uuid.UUID
	Pool              uint32
	Product           uint32
	Amount            int64
	CapacityReleaseAt int64
	Sequence          int64
	Timestamp         int64
}

func (c *CoverDeallocated) IdempotencyKey() string {
	return fmt.Sprintf("%s:dealloc", c.CoverID)
}

func (c *CoverDeallocated) EventType() EventType {
	return EventTypeCoverDeallocated
}

func (c *CoverDeallocated) PoolID() uint32 {
	return c.Pool
}

func (c *CoverDeallocated) SourceSequence() int64 {
	return c.Sequence
}

func (c *CoverDeallocated) EffectiveTime() int64 {
	return c.Timestamp
}
