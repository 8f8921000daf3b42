package event

import (
	"fmt"

	"github.com/google/uuid"
)

// PoolCreated bootstraps a pool. Must be the first event on its partition.
type PoolCreated struct {
	RequestID    uuid.UUID
	Manager      uuid.UUID
	Pool         uint32
	IsPrivate    bool
	InitialFee   int64 // percent
	MaxFee       int64 // percent
	MetadataHash string
	Sequence     int64
	Timestamp    int64
}

func (p *PoolCreated) IdempotencyKey() string {
	return p.RequestID.String()
}

func (p *PoolCreated) EventType() EventType {
	return EventTypePoolCreated
}

func (p *PoolCreated) PoolID() uint32 {
	return p.Pool
}

func (p *PoolCreated) SourceSequence() int64 {
	return p.Sequence
}

func (p *PoolCreated) EffectiveTime() int64 {
	return p.Timestamp
}

// PoolFeeChanged moves the manager's cut of rewards.
type PoolFeeChanged struct {
	RequestID uuid.UUID
	Caller    uuid.UUID
	Pool      uint32
	NewFee    int64
	Sequence  int64
	Timestamp int64
}

func (p *PoolFeeChanged) IdempotencyKey() string {
	return p.RequestID.String()
}

func (p *PoolFeeChanged) EventType() EventType {
	return EventTypePoolFeeChanged
}

func (p *PoolFeeChanged) PoolID() uint32 {
	return p.Pool
}

func (p *PoolFeeChanged) SourceSequence() int64 {
	return p.Sequence
}

func (p *PoolFeeChanged) EffectiveTime() int64 {
	return p.Timestamp
}

// PoolPrivacyChanged toggles whether non-manager deposits are accepted.
type PoolPrivacyChanged struct {
	RequestID uuid.UUID
	Caller    uuid.UUID
	Pool      uint32
	IsPrivate bool
	Sequence  int64
	Timestamp int64
}

func (p *PoolPrivacyChanged) IdempotencyKey() string {
	return p.RequestID.String()
}

func (p *PoolPrivacyChanged) EventType() EventType {
	return EventTypePoolPrivacyChanged
}

func (p *PoolPrivacyChanged) PoolID() uint32 {
	return p.Pool
}

func (p *PoolPrivacyChanged) SourceSequence() int64 {
	return p.Sequence
}

func (p *PoolPrivacyChanged) EffectiveTime() int64 {
	return p.Timestamp
}

// ProductUpdated configures an insurable product's weight and target price.
type ProductUpdated struct {
	RequestID    uuid.UUID
	Caller       uuid.UUID
	Pool         uint32
	Product      uint32
	TargetWeight int64 // percent
	TargetPrice  int64 // basis points per year
	Sequence     int64
	Timestamp    int64
}

func (p *ProductUpdated) IdempotencyKey() string {
	return fmt.Sprintf("%s:%d", p.RequestID, p.Product)
}

func (p *ProductUpdated) EventType() EventType {
	return EventTypeProductUpdated
}

func (p *ProductUpdated) PoolID() uint32 {
	return p.Pool
}

func (p *ProductUpdated) SourceSequence() int64 {
	return p.Sequence
}

func (p *ProductUpdated) EffectiveTime() int64 {
	return p.Timestamp
}

// GovernanceLockChanged locks or unlocks a position for governance voting.
// A locked position cannot withdraw until LockedUntil passes.
type GovernanceLockChanged struct {
	RequestID   uuid.UUID
	Pool        uint32
	PositionID  int64
	LockedUntil int64 // unix seconds; zero clears the lock
	Sequence    int64
	Timestamp   int64
}

func (g *GovernanceLockChanged) IdempotencyKey() string {
	return g.RequestID.String()
}

func (g *GovernanceLockChanged) EventType() EventType {
	return EventTypeGovernanceLockChanged
}

func (g *GovernanceLockChanged) PoolID() uint32 {
	return g.Pool
}

func (g *GovernanceLockChanged) SourceSequence() int64 {
	return g.Sequence
}

func (g *GovernanceLockChanged) EffectiveTime() int64 {
	return g.Timestamp
}
