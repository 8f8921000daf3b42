package event

import (
	"time"
)

// EventType discriminator for event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypePoolCreated
	EventTypeStakeDeposited
	EventTypeStakeWithdrawn
	EventTypeCoverAllocated
	EventTypeCoverDeallocated
	EventTypePoolFeeChanged
	EventTypePoolPrivacyChanged
	EventTypeProductUpdated
	EventTypeGovernanceLockChanged
)

// EventEnvelope wraps every event in the log
type EventEnvelope struct {
	// Global monotonic sequence assigned by core
	Sequence int64

	// Stable idempotency key from upstream
	IdempotencyKey string

	// Event type discriminator
	EventType EventType

	// Pool context (0 for events preceding pool creation is invalid;
	// every event is pool-scoped)
	PoolID uint32

	// Versioned input timestamp (NOT wall-clock); all accounting uses this
	Timestamp time.Time

	// Upstream sequence for ordering validation
	SourceSequence int64

	// JSON-encoded event-specific data
	Payload []byte

	// SHA-256 of state AFTER applying this event
	StateHash [32]byte

	// Previous event's state hash (chain integrity)
	PrevHash [32]byte
}

// Event is the interface all event payloads must implement
type Event interface {
	// IdempotencyKey returns the stable dedup key
	IdempotencyKey() string

	// EventType returns the discriminator
	EventType() EventType

	// PoolID returns the pool this event belongs to
	PoolID() uint32

	// SourceSequence returns upstream ordering key
	SourceSequence() int64

	// EffectiveTime returns the unix-second timestamp the event's
	// accounting happens at
	EffectiveTime() int64
}

func (et EventType) String() string {
	switch et {
	case EventTypePoolCreated:
		return "PoolCreated"
	case EventTypeStakeDeposited:
		return "StakeDeposited"
	case EventTypeStakeWithdrawn:
		return "StakeWithdrawn"
	case EventTypeCoverAllocated:
		return "CoverAllocated"
	case EventTypeCoverDeallocated:
		return "CoverDeallocated"
	case EventTypePoolFeeChanged:
		return "PoolFeeChanged"
	case EventTypePoolPrivacyChanged:
		return "PoolPrivacyChanged"
	case EventTypeProductUpdated:
		return "ProductUpdated"
	case EventTypeGovernanceLockChanged:
		return "GovernanceLockChanged"
	default:
		return "Unknown"
	}
}
