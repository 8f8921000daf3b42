package event

import "github.com/google/uuid"

// StakeDeposited stakes tokens into one tranche of a pool. PositionID zero
// asks the core to mint a fresh position for Member.
type StakeDeposited struct {
	DepositID  uuid.UUID
	Member     uuid.UUID
	Pool       uint32
	Amount     int64 // Fixed-point, 1e6 scale
	TrancheID  int64
	PositionID int64
	Sequence   int64
	Timestamp  int64
}

func (d *StakeDeposited) IdempotencyKey() string {
	return d.DepositID.String()
}

func (d *StakeDeposited) EventType() EventType {
	return EventTypeStakeDeposited
}

func (d *StakeDeposited) PoolID() uint32 {
	return d.Pool
}

func (d *StakeDeposited) SourceSequence() int64 {
	return d.Sequence
}

func (d *StakeDeposited) EffectiveTime() int64 {
	return d.Timestamp
}

// StakeWithdrawn claims stake and/or rewards from a set of tranches.
type StakeWithdrawn struct {
	WithdrawalID    uuid.UUID
	Member          uuid.UUID
	Pool            uint32
	PositionID      int64
	WithdrawStake   bool
	WithdrawRewards bool
	TrancheIDs      []int64
	Sequence        int64
	Timestamp       int64
}

func (w *StakeWithdrawn) IdempotencyKey() string {
	return w.WithdrawalID.String()
}

func (w *StakeWithdrawn) EventType() EventType {
	return EventTypeStakeWithdrawn
}

func (w *StakeWithdrawn) PoolID() uint32 {
	return w.Pool
}

func (w *StakeWithdrawn) SourceSequence() int64 {
	return w.Sequence
}

func (w *StakeWithdrawn) EffectiveTime() int64 {
	return w.Timestamp
}
