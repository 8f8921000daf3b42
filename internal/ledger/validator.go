package ledger

import (
	"fmt"
)

// InvariantValidator checks ledger invariants
type InvariantValidator struct {
	tracker *BalanceTracker
}

func NewInvariantValidator(tracker *BalanceTracker) *InvariantValidator {
	return &InvariantValidator{
		tracker: tracker,
	}
}

// ValidateBatchBalance verifies batch is balanced
func (v *InvariantValidator) ValidateBatchBalance(batch *Batch) error {
	return batch.Validate()
}

// ValidatePoolAccounts checks a pool never pays out more principal or
// rewards than it holds. Rewards rounding always favors the pool, so both
// accounts stay non-negative on every valid event stream.
func (v *InvariantValidator) ValidatePoolAccounts(poolID uint32) error {
	if err := v.tracker.ValidateNonNegative(NewPoolAccountKey(poolID, SubTypePoolPrincipal)); err != nil {
		return err
	}
	return v.tracker.ValidateNonNegative(NewPoolAccountKey(poolID, SubTypePoolRewards))
}

// ValidateGlobalBalance verifies system is zero-sum
func (v *InvariantValidator) ValidateGlobalBalance() error {
	if total := v.tracker.ComputeGlobalBalance(); total != 0 {
		return fmt.Errorf("global balance is non-zero: %d", total)
	}
	return nil
}
