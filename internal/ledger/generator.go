package ledger

import (
	"fmt"

	"github.com/google/uuid"

	"CoverPool/internal/event"
)

// JournalGenerator creates balanced journal batches from events
type JournalGenerator struct {
	sequence       int64
	balanceTracker *BalanceTracker // reference for pre-checks
}

func NewJournalGenerator(startSequence int64, tracker *BalanceTracker) *JournalGenerator {
	return &JournalGenerator{
		sequence:       startSequence,
		balanceTracker: tracker,
	}
}

// SetSequence realigns the generator after snapshot recovery
func (jg *JournalGenerator) SetSequence(seq int64) {
	jg.sequence = seq
}

// journalID derives a replay-stable id from the event reference and leg, so
// re-processing the same log produces byte-identical journal rows.
func journalID(eventRef, leg string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(eventRef+":"+leg))
}

// GenerateStakeDeposited creates journals for a stake deposit.
// Moves funds: member:funding → pool:principal
func (jg *JournalGenerator) GenerateStakeDeposited(evt *event.StakeDeposited) (*Batch, error) {
	eventRef := evt.IdempotencyKey()
	batchID := journalID(eventRef, "batch")

	batch := &Batch{
		BatchID:   batchID,
		EventRef:  eventRef,
		Sequence:  jg.sequence,
		Timestamp: evt.Timestamp,
		Journals:  make([]Journal, 0, 1),
	}

	journal := Journal{
		JournalID:     journalID(eventRef, "principal"),
		BatchID:       batchID,
		EventRef:      eventRef,
		Sequence:      jg.sequence,
		DebitAccount:  NewPoolAccountKey(evt.Pool, SubTypePoolPrincipal),
		CreditAccount: NewMemberAccountKey(evt.Member, SubTypeMemberFunding),
		Amount:        evt.Amount,
		JournalType:   JournalTypeStakeDeposit,
		Timestamp:     evt.Timestamp,
	}

	batch.Journals = append(batch.Journals, journal)
	jg.sequence++

	return batch, nil
}

// GenerateStakeWithdrawn creates journals for a withdrawal's actual payouts.
// Stake moves pool:principal → owner:funding; rewards move
// pool:rewards → owner:funding. The owner is the position's resolved owner,
// not the event's caller, so sweep withdrawals pay the right member. Either
// leg may be absent; a withdrawal that paid nothing produces no batch
// (nil, nil).
func (jg *JournalGenerator) GenerateStakeWithdrawn(
	evt *event.StakeWithdrawn,
	owner uuid.UUID,
	stakePaid, rewardsPaid int64,
) (*Batch, error) {
	if stakePaid == 0 && rewardsPaid == 0 {
		return nil, nil
	}

	// PRE-CHECK: the pool must custody what it is about to pay out.
	if stakePaid > 0 {
		if held := jg.balanceTracker.GetPoolPrincipal(evt.Pool); held < stakePaid {
			return nil, fmt.Errorf("withdrawal pre-check failed: pool %d principal %d < payout %d",
				evt.Pool, held, stakePaid)
		}
	}
	if rewardsPaid > 0 {
		if held := jg.balanceTracker.GetPoolRewards(evt.Pool); held < rewardsPaid {
			return nil, fmt.Errorf("withdrawal pre-check failed: pool %d rewards %d < payout %d",
				evt.Pool, held, rewardsPaid)
		}
	}

	eventRef := evt.IdempotencyKey()
	batchID := journalID(eventRef, "batch")

	batch := &Batch{
		BatchID:   batchID,
		EventRef:  eventRef,
		Sequence:  jg.sequence,
		Timestamp: evt.Timestamp,
		Journals:  make([]Journal, 0, 2),
	}

	if stakePaid > 0 {
		batch.Journals = append(batch.Journals, Journal{
			JournalID:     journalID(eventRef, "stake"),
			BatchID:       batchID,
			EventRef:      eventRef,
			Sequence:      jg.sequence,
			DebitAccount:  NewMemberAccountKey(owner, SubTypeMemberFunding),
			CreditAccount: NewPoolAccountKey(evt.Pool, SubTypePoolPrincipal),
			Amount:        stakePaid,
			JournalType:   JournalTypeStakeWithdrawal,
			Timestamp:     evt.Timestamp,
		})
	}

	if rewardsPaid > 0 {
		batch.Journals = append(batch.Journals, Journal{
			JournalID:     journalID(eventRef, "rewards"),
			BatchID:       batchID,
			EventRef:      eventRef,
			Sequence:      jg.sequence,
			DebitAccount:  NewMemberAccountKey(owner, SubTypeMemberFunding),
			CreditAccount: NewPoolAccountKey(evt.Pool, SubTypePoolRewards),
			Amount:        rewardsPaid,
			JournalType:   JournalTypeRewardsWithdrawal,
			Timestamp:     evt.Timestamp,
		})
	}

	jg.sequence++

	return batch, nil
}

// GenerateCoverAllocated mints the allocation's staker rewards into the
// pool's rewards account: external:rewards_mint → pool:rewards. The mint is
// the full stream (rate × stream length) booked up front; accrual only
// schedules when members may claim it. A zero-reward allocation produces no
// batch.
func (jg *JournalGenerator) GenerateCoverAllocated(
	evt *event.CoverAllocated,
	rewardsMinted int64,
) (*Batch, error) {
	if rewardsMinted == 0 {
		return nil, nil
	}

	eventRef := evt.IdempotencyKey()
	batchID := journalID(eventRef, "batch")

	batch := &Batch{
		BatchID:   batchID,
		EventRef:  eventRef,
		Sequence:  jg.sequence,
		Timestamp: evt.Timestamp,
		Journals:  make([]Journal, 0, 1),
	}

	batch.Journals = append(batch.Journals, Journal{
		JournalID:     journalID(eventRef, "mint"),
		BatchID:       batchID,
		EventRef:      eventRef,
		Sequence:      jg.sequence,
		DebitAccount:  NewPoolAccountKey(evt.Pool, SubTypePoolRewards),
		CreditAccount: NewExternalAccountKey(SubTypeExternalRewardsMint),
		Amount:        rewardsMinted,
		JournalType:   JournalTypeRewardsMint,
		Timestamp:     evt.Timestamp,
	})

	jg.sequence++

	return batch, nil
}
