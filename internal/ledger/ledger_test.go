package ledger_test

import (
	"testing"

	"github.com/google/uuid"

	"CoverPool/internal/event"
	"CoverPool/internal/ledger"
)

// ============================================================================
// Test: AccountKey
// ============================================================================

func TestAccountKey_MemberPath(t *testing.T) {
	memberID := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	key := ledger.NewMemberAccountKey(memberID, ledger.SubTypeMemberFunding)

	path := key.AccountPath()
	expected := "member:550e8400-e29b-41d4-a716-446655440000:funding"
	if path != expected {
		t.Errorf("got %q, want %q", path, expected)
	}
}

func TestAccountKey_PoolPath(t *testing.T) {
	key := ledger.NewPoolAccountKey(42, ledger.SubTypePoolPrincipal)

	if path := key.AccountPath(); path != "pool:42:principal" {
		t.Errorf("got %q, want %q", path, "pool:42:principal")
	}
	if key.PoolID() != 42 {
		t.Errorf("PoolID round-trip failed: %d", key.PoolID())
	}
}

func TestAccountKey_ExternalPath(t *testing.T) {
	key := ledger.NewExternalAccountKey(ledger.SubTypeExternalRewardsMint)

	if path := key.AccountPath(); path != "external:rewards_mint" {
		t.Errorf("got %q, want %q", path, "external:rewards_mint")
	}
}

// ============================================================================
// Test: BalanceTracker
// ============================================================================

func TestBalanceTracker_InitialBalanceZero(t *testing.T) {
	bt := ledger.NewBalanceTracker()

	if balance := bt.GetPoolPrincipal(1); balance != 0 {
		t.Errorf("initial balance should be 0, got %d", balance)
	}
}

func TestBalanceTracker_ApplyJournal(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	memberID := uuid.New()

	j := ledger.Journal{
		JournalID:     uuid.New(),
		BatchID:       uuid.New(),
		DebitAccount:  ledger.NewPoolAccountKey(1, ledger.SubTypePoolPrincipal),
		CreditAccount: ledger.NewMemberAccountKey(memberID, ledger.SubTypeMemberFunding),
		Amount:        1_000_000,
		JournalType:   ledger.JournalTypeStakeDeposit,
	}
	bt.ApplyJournal(j)

	if got := bt.GetPoolPrincipal(1); got != 1_000_000 {
		t.Errorf("pool principal = %d, want 1000000", got)
	}
	if got := bt.GetMemberFunding(memberID); got != -1_000_000 {
		t.Errorf("member funding = %d, want -1000000", got)
	}
	if total := bt.ComputeGlobalBalance(); total != 0 {
		t.Errorf("ledger must stay zero-sum, got %d", total)
	}
}

func TestBalanceTracker_SnapshotRestore(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	bt.ApplyJournal(ledger.Journal{
		DebitAccount:  ledger.NewPoolAccountKey(1, ledger.SubTypePoolRewards),
		CreditAccount: ledger.NewExternalAccountKey(ledger.SubTypeExternalRewardsMint),
		Amount:        500,
	})

	snap := bt.Snapshot()

	restored := ledger.NewBalanceTracker()
	restored.Restore(snap)

	if got := restored.GetPoolRewards(1); got != 500 {
		t.Errorf("restored pool rewards = %d, want 500", got)
	}
}

// ============================================================================
// Test: Batch validation
// ============================================================================

func TestBatch_Validate_Empty(t *testing.T) {
	b := &ledger.Batch{BatchID: uuid.New()}
	if err := b.Validate(); err == nil {
		t.Error("empty batch must fail validation")
	}
}

func TestBatch_Validate_NonPositiveAmount(t *testing.T) {
	batchID := uuid.New()
	b := &ledger.Batch{
		BatchID: batchID,
		Journals: []ledger.Journal{{
			JournalID:     uuid.New(),
			BatchID:       batchID,
			DebitAccount:  ledger.NewPoolAccountKey(1, ledger.SubTypePoolPrincipal),
			CreditAccount: ledger.NewExternalAccountKey(ledger.SubTypeExternalRewardsMint),
			Amount:        0,
		}},
	}
	if err := b.Validate(); err == nil {
		t.Error("zero-amount journal must fail validation")
	}
}

func TestBatch_Validate_SelfTransfer(t *testing.T) {
	batchID := uuid.New()
	key := ledger.NewPoolAccountKey(1, ledger.SubTypePoolPrincipal)
	b := &ledger.Batch{
		BatchID: batchID,
		Journals: []ledger.Journal{{
			JournalID:     uuid.New(),
			BatchID:       batchID,
			DebitAccount:  key,
			CreditAccount: key,
			Amount:        100,
		}},
	}
	if err := b.Validate(); err == nil {
		t.Error("self-transfer must fail validation")
	}
}

// ============================================================================
// Test: JournalGenerator
// ============================================================================

func depositEvent(member uuid.UUID, amount int64) *event.StakeDeposited {
	return &event.StakeDeposited{
		DepositID: uuid.New(),
		Member:    member,
		Pool:      1,
		Amount:    amount,
		TrancheID: 200,
		Timestamp: 1_572_480_000,
	}
}

func TestGenerator_StakeDeposited(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	gen := ledger.NewJournalGenerator(1, bt)
	member := uuid.New()

	batch, err := gen.GenerateStakeDeposited(depositEvent(member, 1_000_000))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if err := bt.ApplyBatch(batch); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if got := bt.GetPoolPrincipal(1); got != 1_000_000 {
		t.Errorf("pool principal = %d, want 1000000", got)
	}
}

func TestGenerator_StakeWithdrawn_PreCheck(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	gen := ledger.NewJournalGenerator(1, bt)
	member := uuid.New()

	evt := &event.StakeWithdrawn{
		WithdrawalID: uuid.New(),
		Member:       member,
		Pool:         1,
		Timestamp:    1_572_480_000,
	}

	// Pool holds nothing: paying stake must fail the pre-check.
	if _, err := gen.GenerateStakeWithdrawn(evt, member, 500, 0); err == nil {
		t.Fatal("expected insufficient-principal error")
	}

	// A withdrawal that paid nothing is a no-op, not an error.
	batch, err := gen.GenerateStakeWithdrawn(evt, member, 0, 0)
	if err != nil {
		t.Fatalf("no-op withdrawal: %v", err)
	}
	if batch != nil {
		t.Error("no-op withdrawal must produce no batch")
	}
}

func TestGenerator_WithdrawalRoundTrip(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	gen := ledger.NewJournalGenerator(1, bt)
	member := uuid.New()

	dep, err := gen.GenerateStakeDeposited(depositEvent(member, 1_000_000))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := bt.ApplyBatch(dep); err != nil {
		t.Fatalf("apply deposit: %v", err)
	}

	mint, err := gen.GenerateCoverAllocated(&event.CoverAllocated{
		CoverID:   uuid.New(),
		Pool:      1,
		Product:   7,
		Timestamp: 1_572_480_100,
	}, 2_000)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := bt.ApplyBatch(mint); err != nil {
		t.Fatalf("apply mint: %v", err)
	}

	// A sweeper triggers the withdrawal; the payout legs must land on the
	// owner's funding account, not the caller's.
	sweeper := uuid.New()
	wd, err := gen.GenerateStakeWithdrawn(&event.StakeWithdrawn{
		WithdrawalID: uuid.New(),
		Member:       sweeper,
		Pool:         1,
		Timestamp:    1_580_000_000,
	}, member, 1_000_000, 2_000)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if len(wd.Journals) != 2 {
		t.Fatalf("want 2 journal legs, got %d", len(wd.Journals))
	}
	ownerPath := "member:" + member.String() + ":funding"
	for _, j := range wd.Journals {
		if got := j.DebitAccount.AccountPath(); got != ownerPath {
			t.Errorf("payout debits %s, want %s", got, ownerPath)
		}
	}
	if err := bt.ApplyBatch(wd); err != nil {
		t.Fatalf("apply withdrawal: %v", err)
	}

	if got := bt.GetPoolPrincipal(1); got != 0 {
		t.Errorf("pool principal after full exit = %d, want 0", got)
	}
	if got := bt.GetPoolRewards(1); got != 0 {
		t.Errorf("pool rewards after full claim = %d, want 0", got)
	}

	v := ledger.NewInvariantValidator(bt)
	if err := v.ValidateGlobalBalance(); err != nil {
		t.Errorf("zero-sum violated: %v", err)
	}
	if err := v.ValidatePoolAccounts(1); err != nil {
		t.Errorf("pool accounts: %v", err)
	}
}

func TestGenerator_ReplayStableIDs(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	member := uuid.New()
	evt := depositEvent(member, 1_000_000)

	a, _ := ledger.NewJournalGenerator(1, bt).GenerateStakeDeposited(evt)
	b, _ := ledger.NewJournalGenerator(1, bt).GenerateStakeDeposited(evt)

	if a.BatchID != b.BatchID || a.Journals[0].JournalID != b.Journals[0].JournalID {
		t.Error("replaying the same event must yield identical journal ids")
	}
}
