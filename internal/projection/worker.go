package projection

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"CoverPool/internal/observability"
	"CoverPool/internal/pool"
)

// ProjectionOutput mirrors the data needed by projection workers.
// The orchestrator bridges between core.CoreOutput and this.
type ProjectionOutput struct {
	Sequence       int64
	EventType      string
	PoolID         uint32
	JournalEntries []JournalEntry
	Result         interface{} // pool.DepositResult / WithdrawalResult / AllocationResult
	Timestamp      int64
}

// JournalEntry is a simplified journal for projection consumption.
type JournalEntry struct {
	DebitAccount  string
	CreditAccount string
	Amount        int64
	JournalType   int32
}

// ProjectionWorker updates projection tables from processed events.
// The projection channel is non-blocking with drop: if projections fall
// behind, they can be rebuilt from the event log.
type ProjectionWorker struct {
	db        *sql.DB
	inputChan <-chan ProjectionOutput
	lastSeq   int64
	history   *AllocationHistoryProjection
	log       zerolog.Logger
}

func NewProjectionWorker(db *sql.DB, inputChan <-chan ProjectionOutput) *ProjectionWorker {
	return &ProjectionWorker{
		db:        db,
		inputChan: inputChan,
		history:   NewAllocationHistoryProjection(),
		log:       observability.NewLogger("projection"),
	}
}

// History exposes the in-memory allocation history for hot queries.
func (pw *ProjectionWorker) History() *AllocationHistoryProjection {
	return pw.history
}

// Run starts the projection worker loop.
func (pw *ProjectionWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case output, ok := <-pw.inputChan:
			if !ok {
				return nil
			}

			if err := pw.processOutput(ctx, output); err != nil {
				pw.log.Warn().Err(err).Int64("sequence", output.Sequence).Msg("projection update failed")
				// Continue — projections are eventually consistent
				// and can be rebuilt from the event log
			}

			pw.lastSeq = output.Sequence
		}
	}
}

func (pw *ProjectionWorker) processOutput(ctx context.Context, output ProjectionOutput) error {
	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Update balance projections from journal entries
	for _, j := range output.JournalEntries {
		if err := pw.updateBalanceProjection(ctx, tx, j, output.Sequence); err != nil {
			return fmt.Errorf("balance projection: %w", err)
		}
	}

	// Operation-specific history tables
	switch r := output.Result.(type) {
	case *pool.DepositResult:
		if err := pw.insertDeposit(ctx, tx, output, r); err != nil {
			return fmt.Errorf("deposit projection: %w", err)
		}
	case *pool.WithdrawalResult:
		if err := pw.insertWithdrawal(ctx, tx, output, r); err != nil {
			return fmt.Errorf("withdrawal projection: %w", err)
		}
	case *pool.AllocationResult:
		if err := pw.insertAllocation(ctx, tx, output, r); err != nil {
			return fmt.Errorf("allocation projection: %w", err)
		}
	}

	// Update projection watermark
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
		VALUES ('main', $1, NOW())
		ON CONFLICT (worker_id) DO UPDATE SET last_sequence = $1, updated_at = NOW()
	`, output.Sequence); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	// Cache the committed allocation for the hot read path.
	if r, ok := output.Result.(*pool.AllocationResult); ok {
		pw.history.AddEntry(AllocationHistoryEntry{
			Sequence:          output.Sequence,
			PoolID:            output.PoolID,
			ProductID:         r.ProductID,
			Amount:            r.Amount,
			Premium:           r.Premium,
			Price:             r.Price,
			RewardsMinted:     r.RewardsMinted,
			StreamEndsAt:      r.StreamEndsAt,
			CapacityReleaseAt: r.CapacityReleaseAt,
			Timestamp:         output.Timestamp,
		})
	}

	return nil
}

func (pw *ProjectionWorker) updateBalanceProjection(ctx context.Context, tx *sql.Tx, j JournalEntry, seq int64) error {
	// Debit account: decrease balance
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, balance, last_sequence)
		VALUES ($1, -$2, $3)
		ON CONFLICT (account_path)
		DO UPDATE SET balance = projections.balances.balance - $2, last_sequence = $3
	`, j.DebitAccount, j.Amount, seq); err != nil {
		return err
	}

	// Credit account: increase balance
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, balance, last_sequence)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_path)
		DO UPDATE SET balance = projections.balances.balance + $2, last_sequence = $3
	`, j.CreditAccount, j.Amount, seq); err != nil {
		return err
	}

	return nil
}

func (pw *ProjectionWorker) insertDeposit(ctx context.Context, tx *sql.Tx, output ProjectionOutput, r *pool.DepositResult) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.deposit_history
			(sequence, pool_id, position_id, tranche_id, amount, stake_shares, rewards_shares, fee_rewards_shares, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (sequence) DO NOTHING
	`, output.Sequence, output.PoolID, r.PositionID, r.TrancheID,
		r.Amount, r.StakeShares, r.RewardsShares, r.FeeRewardsShares, output.Timestamp)
	return err
}

func (pw *ProjectionWorker) insertWithdrawal(ctx context.Context, tx *sql.Tx, output ProjectionOutput, r *pool.WithdrawalResult) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.withdrawal_history
			(sequence, pool_id, position_id, stake_paid, rewards_paid, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (sequence) DO NOTHING
	`, output.Sequence, output.PoolID, r.PositionID, r.TotalStake, r.TotalRewards, output.Timestamp)
	return err
}

func (pw *ProjectionWorker) insertAllocation(ctx context.Context, tx *sql.Tx, output ProjectionOutput, r *pool.AllocationResult) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.allocation_history
			(sequence, pool_id, product_id, amount, premium, price, rewards_minted, stream_ends_at, capacity_release_at, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (sequence) DO NOTHING
	`, output.Sequence, output.PoolID, r.ProductID, r.Amount, r.Premium,
		r.Price, r.RewardsMinted, r.StreamEndsAt, r.CapacityReleaseAt, output.Timestamp)
	return err
}

// RebuildProjections rebuilds the balance projection from the event log.
// History tables are append-only and keyed by sequence, so they survive a
// rebuild; balances are recomputed from journal entries.
func RebuildProjections(ctx context.Context, db *sql.DB) error {
	logger := observability.NewLogger("projection")

	truncateStatements := []string{
		`TRUNCATE projections.balances`,
		`DELETE FROM projections.watermark WHERE worker_id = 'main'`,
	}

	for _, stmt := range truncateStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("truncate failed: %w", err)
		}
	}

	// Rebuild from journal entries: credits add, debits subtract
	_, err := db.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, balance, last_sequence)
		SELECT
			credit_account AS account_path,
			SUM(amount) AS balance,
			MAX(sequence) AS last_sequence
		FROM event_log.journal
		GROUP BY credit_account
		ON CONFLICT (account_path) DO UPDATE
			SET balance = EXCLUDED.balance, last_sequence = EXCLUDED.last_sequence
	`)
	if err != nil {
		return fmt.Errorf("rebuild credit balances: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, balance, last_sequence)
		SELECT
			debit_account AS account_path,
			-SUM(amount) AS balance,
			MAX(sequence) AS last_sequence
		FROM event_log.journal
		GROUP BY debit_account
		ON CONFLICT (account_path) DO UPDATE
			SET balance = projections.balances.balance + EXCLUDED.balance,
			    last_sequence = GREATEST(projections.balances.last_sequence, EXCLUDED.last_sequence)
	`)
	if err != nil {
		return fmt.Errorf("rebuild debit balances: %w", err)
	}

	logger.Info().Msg("projection rebuild complete")
	return nil
}
