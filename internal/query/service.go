package query

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"CoverPool/internal/projection"
)

// QueryService provides read-only access to projection tables. Queries are
// served via gRPC and HTTP/JSON, reading from PostgreSQL projections. All
// responses include as_of_sequence for freshness semantics.
type QueryService struct {
	db         *sql.DB
	allocCache *projection.AllocationHistoryProjection
}

func NewQueryService(db *sql.DB) *QueryService {
	return &QueryService{db: db}
}

// SetAllocationCache attaches the projection worker's in-memory allocation
// history. First-page allocation queries are then served from memory.
func (qs *QueryService) SetAllocationCache(cache *projection.AllocationHistoryProjection) {
	qs.allocCache = cache
}

// tokenDisplay renders a 1e6 fixed-point amount as a decimal string.
func tokenDisplay(v int64) string {
	return decimal.New(v, -6).String()
}

// GetMemberBalance returns a member's funding account balance.
func (qs *QueryService) GetMemberBalance(
	ctx context.Context,
	memberID uuid.UUID,
) (*MemberBalanceResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	fundingPath := fmt.Sprintf("member:%s:funding", memberID)
	funding, err := qs.getProjectedBalance(ctx, fundingPath)
	if err != nil {
		return nil, err
	}

	return &MemberBalanceResponse{
		Member:         memberID,
		FundingBalance: funding,
		FundingDisplay: tokenDisplay(funding),
		AsOfSequence:   asOfSeq,
	}, nil
}

// GetPoolOverview returns a pool's principal and rewards account balances.
func (qs *QueryService) GetPoolOverview(
	ctx context.Context,
	poolID uint32,
) (*PoolOverviewResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	principal, err := qs.getProjectedBalance(ctx, fmt.Sprintf("pool:%d:principal", poolID))
	if err != nil {
		return nil, err
	}
	rewards, err := qs.getProjectedBalance(ctx, fmt.Sprintf("pool:%d:rewards", poolID))
	if err != nil {
		return nil, err
	}

	return &PoolOverviewResponse{
		PoolID:           poolID,
		PrincipalBalance: principal,
		PrincipalDisplay: tokenDisplay(principal),
		RewardsBalance:   rewards,
		RewardsDisplay:   tokenDisplay(rewards),
		AsOfSequence:     asOfSeq,
	}, nil
}

// GetDepositHistory returns stake deposits for a pool, optionally filtered
// to a position. Supports cursor-based pagination via afterSequence.
func (qs *QueryService) GetDepositHistory(
	ctx context.Context,
	poolID uint32,
	positionID *int64,
	limit int,
	afterSequence *int64,
) ([]DepositHistoryResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT sequence, position_id, tranche_id, amount, stake_shares,
		       rewards_shares, fee_rewards_shares, timestamp
		FROM projections.deposit_history
		WHERE pool_id = $1
	`
	args := []interface{}{poolID}
	argIdx := 2

	if positionID != nil {
		query += fmt.Sprintf(" AND position_id = $%d", argIdx)
		args = append(args, *positionID)
		argIdx++
	}

	if afterSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *afterSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []DepositHistoryResponse
	for rows.Next() {
		var h DepositHistoryResponse
		h.PoolID = poolID
		h.AsOfSequence = asOfSeq
		if err := rows.Scan(
			&h.Sequence, &h.PositionID, &h.TrancheID, &h.Amount,
			&h.StakeShares, &h.RewardsShares, &h.FeeRewardsShares, &h.Timestamp,
		); err != nil {
			return nil, err
		}
		h.AmountDisplay = tokenDisplay(h.Amount)
		history = append(history, h)
	}

	return history, rows.Err()
}

// GetWithdrawalHistory returns withdrawals for a pool position.
func (qs *QueryService) GetWithdrawalHistory(
	ctx context.Context,
	poolID uint32,
	positionID int64,
	limit int,
	afterSequence *int64,
) ([]WithdrawalHistoryResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT sequence, stake_paid, rewards_paid, timestamp
		FROM projections.withdrawal_history
		WHERE pool_id = $1 AND position_id = $2
	`
	args := []interface{}{poolID, positionID}
	argIdx := 3

	if afterSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *afterSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []WithdrawalHistoryResponse
	for rows.Next() {
		var h WithdrawalHistoryResponse
		h.PoolID = poolID
		h.PositionID = positionID
		h.AsOfSequence = asOfSeq
		if err := rows.Scan(&h.Sequence, &h.StakePaid, &h.RewardsPaid, &h.Timestamp); err != nil {
			return nil, err
		}
		h.StakeDisplay = tokenDisplay(h.StakePaid)
		h.RewardsDisplay = tokenDisplay(h.RewardsPaid)
		history = append(history, h)
	}

	return history, rows.Err()
}

// GetAllocationHistory returns cover allocations for a pool, optionally
// filtered to a product.
func (qs *QueryService) GetAllocationHistory(
	ctx context.Context,
	poolID uint32,
	productID *uint32,
	limit int,
	afterSequence *int64,
) ([]AllocationHistoryResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	// Hot path: a first page fully covered by the in-memory history skips
	// the table scan. Short caches fall through to the database, which also
	// holds everything from before this process started.
	if qs.allocCache != nil && afterSequence == nil {
		var cached []projection.AllocationHistoryEntry
		if productID != nil {
			cached = qs.allocCache.QueryByProduct(poolID, *productID, limit)
		} else {
			cached = qs.allocCache.QueryByPool(poolID, limit)
		}
		if len(cached) == limit {
			history := make([]AllocationHistoryResponse, 0, limit)
			for _, e := range cached {
				history = append(history, AllocationHistoryResponse{
					Sequence:          e.Sequence,
					PoolID:            e.PoolID,
					ProductID:         e.ProductID,
					Amount:            e.Amount,
					AmountDisplay:     tokenDisplay(e.Amount),
					Premium:           e.Premium,
					PremiumDisplay:    tokenDisplay(e.Premium),
					Price:             e.Price,
					RewardsMinted:     e.RewardsMinted,
					StreamEndsAt:      e.StreamEndsAt,
					CapacityReleaseAt: e.CapacityReleaseAt,
					Timestamp:         e.Timestamp,
					AsOfSequence:      asOfSeq,
				})
			}
			return history, nil
		}
	}

	query := `
		SELECT sequence, product_id, amount, premium, price, rewards_minted,
		       stream_ends_at, capacity_release_at, timestamp
		FROM projections.allocation_history
		WHERE pool_id = $1
	`
	args := []interface{}{poolID}
	argIdx := 2

	if productID != nil {
		query += fmt.Sprintf(" AND product_id = $%d", argIdx)
		args = append(args, *productID)
		argIdx++
	}

	if afterSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *afterSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []AllocationHistoryResponse
	for rows.Next() {
		var h AllocationHistoryResponse
		h.PoolID = poolID
		h.AsOfSequence = asOfSeq
		if err := rows.Scan(
			&h.Sequence, &h.ProductID, &h.Amount, &h.Premium, &h.Price,
			&h.RewardsMinted, &h.StreamEndsAt, &h.CapacityReleaseAt, &h.Timestamp,
		); err != nil {
			return nil, err
		}
		h.AmountDisplay = tokenDisplay(h.Amount)
		h.PremiumDisplay = tokenDisplay(h.Premium)
		history = append(history, h)
	}

	return history, rows.Err()
}

// GetJournalHistory returns journal entries touching a member's accounts
// with cursor-based pagination.
func (qs *QueryService) GetJournalHistory(
	ctx context.Context,
	memberID uuid.UUID,
	limit int,
	afterSequence *int64,
) ([]JournalHistoryEntry, error) {
	accountPrefix := fmt.Sprintf("member:%s:%%", memberID)

	query := `
		SELECT journal_id, batch_id, event_ref, sequence,
		       debit_account, credit_account, amount, journal_type, timestamp
		FROM event_log.journal
		WHERE debit_account LIKE $1 OR credit_account LIKE $1
	`
	args := []interface{}{accountPrefix}
	argIdx := 2

	if afterSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *afterSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []JournalHistoryEntry
	for rows.Next() {
		var e JournalHistoryEntry
		if err := rows.Scan(
			&e.JournalID, &e.BatchID, &e.EventRef, &e.Sequence,
			&e.DebitAccount, &e.CreditAccount, &e.Amount,
			&e.JournalType, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// --- Admin APIs ---

// VerifyIntegrity checks hash chain continuity and the global zero-sum
// invariant over projected balances.
func (qs *QueryService) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{}

	// Check hash chain continuity
	rows, err := qs.db.QueryContext(ctx, `
		SELECT e1.sequence
		FROM event_log.events e1
		LEFT JOIN event_log.events e2 ON e2.sequence = e1.sequence - 1
		WHERE e1.sequence > 0 AND e1.prev_hash != COALESCE(e2.state_hash, e1.prev_hash)
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		report.HashChainBreaks = append(report.HashChainBreaks, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Global balance must sum to zero across all accounts
	var imbalance sql.NullInt64
	if err := qs.db.QueryRowContext(ctx, `
		SELECT SUM(balance) FROM projections.balances
	`).Scan(&imbalance); err != nil {
		return nil, err
	}
	report.GlobalImbalance = imbalance.Int64

	report.IsHealthy = len(report.HashChainBreaks) == 0 && report.GlobalImbalance == 0
	return report, nil
}

// --- helpers ---

func (qs *QueryService) getWatermark(ctx context.Context) (int64, error) {
	var seq int64
	err := qs.db.QueryRowContext(ctx, `
		SELECT COALESCE(last_sequence, 0) FROM projections.watermark WHERE worker_id = 'main'
	`).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return seq, err
}

func (qs *QueryService) getProjectedBalance(ctx context.Context, accountPath string) (int64, error) {
	var balance int64
	err := qs.db.QueryRowContext(ctx, `
		SELECT COALESCE(balance, 0) FROM projections.balances
		WHERE account_path = $1
	`, accountPath).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return balance, err
}
