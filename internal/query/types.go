package query

import "github.com/google/uuid"

// MemberBalanceResponse represents a member's funding account for API
// queries. Display fields carry the decimal token value (1e6 fixed-point
// rendered with 6 fractional digits).
type MemberBalanceResponse struct {
	Member uuid.UUID `json:"member"`

	// Funding is the member's boundary account: negative while tokens are
	// staked, recovering as withdrawals pay out.
	FundingBalance int64  `json:"funding_balance"`
	FundingDisplay string `json:"funding_display"`

	AsOfSequence int64 `json:"as_of_sequence"` // last projected event sequence
}

// PoolOverviewResponse represents a pool's ledger accounts for API queries.
type PoolOverviewResponse struct {
	PoolID uint32 `json:"pool_id"`

	PrincipalBalance int64  `json:"principal_balance"`
	PrincipalDisplay string `json:"principal_display"`
	RewardsBalance   int64  `json:"rewards_balance"`
	RewardsDisplay   string `json:"rewards_display"`

	AsOfSequence int64 `json:"as_of_sequence"`
}

// DepositHistoryResponse represents one stake deposit for API queries.
type DepositHistoryResponse struct {
	Sequence         int64  `json:"sequence"`
	PoolID           uint32 `json:"pool_id"`
	PositionID       int64  `json:"position_id"`
	TrancheID        int64  `json:"tranche_id"`
	Amount           int64  `json:"amount"`
	AmountDisplay    string `json:"amount_display"`
	StakeShares      int64  `json:"stake_shares"`
	RewardsShares    int64  `json:"rewards_shares"`
	FeeRewardsShares int64  `json:"fee_rewards_shares"`
	Timestamp        int64  `json:"timestamp"`
	AsOfSequence     int64  `json:"as_of_sequence"`
}

// WithdrawalHistoryResponse represents one withdrawal for API queries.
type WithdrawalHistoryResponse struct {
	Sequence       int64  `json:"sequence"`
	PoolID         uint32 `json:"pool_id"`
	PositionID     int64  `json:"position_id"`
	StakePaid      int64  `json:"stake_paid"`
	RewardsPaid    int64  `json:"rewards_paid"`
	StakeDisplay   string `json:"stake_display"`
	RewardsDisplay string `json:"rewards_display"`
	Timestamp      int64  `json:"timestamp"`
	AsOfSequence   int64  `json:"as_of_sequence"`
}

// AllocationHistoryResponse represents one cover allocation for API queries.
type AllocationHistoryResponse struct {
	Sequence          int64  `json:"sequence"`
	PoolID            uint32 `json:"pool_id"`
	ProductID         uint32 `json:"product_id"`
	Amount            int64  `json:"amount"`
	AmountDisplay     string `json:"amount_display"`
	Premium           int64  `json:"premium"`
	PremiumDisplay    string `json:"premium_display"`
	Price             int64  `json:"price"` // basis points per year
	RewardsMinted     int64  `json:"rewards_minted"`
	StreamEndsAt      int64  `json:"stream_ends_at"`
	CapacityReleaseAt int64  `json:"capacity_release_at"`
	Timestamp         int64  `json:"timestamp"`
	AsOfSequence      int64  `json:"as_of_sequence"`
}

// JournalHistoryEntry represents a journal entry for API queries.
type JournalHistoryEntry struct {
	JournalID     string `json:"journal_id"`
	BatchID       string `json:"batch_id"`
	EventRef      string `json:"event_ref"`
	Sequence      int64  `json:"sequence"`
	DebitAccount  string `json:"debit_account"`
	CreditAccount string `json:"credit_account"`
	Amount        int64  `json:"amount"`
	JournalType   int32  `json:"journal_type"`
	Timestamp     int64  `json:"timestamp"`
}

// IntegrityReport is the result of an integrity verification check.
type IntegrityReport struct {
	IsHealthy       bool    `json:"is_healthy"`
	HashChainBreaks []int64 `json:"hash_chain_breaks,omitempty"`
	GlobalImbalance int64   `json:"global_imbalance"`
}
