package ingestion

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"CoverPool/internal/event"
)

// ParseRawEvent converts a RawEvent (JSON bytes + event type string) into a
// typed event.Event. The ingestion shell validates, parses, and converts raw
// events before sending to the deterministic core.
func ParseRawEvent(raw RawEvent, eventType string) (event.Event, error) {
	switch eventType {
	case "PoolCreated":
		return parsePoolCreated(raw.Data)
	case "StakeDeposited":
		return parseStakeDeposited(raw.Data)
	case "StakeWithdrawn":
		return parseStakeWithdrawn(raw.Data)
	case "CoverAllocated":
		return parseCoverAllocated(raw.Data)
	case "CoverDeallocated":
		return parseCoverDeallocated(raw.Data)
	case "PoolFeeChanged":
		return parsePoolFeeChanged(raw.Data)
	case "PoolPrivacyChanged":
		return parsePoolPrivacyChanged(raw.Data)
	case "ProductUpdated":
		return parseProductUpdated(raw.Data)
	case "GovernanceLockChanged":
		return parseGovernanceLockChanged(raw.Data)
	default:
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}
}

// MarshalWireEvent serializes a typed event back into its wire JSON. The
// event log stores this form so replay can feed rows straight back through
// ParseRawEvent.
func MarshalWireEvent(evt event.Event) ([]byte, error) {
	switch e := evt.(type) {
	case *event.PoolCreated:
		return json.Marshal(poolCreatedJSON{
			RequestID: e.RequestID.String(), Manager: e.Manager.String(),
			PoolID: e.Pool, IsPrivate: e.IsPrivate, InitialFee: e.InitialFee,
			MaxFee: e.MaxFee, MetadataHash: e.MetadataHash,
			Sequence: e.Sequence, Timestamp: e.Timestamp,
		})
	case *event.StakeDeposited:
		return json.Marshal(stakeDepositedJSON{
			DepositID: e.DepositID.String(), Member: e.Member.String(),
			PoolID: e.Pool, Amount: e.Amount, TrancheID: e.TrancheID,
			PositionID: e.PositionID, Sequence: e.Sequence, Timestamp: e.Timestamp,
		})
	case *event.StakeWithdrawn:
		return json.Marshal(stakeWithdrawnJSON{
			WithdrawalID: e.WithdrawalID.String(), Member: e.Member.String(),
			PoolID: e.Pool, PositionID: e.PositionID,
			WithdrawStake: e.WithdrawStake, WithdrawRewards: e.WithdrawRewards,
			TrancheIDs: e.TrancheIDs, Sequence: e.Sequence, Timestamp: e.Timestamp,
		})
	case *event.CoverAllocated:
		return json.Marshal(coverAllocatedJSON{
			CoverID: e.CoverID.String(), Buyer: e.Buyer.String(),
			PoolID: e.Pool, ProductID: e.Product, Amount: e.Amount,
			Period: e.Period, GracePeriod: e.GracePeriod, RewardRatio: e.RewardRatio,
			Sequence: e.Sequence, Timestamp: e.Timestamp,
		})
	case *event.CoverDeallocated:
		return json.Marshal(coverDeallocatedJSON{
			CoverID: e.CoverID.String(), PoolID: e.Pool, ProductID: e.Product,
			Amount: e.Amount, CapacityReleaseAt: e.CapacityReleaseAt,
			Sequence: e.Sequence, Timestamp: e.Timestamp,
		})
	case *event.PoolFeeChanged:
		return json.Marshal(poolFeeChangedJSON{
			RequestID: e.RequestID.String(), Caller: e.Caller.String(),
			PoolID: e.Pool, NewFee: e.NewFee, Sequence: e.Sequence, Timestamp: e.Timestamp,
		})
	case *event.PoolPrivacyChanged:
		return json.Marshal(poolPrivacyChangedJSON{
			RequestID: e.RequestID.String(), Caller: e.Caller.String(),
			PoolID: e.Pool, IsPrivate: e.IsPrivate, Sequence: e.Sequence, Timestamp: e.Timestamp,
		})
	case *event.ProductUpdated:
		return json.Marshal(productUpdatedJSON{
			RequestID: e.RequestID.String(), Caller: e.Caller.String(),
			PoolID: e.Pool, ProductID: e.Product,
			TargetWeight: e.TargetWeight, TargetPrice: e.TargetPrice,
			Sequence: e.Sequence, Timestamp: e.Timestamp,
		})
	case *event.GovernanceLockChanged:
		return json.Marshal(governanceLockChangedJSON{
			RequestID: e.RequestID.String(), PoolID: e.Pool,
			PositionID: e.PositionID, LockedUntil: e.LockedUntil,
			Sequence: e.Sequence, Timestamp: e.Timestamp,
		})
	default:
		return nil, fmt.Errorf("unknown event type: %T", evt)
	}
}

// --- JSON wire formats ---
// These structs represent the JSON payloads received from NATS.
// Field names use snake_case to match upstream producers.

type poolCreatedJSON struct {
	RequestID    string `json:"request_id"`
	Manager      string `json:"manager"`
	PoolID       uint32 `json:"pool_id"`
	IsPrivate    bool   `json:"is_private"`
	InitialFee   int64  `json:"initial_fee"`
	MaxFee       int64  `json:"max_fee"`
	MetadataHash string `json:"metadata_hash"`
	Sequence     int64  `json:"sequence"`
	Timestamp    int64  `json:"timestamp"`
}

func parsePoolCreated(data []byte) (*event.PoolCreated, error) {
	var j poolCreatedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse PoolCreated: %w", err)
	}
	requestID, err := uuid.Parse(j.RequestID)
	if err != nil {
		return nil, fmt.Errorf("parse request_id: %w", err)
	}
	manager, err := uuid.Parse(j.Manager)
	if err != nil {
		return nil, fmt.Errorf("parse manager: %w", err)
	}
	return &event.PoolCreated{
		RequestID:    requestID,
		Manager:      manager,
		Pool:         j.PoolID,
		IsPrivate:    j.IsPrivate,
		InitialFee:   j.InitialFee,
		MaxFee:       j.MaxFee,
		MetadataHash: j.MetadataHash,
		Sequence:     j.Sequence,
		Timestamp:    j.Timestamp,
	}, nil
}

type stakeDepositedJSON struct {
	DepositID  string `json:"deposit_id"`
	Member     string `json:"member"`
	PoolID     uint32 `json:"pool_id"`
	Amount     int64  `json:"amount"`
	TrancheID  int64  `json:"tranche_id"`
	PositionID int64  `json:"position_id"`
	Sequence   int64  `json:"sequence"`
	Timestamp  int64  `json:"timestamp"`
}

func parseStakeDeposited(data []byte) (*event.StakeDeposited, error) {
	var j stakeDepositedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse StakeDeposited: %w", err)
	}
	depositID, err := uuid.Parse(j.DepositID)
	if err != nil {
		return nil, fmt.Errorf("parse deposit_id: %w", err)
	}
	member, err := uuid.Parse(j.Member)
	if err != nil {
		return nil, fmt.Errorf("parse member: %w", err)
	}
	return &event.StakeDeposited{
		DepositID:  depositID,
		Member:     member,
		Pool:       j.PoolID,
		Amount:     j.Amount,
		TrancheID:  j.TrancheID,
		PositionID: j.PositionID,
		Sequence:   j.Sequence,
		Timestamp:  j.Timestamp,
	}, nil
}

type stakeWithdrawnJSON struct {
	WithdrawalID    string  `json:"withdrawal_id"`
	Member          string  `json:"member"`
	PoolID          uint32  `json:"pool_id"`
	PositionID      int64   `json:"position_id"`
	WithdrawStake   bool    `json:"withdraw_stake"`
	WithdrawRewards bool    `json:"withdraw_rewards"`
	TrancheIDs      []int64 `json:"tranche_ids"`
	Sequence        int64   `json:"sequence"`
	Timestamp       int64   `json:"timestamp"`
}

func parseStakeWithdrawn(data []byte) (*event.StakeWithdrawn, error) {
	var j stakeWithdrawnJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse StakeWithdrawn: %w", err)
	}
	withdrawalID, err := uuid.Parse(j.WithdrawalID)
	if err != nil {
		return nil, fmt.Errorf("parse withdrawal_id: %w", err)
	}
	member, err := uuid.Parse(j.Member)
	if err != nil {
		return nil, fmt.Errorf("parse member: %w", err)
	}
	return &event.StakeWithdrawn{
		WithdrawalID:    withdrawalID,
		Member:          member,
		Pool:            j.PoolID,
		PositionID:      j.PositionID,
		WithdrawStake:   j.WithdrawStake,
		WithdrawRewards: j.WithdrawRewards,
		TrancheIDs:      j.TrancheIDs,
		Sequence:        j.Sequence,
		Timestamp:       j.Timestamp,
	}, nil
}

type coverAllocatedJSON struct {
	CoverID     string `json:"cover_id"`
	Buyer       string `json:"buyer"`
	PoolID      uint32 `json:"pool_id"`
	ProductID   uint32 `json:"product_id"`
	Amount      int64  `json:"amount"`
	Period      int64  `json:"period"`
	GracePeriod int64  `json:"grace_period"`
	RewardRatio int64  `json:"reward_ratio"`
	Sequence    int64  `json:"sequence"`
	Timestamp   int64  `json:"timestamp"`
}

func parseCoverAllocated(data []byte) (*event.CoverAllocated, error) {
	var j coverAllocatedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse CoverAllocated: %w", err)
	}
	coverID, err := uuid.Parse(j.CoverID)
	if err != nil {
		return nil, fmt.Errorf("parse cover_id: %w", err)
	}
	buyer, err := uuid.Parse(j.Buyer)
	if err != nil {
		return nil, fmt.Errorf("parse buyer: %w", err)
	}
	return &event.CoverAllocated{
		CoverID:     coverID,
		Buyer:       buyer,
		Pool:        j.PoolID,
		Product:     j.ProductID,
		Amount:      j.Amount,
		Period:      j.Period,
		GracePeriod: j.GracePeriod,
		RewardRatio: j.RewardRatio,
		Sequence:    j.Sequence,
		Timestamp:   j.Timestamp,
	}, nil
}

type coverDeallocatedJSON struct {
	CoverID           string `json:"cover_id"`
	PoolID            uint32 `json:"pool_id"`
	ProductID         uint32 `json:"product_id"`
	Amount            int64  `json:"amount"`
	CapacityReleaseAt int64  `json:"capacity_release_at"`
	Sequence          int64  `json:"sequence"`
	Timestamp         int64  `json:"timestamp"`
}

func parseCoverDeallocated(data []byte) (*event.CoverDeallocated, error) {
	var j coverDeallocatedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse CoverDeallocated: %w", err)
	}
	coverID, err := uuid.Parse(j.CoverID)
	if err != nil {
		return nil, fmt.Errorf("parse cover_id: %w", err)
	}
	return &event.CoverDeallocated{
		CoverID:           coverID,
		Pool:              j.PoolID,
		Product:           j.ProductID,
		Amount:            j.Amount,
		CapacityReleaseAt: j.CapacityReleaseAt,
		Sequence:          j.Sequence,
		Timestamp:         j.Timestamp,
	}, nil
}

type poolFeeChangedJSON struct {
	RequestID string `json:"request_id"`
	Caller    string `json:"caller"`
	PoolID    uint32 `json:"pool_id"`
	NewFee    int64  `json:"new_fee"`
	Sequence  int64  `json:"sequence"`
	Timestamp int64  `json:"timestamp"`
}

func parsePoolFeeChanged(data []byte) (*event.PoolFeeChanged, error) {
	var j poolFeeChangedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse PoolFeeChanged: %w", err)
	}
	requestID, err := uuid.Parse(j.RequestID)
	if err != nil {
		return nil, fmt.Errorf("parse request_id: %w", err)
	}
	caller, err := uuid.Parse(j.Caller)
	if err != nil {
		return nil, fmt.Errorf("parse caller: %w", err)
	}
	return &event.PoolFeeChanged{
		RequestID: requestID,
		Caller:    caller,
		Pool:      j.PoolID,
		NewFee:    j.NewFee,
		Sequence:  j.Sequence,
		Timestamp: j.Timestamp,
	}, nil
}

type poolPrivacyChangedJSON struct {
	RequestID string `json:"request_id"`
	Caller    string `json:"caller"`
	PoolID    uint32 `json:"pool_id"`
	IsPrivate bool   `json:"is_private"`
	Sequence  int64  `json:"sequence"`
	Timestamp int64  `json:"timestamp"`
}

func parsePoolPrivacyChanged(data []byte) (*event.PoolPrivacyChanged, error) {
	var j poolPrivacyChangedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse PoolPrivacyChanged: %w", err)
	}
	requestID, err := uuid.Parse(j.RequestID)
	if err != nil {
		return nil, fmt.Errorf("parse request_id: %w", err)
	}
	caller, err := uuid.Parse(j.Caller)
	if err != nil {
		return nil, fmt.Errorf("parse caller: %w", err)
	}
	return &event.PoolPrivacyChanged{
		RequestID: requestID,
		Caller:    caller,
		Pool:      j.PoolID,
		IsPrivate: j.IsPrivate,
		Sequence:  j.Sequence,
		Timestamp: j.Timestamp,
	}, nil
}

type productUpdatedJSON struct {
	RequestID    string `json:"request_id"`
	Caller       string `json:"caller"`
	PoolID       uint32 `json:"pool_id"`
	ProductID    uint32 `json:"product_id"`
	TargetWeight int64  `json:"target_weight"`
	TargetPrice  int64  `json:"target_price"`
	Sequence     int64  `json:"sequence"`
	Timestamp    int64  `json:"timestamp"`
}

func parseProductUpdated(data []byte) (*event.ProductUpdated, error) {
	var j productUpdatedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse ProductUpdated: %w", err)
	}
	requestID, err := uuid.Parse(j.RequestID)
	if err != nil {
		return nil, fmt.Errorf("parse request_id: %w", err)
	}
	caller, err := uuid.Parse(j.Caller)
	if err != nil {
		return nil, fmt.Errorf("parse caller: %w", err)
	}
	return &event.ProductUpdated{
		RequestID:    requestID,
		Caller:       caller,
		Pool:         j.PoolID,
		Product:      j.ProductID,
		TargetWeight: j.TargetWeight,
		TargetPrice:  j.TargetPrice,
		Sequence:     j.Sequence,
		Timestamp:    j.Timestamp,
	}, nil
}

type governanceLockChangedJSON struct {
	RequestID   string `json:"request_id"`
	PoolID      uint32 `json:"pool_id"`
	PositionID  int64  `json:"position_id"`
	LockedUntil int64  `json:"locked_until"`
	Sequence    int64  `json:"sequence"`
	Timestamp   int64  `json:"timestamp"`
}

func parseGovernanceLockChanged(data []byte) (*event.GovernanceLockChanged, error) {
	var j governanceLockChangedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse GovernanceLockChanged: %w", err)
	}
	requestID, err := uuid.Parse(j.RequestID)
	if err != nil {
		return nil, fmt.Errorf("parse request_id: %w", err)
	}
	return &event.GovernanceLockChanged{
		RequestID:   requestID,
		Pool:        j.PoolID,
		PositionID:  j.PositionID,
		LockedUntil: j.LockedUntil,
		Sequence:    j.Sequence,
		Timestamp:   j.Timestamp,
	}, nil
}
