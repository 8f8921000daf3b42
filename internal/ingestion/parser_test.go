package ingestion_test

import (
	"encoding/json"
	"testing"
	"time"

	"CoverPool/internal/event"
	"CoverPool/internal/ingestion"
)

func rawFromJSON(t *testing.T, v interface{}) ingestion.RawEvent {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return ingestion.RawEvent{
		Subject:   "test",
		Data:      data,
		Timestamp: time.Now(),
		AckFunc:   func() {},
		NakFunc:   func() {},
	}
}

func TestParsePoolCreated(t *testing.T) {
	payload := map[string]interface{}{
		"request_id":    "550e8400-e29b-41d4-a716-446655440000",
		"manager":       "660e8400-e29b-41d4-a716-446655440001",
		"pool_id":       uint32(7),
		"is_private":    true,
		"initial_fee":   int64(10),
		"max_fee":       int64(25),
		"metadata_hash": "QmHash",
		"sequence":      int64(0),
		"timestamp":     int64(1700000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "PoolCreated")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	pc, ok := evt.(*event.PoolCreated)
	if !ok {
		t.Fatalf("expected *event.PoolCreated, got %T", evt)
	}

	if pc.Pool != 7 {
		t.Errorf("pool_id: got %d, want 7", pc.Pool)
	}
	if !pc.IsPrivate {
		t.Error("is_private: got false, want true")
	}
	if pc.InitialFee != 10 {
		t.Errorf("initial_fee: got %d, want 10", pc.InitialFee)
	}
	if pc.MaxFee != 25 {
		t.Errorf("max_fee: got %d, want 25", pc.MaxFee)
	}
	if pc.MetadataHash != "QmHash" {
		t.Errorf("metadata_hash: got %s, want QmHash", pc.MetadataHash)
	}
	if pc.EventType() != event.EventTypePoolCreated {
		t.Errorf("event type: got %v, want PoolCreated", pc.EventType())
	}
}

func TestParseStakeDeposited(t *testing.T) {
	payload := map[string]interface{}{
		"deposit_id":  "550e8400-e29b-41d4-a716-446655440000",
		"member":      "660e8400-e29b-41d4-a716-446655440001",
		"pool_id":     uint32(3),
		"amount":      int64(1_000_000),
		"tranche_id":  int64(212),
		"position_id": int64(0),
		"sequence":    int64(5),
		"timestamp":   int64(1700000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "StakeDeposited")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	sd, ok := evt.(*event.StakeDeposited)
	if !ok {
		t.Fatalf("expected *event.StakeDeposited, got %T", evt)
	}

	if sd.Amount != 1_000_000 {
		t.Errorf("amount: got %d, want 1_000_000", sd.Amount)
	}
	if sd.TrancheID != 212 {
		t.Errorf("tranche_id: got %d, want 212", sd.TrancheID)
	}
	if sd.PositionID != 0 {
		t.Errorf("position_id: got %d, want 0", sd.PositionID)
	}
	if sd.SourceSequence() != 5 {
		t.Errorf("sequence: got %d, want 5", sd.SourceSequence())
	}
	if sd.EventType() != event.EventTypeStakeDeposited {
		t.Errorf("event type: got %v, want StakeDeposited", sd.EventType())
	}
}

func TestParseStakeWithdrawn(t *testing.T) {
	payload := map[string]interface{}{
		"withdrawal_id":    "550e8400-e29b-41d4-a716-446655440000",
		"member":           "660e8400-e29b-41d4-a716-446655440001",
		"pool_id":          uint32(3),
		"position_id":      int64(12),
		"withdraw_stake":   true,
		"withdraw_rewards": false,
		"tranche_ids":      []int64{210, 211},
		"sequence":         int64(9),
		"timestamp":        int64(1700000100),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "StakeWithdrawn")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	sw, ok := evt.(*event.StakeWithdrawn)
	if !ok {
		t.Fatalf("expected *event.StakeWithdrawn, got %T", evt)
	}

	if sw.PositionID != 12 {
		t.Errorf("position_id: got %d, want 12", sw.PositionID)
	}
	if !sw.WithdrawStake || sw.WithdrawRewards {
		t.Errorf("flags: got stake=%v rewards=%v, want stake only", sw.WithdrawStake, sw.WithdrawRewards)
	}
	if len(sw.TrancheIDs) != 2 || sw.TrancheIDs[0] != 210 || sw.TrancheIDs[1] != 211 {
		t.Errorf("tranche_ids: got %v, want [210 211]", sw.TrancheIDs)
	}
}

func TestParseCoverAllocated(t *testing.T) {
	payload := map[string]interface{}{
		"cover_id":     "550e8400-e29b-41d4-a716-446655440000",
		"buyer":        "660e8400-e29b-41d4-a716-446655440001",
		"pool_id":      uint32(3),
		"product_id":   uint32(7),
		"amount":       int64(500_000_000),
		"period":       int64(2_592_000),
		"grace_period": int64(604_800),
		"reward_ratio": int64(5_000),
		"sequence":     int64(20),
		"timestamp":    int64(1700000200),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "CoverAllocated")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	ca, ok := evt.(*event.CoverAllocated)
	if !ok {
		t.Fatalf("expected *event.CoverAllocated, got %T", evt)
	}

	if ca.Product != 7 {
		t.Errorf("product_id: got %d, want 7", ca.Product)
	}
	if ca.Amount != 500_000_000 {
		t.Errorf("amount: got %d, want 500_000_000", ca.Amount)
	}
	if ca.Period != 2_592_000 {
		t.Errorf("period: got %d, want 2_592_000", ca.Period)
	}
	if ca.RewardRatio != 5_000 {
		t.Errorf("reward_ratio: got %d, want 5_000", ca.RewardRatio)
	}
}

func TestParseCoverDeallocated(t *testing.T) {
	payload := map[string]interface{}{
		"cover_id":            "550e8400-e29b-41d4-a716-446655440000",
		"pool_id":             uint32(3),
		"product_id":          uint32(7),
		"amount":              int64(500_000_000),
		"capacity_release_at": int64(1703200000),
		"sequence":            int64(30),
		"timestamp":           int64(1700000300),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "CoverDeallocated")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	cd, ok := evt.(*event.CoverDeallocated)
	if !ok {
		t.Fatalf("expected *event.CoverDeallocated, got %T", evt)
	}

	if cd.CapacityReleaseAt != 1703200000 {
		t.Errorf("capacity_release_at: got %d, want 1703200000", cd.CapacityReleaseAt)
	}
	if cd.IdempotencyKey() != "550e8400-e29b-41d4-a716-446655440000:dealloc" {
		t.Errorf("idempotency key: got %s", cd.IdempotencyKey())
	}
}

func TestParseProductUpdated(t *testing.T) {
	payload := map[string]interface{}{
		"request_id":    "550e8400-e29b-41d4-a716-446655440000",
		"caller":        "660e8400-e29b-41d4-a716-446655440001",
		"pool_id":       uint32(3),
		"product_id":    uint32(9),
		"target_weight": int64(40),
		"target_price":  int64(300),
		"sequence":      int64(2),
		"timestamp":     int64(1700000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "ProductUpdated")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	pu, ok := evt.(*event.ProductUpdated)
	if !ok {
		t.Fatalf("expected *event.ProductUpdated, got %T", evt)
	}

	if pu.TargetWeight != 40 {
		t.Errorf("target_weight: got %d, want 40", pu.TargetWeight)
	}
	if pu.TargetPrice != 300 {
		t.Errorf("target_price: got %d, want 300", pu.TargetPrice)
	}
	if pu.IdempotencyKey() != "550e8400-e29b-41d4-a716-446655440000:9" {
		t.Errorf("idempotency key: got %s", pu.IdempotencyKey())
	}
}

func TestParseGovernanceLockChanged(t *testing.T) {
	payload := map[string]interface{}{
		"request_id":   "550e8400-e29b-41d4-a716-446655440000",
		"pool_id":      uint32(3),
		"position_id":  int64(0),
		"locked_until": int64(1710000000),
		"sequence":     int64(4),
		"timestamp":    int64(1700000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "GovernanceLockChanged")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	gl, ok := evt.(*event.GovernanceLockChanged)
	if !ok {
		t.Fatalf("expected *event.GovernanceLockChanged, got %T", evt)
	}

	if gl.LockedUntil != 1710000000 {
		t.Errorf("locked_until: got %d, want 1710000000", gl.LockedUntil)
	}
}

func TestParseUnknownEventType_Fails(t *testing.T) {
	raw := ingestion.RawEvent{Data: []byte(`{}`)}
	_, err := ingestion.ParseRawEvent(raw, "NonExistentType")
	if err == nil {
		t.Fatal("expected error for unknown event type")
	}
}

func TestParseInvalidJSON_Fails(t *testing.T) {
	raw := ingestion.RawEvent{Data: []byte(`{invalid json`)}
	_, err := ingestion.ParseRawEvent(raw, "StakeDeposited")
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestParseInvalidUUID_Fails(t *testing.T) {
	payload := map[string]interface{}{
		"deposit_id":  "not-a-uuid",
		"member":      "also-not-a-uuid",
		"pool_id":     uint32(1),
		"amount":      int64(1),
		"tranche_id":  int64(0),
		"position_id": int64(0),
		"sequence":    int64(0),
		"timestamp":   int64(0),
	}

	raw := rawFromJSON(t, payload)
	_, err := ingestion.ParseRawEvent(raw, "StakeDeposited")
	if err == nil {
		t.Fatal("expected error for invalid UUID")
	}
}
