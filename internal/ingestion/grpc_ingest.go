package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"CoverPool/internal/event"
)

// GRPCIngestService provides admin/manual event injection via gRPC.
// This surface is for pool administration and operational fixes, not for
// high-throughput ingestion (use NATS for that).
type GRPCIngestService struct {
	eventChan chan<- event.Event
}

func NewGRPCIngestService(eventChan chan<- event.Event) *GRPCIngestService {
	return &GRPCIngestService{eventChan: eventChan}
}

// InjectPoolCreated manually injects a PoolCreated event.
func (s *GRPCIngestService) InjectPoolCreated(
	ctx context.Context,
	manager uuid.UUID,
	poolID uint32,
	isPrivate bool,
	initialFee, maxFee int64,
	metadataHash string,
) error {
	if maxFee < 0 || maxFee >= 100 {
		return fmt.Errorf("max fee must be in [0, 100)")
	}
	if initialFee < 0 || initialFee > maxFee {
		return fmt.Errorf("initial fee must be in [0, max fee]")
	}

	evt := &event.PoolCreated{
		RequestID:    uuid.New(),
		Manager:      manager,
		Pool:         poolID,
		IsPrivate:    isPrivate,
		InitialFee:   initialFee,
		MaxFee:       maxFee,
		MetadataHash: metadataHash,
		Sequence:     0, // Pool creation is the first event on its partition
		Timestamp:    time.Now().Unix(),
	}

	select {
	case s.eventChan <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InjectProductUpdate manually injects a ProductUpdated event.
func (s *GRPCIngestService) InjectProductUpdate(
	ctx context.Context,
	caller uuid.UUID,
	poolID, productID uint32,
	targetWeight, targetPrice int64,
	sourceSequence int64,
) error {
	if targetWeight < 0 || targetWeight > 100 {
		return fmt.Errorf("target weight must be in [0, 100]")
	}
	if targetPrice <= 0 {
		return fmt.Errorf("target price must be positive")
	}

	evt := &event.ProductUpdated{
		RequestID:    uuid.New(),
		Caller:       caller,
		Pool:         poolID,
		Product:      productID,
		TargetWeight: targetWeight,
		TargetPrice:  targetPrice,
		Sequence:     sourceSequence,
		Timestamp:    time.Now().Unix(),
	}

	select {
	case s.eventChan <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InjectGovernanceLock manually injects a GovernanceLockChanged event.
func (s *GRPCIngestService) InjectGovernanceLock(
	ctx context.Context,
	poolID uint32,
	positionID int64,
	lockedUntil int64,
	sourceSequence int64,
) error {
	evt := &event.GovernanceLockChanged{
		RequestID:   uuid.New(),
		Pool:        poolID,
		PositionID:  positionID,
		LockedUntil: lockedUntil,
		Sequence:    sourceSequence,
		Timestamp:   time.Now().Unix(),
	}

	select {
	case s.eventChan <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InjectDeallocation manually injects a CoverDeallocated event (claim
// settlement or buyback processed out-of-band).
func (s *GRPCIngestService) InjectDeallocation(
	ctx context.Context,
	coverID uuid.UUID,
	poolID, productID uint32,
	amount, capacityReleaseAt int64,
	sourceSequence int64,
) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}

	evt := &event.CoverDeallocated{
		CoverID:           coverID,
		Pool:              poolID,
		Product:           productID,
		Amount:            amount,
		CapacityReleaseAt: capacityReleaseAt,
		Sequence:          sourceSequence,
		Timestamp:         time.Now().Unix(),
	}

	select {
	case s.eventChan <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
