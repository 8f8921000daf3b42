package projection

import (
	"sync"
)

// AllocationHistoryEntry represents one cover allocation against a pool.
type AllocationHistoryEntry struct {
	Sequence          int64
	PoolID            uint32
	ProductID         uint32
	Amount            int64
	Premium           int64
	Price             int64
	RewardsMinted     int64
	StreamEndsAt      int64
	CapacityReleaseAt int64
	Timestamp         int64
}

// maxHistoryEntries bounds the in-memory history; older allocations are
// served from projections.allocation_history.
const maxHistoryEntries = 4096

// AllocationHistoryProjection is the hot read path for recent-allocation
// queries: the projection worker appends committed allocations here and the
// query service serves first-page requests from it without touching the
// database. The durable copy lives in projections.allocation_history.
type AllocationHistoryProjection struct {
	mu      sync.RWMutex
	entries []AllocationHistoryEntry
}

func NewAllocationHistoryProjection() *AllocationHistoryProjection {
	return &AllocationHistoryProjection{
		entries: make([]AllocationHistoryEntry, 0),
	}
}

// AddEntry records an allocation, evicting the oldest past the cap.
func (p *AllocationHistoryProjection) AddEntry(entry AllocationHistoryEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.entries = append(p.entries, entry)
	if len(p.entries) > maxHistoryEntries {
		p.entries = append(p.entries[:0:0], p.entries[len(p.entries)-maxHistoryEntries:]...)
	}
}

// QueryByPool returns the most recent allocations for a pool, newest first.
func (p *AllocationHistoryProjection) QueryByPool(poolID uint32, limit int) []AllocationHistoryEntry {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]AllocationHistoryEntry, 0)

	for i := len(p.entries) - 1; i >= 0 && len(result) < limit; i-- {
		if p.entries[i].PoolID == poolID {
			result = append(result, p.entries[i])
		}
	}

	return result
}

// QueryByProduct returns the most recent allocations for one product in a
// pool, newest first.
func (p *AllocationHistoryProjection) QueryByProduct(poolID, productID uint32, limit int) []AllocationHistoryEntry {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]AllocationHistoryEntry, 0)

	for i := len(p.entries) - 1; i >= 0 && len(result) < limit; i-- {
		if p.entries[i].PoolID == poolID && p.entries[i].ProductID == productID {
			result = append(result, p.entries[i])
		}
	}

	return result
}
