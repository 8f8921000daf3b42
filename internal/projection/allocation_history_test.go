package projection_test

import (
	"testing"

	"CoverPool/internal/projection"
)

func TestAllocationHistory_QueryByPool(t *testing.T) {
	p := projection.NewAllocationHistoryProjection()

	for i := int64(1); i <= 5; i++ {
		p.AddEntry(projection.AllocationHistoryEntry{
			Sequence:  i,
			PoolID:    1,
			ProductID: uint32(i % 2),
			Amount:    i * 1000,
		})
	}
	p.AddEntry(projection.AllocationHistoryEntry{Sequence: 6, PoolID: 2, Amount: 999})

	got := p.QueryByPool(1, 3)
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	// Newest first
	if got[0].Sequence != 5 || got[1].Sequence != 4 || got[2].Sequence != 3 {
		t.Errorf("wrong order: %v %v %v", got[0].Sequence, got[1].Sequence, got[2].Sequence)
	}

	if n := len(p.QueryByPool(2, 10)); n != 1 {
		t.Errorf("pool 2: expected 1 entry, got %d", n)
	}
	if n := len(p.QueryByPool(99, 10)); n != 0 {
		t.Errorf("unknown pool: expected 0 entries, got %d", n)
	}
}

func TestAllocationHistory_EvictsOldestPastCap(t *testing.T) {
	p := projection.NewAllocationHistoryProjection()

	for i := int64(1); i <= 5000; i++ {
		p.AddEntry(projection.AllocationHistoryEntry{Sequence: i, PoolID: 1})
	}

	got := p.QueryByPool(1, 1)
	if len(got) != 1 || got[0].Sequence != 5000 {
		t.Fatalf("newest entry must survive eviction, got %v", got)
	}

	// The oldest entries are gone; a deep query bottoms out at the cap.
	all := p.QueryByPool(1, 10_000)
	if len(all) != 4096 {
		t.Errorf("expected 4096 retained entries, got %d", len(all))
	}
	if all[len(all)-1].Sequence != 5000-4096+1 {
		t.Errorf("oldest retained sequence = %d, want %d", all[len(all)-1].Sequence, 5000-4096+1)
	}
}

func TestAllocationHistory_QueryByProduct(t *testing.T) {
	p := projection.NewAllocationHistoryProjection()

	p.AddEntry(projection.AllocationHistoryEntry{Sequence: 1, PoolID: 1, ProductID: 7})
	p.AddEntry(projection.AllocationHistoryEntry{Sequence: 2, PoolID: 1, ProductID: 8})
	p.AddEntry(projection.AllocationHistoryEntry{Sequence: 3, PoolID: 1, ProductID: 7})

	got := p.QueryByProduct(1, 7, 10)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Sequence != 3 {
		t.Errorf("expected newest first, got sequence %d", got[0].Sequence)
	}
}
