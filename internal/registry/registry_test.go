package registry_test

import (
	"testing"

	"github.com/google/uuid"

	"CoverPool/internal/registry"
)

func TestPositionRegistry_MintStartsAtOne(t *testing.T) {
	r := registry.NewPositionRegistry()
	alice := uuid.New()
	bob := uuid.New()

	if id := r.Mint(1, alice); id != 1 {
		t.Fatalf("first mint = %d, want 1 (id 0 is the manager fee account)", id)
	}
	if id := r.Mint(1, bob); id != 2 {
		t.Fatalf("second mint = %d, want 2", id)
	}

	// Independent counter per pool.
	if id := r.Mint(2, alice); id != 1 {
		t.Fatalf("first mint in pool 2 = %d, want 1", id)
	}

	owner, ok := r.OwnerOf(1, 2)
	if !ok || owner != bob {
		t.Fatalf("OwnerOf(1,2) = %v,%v, want bob", owner, ok)
	}
	if _, ok := r.OwnerOf(1, 99); ok {
		t.Fatal("unknown position must not resolve")
	}
}

func TestGovernanceLocks(t *testing.T) {
	g := registry.NewGovernanceLocks()

	g.Set(1, 5, 1000)
	if !g.IsLocked(1, 5, 999) {
		t.Fatal("position should be locked before expiry")
	}
	if g.IsLocked(1, 5, 1000) {
		t.Fatal("lock expires at its deadline")
	}
	if g.IsLocked(1, 6, 0) {
		t.Fatal("other positions unaffected")
	}

	g.Set(1, 5, 0)
	if g.IsLocked(1, 5, 0) {
		t.Fatal("clearing the lock must unlock immediately")
	}
}
