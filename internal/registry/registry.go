package registry

import (
	"github.com/google/uuid"
)

// PositionRegistry mints staking position ids and tracks their owners.
// Position ids are pool-scoped and start at 1; id 0 is reserved for the
// pool manager's fee account and is never minted.
//
// The registry is part of deterministic state: minting order is decided by
// the event log, so replays reproduce identical ids.
type PositionRegistry struct {
	Next   map[uint32]int64               `json:"next"`
	Owners map[uint32]map[int64]uuid.UUID `json:"owners"`
}

func NewPositionRegistry() *PositionRegistry {
	return &PositionRegistry{
		Next:   make(map[uint32]int64),
		Owners: make(map[uint32]map[int64]uuid.UUID),
	}
}

// Mint assigns the next position id in the pool to owner.
func (r *PositionRegistry) Mint(poolID uint32, owner uuid.UUID) int64 {
	id := r.Next[poolID]
	if id == 0 {
		id = 1
	}
	r.Next[poolID] = id + 1

	owners, ok := r.Owners[poolID]
	if !ok {
		owners = make(map[int64]uuid.UUID)
		r.Owners[poolID] = owners
	}
	owners[id] = owner

	return id
}

// OwnerOf returns the owner of a position, if it exists.
func (r *PositionRegistry) OwnerOf(poolID uint32, positionID int64) (uuid.UUID, bool) {
	owners, ok := r.Owners[poolID]
	if !ok {
		return uuid.Nil, false
	}
	owner, ok := owners[positionID]
	return owner, ok
}

// GovernanceLocks tracks positions frozen for governance voting. A locked
// position cannot withdraw until its lock passes.
type GovernanceLocks struct {
	// Locks[poolID][positionID] = locked-until unix seconds.
	Locks map[uint32]map[int64]int64 `json:"locks"`
}

func NewGovernanceLocks() *GovernanceLocks {
	return &GovernanceLocks{Locks: make(map[uint32]map[int64]int64)}
}

// Set records a lock; until <= 0 clears it.
func (g *GovernanceLocks) Set(poolID uint32, positionID, until int64) {
	locks, ok := g.Locks[poolID]
	if !ok {
		if until <= 0 {
			return
		}
		locks = make(map[int64]int64)
		g.Locks[poolID] = locks
	}
	if until <= 0 {
		delete(locks, positionID)
		return
	}
	locks[positionID] = until
}

// IsLocked reports whether the position is still frozen at now.
func (g *GovernanceLocks) IsLocked(poolID uint32, positionID, now int64) bool {
	if locks, ok := g.Locks[poolID]; ok {
		return locks[positionID] > now
	}
	return false
}
