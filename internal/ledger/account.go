package ledger

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// AccountScope represents the top-level account namespace
type AccountScope uint8

const (
	AccountScopeMember AccountScope = iota
	AccountScopePool
	AccountScopeExternal
)

// AccountSubType represents the account purpose
type AccountSubType uint8

const (
	// Member sub-types. Funding is the member's boundary account: it goes
	// negative as tokens flow in and recovers as payouts flow back.
	SubTypeMemberFunding AccountSubType = iota

	// Pool sub-types
	SubTypePoolPrincipal
	SubTypePoolRewards

	// External sub-types
	SubTypeExternalRewardsMint
)

// AccountKey is the in-memory key for balance tracking (18 bytes, cache-friendly)
type AccountKey struct {
	Scope    AccountScope
	EntityID [16]byte // UUID for members, pool id for pools
	SubType  AccountSubType
}

// NewMemberAccountKey creates a key for member boundary accounts
func NewMemberAccountKey(memberID uuid.UUID, subType AccountSubType) AccountKey {
	return AccountKey{
		Scope:    AccountScopeMember,
		EntityID: memberID,
		SubType:  subType,
	}
}

// NewPoolAccountKey creates a key for pool accounts
func NewPoolAccountKey(poolID uint32, subType AccountSubType) AccountKey {
	var entityID [16]byte
	binary.BigEndian.PutUint32(entityID[:4], poolID)
	return AccountKey{
		Scope:    AccountScopePool,
		EntityID: entityID,
		SubType:  subType,
	}
}

// NewExternalAccountKey creates a key for external boundary accounts
func NewExternalAccountKey(subType AccountSubType) AccountKey {
	return AccountKey{
		Scope:   AccountScopeExternal,
		SubType: subType,
	}
}

// PoolID recovers the pool id from a pool-scoped key
func (k AccountKey) PoolID() uint32 {
	return binary.BigEndian.Uint32(k.EntityID[:4])
}

// AccountPath returns the string representation for storage/logging
func (k AccountKey) AccountPath() string {
	switch k.Scope {
	case AccountScopeMember:
		uid := uuid.UUID(k.EntityID)
		return fmt.Sprintf("member:%s:%s", uid.String(), k.subTypeName())
	case AccountScopePool:
		return fmt.Sprintf("pool:%d:%s", k.PoolID(), k.subTypeName())
	case AccountScopeExternal:
		return fmt.Sprintf("external:%s", k.subTypeName())
	}
	return "unknown"
}

// ParseAccountPath is the inverse of AccountPath, used when restoring
// balances from a snapshot.
func ParseAccountPath(path string) (AccountKey, error) {
	parts := strings.Split(path, ":")
	switch {
	case len(parts) == 3 && parts[0] == "member":
		uid, err := uuid.Parse(parts[1])
		if err != nil {
			return AccountKey{}, fmt.Errorf("parse account path %q: %w", path, err)
		}
		sub, err := parseSubType(parts[2])
		if err != nil {
			return AccountKey{}, fmt.Errorf("parse account path %q: %w", path, err)
		}
		return NewMemberAccountKey(uid, sub), nil
	case len(parts) == 3 && parts[0] == "pool":
		poolID, err := strconv.ParseUint(parts[1], 10, 32)
		if err != nil {
			return AccountKey{}, fmt.Errorf("parse account path %q: %w", path, err)
		}
		sub, err := parseSubType(parts[2])
		if err != nil {
			return AccountKey{}, fmt.Errorf("parse account path %q: %w", path, err)
		}
		return NewPoolAccountKey(uint32(poolID), sub), nil
	case len(parts) == 2 && parts[0] == "external":
		sub, err := parseSubType(parts[1])
		if err != nil {
			return AccountKey{}, fmt.Errorf("parse account path %q: %w", path, err)
		}
		return NewExternalAccountKey(sub), nil
	}
	return AccountKey{}, fmt.Errorf("parse account path %q: unknown scope", path)
}

func parseSubType(name string) (AccountSubType, error) {
	switch name {
	case "funding":
		return SubTypeMemberFunding, nil
	case "principal":
		return SubTypePoolPrincipal, nil
	case "rewards":
		return SubTypePoolRewards, nil
	case "rewards_mint":
		return SubTypeExternalRewardsMint, nil
	}
	return 0, fmt.Errorf("unknown account sub-type %q", name)
}

func (k AccountKey) subTypeName() string {
	switch k.SubType {
	case SubTypeMemberFunding:
		return "funding"
	case SubTypePoolPrincipal:
		return "principal"
	case SubTypePoolRewards:
		return "rewards"
	case SubTypeExternalRewardsMint:
		return "rewards_mint"
	default:
		return "unknown"
	}
}
