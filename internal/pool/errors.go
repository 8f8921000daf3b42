package pool

import "errors"

var (
	ErrAlreadyInitialized = errors.New("pool already initialized")
	ErrFeeExceedsMax      = errors.New("pool fee exceeds maximum")
	ErrMaxFeeOutOfRange   = errors.New("maximum pool fee out of range")
	ErrZeroAmount         = errors.New("amount must be positive")
	ErrInvalidTranche     = errors.New("tranche is expired or beyond the deposit horizon")
	ErrUnknownProduct     = errors.New("product not configured in pool")
	ErrInvalidWeight      = errors.New("target weight out of range")
	ErrInvalidPeriod      = errors.New("cover period must be positive")
	ErrPrivatePool        = errors.New("pool is private")
	ErrNotManager         = errors.New("caller is not the pool manager")
	ErrManagerLocked      = errors.New("position is locked for governance voting")
	ErrUnknownPosition    = errors.New("position does not exist")
	ErrNotPositionOwner   = errors.New("caller does not own the position")
)
