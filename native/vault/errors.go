package vault

import "errors"

var (
	ErrNilState                 = errors.New("vault: state not configured")
	ErrVaultNotFound            = errors.New("vault: vault not found")
	ErrVaultExists              = errors.New("vault: vault already initialised")
	ErrVaultInactive            = errors.New("vault: vault inactive")
	ErrInvalidParams            = errors.New("vault: invalid parameters")
	ErrInvalidAmount            = errors.New("vault: amount must be positive")
	ErrInvalidLock              = errors.New("vault: early withdrawal fee exceeds 100%")
	ErrInsufficientBalance      = errors.New("vault: insufficient balance")
	ErrInsufficientLiquidity    = errors.New("vault: insufficient liquidity")
	ErrMaxLiquidity             = errors.New("vault: max liquidity reached")
	ErrLockNotExpired           = errors.New("vault: lock not expired")
	ErrNothingToClaim           = errors.New("vault: nothing to claim")
	ErrNoDebt                   = errors.New("vault: no outstanding debt")
	ErrUserHasStakedCVT         = errors.New("vault: user has staked CVT")
	ErrUserHasBorrow            = errors.New("vault: user has outstanding borrow")
	ErrExceedsMaxBorrow         = errors.New("vault: exceeds max borrow ratio")
	ErrUtilizationTooHigh       = errors.New("vault: utilization too high")
	ErrExceedsMaxProtocolBorrow = errors.New("vault: exceeds max protocol borrow")
	ErrStakingNotConfigured     = errors.New("vault: staking contract not configured")
	ErrPositionSolvent          = errors.New("vault: position is solvent")
	ErrCollateralMoved          = errors.New("vault: collateral CVT not held by borrower")
	ErrCrossCollateralDisabled  = errors.New("vault: cross-collateral not enabled")
)
