package collateral

import "errors"

var (
	ErrNilState               = errors.New("collateral: state not configured")
	ErrNotInitialised         = errors.New("collateral: manager not initialised")
	ErrAlreadyInitialised     = errors.New("collateral: manager already initialised")
	ErrInvalidParams          = errors.New("collateral: invalid parameters")
	ErrInvalidPrice           = errors.New("collateral: price must be positive")
	ErrPriceDeviation         = errors.New("collateral: price moved beyond the deviation bound")
	ErrNoPrice                = errors.New("collateral: no price for token")
	ErrStalePrice             = errors.New("collateral: price is stale")
	ErrVaultRegistered        = errors.New("collateral: vault already registered")
	ErrInsufficientCollateral = errors.New("collateral: insufficient collateral")
	ErrStakedCollateral       = errors.New("collateral: staked CVT cannot back a loan")
	ErrHealthy                = errors.New("collateral: account is healthy")
	ErrNoCrossDebt            = errors.New("collateral: no cross-collateral debt")
)
