package vault

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// MaxBorrowRatioCap bounds the loan-to-value a vault may be created with.
	MaxBorrowRatioCap = 9_000
	maxBps            = 10_000
)

// Params describes a vault at creation time.
type Params struct {
	Token                common.Address
	Treasury             common.Address
	MaxLiquidity         *big.Int
	BorrowBaseRate       uint64
	BorrowSlope          uint64
	BorrowSlope2         uint64
	MaxBorrowRatio       uint64
	LiquidationThreshold uint64
	LiquidationBonus     uint64
}

// DefaultParams returns the launch parameters used by the protocol: a 5% base
// rate, a 10% slope up to the kink, 70% LTV, a 5% liquidation bonus and a cap
// of 100M whole tokens.
func DefaultParams(token, treasury common.Address, decimals uint8) Params {
	maxLiquidity := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	maxLiquidity.Mul(maxLiquidity, big.NewInt(100_000_000))
	return Params{
		Token:            token,
		Treasury:         treasury,
		MaxLiquidity:     maxLiquidity,
		BorrowBaseRate:   500,
		BorrowSlope:      1_000,
		BorrowSlope2:     DefaultSlope2,
		MaxBorrowRatio:   7_000,
		LiquidationBonus: 500,
	}
}

// Validate checks the parameter bounds enforced by the factory.
func (p Params) Validate() error {
	if p.Token == (common.Address{}) {
		return fmt.Errorf("%w: token required", ErrInvalidParams)
	}
	if p.Treasury == (common.Address{}) {
		return fmt.Errorf("%w: treasury required", ErrInvalidParams)
	}
	if p.MaxLiquidity != nil && p.MaxLiquidity.Sign() < 0 {
		return fmt.Errorf("%w: negative max liquidity", ErrInvalidParams)
	}
	if p.BorrowBaseRate == 0 && p.BorrowSlope == 0 {
		return fmt.Errorf("%w: borrow rates must be set", ErrInvalidParams)
	}
	if p.BorrowBaseRate > maxBps || p.BorrowSlope > maxBps || p.BorrowSlope2 > 10*maxBps {
		return fmt.Errorf("%w: borrow rate out of range", ErrInvalidParams)
	}
	if p.MaxBorrowRatio == 0 || p.MaxBorrowRatio > MaxBorrowRatioCap {
		return fmt.Errorf("%w: max borrow ratio must be in (0, %d]", ErrInvalidParams, MaxBorrowRatioCap)
	}
	if p.LiquidationBonus > maxBps {
		return fmt.Errorf("%w: liquidation bonus out of range", ErrInvalidParams)
	}
	threshold := p.LiquidationThreshold
	if threshold == 0 {
		threshold = p.MaxBorrowRatio + p.LiquidationBonus
	}
	if threshold < p.MaxBorrowRatio || threshold > maxBps {
		return fmt.Errorf("%w: liquidation threshold must be in [%d, %d]", ErrInvalidParams, p.MaxBorrowRatio, maxBps)
	}
	return nil
}

// Info materialises the parameters into a fresh vault description.
func (p Params) Info(id uint64, address, cvtAddress common.Address, now uint64) *Info {
	slope2 := p.BorrowSlope2
	if slope2 == 0 {
		slope2 = DefaultSlope2
	}
	return &Info{
		Address:              address,
		ID:                   id,
		Token:                p.Token,
		CVT:                  cvtAddress,
		Treasury:             p.Treasury,
		MaxLiquidity:         cloneBig(orZero(p.MaxLiquidity)),
		BorrowBaseRate:       p.BorrowBaseRate,
		BorrowSlope:          p.BorrowSlope,
		BorrowSlope2:         slope2,
		MaxBorrowRatio:       p.MaxBorrowRatio,
		LiquidationThreshold: p.LiquidationThreshold,
		LiquidationBonus:     p.LiquidationBonus,
		IsActive:             true,
		CreatedAt:            now,
	}
}
