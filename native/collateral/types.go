package collateral

import (
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// PriceDecimals is the fixed-point scale of USD prices and values.
	PriceDecimals = 8

	DefaultMaxLTV               = 7_000
	DefaultLiquidationThreshold = 8_000
	DefaultLiquidationBonus     = 500

	// MaxHealthFactor is reported for accounts without debt.
	MaxHealthFactor = math.MaxUint64

	maxBps = 10_000
)

// Config is the persisted state of a collateral manager. Vaults lists the
// vaults whose supply counts as collateral, in registration order.
type Config struct {
	Address              common.Address
	MaxLTV               uint64
	LiquidationThreshold uint64
	LiquidationBonus     uint64
	Oracle               OracleConfig
	Vaults               []common.Address
}

// OracleConfig bounds the prices accepted from the feed. Zero disables a
// check.
type OracleConfig struct {
	// MaxAgeSeconds rejects prices older than this.
	MaxAgeSeconds uint64
	// MaxDeviationBps rejects a price update that moves further than this
	// from the previous price.
	MaxDeviationBps uint64
}

// Clone returns a deep copy of the config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Vaults = append([]common.Address(nil), c.Vaults...)
	return &clone
}

// Validate checks the risk parameters.
func (c *Config) Validate() error {
	if c.MaxLTV == 0 || c.MaxLTV >= c.LiquidationThreshold || c.LiquidationThreshold > maxBps {
		return ErrInvalidParams
	}
	if c.LiquidationBonus > maxBps/2 || c.Oracle.MaxDeviationBps > maxBps {
		return ErrInvalidParams
	}
	return nil
}

// Registered reports whether vault counts as collateral.
func (c *Config) Registered(vault common.Address) bool {
	for _, addr := range c.Vaults {
		if addr == vault {
			return true
		}
	}
	return false
}

// DefaultConfig returns the manager parameters used at genesis.
func DefaultConfig(address common.Address) *Config {
	return &Config{
		Address:              address,
		MaxLTV:               DefaultMaxLTV,
		LiquidationThreshold: DefaultLiquidationThreshold,
		LiquidationBonus:     DefaultLiquidationBonus,
		Oracle:               OracleConfig{MaxAgeSeconds: 3_600},
	}
}

// PriceFeed is the latest USD price of a token with PriceDecimals decimals.
type PriceFeed struct {
	Token     common.Address
	Price     *big.Int
	UpdatedAt uint64
}

// Account summarises a user's position across every registered vault. USD
// amounts carry PriceDecimals decimals. DebtUSD covers same-vault and
// cross-collateral debt; CrossDebtUSD only the latter.
type Account struct {
	CollateralUSD *big.Int
	DebtUSD       *big.Int
	CrossDebtUSD  *big.Int
	MaxBorrowUSD  *big.Int
	HealthFactor  uint64
	Liquidatable  bool

	staked bool
}

// Seizure records the supply taken from one vault during a liquidation.
type Seizure struct {
	Vault    common.Address
	Amount   *big.Int
	ValueUSD *big.Int
}

// LiquidationResult summarises a cross-collateral liquidation.
type LiquidationResult struct {
	DebtVault common.Address
	Repaid    *big.Int
	RepaidUSD *big.Int
	SeizedUSD *big.Int
	Seized    []Seizure
}
