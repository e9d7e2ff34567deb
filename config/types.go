package config

// Genesis seeds a fresh protocol: the registry roles, the fee schedule, mock
// tokens with their initial balances and the vaults to create.
type Genesis struct {
	// Admin holds the protocol, vault and pool admin roles.
	Admin string `toml:"Admin"`
	// Operator administers the factory. Defaults to Admin.
	Operator string `toml:"Operator"`
	Treasury string `toml:"Treasury"`
	Fees       Fees       `toml:"Fees"`
	Collateral Collateral `toml:"Collateral"`
	Tokens     []Token    `toml:"Tokens"`
	Vaults     []Vault    `toml:"Vaults"`
}

// Fees are expressed in basis points.
type Fees struct {
	SetupFee       uint64 `toml:"SetupFee"`
	PerformanceFee uint64 `toml:"PerformanceFee"`
	BorrowFeeRate  uint64 `toml:"BorrowFeeRate"`
}

// Collateral tunes the cross-collateral manager. Ratios are in basis points
// and zero fields take the defaults.
type Collateral struct {
	MaxLTV               uint64 `toml:"MaxLTV"`
	LiquidationThreshold uint64 `toml:"LiquidationThreshold"`
	LiquidationBonus     uint64 `toml:"LiquidationBonus"`
	MaxPriceAgeSeconds   uint64 `toml:"MaxPriceAgeSeconds"`
	MaxPriceDeviationBps uint64 `toml:"MaxPriceDeviationBps"`
}

type Token struct {
	// Address is derived from the symbol when empty.
	Address  string `toml:"Address"`
	Name     string `toml:"Name"`
	Symbol   string `toml:"Symbol"`
	Decimals uint8  `toml:"Decimals"`
	// PriceUSD seeds the collateral price feed, with eight decimals.
	PriceUSD string `toml:"PriceUSD"`
	// Balances maps holder addresses to base-unit amounts.
	Balances map[string]string `toml:"Balances"`
}

// Vault describes a vault created at genesis. Zero fields take the protocol
// defaults.
type Vault struct {
	// Token is a symbol declared in Tokens or a hex address.
	Token                string `toml:"Token"`
	MaxLiquidity         string `toml:"MaxLiquidity"`
	BorrowBaseRate       uint64 `toml:"BorrowBaseRate"`
	BorrowSlope          uint64 `toml:"BorrowSlope"`
	BorrowSlope2         uint64 `toml:"BorrowSlope2"`
	MaxBorrowRatio       uint64 `toml:"MaxBorrowRatio"`
	LiquidationThreshold uint64 `toml:"LiquidationThreshold"`
	LiquidationBonus     uint64 `toml:"LiquidationBonus"`
	Staking              bool   `toml:"Staking"`
	ProtocolBorrowRatio  uint64 `toml:"ProtocolBorrowRatio"`
	// CrossCollateral registers the vault with the collateral manager.
	CrossCollateral bool `toml:"CrossCollateral"`
}
