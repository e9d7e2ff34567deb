package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"cantorfi/native/collateral"
	"cantorfi/native/factory"
	"cantorfi/native/token"
	"cantorfi/native/vault"
)

// LoadGenesis reads and validates a TOML genesis file.
func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis: %w", err)
	}
	return ParseGenesis(data)
}

// ParseGenesis decodes and validates TOML genesis content.
func ParseGenesis(data []byte) (*Genesis, error) {
	g := &Genesis{}
	meta, err := toml.Decode(string(data), g)
	if err != nil {
		return nil, fmt.Errorf("decode genesis: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("genesis: unknown field %s", undecoded[0].String())
	}
	g.normalize()
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Genesis) normalize() {
	g.Admin = strings.TrimSpace(g.Admin)
	g.Operator = strings.TrimSpace(g.Operator)
	g.Treasury = strings.TrimSpace(g.Treasury)
	if g.Operator == "" {
		g.Operator = g.Admin
	}
	if g.Fees == (Fees{}) {
		defaults := factory.DefaultFees()
		g.Fees = Fees{SetupFee: defaults.SetupFee, PerformanceFee: defaults.PerformanceFee, BorrowFeeRate: defaults.BorrowFeeRate}
	}
	for i := range g.Tokens {
		g.Tokens[i].Symbol = strings.ToUpper(strings.TrimSpace(g.Tokens[i].Symbol))
		g.Tokens[i].Name = strings.TrimSpace(g.Tokens[i].Name)
	}
}

// Validate checks addresses, amounts, fee caps and vault token references.
func (g *Genesis) Validate() error {
	for field, value := range map[string]string{"Admin": g.Admin, "Operator": g.Operator, "Treasury": g.Treasury} {
		if !common.IsHexAddress(value) {
			return fmt.Errorf("genesis: %s must be a hex address, got %q", field, value)
		}
	}
	if err := g.FeeSchedule().Validate(); err != nil {
		return fmt.Errorf("genesis: %w", err)
	}
	if err := g.CollateralConfig(common.Address{}).Validate(); err != nil {
		return fmt.Errorf("genesis: collateral: %w", err)
	}
	symbols := make(map[string]struct{}, len(g.Tokens))
	for _, tok := range g.Tokens {
		if tok.Symbol == "" {
			return fmt.Errorf("genesis: token symbol required")
		}
		if _, dup := symbols[tok.Symbol]; dup {
			return fmt.Errorf("genesis: duplicate token %s", tok.Symbol)
		}
		symbols[tok.Symbol] = struct{}{}
		if tok.Decimals > token.MaxDecimals {
			return fmt.Errorf("genesis: token %s decimals %d exceed %d", tok.Symbol, tok.Decimals, token.MaxDecimals)
		}
		if tok.Address != "" && !common.IsHexAddress(tok.Address) {
			return fmt.Errorf("genesis: token %s address %q invalid", tok.Symbol, tok.Address)
		}
		if tok.PriceUSD != "" {
			if _, err := ParseAmount(tok.PriceUSD); err != nil {
				return fmt.Errorf("genesis: token %s price: %w", tok.Symbol, err)
			}
		}
		for holder, amount := range tok.Balances {
			if !common.IsHexAddress(holder) {
				return fmt.Errorf("genesis: token %s holder %q invalid", tok.Symbol, holder)
			}
			if _, err := ParseAmount(amount); err != nil {
				return fmt.Errorf("genesis: token %s balance for %s: %w", tok.Symbol, holder, err)
			}
		}
	}
	for i, v := range g.Vaults {
		if _, err := g.resolveToken(v.Token); err != nil {
			return fmt.Errorf("genesis: vault %d: %w", i, err)
		}
		if v.MaxLiquidity != "" {
			if _, err := ParseAmount(v.MaxLiquidity); err != nil {
				return fmt.Errorf("genesis: vault %d max liquidity: %w", i, err)
			}
		}
		if v.ProtocolBorrowRatio > 10_000 {
			return fmt.Errorf("genesis: vault %d protocol borrow ratio exceeds 10000", i)
		}
	}
	return nil
}

func (g *Genesis) AdminAddress() common.Address    { return common.HexToAddress(g.Admin) }
func (g *Genesis) OperatorAddress() common.Address { return common.HexToAddress(g.Operator) }
func (g *Genesis) TreasuryAddress() common.Address { return common.HexToAddress(g.Treasury) }

// FeeSchedule converts the fee section.
func (g *Genesis) FeeSchedule() factory.Fees {
	return factory.Fees{SetupFee: g.Fees.SetupFee, PerformanceFee: g.Fees.PerformanceFee, BorrowFeeRate: g.Fees.BorrowFeeRate}
}

// CollateralConfig converts the collateral section for the manager at addr.
func (g *Genesis) CollateralConfig(addr common.Address) *collateral.Config {
	cfg := collateral.DefaultConfig(addr)
	if g.Collateral.MaxLTV != 0 {
		cfg.MaxLTV = g.Collateral.MaxLTV
	}
	if g.Collateral.LiquidationThreshold != 0 {
		cfg.LiquidationThreshold = g.Collateral.LiquidationThreshold
	}
	if g.Collateral.LiquidationBonus != 0 {
		cfg.LiquidationBonus = g.Collateral.LiquidationBonus
	}
	if g.Collateral.MaxPriceAgeSeconds != 0 {
		cfg.Oracle.MaxAgeSeconds = g.Collateral.MaxPriceAgeSeconds
	}
	cfg.Oracle.MaxDeviationBps = g.Collateral.MaxPriceDeviationBps
	return cfg
}

// TokenAddress returns the configured address or the symbol-derived default.
func (t Token) TokenAddress() common.Address {
	if t.Address != "" {
		return common.HexToAddress(t.Address)
	}
	return DeriveTokenAddress(t.Symbol)
}

// Metadata converts the entry into ledger metadata.
func (t Token) Metadata() token.Metadata {
	return token.Metadata{Address: t.TokenAddress(), Name: t.Name, Symbol: t.Symbol, Decimals: t.Decimals}
}

// DeriveTokenAddress hashes the symbol into a stable mock token address.
func DeriveTokenAddress(symbol string) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte("cantorfi/token/" + strings.ToUpper(strings.TrimSpace(symbol)))))
}

// VaultParams resolves a vault entry into factory parameters.
func (g *Genesis) VaultParams(v Vault) (vault.Params, error) {
	tok, err := g.resolveToken(v.Token)
	if err != nil {
		return vault.Params{}, err
	}
	params := vault.DefaultParams(tok.TokenAddress(), g.TreasuryAddress(), tok.Decimals)
	if v.MaxLiquidity != "" {
		limit, err := ParseAmount(v.MaxLiquidity)
		if err != nil {
			return vault.Params{}, err
		}
		params.MaxLiquidity = limit
	}
	if v.BorrowBaseRate != 0 {
		params.BorrowBaseRate = v.BorrowBaseRate
	}
	if v.BorrowSlope != 0 {
		params.BorrowSlope = v.BorrowSlope
	}
	if v.BorrowSlope2 != 0 {
		params.BorrowSlope2 = v.BorrowSlope2
	}
	if v.MaxBorrowRatio != 0 {
		params.MaxBorrowRatio = v.MaxBorrowRatio
	}
	if v.LiquidationBonus != 0 {
		params.LiquidationBonus = v.LiquidationBonus
	}
	params.LiquidationThreshold = v.LiquidationThreshold
	return params, nil
}

func (g *Genesis) resolveToken(ref string) (Token, error) {
	ref = strings.TrimSpace(ref)
	for _, tok := range g.Tokens {
		if strings.EqualFold(tok.Symbol, ref) {
			return tok, nil
		}
		if common.IsHexAddress(ref) && tok.TokenAddress() == common.HexToAddress(ref) {
			return tok, nil
		}
	}
	return Token{}, fmt.Errorf("unknown token %q", ref)
}

// ParseAmount parses a non-negative base-10 integer, allowing "_" separators.
func ParseAmount(raw string) (*big.Int, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), "_", "")
	value, ok := new(big.Int).SetString(cleaned, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %q", raw)
	}
	return value, nil
}
