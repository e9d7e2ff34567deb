package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"cantorfi/core/types"
)

const (
	// TypeCollateralConfigured is emitted for collateral manager admin updates.
	TypeCollateralConfigured = "collateral.configured"
	// TypeCollateralPriceUpdated is emitted when a token price is pushed.
	TypeCollateralPriceUpdated = "collateral.priceUpdated"
	// TypeCollateralLiquidated is emitted when cross-collateral debt is closed
	// by a liquidator.
	TypeCollateralLiquidated = "collateral.liquidated"
)

// CollateralConfigured records an admin update of the collateral manager.
type CollateralConfigured struct {
	Manager common.Address
	Caller  common.Address
	Field   string
	Value   string
}

// EventType satisfies the Event interface.
func (CollateralConfigured) EventType() string { return TypeCollateralConfigured }

// Event converts the structured payload into a broadcastable event.
func (e CollateralConfigured) Event() *types.Event {
	return &types.Event{Type: TypeCollateralConfigured, Attributes: map[string]string{
		"manager": formatAddress(e.Manager),
		"caller":  formatAddress(e.Caller),
		"field":   e.Field,
		"value":   e.Value,
	}}
}

// CollateralPriceUpdated records a new USD price with eight decimals.
type CollateralPriceUpdated struct {
	Manager   common.Address
	Token     common.Address
	Price     *big.Int
	UpdatedAt uint64
}

// EventType satisfies the Event interface.
func (CollateralPriceUpdated) EventType() string { return TypeCollateralPriceUpdated }

// Event converts the structured payload into a broadcastable event.
func (e CollateralPriceUpdated) Event() *types.Event {
	return &types.Event{Type: TypeCollateralPriceUpdated, Attributes: map[string]string{
		"manager":   formatAddress(e.Manager),
		"token":     formatAddress(e.Token),
		"price":     formatAmount(e.Price),
		"updatedAt": formatUint(e.UpdatedAt),
	}}
}

// CollateralLiquidated summarises a cross-collateral liquidation.
type CollateralLiquidated struct {
	Manager    common.Address
	User       common.Address
	Liquidator common.Address
	DebtVault  common.Address
	Repaid     *big.Int
	RepaidUSD  *big.Int
	SeizedUSD  *big.Int
}

// EventType satisfies the Event interface.
func (CollateralLiquidated) EventType() string { return TypeCollateralLiquidated }

// Event converts the structured payload into a broadcastable event.
func (e CollateralLiquidated) Event() *types.Event {
	return &types.Event{Type: TypeCollateralLiquidated, Attributes: map[string]string{
		"manager":    formatAddress(e.Manager),
		"user":       formatAddress(e.User),
		"liquidator": formatAddress(e.Liquidator),
		"debtVault":  formatAddress(e.DebtVault),
		"repaid":     formatAmount(e.Repaid),
		"repaidUsd":  formatAmount(e.RepaidUSD),
		"seizedUsd":  formatAmount(e.SeizedUSD),
	}}
}
