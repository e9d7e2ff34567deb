package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"cantorfi/core/types"
)

const (
	// TypeVaultSupplied is emitted when liquidity is deposited and CVT minted.
	TypeVaultSupplied = "vault.supplied"
	// TypeVaultWithdrawn is emitted when liquidity leaves the vault and CVT is burned.
	TypeVaultWithdrawn = "vault.withdrawn"
	// TypeVaultInterestClaimed is emitted when a supplier claims accrued interest.
	TypeVaultInterestClaimed = "vault.interestClaimed"
	// TypeVaultBorrowed is emitted when a supplier borrows against collateral.
	TypeVaultBorrowed = "vault.borrowed"
	// TypeVaultRepaid is emitted when a borrower repays interest and principal.
	TypeVaultRepaid = "vault.repaid"
	// TypeVaultLiquidated is emitted when an insolvent position is closed.
	TypeVaultLiquidated = "vault.liquidated"
	// TypeVaultProtocolBorrowed is emitted when the protocol draws staking-backed liquidity.
	TypeVaultProtocolBorrowed = "vault.protocolBorrowed"
	// TypeVaultProtocolRepaid is emitted when protocol debt is repaid.
	TypeVaultProtocolRepaid = "vault.protocolRepaid"
	// TypeVaultConfigured is emitted for admin parameter updates.
	TypeVaultConfigured = "vault.configured"
	// TypeVaultCrossBorrowed is emitted for borrows backed by collateral in
	// several vaults.
	TypeVaultCrossBorrowed = "vault.crossBorrowed"
	// TypeVaultCrossRepaid is emitted when cross-collateral debt is repaid.
	TypeVaultCrossRepaid = "vault.crossRepaid"
	// TypeVaultCollateralSeized is emitted when a cross-collateral
	// liquidation takes supply from a vault.
	TypeVaultCollateralSeized = "vault.collateralSeized"
)

// VaultSupplied describes a deposit.
type VaultSupplied struct {
	Vault     common.Address
	User      common.Address
	Amount    *big.Int
	CVTMinted *big.Int
	LockEnd   uint64
}

// EventType satisfies the Event interface.
func (VaultSupplied) EventType() string { return TypeVaultSupplied }

// Event converts the structured payload into a broadcastable event.
func (e VaultSupplied) Event() *types.Event {
	attrs := map[string]string{
		"vault":     formatAddress(e.Vault),
		"user":      formatAddress(e.User),
		"amount":    formatAmount(e.Amount),
		"cvtMinted": formatAmount(e.CVTMinted),
	}
	if e.LockEnd > 0 {
		attrs["lockEnd"] = formatUint(e.LockEnd)
	}
	return &types.Event{Type: TypeVaultSupplied, Attributes: attrs}
}

// VaultWithdrawn describes a withdrawal. Fee is the early-withdrawal fee kept
// by the protocol.
type VaultWithdrawn struct {
	Vault     common.Address
	User      common.Address
	Amount    *big.Int
	Fee       *big.Int
	CVTBurned *big.Int
}

// EventType satisfies the Event interface.
func (VaultWithdrawn) EventType() string { return TypeVaultWithdrawn }

// Event converts the structured payload into a broadcastable event.
func (e VaultWithdrawn) Event() *types.Event {
	attrs := map[string]string{
		"vault":     formatAddress(e.Vault),
		"user":      formatAddress(e.User),
		"amount":    formatAmount(e.Amount),
		"cvtBurned": formatAmount(e.CVTBurned),
	}
	setAmount(attrs, "fee", e.Fee)
	return &types.Event{Type: TypeVaultWithdrawn, Attributes: attrs}
}

// VaultInterestClaimed describes a supplier interest payout.
type VaultInterestClaimed struct {
	Vault  common.Address
	User   common.Address
	Amount *big.Int
}

// EventType satisfies the Event interface.
func (VaultInterestClaimed) EventType() string { return TypeVaultInterestClaimed }

// Event converts the structured payload into a broadcastable event.
func (e VaultInterestClaimed) Event() *types.Event {
	return &types.Event{Type: TypeVaultInterestClaimed, Attributes: map[string]string{
		"vault":  formatAddress(e.Vault),
		"user":   formatAddress(e.User),
		"amount": formatAmount(e.Amount),
	}}
}

// VaultBorrowed describes a user, cross-collateral or protocol borrow.
type VaultBorrowed struct {
	Vault    common.Address
	Borrower common.Address
	Amount   *big.Int
	RateBps  uint64
	Protocol bool
	Cross    bool
}

// EventType satisfies the Event interface.
func (e VaultBorrowed) EventType() string {
	switch {
	case e.Protocol:
		return TypeVaultProtocolBorrowed
	case e.Cross:
		return TypeVaultCrossBorrowed
	}
	return TypeVaultBorrowed
}

// Event converts the structured payload into a broadcastable event.
func (e VaultBorrowed) Event() *types.Event {
	return &types.Event{Type: e.EventType(), Attributes: map[string]string{
		"vault":    formatAddress(e.Vault),
		"borrower": formatAddress(e.Borrower),
		"amount":   formatAmount(e.Amount),
		"rateBps":  formatUint(e.RateBps),
	}}
}

// VaultRepaid describes a repayment split into principal and interest. Fee is
// the protocol share of the interest.
type VaultRepaid struct {
	Vault     common.Address
	Borrower  common.Address
	Principal *big.Int
	Interest  *big.Int
	Fee       *big.Int
	Protocol  bool
	Cross     bool
}

// EventType satisfies the Event interface.
func (e VaultRepaid) EventType() string {
	switch {
	case e.Protocol:
		return TypeVaultProtocolRepaid
	case e.Cross:
		return TypeVaultCrossRepaid
	}
	return TypeVaultRepaid
}

// Event converts the structured payload into a broadcastable event.
func (e VaultRepaid) Event() *types.Event {
	attrs := map[string]string{
		"vault":     formatAddress(e.Vault),
		"borrower":  formatAddress(e.Borrower),
		"principal": formatAmount(e.Principal),
		"interest":  formatAmount(e.Interest),
	}
	setAmount(attrs, "fee", e.Fee)
	return &types.Event{Type: e.EventType(), Attributes: attrs}
}

// VaultLiquidated describes the closure of an insolvent position.
type VaultLiquidated struct {
	Vault      common.Address
	User       common.Address
	Liquidator common.Address
	Seized     *big.Int
	Bonus      *big.Int
	Principal  *big.Int
	Interest   *big.Int
	Refund     *big.Int
	BadDebt    *big.Int
}

// EventType satisfies the Event interface.
func (VaultLiquidated) EventType() string { return TypeVaultLiquidated }

// Event converts the structured payload into a broadcastable event.
func (e VaultLiquidated) Event() *types.Event {
	attrs := map[string]string{
		"vault":      formatAddress(e.Vault),
		"user":       formatAddress(e.User),
		"liquidator": formatAddress(e.Liquidator),
		"seized":     formatAmount(e.Seized),
		"bonus":      formatAmount(e.Bonus),
		"principal":  formatAmount(e.Principal),
		"interest":   formatAmount(e.Interest),
	}
	setAmount(attrs, "refund", e.Refund)
	setAmount(attrs, "badDebt", e.BadDebt)
	return &types.Event{Type: TypeVaultLiquidated, Attributes: attrs}
}

// VaultCollateralSeized describes supply taken by a cross-collateral
// liquidation.
type VaultCollateralSeized struct {
	Vault     common.Address
	User      common.Address
	Recipient common.Address
	Amount    *big.Int
	CVTBurned *big.Int
}

// EventType satisfies the Event interface.
func (VaultCollateralSeized) EventType() string { return TypeVaultCollateralSeized }

// Event converts the structured payload into a broadcastable event.
func (e VaultCollateralSeized) Event() *types.Event {
	return &types.Event{Type: TypeVaultCollateralSeized, Attributes: map[string]string{
		"vault":     formatAddress(e.Vault),
		"user":      formatAddress(e.User),
		"recipient": formatAddress(e.Recipient),
		"amount":    formatAmount(e.Amount),
		"cvtBurned": formatAmount(e.CVTBurned),
	}}
}

// VaultConfigured records an admin update of a single vault parameter.
type VaultConfigured struct {
	Vault  common.Address
	Caller common.Address
	Field  string
	Value  string
}

// EventType satisfies the Event interface.
func (VaultConfigured) EventType() string { return TypeVaultConfigured }

// Event converts the structured payload into a broadcastable event.
func (e VaultConfigured) Event() *types.Event {
	return &types.Event{Type: TypeVaultConfigured, Attributes: map[string]string{
		"vault":  formatAddress(e.Vault),
		"caller": formatAddress(e.Caller),
		"field":  e.Field,
		"value":  e.Value,
	}}
}
