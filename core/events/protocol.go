package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"cantorfi/core/types"
)

const (
	// TypeVaultCreated is emitted when a factory deploys a new vault.
	TypeVaultCreated = "protocol.vaultCreated"
	// TypeStakingDeployed is emitted when a staking pool is created for a vault.
	TypeStakingDeployed = "protocol.stakingDeployed"
	// TypeProtocolUpdated is emitted when a registry parameter changes.
	TypeProtocolUpdated = "protocol.updated"
	// TypeFeesCollected is emitted when a notifier reports incoming fees.
	TypeFeesCollected = "fees.collected"
	// TypeFeesDistributed is emitted when fees are forwarded to the treasury.
	TypeFeesDistributed = "fees.distributed"
	// TypeTokenMinted is emitted by the faucet.
	TypeTokenMinted = "token.minted"
)

// VaultCreated records the vault identifier and its derived addresses.
type VaultCreated struct {
	VaultID uint64
	Vault   common.Address
	Token   common.Address
	CVT     common.Address
	Factory common.Address
}

// EventType satisfies the Event interface.
func (VaultCreated) EventType() string { return TypeVaultCreated }

// Event converts the structured payload into a broadcastable event.
func (e VaultCreated) Event() *types.Event {
	return &types.Event{Type: TypeVaultCreated, Attributes: map[string]string{
		"vaultId": formatUint(e.VaultID),
		"vault":   formatAddress(e.Vault),
		"token":   formatAddress(e.Token),
		"cvt":     formatAddress(e.CVT),
		"factory": formatAddress(e.Factory),
	}}
}

// StakingDeployed records a staking pool bound to a vault.
type StakingDeployed struct {
	Vault    common.Address
	Pool     common.Address
	RatioBps uint64
}

// EventType satisfies the Event interface.
func (StakingDeployed) EventType() string { return TypeStakingDeployed }

// Event converts the structured payload into a broadcastable event.
func (e StakingDeployed) Event() *types.Event {
	return &types.Event{Type: TypeStakingDeployed, Attributes: map[string]string{
		"vault":    formatAddress(e.Vault),
		"pool":     formatAddress(e.Pool),
		"ratioBps": formatUint(e.RatioBps),
	}}
}

// ProtocolUpdated records a registry parameter change.
type ProtocolUpdated struct {
	Caller common.Address
	Field  string
	Value  string
}

// EventType satisfies the Event interface.
func (ProtocolUpdated) EventType() string { return TypeProtocolUpdated }

// Event converts the structured payload into a broadcastable event.
func (e ProtocolUpdated) Event() *types.Event {
	return &types.Event{Type: TypeProtocolUpdated, Attributes: map[string]string{
		"caller": formatAddress(e.Caller),
		"field":  e.Field,
		"value":  e.Value,
	}}
}

// FeesCollected records fees reported to the collector.
type FeesCollected struct {
	Collector common.Address
	Source    common.Address
	Token     common.Address
	Amount    *big.Int
}

// EventType satisfies the Event interface.
func (FeesCollected) EventType() string { return TypeFeesCollected }

// Event converts the structured payload into a broadcastable event.
func (e FeesCollected) Event() *types.Event {
	return &types.Event{Type: TypeFeesCollected, Attributes: map[string]string{
		"collector": formatAddress(e.Collector),
		"source":    formatAddress(e.Source),
		"token":     formatAddress(e.Token),
		"amount":    formatAmount(e.Amount),
	}}
}

// FeesDistributed records a treasury payout.
type FeesDistributed struct {
	Collector common.Address
	Treasury  common.Address
	Token     common.Address
	Amount    *big.Int
}

// EventType satisfies the Event interface.
func (FeesDistributed) EventType() string { return TypeFeesDistributed }

// Event converts the structured payload into a broadcastable event.
func (e FeesDistributed) Event() *types.Event {
	return &types.Event{Type: TypeFeesDistributed, Attributes: map[string]string{
		"collector": formatAddress(e.Collector),
		"treasury":  formatAddress(e.Treasury),
		"token":     formatAddress(e.Token),
		"amount":    formatAmount(e.Amount),
	}}
}

// TokenMinted records a faucet mint.
type TokenMinted struct {
	Token  common.Address
	To     common.Address
	Amount *big.Int
}

// EventType satisfies the Event interface.
func (TokenMinted) EventType() string { return TypeTokenMinted }

// Event converts the structured payload into a broadcastable event.
func (e TokenMinted) Event() *types.Event {
	return &types.Event{Type: TypeTokenMinted, Attributes: map[string]string{
		"token":  formatAddress(e.Token),
		"to":     formatAddress(e.To),
		"amount": formatAmount(e.Amount),
	}}
}
