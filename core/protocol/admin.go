package protocol

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"cantorfi/core/events"
	"cantorfi/native/factory"
	"cantorfi/native/vault"
)

// CreateVault deploys a vault through the factory.
func (r *Runtime) CreateVault(ctx context.Context, caller common.Address, params vault.Params) (*factory.Deployment, error) {
	var dep *factory.Deployment
	err := r.update(ctx, "createVault", caller, func(e *env) error {
		var err error
		dep, err = e.factory().CreateVault(caller, params)
		if err == nil {
			e.touch(dep.Vault)
		}
		return err
	})
	return dep, err
}

// DeployStaking creates the staking pool of vaultAddr.
func (r *Runtime) DeployStaking(ctx context.Context, caller, vaultAddr common.Address, ratioBps uint64) (common.Address, error) {
	var pool common.Address
	err := r.update(ctx, "deployStaking", caller, func(e *env) error {
		var err error
		pool, err = e.factory().DeployStaking(caller, vaultAddr, ratioBps)
		return err
	})
	return pool, err
}

// ProtocolSetting selects the registry field changed by UpdateProtocol.
type ProtocolSetting string

const (
	SettingAddFactory     ProtocolSetting = "addFactory"
	SettingRemoveFactory  ProtocolSetting = "removeFactory"
	SettingFeeCollector   ProtocolSetting = "feeCollector"
	SettingTreasury       ProtocolSetting = "treasury"
	SettingSetupFee       ProtocolSetting = "setupFee"
	SettingPerformanceFee ProtocolSetting = "performanceFee"
	SettingBorrowFeeRate  ProtocolSetting = "borrowFeeRate"
	SettingPause          ProtocolSetting = "pause"
	SettingUnpause        ProtocolSetting = "unpause"
)

// ProtocolUpdate carries the argument of a registry setting. Address-valued
// settings read Address, fee settings read Bps.
type ProtocolUpdate struct {
	Setting ProtocolSetting
	Address common.Address
	Bps     uint64
}

// UpdateProtocol applies an admin change to the registry.
func (r *Runtime) UpdateProtocol(ctx context.Context, caller common.Address, u ProtocolUpdate) error {
	return r.update(ctx, "updateProtocol", caller, func(e *env) error {
		reg := e.registry
		switch u.Setting {
		case SettingAddFactory:
			return reg.AddFactory(caller, u.Address)
		case SettingRemoveFactory:
			return reg.RemoveFactory(caller, u.Address)
		case SettingFeeCollector:
			return reg.SetFeeCollector(caller, u.Address)
		case SettingTreasury:
			return reg.SetTreasury(caller, u.Address)
		case SettingSetupFee:
			return reg.SetSetupFee(caller, u.Bps)
		case SettingPerformanceFee:
			return reg.SetPerformanceFee(caller, u.Bps)
		case SettingBorrowFeeRate:
			return reg.SetBorrowFeeRate(caller, u.Bps)
		case SettingPause:
			return reg.Pause(caller)
		case SettingUnpause:
			return reg.Unpause(caller)
		default:
			return ErrUnknownSetting
		}
	})
}

// SetNotifier grants or revokes the fee notifier role on the collector.
func (r *Runtime) SetNotifier(ctx context.Context, caller, notifier common.Address, granted bool) error {
	return r.update(ctx, "setNotifier", caller, func(e *env) error {
		if granted {
			return e.collector().AddNotifier(caller, notifier)
		}
		return e.collector().RemoveNotifier(caller, notifier)
	})
}

// DistributeFees forwards collected fees of tok to the collector treasury.
func (r *Runtime) DistributeFees(ctx context.Context, caller, tok common.Address, amount *big.Int) error {
	return r.update(ctx, "distributeFees", caller, func(e *env) error {
		return e.collector().DistributeToTreasury(caller, tok, amount)
	})
}

// Approve sets an allowance on the shared ledger.
func (r *Runtime) Approve(ctx context.Context, caller, tok, spender common.Address, amount *big.Int) error {
	return r.update(ctx, "approve", caller, func(e *env) error {
		return e.ledger.Approve(tok, caller, spender, amount)
	})
}

func (r *Runtime) Transfer(ctx context.Context, caller, tok, to common.Address, amount *big.Int) error {
	return r.update(ctx, "transfer", caller, func(e *env) error {
		return e.ledger.Transfer(tok, caller, to, amount)
	})
}

// Mint is the mock-token faucet. Only the protocol admin may call it and CVT
// tokens cannot be minted through it.
func (r *Runtime) Mint(ctx context.Context, caller, tok, to common.Address, amount *big.Int) error {
	return r.update(ctx, "mint", caller, func(e *env) error {
		if err := e.requireProtocolAdmin(caller); err != nil {
			return err
		}
		if e.isReceipt(tok) {
			return ErrReceiptToken
		}
		if err := e.ledger.Mint(tok, to, amount); err != nil {
			return err
		}
		e.buf.Emit(events.TokenMinted{Token: tok, To: to, Amount: cloneAmount(amount)})
		return nil
	})
}
