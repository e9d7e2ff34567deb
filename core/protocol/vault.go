package protocol

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"cantorfi/native/vault"
)

// Supply deposits amount into vaultAddr and returns the CVT minted.
func (r *Runtime) Supply(ctx context.Context, caller, vaultAddr common.Address, amount *big.Int, lock vault.LockConfig) (*big.Int, error) {
	var minted *big.Int
	err := r.update(ctx, "supply", caller, func(e *env) error {
		engine, _, err := e.vault(vaultAddr)
		if err != nil {
			return err
		}
		minted, err = engine.Supply(caller, amount, lock)
		return err
	})
	return minted, err
}

// Withdraw redeems amount of underlying and returns the net payout.
func (r *Runtime) Withdraw(ctx context.Context, caller, vaultAddr common.Address, amount *big.Int) (*big.Int, error) {
	var payout *big.Int
	err := r.update(ctx, "withdraw", caller, func(e *env) error {
		engine, _, err := e.vault(vaultAddr)
		if err != nil {
			return err
		}
		payout, err = engine.Withdraw(caller, amount)
		return err
	})
	return payout, err
}

func (r *Runtime) ClaimInterest(ctx context.Context, caller, vaultAddr common.Address) (*big.Int, error) {
	var claimed *big.Int
	err := r.update(ctx, "claimInterest", caller, func(e *env) error {
		engine, _, err := e.vault(vaultAddr)
		if err != nil {
			return err
		}
		claimed, err = engine.ClaimInterest(caller)
		return err
	})
	return claimed, err
}

func (r *Runtime) Borrow(ctx context.Context, caller, vaultAddr common.Address, amount *big.Int) error {
	return r.update(ctx, "borrow", caller, func(e *env) error {
		engine, _, err := e.vault(vaultAddr)
		if err != nil {
			return err
		}
		return engine.Borrow(caller, amount)
	})
}

// RepayBorrow repays up to amount and returns what was actually taken.
func (r *Runtime) RepayBorrow(ctx context.Context, caller, vaultAddr common.Address, amount *big.Int) (*big.Int, error) {
	var paid *big.Int
	err := r.update(ctx, "repay", caller, func(e *env) error {
		engine, _, err := e.vault(vaultAddr)
		if err != nil {
			return err
		}
		paid, err = engine.RepayBorrow(caller, amount)
		return err
	})
	return paid, err
}

func (r *Runtime) Liquidate(ctx context.Context, caller, vaultAddr, user common.Address) (*vault.LiquidationResult, error) {
	var result *vault.LiquidationResult
	err := r.update(ctx, "liquidate", caller, func(e *env) error {
		engine, _, err := e.vault(vaultAddr)
		if err != nil {
			return err
		}
		result, err = engine.Liquidate(caller, user)
		return err
	})
	return result, err
}

func (r *Runtime) ProtocolBorrow(ctx context.Context, caller, vaultAddr common.Address, amount *big.Int) error {
	return r.update(ctx, "protocolBorrow", caller, func(e *env) error {
		engine, _, err := e.vault(vaultAddr)
		if err != nil {
			return err
		}
		return engine.ProtocolBorrow(caller, amount)
	})
}

func (r *Runtime) ProtocolRepay(ctx context.Context, caller, vaultAddr common.Address, amount *big.Int) error {
	return r.update(ctx, "protocolRepay", caller, func(e *env) error {
		engine, _, err := e.vault(vaultAddr)
		if err != nil {
			return err
		}
		return engine.ProtocolRepay(caller, amount)
	})
}

// VaultAdminAction names a vault setting changed through ConfigureVault.
// BorrowRates holds the base rate, the slope below the kink and the slope
// above it.
type VaultAdminAction struct {
	Pause           *bool
	Active          *bool
	MaxLiquidity    *big.Int
	BorrowRates     *[3]uint64
	Treasury        *common.Address
	StakingContract *common.Address
}

// ConfigureVault applies every non-nil setting of action atomically.
func (r *Runtime) ConfigureVault(ctx context.Context, caller, vaultAddr common.Address, action VaultAdminAction) error {
	return r.update(ctx, "configureVault", caller, func(e *env) error {
		engine, _, err := e.vault(vaultAddr)
		if err != nil {
			return err
		}
		if action.Pause != nil {
			if *action.Pause {
				err = engine.Pause(caller)
			} else {
				err = engine.Unpause(caller)
			}
			if err != nil {
				return err
			}
		}
		if action.Active != nil {
			if err := engine.SetActive(caller, *action.Active); err != nil {
				return err
			}
		}
		if action.MaxLiquidity != nil {
			if err := engine.SetMaxLiquidity(caller, action.MaxLiquidity); err != nil {
				return err
			}
		}
		if action.BorrowRates != nil {
			if err := engine.SetBorrowRates(caller, action.BorrowRates[0], action.BorrowRates[1], action.BorrowRates[2]); err != nil {
				return err
			}
		}
		if action.Treasury != nil {
			if err := engine.SetTreasury(caller, *action.Treasury); err != nil {
				return err
			}
		}
		if action.StakingContract != nil {
			return engine.SetStakingContract(caller, *action.StakingContract)
		}
		return nil
	})
}

// SetStakingContract pairs vaultAddr with pool.
func (r *Runtime) SetStakingContract(ctx context.Context, caller, vaultAddr, pool common.Address) error {
	return r.ConfigureVault(ctx, caller, vaultAddr, VaultAdminAction{StakingContract: &pool})
}
