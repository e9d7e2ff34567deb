package protocol

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"cantorfi/native/collateral"
)

// CollateralView is a user's cross-vault account with its pledged debt.
type CollateralView struct {
	Account *collateral.Account
	MaxLTV  uint64
	Vaults  []common.Address
}

// CrossDebtView is the cross-collateral debt a user owes one vault.
type CrossDebtView struct {
	Principal *big.Int
	Interest  *big.Int
}

// CrossCollateralBorrow borrows amount from vaultAddr against the caller's
// supply in every registered vault.
func (r *Runtime) CrossCollateralBorrow(ctx context.Context, caller, vaultAddr common.Address, amount *big.Int) error {
	return r.update(ctx, "crossBorrow", caller, func(e *env) error {
		engine, _, err := e.vault(vaultAddr)
		if err != nil {
			return err
		}
		return engine.CrossCollateralBorrow(caller, amount)
	})
}

// RepayCrossCollateral repays up to amount of the caller's cross-collateral
// debt in vaultAddr and returns what was taken.
func (r *Runtime) RepayCrossCollateral(ctx context.Context, caller, vaultAddr common.Address, amount *big.Int) (*big.Int, error) {
	var paid *big.Int
	err := r.update(ctx, "crossRepay", caller, func(e *env) error {
		engine, _, err := e.vault(vaultAddr)
		if err != nil {
			return err
		}
		paid, err = engine.RepayCrossCollateral(caller, caller, amount)
		return err
	})
	return paid, err
}

// LiquidateCrossCollateral closes user's cross-collateral debt in debtVault
// on behalf of caller, who repays it and receives the seized supply.
func (r *Runtime) LiquidateCrossCollateral(ctx context.Context, caller, user, debtVault common.Address) (*collateral.LiquidationResult, error) {
	var result *collateral.LiquidationResult
	err := r.update(ctx, "crossLiquidate", caller, func(e *env) error {
		var err error
		result, err = e.manager().Liquidate(caller, user, debtVault)
		return err
	})
	return result, err
}

// EnableCrossCollateral points vaultAddr at the collateral manager and
// registers its supply as collateral. Disabling only stops new cross
// borrows from the vault.
func (r *Runtime) EnableCrossCollateral(ctx context.Context, caller, vaultAddr common.Address, enabled bool) error {
	return r.update(ctx, "enableCrossCollateral", caller, func(e *env) error {
		if err := e.Vault(vaultAddr).SetCrossCollateral(caller, r.addrs.Collateral, enabled); err != nil {
			return err
		}
		if !enabled {
			return nil
		}
		manager := e.manager()
		cfg, err := manager.GetConfig()
		if err != nil {
			return err
		}
		if cfg.Registered(vaultAddr) {
			return nil
		}
		return manager.AddVault(caller, vaultAddr)
	})
}

// SetCollateralPrice pushes the USD price of token, eight decimals.
func (r *Runtime) SetCollateralPrice(ctx context.Context, caller, token common.Address, price *big.Int) error {
	return r.update(ctx, "setPrice", caller, func(e *env) error {
		return e.manager().SetPrice(caller, token, price)
	})
}

func (r *Runtime) SetCollateralRiskParams(ctx context.Context, caller common.Address, maxLTV, threshold, bonus uint64) error {
	return r.update(ctx, "setRiskParams", caller, func(e *env) error {
		return e.manager().SetRiskParams(caller, maxLTV, threshold, bonus)
	})
}

func (r *Runtime) CollateralConfig(ctx context.Context) (*collateral.Config, error) {
	var out *collateral.Config
	err := r.view(ctx, "collateralConfig", func(e *env) error {
		var err error
		out, err = e.manager().GetConfig()
		return err
	})
	return out, err
}

// CollateralPrice returns the stored price feed of token.
func (r *Runtime) CollateralPrice(ctx context.Context, token common.Address) (*collateral.PriceFeed, error) {
	var out *collateral.PriceFeed
	err := r.view(ctx, "collateralPrice", func(e *env) error {
		feed, err := e.manager().GetPriceFeed(token)
		if err != nil {
			return err
		}
		if feed == nil {
			return collateral.ErrNoPrice
		}
		out = feed
		return nil
	})
	return out, err
}

// USDValue converts amount of token into USD with eight decimals.
func (r *Runtime) USDValue(ctx context.Context, token common.Address, amount *big.Int) (*big.Int, error) {
	var out *big.Int
	err := r.view(ctx, "usdValue", func(e *env) error {
		var err error
		out, err = e.manager().GetUSDValue(token, amount)
		return err
	})
	return out, err
}

func (r *Runtime) CollateralAccount(ctx context.Context, user common.Address) (*CollateralView, error) {
	var out *CollateralView
	err := r.view(ctx, "collateralAccount", func(e *env) error {
		manager := e.manager()
		cfg, err := manager.GetConfig()
		if err != nil {
			return err
		}
		acct, err := manager.GetAccount(user)
		if err != nil {
			return err
		}
		out = &CollateralView{Account: acct, MaxLTV: cfg.MaxLTV, Vaults: cfg.Vaults}
		return nil
	})
	return out, err
}

// MaxBorrow returns how much more user may cross-borrow from vaultAddr.
func (r *Runtime) MaxBorrow(ctx context.Context, user, vaultAddr common.Address) (*big.Int, error) {
	var out *big.Int
	err := r.view(ctx, "maxBorrow", func(e *env) error {
		var err error
		out, err = e.manager().GetMaxBorrow(user, vaultAddr)
		return err
	})
	return out, err
}

func (r *Runtime) CrossDebt(ctx context.Context, user, vaultAddr common.Address) (*CrossDebtView, error) {
	var out *CrossDebtView
	err := r.view(ctx, "crossDebt", func(e *env) error {
		engine, _, err := e.vault(vaultAddr)
		if err != nil {
			return err
		}
		principal, interest, err := engine.GetCrossDebt(user)
		if err != nil {
			return err
		}
		out = &CrossDebtView{Principal: principal, Interest: interest}
		return nil
	})
	return out, err
}
