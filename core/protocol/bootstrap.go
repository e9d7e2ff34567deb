package protocol

import (
	"context"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"cantorfi/config"
)

// VaultDeployment describes a vault created at genesis.
type VaultDeployment struct {
	ID     uint64
	Symbol string
	Vault  common.Address
	CVT    common.Address
	Pool   common.Address
}

// Bootstrap applies genesis in a single transaction: the registry and fee
// collector, the factory registration, the collateral manager, mock tokens
// with their balances and prices, and the configured vaults with their
// staking pools.
func (r *Runtime) Bootstrap(ctx context.Context, g *config.Genesis) ([]VaultDeployment, error) {
	if g == nil {
		return nil, fmt.Errorf("protocol: genesis required")
	}
	admin := g.AdminAddress()
	operator := g.OperatorAddress()
	var deployed []VaultDeployment
	err := r.update(ctx, "bootstrap", admin, func(e *env) error {
		if _, err := e.protocol(); err == nil {
			return ErrAlreadyBootstrapped
		}
		if err := e.registry.Initialize(admin, g.TreasuryAddress(), r.addrs.Collector, g.FeeSchedule()); err != nil {
			return fmt.Errorf("registry: %w", err)
		}
		if err := e.collector().Initialize(admin, g.TreasuryAddress()); err != nil {
			return fmt.Errorf("fee collector: %w", err)
		}
		if err := e.registry.AddFactory(admin, r.addrs.Factory); err != nil {
			return err
		}
		f := e.factory()
		if err := f.GrantAdmin(operator); err != nil {
			return err
		}
		manager := e.manager()
		if err := manager.Initialize(admin, g.CollateralConfig(r.addrs.Collateral)); err != nil {
			return fmt.Errorf("collateral manager: %w", err)
		}
		for _, tok := range g.Tokens {
			if err := e.ledger.Register(tok.Metadata()); err != nil {
				return fmt.Errorf("token %s: %w", tok.Symbol, err)
			}
			holders := make([]string, 0, len(tok.Balances))
			for holder := range tok.Balances {
				holders = append(holders, holder)
			}
			sort.Strings(holders)
			for _, holder := range holders {
				amount, err := config.ParseAmount(tok.Balances[holder])
				if err != nil {
					return err
				}
				if amount.Sign() == 0 {
					continue
				}
				if err := e.ledger.Mint(tok.TokenAddress(), common.HexToAddress(holder), amount); err != nil {
					return fmt.Errorf("token %s balance %s: %w", tok.Symbol, holder, err)
				}
			}
			if tok.PriceUSD != "" {
				price, err := config.ParseAmount(tok.PriceUSD)
				if err != nil {
					return err
				}
				if err := manager.SetPrice(admin, tok.TokenAddress(), price); err != nil {
					return fmt.Errorf("token %s price: %w", tok.Symbol, err)
				}
			}
		}
		for i, v := range g.Vaults {
			params, err := g.VaultParams(v)
			if err != nil {
				return fmt.Errorf("vault %d: %w", i, err)
			}
			dep, err := f.CreateVault(operator, params)
			if err != nil {
				return fmt.Errorf("vault %d: %w", i, err)
			}
			out := VaultDeployment{ID: dep.ID, Vault: dep.Vault, CVT: dep.CVT}
			if meta, err := e.ledger.Metadata(params.Token); err == nil {
				out.Symbol = meta.Symbol
			}
			if v.Staking {
				pool, err := f.DeployStaking(operator, dep.Vault, v.ProtocolBorrowRatio)
				if err != nil {
					return fmt.Errorf("vault %d staking: %w", i, err)
				}
				if err := e.Vault(dep.Vault).SetStakingContract(admin, pool); err != nil {
					return fmt.Errorf("vault %d staking: %w", i, err)
				}
				out.Pool = pool
			}
			if v.CrossCollateral {
				if err := e.Vault(dep.Vault).SetCrossCollateral(admin, r.addrs.Collateral, true); err != nil {
					return fmt.Errorf("vault %d collateral: %w", i, err)
				}
				if err := manager.AddVault(admin, dep.Vault); err != nil {
					return fmt.Errorf("vault %d collateral: %w", i, err)
				}
			}
			e.touch(dep.Vault)
			deployed = append(deployed, out)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.logger.Info("protocol bootstrapped",
		"registry", r.addrs.Registry.Hex(),
		"factory", r.addrs.Factory.Hex(),
		"vaults", len(deployed))
	return deployed, nil
}
