package protocol

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"cantorfi/native/factory"
	"cantorfi/native/fees"
	"cantorfi/native/staking"
	"cantorfi/native/token"
	"cantorfi/native/vault"
)

// VaultView bundles the public state of a vault.
type VaultView struct {
	Info        *vault.Info
	State       *vault.State
	BorrowRate  uint64
	Pool        *staking.Pool
	TokenSymbol string
	Decimals    uint8
}

// PositionView is a user's position projected to now.
type PositionView struct {
	Position     *vault.Position
	TotalDebt    *big.Int
	Staked       *big.Int
	Liquidatable bool
}

// StakeView is a user's staking position with pending rewards.
type StakeView struct {
	Position    *staking.StakePosition
	Pending     *big.Int
	LockExpired bool
}

// FeeStatsView reports the fee flow of a token.
type FeeStatsView struct {
	Collected   *big.Int
	Distributed *big.Int
	Available   *big.Int
}

func (r *Runtime) Protocol(ctx context.Context) (*factory.Protocol, error) {
	var out *factory.Protocol
	err := r.view(ctx, "protocol", func(e *env) error {
		var err error
		out, err = e.protocol()
		return err
	})
	return out, err
}

// Vaults lists every vault in creation order.
func (r *Runtime) Vaults(ctx context.Context) ([]common.Address, error) {
	var out []common.Address
	err := r.view(ctx, "vaults", func(e *env) error {
		var err error
		out, err = e.registry.Vaults()
		return err
	})
	return out, err
}

// VaultByID resolves a vault identifier.
func (r *Runtime) VaultByID(ctx context.Context, id uint64) (common.Address, error) {
	var out common.Address
	err := r.view(ctx, "vaultById", func(e *env) error {
		var err error
		out, err = e.registry.GetVault(id)
		return err
	})
	return out, err
}

func (r *Runtime) Vault(ctx context.Context, vaultAddr common.Address) (*VaultView, error) {
	var out *VaultView
	err := r.view(ctx, "vault", func(e *env) error {
		engine, pool, err := e.vault(vaultAddr)
		if err != nil {
			return err
		}
		info, err := engine.GetVaultInfo()
		if err != nil {
			return err
		}
		st, err := engine.GetVaultState()
		if err != nil {
			return err
		}
		rate, err := engine.CalculateBorrowRate()
		if err != nil {
			return err
		}
		meta, err := e.ledger.Metadata(info.Token)
		if err != nil {
			return err
		}
		out = &VaultView{Info: info, State: st, BorrowRate: rate, TokenSymbol: meta.Symbol, Decimals: meta.Decimals}
		if pool != nil {
			out.Pool, err = pool.GetPool()
		}
		return err
	})
	return out, err
}

func (r *Runtime) Position(ctx context.Context, vaultAddr, user common.Address) (*PositionView, error) {
	var out *PositionView
	err := r.view(ctx, "position", func(e *env) error {
		engine, _, err := e.vault(vaultAddr)
		if err != nil {
			return err
		}
		pos, err := engine.GetUserPosition(user)
		if err != nil {
			return err
		}
		debt, err := engine.GetTotalDebt(user)
		if err != nil {
			return err
		}
		staked, err := engine.StakedAmount(user)
		if err != nil {
			return err
		}
		liquidatable, err := engine.IsLiquidatable(user)
		if err != nil {
			return err
		}
		out = &PositionView{Position: pos, TotalDebt: debt, Staked: staked, Liquidatable: liquidatable}
		return nil
	})
	return out, err
}

func (r *Runtime) Pool(ctx context.Context, poolAddr common.Address) (*staking.Pool, *big.Int, error) {
	var (
		out       *staking.Pool
		allowance *big.Int
	)
	err := r.view(ctx, "pool", func(e *env) error {
		pool, err := e.pool(poolAddr)
		if err != nil {
			return err
		}
		if out, err = pool.GetPool(); err != nil {
			return err
		}
		allowance, err = pool.GetMaxProtocolBorrow()
		return err
	})
	return out, allowance, err
}

func (r *Runtime) StakePosition(ctx context.Context, poolAddr, user common.Address) (*StakeView, error) {
	var out *StakeView
	err := r.view(ctx, "stakePosition", func(e *env) error {
		pool, err := e.pool(poolAddr)
		if err != nil {
			return err
		}
		pos, err := pool.GetStakePosition(user)
		if err != nil {
			return err
		}
		pending, err := pool.GetPendingRewards(user)
		if err != nil {
			return err
		}
		expired, err := pool.IsLockExpired(user)
		if err != nil {
			return err
		}
		out = &StakeView{Position: pos, Pending: pending, LockExpired: expired}
		return nil
	})
	return out, err
}

func (r *Runtime) FeeStats(ctx context.Context, tok common.Address) (*FeeStatsView, error) {
	var out *FeeStatsView
	err := r.view(ctx, "feeStats", func(e *env) error {
		stats, err := e.collector().GetFeeStats(tok)
		if err != nil {
			return err
		}
		out = &FeeStatsView{Collected: stats.Collected, Distributed: stats.Distributed, Available: stats.Available()}
		return nil
	})
	return out, err
}

func (r *Runtime) Collector(ctx context.Context) (*fees.Collector, error) {
	var out *fees.Collector
	err := r.view(ctx, "collector", func(e *env) error {
		var err error
		out, err = e.collector().GetCollector()
		return err
	})
	return out, err
}

func (r *Runtime) Token(ctx context.Context, tok common.Address) (*token.Metadata, error) {
	var out *token.Metadata
	err := r.view(ctx, "token", func(e *env) error {
		var err error
		out, err = e.ledger.Metadata(tok)
		return err
	})
	return out, err
}

// Tokens lists registered tokens, receipt tokens included.
func (r *Runtime) Tokens(ctx context.Context) ([]*token.Metadata, error) {
	var out []*token.Metadata
	err := r.view(ctx, "tokens", func(e *env) error {
		list, err := e.tx.Tokens()
		if err != nil {
			return err
		}
		for _, addr := range list {
			meta, err := e.ledger.Metadata(addr)
			if err != nil {
				return err
			}
			out = append(out, meta)
		}
		return nil
	})
	return out, err
}

func (r *Runtime) Balance(ctx context.Context, tok, holder common.Address) (*big.Int, error) {
	var out *big.Int
	err := r.view(ctx, "balance", func(e *env) error {
		var err error
		out, err = e.ledger.BalanceOf(tok, holder)
		return err
	})
	return out, err
}

func (r *Runtime) Allowance(ctx context.Context, tok, owner, spender common.Address) (*big.Int, error) {
	var out *big.Int
	err := r.view(ctx, "allowance", func(e *env) error {
		var err error
		out, err = e.ledger.Allowance(tok, owner, spender)
		return err
	})
	return out, err
}

func (e *env) isReceipt(tok common.Address) bool {
	vaults, err := e.registry.Vaults()
	if err != nil {
		return false
	}
	for _, addr := range vaults {
		info, err := e.Vault(addr).GetVaultInfo()
		if err == nil && info.CVT == tok {
			return true
		}
	}
	return false
}
