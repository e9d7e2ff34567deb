package protocol

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Stake locks amount of the pool's CVT for at least lock.
func (r *Runtime) Stake(ctx context.Context, caller, poolAddr common.Address, amount *big.Int, lock time.Duration) error {
	return r.update(ctx, "stake", caller, func(e *env) error {
		pool, err := e.pool(poolAddr)
		if err != nil {
			return err
		}
		return pool.Stake(caller, amount, lock)
	})
}

func (r *Runtime) Unstake(ctx context.Context, caller, poolAddr common.Address) (*big.Int, error) {
	var amount *big.Int
	err := r.update(ctx, "unstake", caller, func(e *env) error {
		pool, err := e.pool(poolAddr)
		if err != nil {
			return err
		}
		amount, err = pool.Unstake(caller)
		return err
	})
	return amount, err
}

func (r *Runtime) ClaimRewards(ctx context.Context, caller, poolAddr common.Address) (*big.Int, error) {
	var amount *big.Int
	err := r.update(ctx, "claimRewards", caller, func(e *env) error {
		pool, err := e.pool(poolAddr)
		if err != nil {
			return err
		}
		amount, err = pool.ClaimRewards(caller)
		return err
	})
	return amount, err
}

func (r *Runtime) SetMaxProtocolBorrowRatio(ctx context.Context, caller, poolAddr common.Address, ratioBps uint64) error {
	return r.update(ctx, "setProtocolBorrowRatio", caller, func(e *env) error {
		pool, err := e.pool(poolAddr)
		if err != nil {
			return err
		}
		return pool.SetMaxProtocolBorrowRatio(caller, ratioBps)
	})
}
