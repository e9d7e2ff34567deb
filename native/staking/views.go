package staking

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// GetPool returns a copy of the pool record.
func (e *Engine) GetPool() (*Pool, error) {
	return e.load()
}

// GetStakePosition returns the stored position of user.
func (e *Engine) GetStakePosition(user common.Address) (*StakePosition, error) {
	if _, err := e.load(); err != nil {
		return nil, err
	}
	return e.loadPosition(user)
}

// GetPendingRewards returns checkpointed plus unrealised rewards.
func (e *Engine) GetPendingRewards(user common.Address) (*big.Int, error) {
	pool, err := e.load()
	if err != nil {
		return nil, err
	}
	pos, err := e.loadPosition(user)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Add(pos.PendingRewards, earnedSince(pool, pos)), nil
}

func (e *Engine) GetStakersCount() (uint64, error) {
	pool, err := e.load()
	if err != nil {
		return 0, err
	}
	return pool.StakersCount, nil
}

func (e *Engine) TotalStaked() (*big.Int, error) {
	pool, err := e.load()
	if err != nil {
		return nil, err
	}
	return pool.TotalStaked, nil
}

// IsLockExpired reports whether user may unstake now.
func (e *Engine) IsLockExpired(user common.Address) (bool, error) {
	pos, err := e.GetStakePosition(user)
	if err != nil {
		return false, err
	}
	return e.now() >= pos.LockEndTime, nil
}
