package staking

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Pool is the staking contract paired with a vault. Stakes are denominated in
// the vault CVT; rewards are paid in the vault's underlying token.
type Pool struct {
	Address    common.Address
	Vault      common.Address
	CVT        common.Address
	Underlying common.Address
	// MaxProtocolBorrowRatio is the share of staked value the protocol may
	// borrow from the vault, in basis points.
	MaxProtocolBorrowRatio uint64
	TotalStaked            *big.Int
	// RewardPerToken accumulates rewards per staked CVT unit, scaled by 1e18.
	RewardPerToken   *big.Int
	TotalDistributed *big.Int
	StakersCount     uint64
	CreatedAt        uint64
}

// Clone returns a deep copy of the pool.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	clone := *p
	clone.TotalStaked = cloneBig(p.TotalStaked)
	clone.RewardPerToken = cloneBig(p.RewardPerToken)
	clone.TotalDistributed = cloneBig(p.TotalDistributed)
	return &clone
}

// StakePosition records a single staker.
type StakePosition struct {
	Amount             *big.Int
	LockEndTime        uint64
	RewardPerTokenPaid *big.Int
	PendingRewards     *big.Int
	ClaimedRewards     *big.Int
	StakedAt           uint64
}

// Clone returns a deep copy of the position.
func (p *StakePosition) Clone() *StakePosition {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Amount = cloneBig(p.Amount)
	clone.RewardPerTokenPaid = cloneBig(p.RewardPerTokenPaid)
	clone.PendingRewards = cloneBig(p.PendingRewards)
	clone.ClaimedRewards = cloneBig(p.ClaimedRewards)
	return &clone
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
