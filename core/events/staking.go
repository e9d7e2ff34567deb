package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"cantorfi/core/types"
)

const (
	// TypeStakeDeposited is emitted when CVT is locked into a staking pool.
	TypeStakeDeposited = "stake.deposited"
	// TypeStakeWithdrawn is emitted when a staker unstakes their full position.
	TypeStakeWithdrawn = "stake.withdrawn"
	// TypeStakeRewardsClaimed is emitted when staking rewards are paid out.
	TypeStakeRewardsClaimed = "stake.rewardsClaimed"
	// TypeStakeRewardsNotified is emitted when the vault streams protocol interest.
	TypeStakeRewardsNotified = "stake.rewardsNotified"
	// TypeStakeRatioUpdated is emitted when the protocol borrow ratio changes.
	TypeStakeRatioUpdated = "stake.ratioUpdated"
)

// StakeDeposited captures a stake into a pool.
type StakeDeposited struct {
	Pool    common.Address
	User    common.Address
	Amount  *big.Int
	LockEnd uint64
}

// EventType satisfies the Event interface.
func (StakeDeposited) EventType() string { return TypeStakeDeposited }

// Event converts the structured payload into a broadcastable event.
func (e StakeDeposited) Event() *types.Event {
	return &types.Event{Type: TypeStakeDeposited, Attributes: map[string]string{
		"pool":    formatAddress(e.Pool),
		"user":    formatAddress(e.User),
		"amount":  formatAmount(e.Amount),
		"lockEnd": formatUint(e.LockEnd),
	}}
}

// StakeWithdrawn captures a full unstake.
type StakeWithdrawn struct {
	Pool   common.Address
	User   common.Address
	Amount *big.Int
}

// EventType satisfies the Event interface.
func (StakeWithdrawn) EventType() string { return TypeStakeWithdrawn }

// Event converts the structured payload into a broadcastable event.
func (e StakeWithdrawn) Event() *types.Event {
	return &types.Event{Type: TypeStakeWithdrawn, Attributes: map[string]string{
		"pool":   formatAddress(e.Pool),
		"user":   formatAddress(e.User),
		"amount": formatAmount(e.Amount),
	}}
}

// StakeRewardsClaimed captures the staking reward payout for an account.
type StakeRewardsClaimed struct {
	Pool   common.Address
	User   common.Address
	Amount *big.Int
}

// EventType satisfies the Event interface.
func (StakeRewardsClaimed) EventType() string { return TypeStakeRewardsClaimed }

// Event converts the structured payload into a broadcastable event.
func (e StakeRewardsClaimed) Event() *types.Event {
	return &types.Event{Type: TypeStakeRewardsClaimed, Attributes: map[string]string{
		"pool":   formatAddress(e.Pool),
		"user":   formatAddress(e.User),
		"amount": formatAmount(e.Amount),
	}}
}

// StakeRewardsNotified captures a reward injection and the resulting
// accumulator value.
type StakeRewardsNotified struct {
	Pool           common.Address
	Amount         *big.Int
	RewardPerToken *big.Int
}

// EventType satisfies the Event interface.
func (StakeRewardsNotified) EventType() string { return TypeStakeRewardsNotified }

// Event converts the structured payload into a broadcastable event.
func (e StakeRewardsNotified) Event() *types.Event {
	return &types.Event{Type: TypeStakeRewardsNotified, Attributes: map[string]string{
		"pool":           formatAddress(e.Pool),
		"amount":         formatAmount(e.Amount),
		"rewardPerToken": formatAmount(e.RewardPerToken),
	}}
}

// StakeRatioUpdated captures a change of the protocol borrow ratio.
type StakeRatioUpdated struct {
	Pool     common.Address
	RatioBps uint64
}

// EventType satisfies the Event interface.
func (StakeRatioUpdated) EventType() string { return TypeStakeRatioUpdated }

// Event converts the structured payload into a broadcastable event.
func (e StakeRatioUpdated) Event() *types.Event {
	return &types.Event{Type: TypeStakeRatioUpdated, Attributes: map[string]string{
		"pool":     formatAddress(e.Pool),
		"ratioBps": formatUint(e.RatioBps),
	}}
}
