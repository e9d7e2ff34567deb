package vault

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"cantorfi/core/events"
	nativecommon "cantorfi/native/common"
)

// ProtocolBorrow draws liquidity for the protocol against the staking pool's
// borrowing allowance. Only vault admins may call it.
func (e *Engine) ProtocolBorrow(caller common.Address, amount *big.Int) error {
	info, st, err := e.loadMutable()
	if err != nil {
		return err
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	pool, err := e.pool(info)
	if err != nil {
		return err
	}
	allowance, err := pool.GetMaxProtocolBorrow()
	if err != nil {
		return err
	}
	if new(big.Int).Add(st.ProtocolDebt, amount).Cmp(allowance) > 0 {
		return ErrExceedsMaxProtocolBorrow
	}
	if err := checkUtilization(st, amount); err != nil {
		return err
	}
	if amount.Cmp(st.AvailableLiquidity) > 0 {
		return ErrInsufficientLiquidity
	}
	if err := e.tokens.Transfer(info.Token, e.address, caller, amount); err != nil {
		return err
	}
	st.ProtocolDebt.Add(st.ProtocolDebt, amount)
	st.TotalBorrowed.Add(st.TotalBorrowed, amount)
	st.AvailableLiquidity.Sub(st.AvailableLiquidity, amount)
	if err := e.storeState(st, e.now()); err != nil {
		return err
	}
	e.emitter.Emit(events.VaultBorrowed{
		Vault:    e.address,
		Borrower: caller,
		Amount:   new(big.Int).Set(amount),
		RateBps:  BorrowRate(info, st.UtilizationRate),
		Protocol: true,
	})
	return nil
}

// ProtocolRepay settles protocol debt. Anything above the outstanding debt is
// interest: BorrowFeeRate of it goes to the fee sink and the rest is streamed
// to stakers, or to the fee sink when nothing is staked.
func (e *Engine) ProtocolRepay(caller common.Address, amount *big.Int) error {
	info, st, err := e.load()
	if err != nil {
		return err
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	principal := minBig(amount, st.ProtocolDebt)
	interest := new(big.Int).Sub(amount, principal)

	if err := e.tokens.TransferFrom(info.Token, e.address, caller, e.address, amount); err != nil {
		return err
	}
	st.ProtocolDebt.Sub(st.ProtocolDebt, principal)
	st.TotalBorrowed.Sub(st.TotalBorrowed, principal)
	st.AvailableLiquidity.Add(st.AvailableLiquidity, principal)

	fee := big.NewInt(0)
	if interest.Sign() > 0 {
		st.TotalInterestCollected.Add(st.TotalInterestCollected, interest)
		fee = applyBps(interest, e.feeCfg.BorrowFeeRate)
		rewards := new(big.Int).Sub(interest, fee)
		if rewards.Sign() > 0 {
			pool, err := e.pool(info)
			if err != nil || st.TotalStakedLiquidity.Sign() == 0 {
				fee.Add(fee, rewards)
			} else {
				if err := e.tokens.Transfer(info.Token, e.address, pool.Address(), rewards); err != nil {
					return err
				}
				if err := pool.NotifyRewards(e.address, rewards); err != nil {
					return err
				}
			}
		}
		if err := e.routeFee(info, fee); err != nil {
			return err
		}
	}
	if err := e.storeState(st, e.now()); err != nil {
		return err
	}
	e.emitter.Emit(events.VaultRepaid{
		Vault:     e.address,
		Borrower:  caller,
		Principal: principal,
		Interest:  interest,
		Fee:       fee,
		Protocol:  true,
	})
	return nil
}

// SetStakingContract pairs the vault with a staking pool.
func (e *Engine) SetStakingContract(caller, pool common.Address) error {
	info, _, err := e.load()
	if err != nil {
		return err
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if pool == (common.Address{}) {
		return ErrInvalidParams
	}
	info.StakingContract = pool
	if err := e.state.PutVaultInfo(info); err != nil {
		return err
	}
	e.emitConfigured(caller, "stakingContract", pool.Hex())
	return nil
}

// OnStake mirrors a stake into the vault. Only the configured staking
// contract may call it, and users whose supply backs a loan cannot stake.
func (e *Engine) OnStake(caller, user common.Address, cvtAmount *big.Int) error {
	info, st, err := e.loadMutable()
	if err != nil {
		return err
	}
	if err := nativecommon.RequireAddress(e.address, RoleStaking, info.StakingContract, caller); err != nil {
		return err
	}
	if cvtAmount == nil || cvtAmount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	pos, err := e.loadPosition(user)
	if err != nil {
		return err
	}
	if pos.Pledged() {
		return ErrUserHasBorrow
	}
	staked, err := e.stakedAmount(user)
	if err != nil {
		return err
	}
	staked = new(big.Int).Add(staked, cvtAmount)
	if err := e.state.PutStakedAmount(e.address, user, staked); err != nil {
		return err
	}
	st.TotalStakedLiquidity.Add(st.TotalStakedLiquidity, cvtAmount)
	return e.storeState(st, e.now())
}

// OnUnstake clears the mirror for user.
func (e *Engine) OnUnstake(caller, user common.Address, cvtAmount *big.Int) error {
	info, st, err := e.load()
	if err != nil {
		return err
	}
	if err := nativecommon.RequireAddress(e.address, RoleStaking, info.StakingContract, caller); err != nil {
		return err
	}
	staked, err := e.stakedAmount(user)
	if err != nil {
		return err
	}
	removed := minBig(orZero(cvtAmount), staked)
	staked = new(big.Int).Sub(staked, removed)
	if err := e.state.PutStakedAmount(e.address, user, staked); err != nil {
		return err
	}
	st.TotalStakedLiquidity.Sub(st.TotalStakedLiquidity, minBig(removed, st.TotalStakedLiquidity))
	return e.storeState(st, e.now())
}

func (e *Engine) pool(info *Info) (StakingPool, error) {
	if info.StakingContract == (common.Address{}) || e.staking == nil || e.staking.Address() != info.StakingContract {
		return nil, ErrStakingNotConfigured
	}
	return e.staking, nil
}

func (e *Engine) requireAdmin(caller common.Address) error {
	return nativecommon.RequireRole(e.state, e.address, nativecommon.RoleAdmin, caller)
}
