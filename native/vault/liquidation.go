package vault

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"cantorfi/core/events"
)

// LiquidationResult summarises how a seized position was distributed.
type LiquidationResult struct {
	Seized    *big.Int
	Bonus     *big.Int
	Principal *big.Int
	Interest  *big.Int
	Refund    *big.Int
	BadDebt   *big.Int
}

// Liquidate closes an insolvent position. The whole supply is seized: the
// liquidator receives the bonus, the rest covers principal then interest, any
// surplus is refunded to the borrower and uncovered principal becomes bad
// debt.
func (e *Engine) Liquidate(caller, user common.Address) (*LiquidationResult, error) {
	info, st, err := e.load()
	if err != nil {
		return nil, err
	}
	pos, err := e.loadPosition(user)
	if err != nil {
		return nil, err
	}
	now := e.now()
	e.settle(info, st, pos, now)
	if !insolvent(info, pos.Debt(), pos.Amount) {
		return nil, ErrPositionSolvent
	}

	seized := new(big.Int).Set(pos.Amount)
	bonus := applyBps(seized, info.LiquidationBonus)
	covered := new(big.Int).Sub(seized, bonus)
	principal := minBig(covered, pos.BorrowedAmount)
	covered.Sub(covered, principal)
	interest := minBig(covered, pos.BorrowInterestAccumulated)
	refund := new(big.Int).Sub(covered, interest)
	badDebt := new(big.Int).Sub(pos.BorrowedAmount, principal)

	outflow := new(big.Int).Add(bonus, interest)
	outflow.Add(outflow, refund)
	if outflow.Cmp(st.AvailableLiquidity) > 0 {
		return nil, ErrInsufficientLiquidity
	}

	scaled, err := e.toCVT(info, seized)
	if err != nil {
		return nil, err
	}
	fromEscrow := minBig(pos.CVTEscrowed, scaled)
	held, err := e.receipt.BalanceOf(user)
	if err != nil {
		return nil, err
	}
	if err := e.burn(user, fromEscrow, minBig(held, new(big.Int).Sub(scaled, fromEscrow))); err != nil {
		return nil, err
	}
	if bonus.Sign() > 0 {
		if err := e.tokens.Transfer(info.Token, e.address, caller, bonus); err != nil {
			return nil, err
		}
	}
	if refund.Sign() > 0 {
		if err := e.tokens.Transfer(info.Token, e.address, user, refund); err != nil {
			return nil, err
		}
	}

	st.TotalSupplied.Sub(st.TotalSupplied, seized)
	st.TotalBorrowed.Sub(st.TotalBorrowed, pos.BorrowedAmount)
	st.TotalBadDebt.Add(st.TotalBadDebt, badDebt)
	st.AvailableLiquidity.Sub(st.AvailableLiquidity, outflow)
	// Recovered interest stays in the vault for the remaining suppliers.
	if _, err := e.splitInterest(info, st, interest, 0); err != nil {
		return nil, err
	}

	pos.Amount.SetInt64(0)
	pos.CVTBalance.SetInt64(0)
	pos.CVTEscrowed.SetInt64(0)
	pos.BorrowedAmount.SetInt64(0)
	pos.BorrowInterestAccumulated.SetInt64(0)
	pos.IsLocked = false
	pos.Lock = LockConfig{}
	pos.LockEndDate = 0
	if err := e.store(user, st, pos, now); err != nil {
		return nil, err
	}

	result := &LiquidationResult{
		Seized:    seized,
		Bonus:     bonus,
		Principal: principal,
		Interest:  interest,
		Refund:    refund,
		BadDebt:   badDebt,
	}
	e.emitter.Emit(events.VaultLiquidated{
		Vault:      e.address,
		User:       user,
		Liquidator: caller,
		Seized:     seized,
		Bonus:      bonus,
		Principal:  principal,
		Interest:   interest,
		Refund:     refund,
		BadDebt:    badDebt,
	})
	return result, nil
}

// IsLiquidatable reports whether user's debt, including unsettled interest,
// exceeds the liquidation threshold.
func (e *Engine) IsLiquidatable(user common.Address) (bool, error) {
	info, st, err := e.load()
	if err != nil {
		return false, err
	}
	pos, err := e.loadPosition(user)
	if err != nil {
		return false, err
	}
	debt := pos.Debt()
	debt.Add(debt, pendingBorrowInterest(info, st, pos, e.now()))
	return insolvent(info, debt, pos.Amount), nil
}

func insolvent(info *Info, debt, collateral *big.Int) bool {
	if debt.Sign() <= 0 {
		return false
	}
	return exceedsRatio(debt, collateral, info.EffectiveLiquidationThreshold())
}
