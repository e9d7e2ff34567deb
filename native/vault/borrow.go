package vault

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"cantorfi/core/events"
)

// Borrow lends amount against the caller's own supply. Users with staked CVT
// cannot borrow; their collateral is already pledged to the staking pool.
// The CVT backing the loan is escrowed in the vault until the debt is repaid.
func (e *Engine) Borrow(caller common.Address, amount *big.Int) error {
	info, st, err := e.loadMutable()
	if err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	staked, err := e.stakedAmount(caller)
	if err != nil {
		return err
	}
	if staked.Sign() > 0 {
		return ErrUserHasStakedCVT
	}
	pos, err := e.loadPosition(caller)
	if err != nil {
		return err
	}
	now := e.now()
	e.settle(info, st, pos, now)

	debt := new(big.Int).Add(pos.Debt(), amount)
	if exceedsRatio(debt, pos.Amount, info.MaxBorrowRatio) {
		return ErrExceedsMaxBorrow
	}
	if err := checkUtilization(st, amount); err != nil {
		return err
	}
	if amount.Cmp(st.AvailableLiquidity) > 0 {
		return ErrInsufficientLiquidity
	}
	if manager := e.collateral(info); manager != nil && pos.CrossPledged {
		if err := manager.CheckBorrow(caller, e.address, amount); err != nil {
			return err
		}
	}
	if err := e.escrow(caller, pos); err != nil {
		return err
	}
	if err := e.tokens.Transfer(info.Token, e.address, caller, amount); err != nil {
		return err
	}

	pos.BorrowedAmount.Add(pos.BorrowedAmount, amount)
	st.TotalBorrowed.Add(st.TotalBorrowed, amount)
	st.AvailableLiquidity.Sub(st.AvailableLiquidity, amount)
	if err := e.store(caller, st, pos, now); err != nil {
		return err
	}
	e.emitter.Emit(events.VaultBorrowed{
		Vault:    e.address,
		Borrower: caller,
		Amount:   new(big.Int).Set(amount),
		RateBps:  BorrowRate(info, st.UtilizationRate),
	})
	return nil
}

// RepayBorrow repays up to the total owed, interest first. The performance
// fee share of the interest goes to the fee sink and the rest is credited to
// suppliers. The amount actually repaid is returned.
func (e *Engine) RepayBorrow(caller common.Address, amount *big.Int) (*big.Int, error) {
	info, st, err := e.load()
	if err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	pos, err := e.loadPosition(caller)
	if err != nil {
		return nil, err
	}
	now := e.now()
	e.settle(info, st, pos, now)
	owed := pos.Debt()
	if owed.Sign() == 0 {
		return nil, ErrNoDebt
	}
	paid := minBig(amount, owed)
	interest := minBig(paid, pos.BorrowInterestAccumulated)
	principal := new(big.Int).Sub(paid, interest)

	if err := e.tokens.TransferFrom(info.Token, e.address, caller, e.address, paid); err != nil {
		return nil, err
	}
	fee, err := e.splitInterest(info, st, interest, e.feeCfg.PerformanceFee)
	if err != nil {
		return nil, err
	}

	pos.BorrowInterestAccumulated.Sub(pos.BorrowInterestAccumulated, interest)
	pos.BorrowedAmount.Sub(pos.BorrowedAmount, principal)
	st.TotalBorrowed.Sub(st.TotalBorrowed, principal)
	st.AvailableLiquidity.Add(st.AvailableLiquidity, principal)
	if !pos.Pledged() {
		if err := e.release(caller, pos); err != nil {
			return nil, err
		}
	}
	if err := e.store(caller, st, pos, now); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.VaultRepaid{
		Vault:     e.address,
		Borrower:  caller,
		Principal: principal,
		Interest:  interest,
		Fee:       fee,
	})
	return paid, nil
}

// splitInterest routes feeBps of interest to the fee sink and credits the
// remainder to suppliers. With no supply left the remainder is also treated
// as a fee. The total fee is returned.
func (e *Engine) splitInterest(info *Info, st *State, interest *big.Int, feeBps uint64) (*big.Int, error) {
	if interest.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	st.TotalInterestCollected.Add(st.TotalInterestCollected, interest)
	fee := applyBps(interest, feeBps)
	rest := new(big.Int).Sub(interest, fee)
	if !distributeInterest(st, rest) {
		fee.Add(fee, rest)
	}
	if err := e.routeFee(info, fee); err != nil {
		return nil, err
	}
	return fee, nil
}

// checkUtilization rejects borrows that would push TotalBorrowed above
// MaxUtilization of TotalSupplied.
func checkUtilization(st *State, amount *big.Int) error {
	after := new(big.Int).Add(st.TotalBorrowed, amount)
	if exceedsRatio(after, st.TotalSupplied, MaxUtilization) {
		return ErrUtilizationTooHigh
	}
	return nil
}

func (e *Engine) stakedAmount(user common.Address) (*big.Int, error) {
	staked, err := e.state.GetStakedAmount(e.address, user)
	if err != nil {
		return nil, err
	}
	if staked == nil {
		return big.NewInt(0), nil
	}
	return staked, nil
}
