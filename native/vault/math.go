package vault

import "math/big"

// settle brings a position up to date before it is mutated: supplier interest
// is realised from the index and borrower interest accrues at the current
// rate for the time elapsed since the last checkpoint.
func (e *Engine) settle(info *Info, st *State, pos *Position, now uint64) {
	settleSupplier(st, pos)
	settleBorrower(info, st, pos, now)
}

func settleSupplier(st *State, pos *Position) {
	if pos.InterestIndexSnapshot == nil || pos.Amount.Sign() == 0 {
		pos.InterestIndexSnapshot = new(big.Int).Set(st.InterestIndex)
		return
	}
	earned := supplierShare(pos.Amount, st.InterestIndex, pos.InterestIndexSnapshot)
	pos.InterestPending.Add(pos.InterestPending, earned)
	pos.InterestIndexSnapshot = new(big.Int).Set(st.InterestIndex)
}

func settleBorrower(info *Info, st *State, pos *Position, now uint64) {
	pos.BorrowInterestAccumulated.Add(pos.BorrowInterestAccumulated, pendingBorrowInterest(info, st, pos, now))
	pos.CrossInterest.Add(pos.CrossInterest, pendingCrossInterest(info, st, pos, now))
	pos.LastInterestUpdate = now
}

// pendingBorrowInterest is the unsettled borrower interest as of now.
func pendingBorrowInterest(info *Info, st *State, pos *Position, now uint64) *big.Int {
	if pos.BorrowedAmount.Sign() <= 0 || now <= pos.LastInterestUpdate {
		return big.NewInt(0)
	}
	return accruedBorrowInterest(pos.BorrowedAmount, BorrowRate(info, Utilization(st)), now-pos.LastInterestUpdate)
}

// pendingCrossInterest accrues cross-collateral principal at the same rate.
func pendingCrossInterest(info *Info, st *State, pos *Position, now uint64) *big.Int {
	if pos.CrossBorrowed.Sign() <= 0 || now <= pos.LastInterestUpdate {
		return big.NewInt(0)
	}
	return accruedBorrowInterest(pos.CrossBorrowed, BorrowRate(info, Utilization(st)), now-pos.LastInterestUpdate)
}

// distributeInterest credits amount to suppliers through the index. It
// returns false when there is no supply to credit.
func distributeInterest(st *State, amount *big.Int) bool {
	if amount == nil || amount.Sign() <= 0 {
		return true
	}
	if st.TotalSupplied.Sign() <= 0 {
		return false
	}
	delta := new(big.Int).Mul(amount, wad)
	delta.Quo(delta, st.TotalSupplied)
	st.InterestIndex.Add(st.InterestIndex, delta)
	return true
}
