package vault

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// GetVaultInfo returns a copy of the vault description.
func (e *Engine) GetVaultInfo() (*Info, error) {
	info, _, err := e.load()
	return info, err
}

// GetVaultState returns a copy of the vault totals.
func (e *Engine) GetVaultState() (*State, error) {
	_, st, err := e.load()
	if err != nil {
		return nil, err
	}
	st.UtilizationRate = Utilization(st)
	return st, nil
}

// GetUserPosition returns the stored position with supplier interest and
// borrower interest projected to now.
func (e *Engine) GetUserPosition(user common.Address) (*Position, error) {
	info, st, err := e.load()
	if err != nil {
		return nil, err
	}
	pos, err := e.loadPosition(user)
	if err != nil {
		return nil, err
	}
	now := e.now()
	pending := pendingBorrowInterest(info, st, pos, now)
	crossPending := pendingCrossInterest(info, st, pos, now)
	settleSupplier(st, pos)
	pos.BorrowInterestAccumulated.Add(pos.BorrowInterestAccumulated, pending)
	pos.CrossInterest.Add(pos.CrossInterest, crossPending)
	return pos, nil
}

// CalculateBorrowRate returns the current annual borrow rate in basis points.
func (e *Engine) CalculateBorrowRate() (uint64, error) {
	info, st, err := e.load()
	if err != nil {
		return 0, err
	}
	return BorrowRate(info, Utilization(st)), nil
}

// GetTotalDebt returns principal plus accrued and unsettled interest.
func (e *Engine) GetTotalDebt(user common.Address) (*big.Int, error) {
	info, st, err := e.load()
	if err != nil {
		return nil, err
	}
	pos, err := e.loadPosition(user)
	if err != nil {
		return nil, err
	}
	debt := pos.Debt()
	return debt.Add(debt, pendingBorrowInterest(info, st, pos, e.now())), nil
}

// GetCrossDebt returns the cross-collateral principal and interest owed by
// user, interest projected to now.
func (e *Engine) GetCrossDebt(user common.Address) (*big.Int, *big.Int, error) {
	pos, err := e.GetUserPosition(user)
	if err != nil {
		return nil, nil, err
	}
	return pos.CrossBorrowed, pos.CrossInterest, nil
}

// StakedAmount returns the CVT user has staked in the paired pool.
func (e *Engine) StakedAmount(user common.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	return e.stakedAmount(user)
}

// TotalStakedLiquidity returns the CVT staked across all users.
func (e *Engine) TotalStakedLiquidity() (*big.Int, error) {
	_, st, err := e.load()
	if err != nil {
		return nil, err
	}
	return st.TotalStakedLiquidity, nil
}

// ProtocolDebt returns the outstanding protocol borrow.
func (e *Engine) ProtocolDebt() (*big.Int, error) {
	_, st, err := e.load()
	if err != nil {
		return nil, err
	}
	return st.ProtocolDebt, nil
}

// InterestIndex returns the cumulative supplier index scaled by 1e18.
func (e *Engine) InterestIndex() (*big.Int, error) {
	_, st, err := e.load()
	if err != nil {
		return nil, err
	}
	return st.InterestIndex, nil
}
