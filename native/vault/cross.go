package vault

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"cantorfi/core/events"
	nativecommon "cantorfi/native/common"
)

// RoleCollateralManager names the capability held by the configured
// collateral manager when it calls back into the vault.
const RoleCollateralManager nativecommon.Role = "COLLATERAL_MANAGER"

// CrossCollateralBorrow lends amount against the caller's supply across every
// vault registered with the collateral manager. Once the loan is recorded the
// manager pledges that supply and escrows its CVT.
func (e *Engine) CrossCollateralBorrow(caller common.Address, amount *big.Int) error {
	info, st, err := e.loadMutable()
	if err != nil {
		return err
	}
	manager := e.collateral(info)
	if manager == nil || !info.CrossCollateral {
		return ErrCrossCollateralDisabled
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	pos, err := e.loadPosition(caller)
	if err != nil {
		return err
	}
	now := e.now()
	e.settle(info, st, pos, now)

	if err := checkUtilization(st, amount); err != nil {
		return err
	}
	if amount.Cmp(st.AvailableLiquidity) > 0 {
		return ErrInsufficientLiquidity
	}
	if err := manager.CheckBorrow(caller, e.address, amount); err != nil {
		return err
	}
	if err := e.tokens.Transfer(info.Token, e.address, caller, amount); err != nil {
		return err
	}

	pos.CrossBorrowed.Add(pos.CrossBorrowed, amount)
	st.TotalBorrowed.Add(st.TotalBorrowed, amount)
	st.AvailableLiquidity.Sub(st.AvailableLiquidity, amount)
	if err := e.store(caller, st, pos, now); err != nil {
		return err
	}
	if err := manager.Pledge(caller); err != nil {
		return err
	}
	e.emitter.Emit(events.VaultBorrowed{
		Vault:    e.address,
		Borrower: caller,
		Amount:   new(big.Int).Set(amount),
		RateBps:  BorrowRate(info, st.UtilizationRate),
		Cross:    true,
	})
	return nil
}

// RepayCrossCollateral repays up to the cross-collateral debt of user, interest
// first, with tokens pulled from payer. When no cross-collateral debt remains
// anywhere the manager releases the pledged supply.
func (e *Engine) RepayCrossCollateral(payer, user common.Address, amount *big.Int) (*big.Int, error) {
	info, st, err := e.load()
	if err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	pos, err := e.loadPosition(user)
	if err != nil {
		return nil, err
	}
	now := e.now()
	e.settle(info, st, pos, now)
	owed := pos.CrossDebt()
	if owed.Sign() == 0 {
		return nil, ErrNoDebt
	}
	paid := minBig(amount, owed)
	interest := minBig(paid, pos.CrossInterest)
	principal := new(big.Int).Sub(paid, interest)

	if err := e.tokens.TransferFrom(info.Token, e.address, payer, e.address, paid); err != nil {
		return nil, err
	}
	fee, err := e.splitInterest(info, st, interest, e.feeCfg.PerformanceFee)
	if err != nil {
		return nil, err
	}

	pos.CrossInterest.Sub(pos.CrossInterest, interest)
	pos.CrossBorrowed.Sub(pos.CrossBorrowed, principal)
	st.TotalBorrowed.Sub(st.TotalBorrowed, principal)
	st.AvailableLiquidity.Add(st.AvailableLiquidity, principal)
	if err := e.store(user, st, pos, now); err != nil {
		return nil, err
	}
	if manager := e.collateral(info); manager != nil && pos.CrossDebt().Sign() == 0 {
		if err := manager.ReleaseIfClear(user); err != nil {
			return nil, err
		}
	}
	e.emitter.Emit(events.VaultRepaid{
		Vault:     e.address,
		Borrower:  user,
		Principal: principal,
		Interest:  interest,
		Fee:       fee,
		Cross:     true,
	})
	return paid, nil
}

// PledgeCollateral marks user's supply as backing a cross-collateral loan and
// escrows its CVT. Only the collateral manager may call it.
func (e *Engine) PledgeCollateral(caller, user common.Address) error {
	info, _, err := e.load()
	if err != nil {
		return err
	}
	if err := nativecommon.RequireAddress(e.address, RoleCollateralManager, info.CollateralManager, caller); err != nil {
		return err
	}
	staked, err := e.stakedAmount(user)
	if err != nil {
		return err
	}
	if staked.Sign() > 0 {
		return ErrUserHasStakedCVT
	}
	pos, err := e.loadPosition(user)
	if err != nil {
		return err
	}
	if err := e.escrow(user, pos); err != nil {
		return err
	}
	pos.CrossPledged = true
	return e.state.PutPosition(e.address, user, pos)
}

// ReleaseCollateral lifts a cross-collateral pledge. Escrowed CVT is returned
// unless a loan from this vault still needs it.
func (e *Engine) ReleaseCollateral(caller, user common.Address) error {
	info, _, err := e.load()
	if err != nil {
		return err
	}
	if err := nativecommon.RequireAddress(e.address, RoleCollateralManager, info.CollateralManager, caller); err != nil {
		return err
	}
	pos, err := e.loadPosition(user)
	if err != nil {
		return err
	}
	if !pos.CrossPledged {
		return nil
	}
	pos.CrossPledged = false
	if !pos.HasDebt() {
		if err := e.release(user, pos); err != nil {
			return err
		}
	}
	return e.state.PutPosition(e.address, user, pos)
}

// SeizeCollateral transfers up to amount of user's supply to recipient and
// burns the matching CVT. It backs cross-collateral liquidations and only the
// collateral manager may call it. The amount seized is returned.
func (e *Engine) SeizeCollateral(caller, user, recipient common.Address, amount *big.Int) (*big.Int, error) {
	info, st, err := e.load()
	if err != nil {
		return nil, err
	}
	if err := nativecommon.RequireAddress(e.address, RoleCollateralManager, info.CollateralManager, caller); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	pos, err := e.loadPosition(user)
	if err != nil {
		return nil, err
	}
	now := e.now()
	e.settle(info, st, pos, now)
	seized := minBig(amount, pos.Amount)
	if seized.Sign() == 0 {
		return seized, nil
	}
	if seized.Cmp(st.AvailableLiquidity) > 0 {
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
	if err := e.tokens.Transfer(info.Token, e.address, recipient, seized); err != nil {
		return nil, err
	}

	pos.Amount.Sub(pos.Amount, seized)
	pos.CVTBalance.Sub(pos.CVTBalance, minBig(pos.CVTBalance, scaled))
	pos.CVTEscrowed.Sub(pos.CVTEscrowed, fromEscrow)
	if pos.Amount.Sign() == 0 {
		pos.IsLocked = false
		pos.Lock = LockConfig{}
		pos.LockEndDate = 0
	}
	st.TotalSupplied.Sub(st.TotalSupplied, seized)
	st.AvailableLiquidity.Sub(st.AvailableLiquidity, seized)
	if err := e.store(user, st, pos, now); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.VaultCollateralSeized{
		Vault:     e.address,
		User:      user,
		Recipient: recipient,
		Amount:    seized,
		CVTBurned: scaled,
	})
	return seized, nil
}
