package vault

import (
	"errors"
	"math/big"
	"testing"

	"cantorfi/native/cvt"
	"cantorfi/native/token"
)

func TestBorrowRespectsMaxBorrowRatio(t *testing.T) {
	f := newFixture(t, nil)
	f.supply(alice, usdc(100))
	if err := f.engine.Borrow(alice, usdc(71)); !errors.Is(err, ErrExceedsMaxBorrow) {
		t.Fatalf("expected ErrExceedsMaxBorrow, got %v", err)
	}
	if err := f.engine.Borrow(bob, usdc(1)); !errors.Is(err, ErrExceedsMaxBorrow) {
		t.Fatalf("borrow without collateral must fail, got %v", err)
	}
	if err := f.engine.Borrow(alice, usdc(70)); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	st := f.vaultState()
	expectAmount(t, "borrowed", st.TotalBorrowed, usdc(70))
	expectAmount(t, "available", st.AvailableLiquidity, usdc(30))
	if st.UtilizationRate != 7_000 {
		t.Fatalf("expected 70%% utilization, got %d", st.UtilizationRate)
	}
	rate, _ := f.engine.CalculateBorrowRate()
	if rate != 1_375 {
		t.Fatalf("expected 1375 bps at 70%%, got %d", rate)
	}
	expectAmount(t, "wallet", f.balance(alice), usdc(70))
	if _, err := f.engine.Withdraw(alice, usdc(1)); !errors.Is(err, ErrExceedsMaxBorrow) {
		t.Fatalf("withdraw below LTV must fail, got %v", err)
	}
	f.checkSolvency()
}

func TestBorrowUtilizationCap(t *testing.T) {
	f := newFixture(t, nil)
	f.enableStaking(usdc(1_000))
	f.supply(alice, usdc(100))
	f.supply(carol, usdc(100))
	if err := f.engine.Borrow(alice, usdc(70)); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if err := f.engine.ProtocolBorrow(admin, usdc(60)); err != nil {
		t.Fatalf("protocol borrow: %v", err)
	}
	if _, err := f.engine.Withdraw(carol, usdc(70)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	// 130 borrowed of 140 supplied once bob joins: the cap is 133.
	f.supply(bob, usdc(10))
	if err := f.engine.Borrow(bob, usdc(8)); !errors.Is(err, ErrExceedsMaxBorrow) {
		t.Fatalf("LTV is checked before utilization, got %v", err)
	}
	if err := f.engine.Borrow(bob, usdc(7)); !errors.Is(err, ErrUtilizationTooHigh) {
		t.Fatalf("expected ErrUtilizationTooHigh, got %v", err)
	}
	if err := f.engine.Borrow(bob, usdc(3)); err != nil {
		t.Fatalf("borrow within both limits: %v", err)
	}
	if got := f.vaultState().UtilizationRate; got != 9_500 {
		t.Fatalf("expected utilization at the cap, got %d", got)
	}
	f.checkSolvency()
}

func TestWithdrawRequiresLiquidity(t *testing.T) {
	f := newFixture(t, nil)
	f.enableStaking(usdc(1_000))
	f.supply(alice, usdc(100))
	f.supply(bob, usdc(100))
	if err := f.engine.Borrow(bob, usdc(70)); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if err := f.engine.ProtocolBorrow(admin, usdc(60)); err != nil {
		t.Fatalf("protocol borrow: %v", err)
	}
	if _, err := f.engine.Withdraw(alice, usdc(100)); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity, got %v", err)
	}
	if _, err := f.engine.Withdraw(alice, usdc(70)); err != nil {
		t.Fatalf("withdraw available liquidity: %v", err)
	}
	f.checkSolvency()
}

func TestRepayCapsAtDebtAndSharesInterest(t *testing.T) {
	f := newFixture(t, nil)
	f.supply(alice, usdc(10_000))
	f.supply(bob, usdc(10_000))
	if err := f.engine.Borrow(alice, usdc(5_000)); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	f.clock.advance(oneYear)

	// 25% utilization prices the loan at 812 bps.
	debt, _ := f.engine.GetTotalDebt(alice)
	expectAmount(t, "debt after a year", debt, big.NewInt(5_406_000_000))
	if err := f.engine.Borrow(alice, usdc(1_700)); !errors.Is(err, ErrExceedsMaxBorrow) {
		t.Fatalf("accrued interest must count against LTV, got %v", err)
	}

	f.fund(alice, usdc(1_000))
	paid, err := f.engine.RepayBorrow(alice, usdc(10_000))
	if err != nil {
		t.Fatalf("repay: %v", err)
	}
	expectAmount(t, "paid", paid, big.NewInt(5_406_000_000))
	expectAmount(t, "wallet after repay", f.balance(alice), big.NewInt(594_000_000))
	// 10% performance fee on 406 of interest.
	expectAmount(t, "treasury", f.balance(treasury), big.NewInt(40_600_000))

	st := f.vaultState()
	expectAmount(t, "borrowed", st.TotalBorrowed, big.NewInt(0))
	expectAmount(t, "available", st.AvailableLiquidity, usdc(20_000))
	expectAmount(t, "interest collected", st.TotalInterestCollected, big.NewInt(406_000_000))
	if debt, _ := f.engine.GetTotalDebt(alice); debt.Sign() != 0 {
		t.Fatalf("expected zero debt, got %s", debt)
	}
	if _, err := f.engine.RepayBorrow(alice, usdc(1)); !errors.Is(err, ErrNoDebt) {
		t.Fatalf("expected ErrNoDebt, got %v", err)
	}

	pos, _ := f.engine.GetUserPosition(bob)
	expectAmount(t, "bob pending", pos.InterestPending, big.NewInt(182_700_000))
	claimed, err := f.engine.ClaimInterest(bob)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	expectAmount(t, "bob claimed", claimed, big.NewInt(182_700_000))
	if _, err := f.engine.ClaimInterest(bob); !errors.Is(err, ErrNothingToClaim) {
		t.Fatalf("expected ErrNothingToClaim, got %v", err)
	}
	if _, err := f.engine.ClaimInterest(carol); !errors.Is(err, ErrNothingToClaim) {
		t.Fatalf("expected ErrNothingToClaim for a stranger, got %v", err)
	}
	f.checkSolvency()
}

func TestPartialRepayPaysInterestFirst(t *testing.T) {
	f := newFixture(t, nil)
	f.supply(alice, usdc(10_000))
	f.supply(bob, usdc(10_000))
	if err := f.engine.Borrow(alice, usdc(5_000)); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	f.clock.advance(oneYear)
	if _, err := f.engine.RepayBorrow(alice, usdc(500)); err != nil {
		t.Fatalf("repay: %v", err)
	}
	pos, _ := f.engine.GetUserPosition(alice)
	expectAmount(t, "interest left", pos.BorrowInterestAccumulated, big.NewInt(0))
	expectAmount(t, "principal left", pos.BorrowedAmount, big.NewInt(4_906_000_000))
	expectAmount(t, "total borrowed", f.vaultState().TotalBorrowed, big.NewInt(4_906_000_000))
	f.checkSolvency()
}

func TestBorrowEscrowsCollateralCVT(t *testing.T) {
	f := newFixture(t, nil)
	scaled, err := cvt.ToCVT(usdc(10_000), 6)
	if err != nil {
		t.Fatalf("scale: %v", err)
	}
	f.supply(alice, usdc(10_000))
	if err := f.engine.Borrow(alice, usdc(5_000)); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	held, _ := f.receipt.BalanceOf(alice)
	expectAmount(t, "wallet cvt", held, big.NewInt(0))
	escrowed, _ := f.receipt.BalanceOf(vaultAddr)
	expectAmount(t, "escrowed cvt", escrowed, scaled)
	if err := f.receipt.Transfer(alice, bob, big.NewInt(1)); !errors.Is(err, token.ErrInsufficientBalance) {
		t.Fatalf("escrowed CVT must not be transferable, got %v", err)
	}

	// Supply added while the loan is open joins the escrow.
	f.supply(alice, usdc(100))
	held, _ = f.receipt.BalanceOf(alice)
	expectAmount(t, "wallet cvt after top-up", held, big.NewInt(0))

	if _, err := f.engine.Withdraw(alice, usdc(100)); err != nil {
		t.Fatalf("withdraw from escrow: %v", err)
	}
	escrowed, _ = f.receipt.BalanceOf(vaultAddr)
	expectAmount(t, "escrow after withdraw", escrowed, scaled)

	if _, err := f.engine.RepayBorrow(alice, usdc(5_000)); err != nil {
		t.Fatalf("repay: %v", err)
	}
	held, _ = f.receipt.BalanceOf(alice)
	expectAmount(t, "released cvt", held, scaled)
	escrowed, _ = f.receipt.BalanceOf(vaultAddr)
	expectAmount(t, "escrow after repay", escrowed, big.NewInt(0))
	pos, _ := f.engine.GetUserPosition(alice)
	expectAmount(t, "position escrow", pos.CVTEscrowed, big.NewInt(0))
	f.checkSolvency()
}

func TestBorrowRequiresCollateralCVT(t *testing.T) {
	f := newFixture(t, nil)
	f.supply(alice, usdc(10_000))
	held, _ := f.receipt.BalanceOf(alice)
	if err := f.receipt.Transfer(alice, bob, held); err != nil {
		t.Fatalf("transfer cvt: %v", err)
	}
	if err := f.engine.Borrow(alice, usdc(1_000)); !errors.Is(err, ErrCollateralMoved) {
		t.Fatalf("expected ErrCollateralMoved, got %v", err)
	}
	expectAmount(t, "wallet", f.balance(alice), big.NewInt(0))
	expectAmount(t, "borrowed", f.vaultState().TotalBorrowed, big.NewInt(0))
}
