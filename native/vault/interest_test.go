package vault

import (
	"math/big"
	"testing"
)

func TestBorrowRateCurve(t *testing.T) {
	info := &Info{BorrowBaseRate: 500, BorrowSlope: 1_000, BorrowSlope2: DefaultSlope2}
	cases := []struct {
		utilization uint64
		want        uint64
	}{
		{0, 500},
		{2_500, 812},
		{5_000, 1_125},
		{7_000, 1_375},
		{8_000, 1_500},
		{9_000, 4_500},
		{9_500, 6_000},
		{10_000, 7_500},
		{12_000, 7_500},
	}
	for _, tc := range cases {
		if got := BorrowRate(info, tc.utilization); got != tc.want {
			t.Fatalf("rate at %d bps: expected %d, got %d", tc.utilization, tc.want, got)
		}
	}
}

func TestUtilization(t *testing.T) {
	if got := Utilization(&State{}); got != 0 {
		t.Fatalf("empty vault utilization %d", got)
	}
	st := &State{TotalSupplied: big.NewInt(300), TotalBorrowed: big.NewInt(140)}
	if got := Utilization(st); got != 4_666 {
		t.Fatalf("expected 4666 bps, got %d", got)
	}
}

func TestAccruedBorrowInterest(t *testing.T) {
	got := accruedBorrowInterest(usdc(7_000), 1_375, secondsPerYear*5)
	expectAmount(t, "five years at 13.75%", got, big.NewInt(4_812_500_000))
	if accruedBorrowInterest(usdc(7_000), 1_375, 0).Sign() != 0 {
		t.Fatalf("no time elapsed must accrue nothing")
	}
}

func TestParamsValidate(t *testing.T) {
	base := DefaultParams(underlying, treasury, 6)
	if err := base.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	expectAmount(t, "default cap", base.MaxLiquidity, usdc(100_000_000))

	tooHigh := base
	tooHigh.MaxBorrowRatio = 9_001
	if err := tooHigh.Validate(); err == nil {
		t.Fatalf("expected max borrow ratio above 90%% to fail")
	}
	below := base
	below.LiquidationThreshold = 6_000
	if err := below.Validate(); err == nil {
		t.Fatalf("expected threshold below max borrow ratio to fail")
	}
	noRates := base
	noRates.BorrowBaseRate, noRates.BorrowSlope = 0, 0
	if err := noRates.Validate(); err == nil {
		t.Fatalf("expected missing rates to fail")
	}
}
