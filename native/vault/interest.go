package vault

import "math/big"

const (
	// OptimalUtilization is the kink of the rate curve in basis points.
	OptimalUtilization = 8_000
	// MaxUtilization caps TotalBorrowed relative to TotalSupplied so that a
	// withdrawal buffer always remains.
	MaxUtilization = 9_500
	// DefaultSlope2 is the rate added between the kink and full utilization.
	DefaultSlope2 = 6_000

	secondsPerYear = 31_536_000
)

var (
	basisPoints = big.NewInt(10_000)
	wad         = big.NewInt(1_000_000_000_000_000_000)
)

// Utilization returns TotalBorrowed/TotalSupplied in basis points, zero for an
// empty vault and capped at 100%.
func Utilization(st *State) uint64 {
	if st == nil {
		return 0
	}
	supplied := orZero(st.TotalSupplied)
	if supplied.Sign() <= 0 {
		return 0
	}
	ratio := new(big.Int).Mul(orZero(st.TotalBorrowed), basisPoints)
	ratio.Quo(ratio, supplied)
	if !ratio.IsUint64() || ratio.Uint64() > maxBps {
		return maxBps
	}
	return ratio.Uint64()
}

// BorrowRate evaluates the two-segment curve at the supplied utilization.
//
//	U <= kink: base + slope*U/kink
//	U >  kink: base + slope + slope2*(U-kink)/(10000-kink)
func BorrowRate(info *Info, utilization uint64) uint64 {
	if info == nil {
		return 0
	}
	if utilization > maxBps {
		utilization = maxBps
	}
	if utilization <= OptimalUtilization {
		return info.BorrowBaseRate + info.BorrowSlope*utilization/OptimalUtilization
	}
	excess := utilization - OptimalUtilization
	return info.BorrowBaseRate + info.BorrowSlope + info.BorrowSlope2*excess/(maxBps-OptimalUtilization)
}

// accruedBorrowInterest returns principal*rate*elapsed/(10000*year).
func accruedBorrowInterest(principal *big.Int, rateBps uint64, elapsed uint64) *big.Int {
	if principal == nil || principal.Sign() <= 0 || rateBps == 0 || elapsed == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(principal, new(big.Int).SetUint64(rateBps))
	out.Mul(out, new(big.Int).SetUint64(elapsed))
	out.Quo(out, new(big.Int).Mul(basisPoints, big.NewInt(secondsPerYear)))
	return out
}

// supplierShare returns amount*(index-snapshot)/1e18.
func supplierShare(amount, index, snapshot *big.Int) *big.Int {
	if amount == nil || amount.Sign() <= 0 || index == nil {
		return big.NewInt(0)
	}
	delta := new(big.Int).Sub(index, orZero(snapshot))
	if delta.Sign() <= 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount, delta)
	return out.Quo(out, wad)
}

func applyBps(amount *big.Int, bps uint64) *big.Int {
	if amount == nil || amount.Sign() <= 0 || bps == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount, new(big.Int).SetUint64(bps))
	return out.Quo(out, basisPoints)
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}
