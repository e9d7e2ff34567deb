package vault

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// LockConfig describes the optional lock a supplier attaches to a deposit.
type LockConfig struct {
	HasLock             bool
	LockDurationSeconds uint64
	CanWithdrawEarly    bool
	// EarlyWithdrawalFee is charged in basis points when an unexpired lock is
	// broken.
	EarlyWithdrawalFee uint64
}

// Info captures the immutable identity and the admin-tunable parameters of a
// vault.
type Info struct {
	Address         common.Address
	ID              uint64
	Token           common.Address
	CVT             common.Address
	Treasury        common.Address
	StakingContract common.Address
	// MaxLiquidity caps TotalSupplied. Zero disables the cap.
	MaxLiquidity   *big.Int
	BorrowBaseRate uint64
	// BorrowSlope is added in full when utilization reaches the kink.
	BorrowSlope uint64
	// BorrowSlope2 applies above the kink.
	BorrowSlope2   uint64
	MaxBorrowRatio uint64
	// LiquidationThreshold is the debt-to-collateral ratio above which a
	// position may be liquidated. Zero means MaxBorrowRatio+LiquidationBonus.
	LiquidationThreshold uint64
	LiquidationBonus     uint64
	IsActive             bool
	Paused               bool
	CreatedAt            uint64
	// CollateralManager prices this vault's supply for cross-collateral
	// borrowing while CrossCollateral is set.
	CollateralManager common.Address `rlp:"optional"`
	CrossCollateral   bool           `rlp:"optional"`
}

// Clone returns a deep copy of the vault info.
func (i *Info) Clone() *Info {
	if i == nil {
		return nil
	}
	clone := *i
	clone.MaxLiquidity = cloneBig(i.MaxLiquidity)
	return &clone
}

// EffectiveLiquidationThreshold resolves the zero default.
func (i *Info) EffectiveLiquidationThreshold() uint64 {
	if i == nil {
		return 0
	}
	if i.LiquidationThreshold != 0 {
		return i.LiquidationThreshold
	}
	return i.MaxBorrowRatio + i.LiquidationBonus
}

// State holds the running accounting totals of a vault. Amounts are in
// underlying base units except TotalStakedLiquidity, which is in CVT units.
type State struct {
	TotalSupplied          *big.Int
	TotalBorrowed          *big.Int
	AvailableLiquidity     *big.Int
	UtilizationRate        uint64
	TotalInterestCollected *big.Int
	LastInterestUpdate     uint64
	// TotalBadDebt records principal written off by liquidations.
	TotalBadDebt *big.Int
	// InterestIndex is the cumulative interest per supplied unit, scaled by 1e18.
	InterestIndex        *big.Int
	TotalStakedLiquidity *big.Int
	ProtocolDebt         *big.Int
}

// Clone returns a deep copy of the vault state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	clone := *s
	clone.TotalSupplied = cloneBig(s.TotalSupplied)
	clone.TotalBorrowed = cloneBig(s.TotalBorrowed)
	clone.AvailableLiquidity = cloneBig(s.AvailableLiquidity)
	clone.TotalInterestCollected = cloneBig(s.TotalInterestCollected)
	clone.TotalBadDebt = cloneBig(s.TotalBadDebt)
	clone.InterestIndex = cloneBig(s.InterestIndex)
	clone.TotalStakedLiquidity = cloneBig(s.TotalStakedLiquidity)
	clone.ProtocolDebt = cloneBig(s.ProtocolDebt)
	return &clone
}

// Position tracks a single user's supply and borrow within a vault.
// CVTEscrowed is the part of CVTBalance held by the vault while the supply
// backs a loan. CrossBorrowed and CrossInterest are owed against collateral
// priced by the collateral manager; CrossPledged marks supply that backs such
// a loan in another vault.
type Position struct {
	Amount                    *big.Int
	CVTBalance                *big.Int
	Lock                      LockConfig
	IsLocked                  bool
	LockEndDate               uint64
	InterestClaimed           *big.Int
	InterestPending           *big.Int
	BorrowedAmount            *big.Int
	BorrowInterestAccumulated *big.Int
	LastInterestUpdate        uint64
	InterestIndexSnapshot     *big.Int
	CVTEscrowed               *big.Int `rlp:"optional"`
	CrossBorrowed             *big.Int `rlp:"optional"`
	CrossInterest             *big.Int `rlp:"optional"`
	CrossPledged              bool     `rlp:"optional"`
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Amount = cloneBig(p.Amount)
	clone.CVTBalance = cloneBig(p.CVTBalance)
	clone.InterestClaimed = cloneBig(p.InterestClaimed)
	clone.InterestPending = cloneBig(p.InterestPending)
	clone.BorrowedAmount = cloneBig(p.BorrowedAmount)
	clone.BorrowInterestAccumulated = cloneBig(p.BorrowInterestAccumulated)
	clone.InterestIndexSnapshot = cloneBig(p.InterestIndexSnapshot)
	clone.CVTEscrowed = cloneBig(p.CVTEscrowed)
	clone.CrossBorrowed = cloneBig(p.CrossBorrowed)
	clone.CrossInterest = cloneBig(p.CrossInterest)
	return &clone
}

// Debt returns principal plus settled interest.
func (p *Position) Debt() *big.Int {
	if p == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Add(orZero(p.BorrowedAmount), orZero(p.BorrowInterestAccumulated))
}

// HasDebt reports whether the position carries principal or interest.
func (p *Position) HasDebt() bool {
	return p.Debt().Sign() > 0
}

// CrossDebt returns cross-collateral principal plus settled interest.
func (p *Position) CrossDebt() *big.Int {
	if p == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Add(orZero(p.CrossBorrowed), orZero(p.CrossInterest))
}

// Pledged reports whether the supply backs a loan in this or another vault.
func (p *Position) Pledged() bool {
	return p.HasDebt() || p.CrossPledged
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
