package vault

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"cantorfi/core/events"
	nativecommon "cantorfi/native/common"
	"cantorfi/native/cvt"
)

// ModuleName is the pause key shared by every vault.
const ModuleName = "vault"

// RoleStaking names the capability held by the configured staking contract
// when it calls back into the vault.
const RoleStaking nativecommon.Role = "STAKING"

type engineState interface {
	nativecommon.RoleView
	GetVaultInfo(addr common.Address) (*Info, error)
	PutVaultInfo(info *Info) error
	GetVaultState(addr common.Address) (*State, error)
	PutVaultState(addr common.Address, st *State) error
	GetPosition(vault, user common.Address) (*Position, error)
	PutPosition(vault, user common.Address, pos *Position) error
	GetStakedAmount(vault, user common.Address) (*big.Int, error)
	PutStakedAmount(vault, user common.Address, amount *big.Int) error
}

// TokenLedger moves the underlying token.
type TokenLedger interface {
	Decimals(token common.Address) (uint8, error)
	BalanceOf(token, holder common.Address) (*big.Int, error)
	Transfer(token, from, to common.Address, amount *big.Int) error
	TransferFrom(token, spender, from, to common.Address, amount *big.Int) error
}

// ReceiptToken is the CVT minted against deposits.
type ReceiptToken interface {
	Mint(caller, to common.Address, amount *big.Int) error
	Burn(caller, from common.Address, amount *big.Int) error
	BalanceOf(holder common.Address) (*big.Int, error)
	Transfer(from, to common.Address, amount *big.Int) error
}

// StakingPool is the staking contract paired with the vault.
type StakingPool interface {
	Address() common.Address
	GetMaxProtocolBorrow() (*big.Int, error)
	NotifyRewards(caller common.Address, amount *big.Int) error
}

// FeeSink receives protocol fees. Tokens are transferred before Notify.
type FeeSink interface {
	Address() common.Address
	Notify(caller, token common.Address, amount *big.Int) error
}

// CollateralManager prices supply across vaults for cross-collateral loans.
// Checks read committed state, so callers store before pledging.
type CollateralManager interface {
	Address() common.Address
	CheckBorrow(user, vault common.Address, amount *big.Int) error
	CheckWithdraw(user, vault common.Address, amount *big.Int) error
	Pledge(user common.Address) error
	ReleaseIfClear(user common.Address) error
}

// FeeSchedule carries the protocol-wide fee rates in basis points.
type FeeSchedule struct {
	// PerformanceFee is the protocol cut of interest repaid by users.
	PerformanceFee uint64
	// BorrowFeeRate is the protocol cut of interest repaid on protocol debt.
	BorrowFeeRate uint64
}

// Engine executes the state transitions of a single vault.
type Engine struct {
	address common.Address
	state   engineState
	tokens  TokenLedger
	receipt ReceiptToken
	staking StakingPool
	fees    FeeSink
	manager CollateralManager
	pauses  nativecommon.PauseView
	emitter events.Emitter
	clock   func() time.Time
	feeCfg  FeeSchedule
}

// NewEngine constructs an engine bound to the vault at address.
func NewEngine(address common.Address) *Engine {
	return &Engine{
		address: address,
		emitter: events.NoopEmitter{},
		clock:   time.Now,
	}
}

// Address returns the vault address.
func (e *Engine) Address() common.Address { return e.address }

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetTokens wires the underlying token ledger.
func (e *Engine) SetTokens(tokens TokenLedger) { e.tokens = tokens }

// SetReceipt wires the vault CVT.
func (e *Engine) SetReceipt(receipt ReceiptToken) { e.receipt = receipt }

// SetStaking wires the paired staking pool. The pool is only consulted when
// its address matches the configured staking contract.
func (e *Engine) SetStaking(pool StakingPool) { e.staking = pool }

// SetFeeSink wires the fee collector. Without one, fees go to the vault
// treasury.
func (e *Engine) SetFeeSink(sink FeeSink) { e.fees = sink }

// SetCollateralManager wires the cross-collateral manager. It is only
// consulted while the vault info names it and CrossCollateral is set.
func (e *Engine) SetCollateralManager(manager CollateralManager) { e.manager = manager }

func (e *Engine) SetFeeSchedule(schedule FeeSchedule) { e.feeCfg = schedule }

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetEmitter configures the event sink.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

// SetClock overrides the time source.
func (e *Engine) SetClock(clock func() time.Time) {
	if clock != nil {
		e.clock = clock
	}
}

func (e *Engine) now() uint64 {
	ts := e.clock().Unix()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

// Initialize persists a freshly created vault.
func (e *Engine) Initialize(info *Info) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if info == nil || info.Address != e.address {
		return ErrInvalidParams
	}
	existing, err := e.state.GetVaultInfo(e.address)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrVaultExists
	}
	if err := e.state.PutVaultInfo(info.Clone()); err != nil {
		return err
	}
	st := &State{LastInterestUpdate: info.CreatedAt}
	ensureState(st)
	return e.state.PutVaultState(e.address, st)
}

// Supply deposits amount of the underlying token, mints CVT at the 18-decimal
// scale and applies the optional lock.
func (e *Engine) Supply(caller common.Address, amount *big.Int, lock LockConfig) (*big.Int, error) {
	info, st, err := e.loadMutable()
	if err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if lock.EarlyWithdrawalFee > maxBps {
		return nil, ErrInvalidLock
	}
	if limit := orZero(info.MaxLiquidity); limit.Sign() > 0 {
		if new(big.Int).Add(st.TotalSupplied, amount).Cmp(limit) > 0 {
			return nil, ErrMaxLiquidity
		}
	}
	pos, err := e.loadPosition(caller)
	if err != nil {
		return nil, err
	}
	now := e.now()
	e.settle(info, st, pos, now)

	if err := e.tokens.TransferFrom(info.Token, e.address, caller, e.address, amount); err != nil {
		return nil, err
	}
	scaled, err := e.toCVT(info, amount)
	if err != nil {
		return nil, err
	}
	// Supply added to a pledged position goes straight into escrow.
	recipient := caller
	if pos.Pledged() {
		recipient = e.address
	}
	if err := e.receipt.Mint(e.address, recipient, scaled); err != nil {
		return nil, err
	}

	pos.Amount.Add(pos.Amount, amount)
	pos.CVTBalance.Add(pos.CVTBalance, scaled)
	if pos.Pledged() {
		pos.CVTEscrowed.Add(pos.CVTEscrowed, scaled)
	}
	if lock.HasLock {
		pos.Lock = lock
		pos.IsLocked = true
		if end := now + lock.LockDurationSeconds; end > pos.LockEndDate {
			pos.LockEndDate = end
		}
	}
	st.TotalSupplied.Add(st.TotalSupplied, amount)
	st.AvailableLiquidity.Add(st.AvailableLiquidity, amount)

	if err := e.store(caller, st, pos, now); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.VaultSupplied{
		Vault:     e.address,
		User:      caller,
		Amount:    new(big.Int).Set(amount),
		CVTMinted: scaled,
		LockEnd:   pos.LockEndDate,
	})
	return scaled, nil
}

// Withdraw returns amount of the caller's supply and burns the matching CVT.
// Breaking an unexpired lock is allowed only when the lock permits it, in
// which case the early withdrawal fee is routed to the fee sink.
func (e *Engine) Withdraw(caller common.Address, amount *big.Int) (*big.Int, error) {
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
	if amount.Cmp(pos.Amount) > 0 {
		return nil, ErrInsufficientBalance
	}
	now := e.now()
	e.settle(info, st, pos, now)

	fee := big.NewInt(0)
	if pos.IsLocked && now < pos.LockEndDate {
		if !pos.Lock.CanWithdrawEarly {
			return nil, ErrLockNotExpired
		}
		fee = applyBps(amount, pos.Lock.EarlyWithdrawalFee)
	}
	if pos.HasDebt() {
		remaining := new(big.Int).Sub(pos.Amount, amount)
		if exceedsRatio(pos.Debt(), remaining, info.MaxBorrowRatio) {
			return nil, ErrExceedsMaxBorrow
		}
	}
	if amount.Cmp(st.AvailableLiquidity) > 0 {
		return nil, ErrInsufficientLiquidity
	}
	if manager := e.collateral(info); manager != nil && pos.CrossPledged {
		if err := manager.CheckWithdraw(caller, e.address, amount); err != nil {
			return nil, err
		}
	}
	scaled, err := e.toCVT(info, amount)
	if err != nil {
		return nil, err
	}
	fromEscrow := minBig(pos.CVTEscrowed, scaled)
	fromWallet := new(big.Int).Sub(scaled, fromEscrow)
	held, err := e.receipt.BalanceOf(caller)
	if err != nil {
		return nil, err
	}
	if held.Cmp(fromWallet) < 0 {
		return nil, ErrInsufficientBalance
	}
	if err := e.burn(caller, fromEscrow, fromWallet); err != nil {
		return nil, err
	}
	pos.CVTEscrowed.Sub(pos.CVTEscrowed, fromEscrow)
	payout := new(big.Int).Sub(amount, fee)
	if payout.Sign() > 0 {
		if err := e.tokens.Transfer(info.Token, e.address, caller, payout); err != nil {
			return nil, err
		}
	}
	if err := e.routeFee(info, fee); err != nil {
		return nil, err
	}

	pos.Amount.Sub(pos.Amount, amount)
	pos.CVTBalance.Sub(pos.CVTBalance, minBig(pos.CVTBalance, scaled))
	if pos.Amount.Sign() == 0 {
		pos.IsLocked = false
		pos.Lock = LockConfig{}
		pos.LockEndDate = 0
	}
	st.TotalSupplied.Sub(st.TotalSupplied, amount)
	st.AvailableLiquidity.Sub(st.AvailableLiquidity, amount)
	if !pos.Pledged() {
		if err := e.release(caller, pos); err != nil {
			return nil, err
		}
	}

	if err := e.store(caller, st, pos, now); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.VaultWithdrawn{
		Vault:     e.address,
		User:      caller,
		Amount:    new(big.Int).Set(amount),
		Fee:       fee,
		CVTBurned: scaled,
	})
	return payout, nil
}

// ClaimInterest pays the caller's pending supplier interest.
func (e *Engine) ClaimInterest(caller common.Address) (*big.Int, error) {
	info, st, err := e.load()
	if err != nil {
		return nil, err
	}
	pos, err := e.loadPosition(caller)
	if err != nil {
		return nil, err
	}
	now := e.now()
	e.settle(info, st, pos, now)
	if pos.InterestPending.Sign() <= 0 {
		return nil, ErrNothingToClaim
	}
	amount := new(big.Int).Set(pos.InterestPending)
	if err := e.tokens.Transfer(info.Token, e.address, caller, amount); err != nil {
		return nil, err
	}
	pos.InterestClaimed.Add(pos.InterestClaimed, amount)
	pos.InterestPending.SetInt64(0)
	if err := e.store(caller, st, pos, now); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.VaultInterestClaimed{Vault: e.address, User: caller, Amount: amount})
	return amount, nil
}

func (e *Engine) load() (*Info, *State, error) {
	if e == nil || e.state == nil {
		return nil, nil, ErrNilState
	}
	info, err := e.state.GetVaultInfo(e.address)
	if err != nil {
		return nil, nil, err
	}
	if info == nil {
		return nil, nil, ErrVaultNotFound
	}
	ensureInfo(info)
	st, err := e.state.GetVaultState(e.address)
	if err != nil {
		return nil, nil, err
	}
	if st == nil {
		st = &State{}
	}
	ensureState(st)
	return info, st, nil
}

// loadMutable additionally enforces the pause switches and the active flag
// for flows that grow exposure.
func (e *Engine) loadMutable() (*Info, *State, error) {
	info, st, err := e.load()
	if err != nil {
		return nil, nil, err
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return nil, nil, err
	}
	if info.Paused {
		return nil, nil, nativecommon.ErrModulePaused
	}
	if !info.IsActive {
		return nil, nil, ErrVaultInactive
	}
	return info, st, nil
}

func (e *Engine) loadPosition(user common.Address) (*Position, error) {
	pos, err := e.state.GetPosition(e.address, user)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		pos = &Position{}
	}
	ensurePosition(pos)
	return pos, nil
}

func (e *Engine) store(user common.Address, st *State, pos *Position, now uint64) error {
	if pos != nil {
		if err := e.state.PutPosition(e.address, user, pos); err != nil {
			return err
		}
	}
	return e.storeState(st, now)
}

func (e *Engine) storeState(st *State, now uint64) error {
	st.UtilizationRate = Utilization(st)
	st.LastInterestUpdate = now
	return e.state.PutVaultState(e.address, st)
}

func (e *Engine) toCVT(info *Info, amount *big.Int) (*big.Int, error) {
	decimals, err := e.tokens.Decimals(info.Token)
	if err != nil {
		return nil, err
	}
	return cvt.ToCVT(amount, decimals)
}

// escrow moves the CVT backing pos that is not yet escrowed from the user's
// wallet into the vault.
func (e *Engine) escrow(user common.Address, pos *Position) error {
	missing := new(big.Int).Sub(pos.CVTBalance, pos.CVTEscrowed)
	if missing.Sign() <= 0 {
		return nil
	}
	held, err := e.receipt.BalanceOf(user)
	if err != nil {
		return err
	}
	if held.Cmp(missing) < 0 {
		return ErrCollateralMoved
	}
	if err := e.receipt.Transfer(user, e.address, missing); err != nil {
		return err
	}
	pos.CVTEscrowed.Add(pos.CVTEscrowed, missing)
	return nil
}

// release hands escrowed CVT back to the user.
func (e *Engine) release(user common.Address, pos *Position) error {
	if pos.CVTEscrowed.Sign() <= 0 {
		return nil
	}
	if err := e.receipt.Transfer(e.address, user, pos.CVTEscrowed); err != nil {
		return err
	}
	pos.CVTEscrowed.SetInt64(0)
	return nil
}

// burn destroys CVT held in escrow for user and CVT in the user's wallet.
func (e *Engine) burn(user common.Address, fromEscrow, fromWallet *big.Int) error {
	if fromEscrow.Sign() > 0 {
		if err := e.receipt.Burn(e.address, e.address, fromEscrow); err != nil {
			return err
		}
	}
	if fromWallet.Sign() > 0 {
		if err := e.receipt.Burn(e.address, user, fromWallet); err != nil {
			return err
		}
	}
	return nil
}

// collateral returns the wired manager when it is the one named by info.
func (e *Engine) collateral(info *Info) CollateralManager {
	if e.manager == nil || info.CollateralManager == (common.Address{}) || e.manager.Address() != info.CollateralManager {
		return nil
	}
	return e.manager
}

// routeFee forwards amount from the vault to the fee sink, or to the
// treasury when no sink is wired.
func (e *Engine) routeFee(info *Info, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	if e.fees == nil {
		if info.Treasury == (common.Address{}) {
			return nil
		}
		return e.tokens.Transfer(info.Token, e.address, info.Treasury, amount)
	}
	if err := e.tokens.Transfer(info.Token, e.address, e.fees.Address(), amount); err != nil {
		return err
	}
	return e.fees.Notify(e.address, info.Token, amount)
}

// exceedsRatio reports debt*10000 > collateral*ratio.
func exceedsRatio(debt, collateral *big.Int, ratioBps uint64) bool {
	lhs := new(big.Int).Mul(debt, basisPoints)
	rhs := new(big.Int).Mul(collateral, new(big.Int).SetUint64(ratioBps))
	return lhs.Cmp(rhs) > 0
}

func ensureInfo(info *Info) {
	if info.MaxLiquidity == nil {
		info.MaxLiquidity = big.NewInt(0)
	}
	if info.BorrowSlope2 == 0 {
		info.BorrowSlope2 = DefaultSlope2
	}
}

func ensureState(st *State) {
	if st.TotalSupplied == nil {
		st.TotalSupplied = big.NewInt(0)
	}
	if st.TotalBorrowed == nil {
		st.TotalBorrowed = big.NewInt(0)
	}
	if st.AvailableLiquidity == nil {
		st.AvailableLiquidity = big.NewInt(0)
	}
	if st.TotalInterestCollected == nil {
		st.TotalInterestCollected = big.NewInt(0)
	}
	if st.TotalBadDebt == nil {
		st.TotalBadDebt = big.NewInt(0)
	}
	if st.InterestIndex == nil || st.InterestIndex.Sign() == 0 {
		st.InterestIndex = new(big.Int).Set(wad)
	}
	if st.TotalStakedLiquidity == nil {
		st.TotalStakedLiquidity = big.NewInt(0)
	}
	if st.ProtocolDebt == nil {
		st.ProtocolDebt = big.NewInt(0)
	}
}

func ensurePosition(pos *Position) {
	if pos.Amount == nil {
		pos.Amount = big.NewInt(0)
	}
	if pos.CVTBalance == nil {
		pos.CVTBalance = big.NewInt(0)
	}
	if pos.InterestClaimed == nil {
		pos.InterestClaimed = big.NewInt(0)
	}
	if pos.InterestPending == nil {
		pos.InterestPending = big.NewInt(0)
	}
	if pos.BorrowedAmount == nil {
		pos.BorrowedAmount = big.NewInt(0)
	}
	if pos.BorrowInterestAccumulated == nil {
		pos.BorrowInterestAccumulated = big.NewInt(0)
	}
	if pos.CVTEscrowed == nil {
		pos.CVTEscrowed = big.NewInt(0)
	}
	if pos.CrossBorrowed == nil {
		pos.CrossBorrowed = big.NewInt(0)
	}
	if pos.CrossInterest == nil {
		pos.CrossInterest = big.NewInt(0)
	}
}
