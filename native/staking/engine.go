package staking

import (
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"cantorfi/core/events"
	nativecommon "cantorfi/native/common"
	"cantorfi/native/cvt"
)

var (
	ErrNilState       = errors.New("staking: state not configured")
	ErrPoolNotFound   = errors.New("staking: pool not found")
	ErrPoolExists     = errors.New("staking: pool already initialised")
	ErrVaultNotWired  = errors.New("staking: vault hooks not configured")
	ErrInvalidAmount  = errors.New("staking: amount must be positive")
	ErrInvalidRatio   = errors.New("staking: ratio exceeds 100%")
	ErrNoStake        = errors.New("staking: nothing staked")
	ErrLockNotExpired = errors.New("staking: lock not expired")
	ErrNothingToClaim = errors.New("staking: nothing to claim")
	ErrNoStakers      = errors.New("staking: no stakers")
)

const (
	// ModuleName is the pause key for staking entry.
	ModuleName = "staking"
	// RoleVault names the capability held by the paired vault.
	RoleVault nativecommon.Role = "VAULT"
)

var (
	basisPoints = big.NewInt(10_000)
	wad         = big.NewInt(1_000_000_000_000_000_000)
)

type engineState interface {
	nativecommon.RoleView
	GetPool(addr common.Address) (*Pool, error)
	PutPool(pool *Pool) error
	GetStakePosition(pool, user common.Address) (*StakePosition, error)
	PutStakePosition(pool, user common.Address, pos *StakePosition) error
}

// TokenLedger moves CVT and reward tokens.
type TokenLedger interface {
	Decimals(token common.Address) (uint8, error)
	BalanceOf(token, holder common.Address) (*big.Int, error)
	Transfer(token, from, to common.Address, amount *big.Int) error
	TransferFrom(token, spender, from, to common.Address, amount *big.Int) error
}

// VaultHooks mirrors stake changes into the paired vault.
type VaultHooks interface {
	OnStake(caller, user common.Address, amount *big.Int) error
	OnUnstake(caller, user common.Address, amount *big.Int) error
}

// Engine executes the state transitions of a single staking pool.
type Engine struct {
	address common.Address
	state   engineState
	tokens  TokenLedger
	vault   VaultHooks
	pauses  nativecommon.PauseView
	emitter events.Emitter
	clock   func() time.Time
}

// NewEngine constructs an engine bound to the pool at address.
func NewEngine(address common.Address) *Engine {
	return &Engine{address: address, emitter: events.NoopEmitter{}, clock: time.Now}
}

// Address returns the pool address.
func (e *Engine) Address() common.Address { return e.address }

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetTokens(tokens TokenLedger) { e.tokens = tokens }

// SetVault wires the paired vault hooks.
func (e *Engine) SetVault(vault VaultHooks) { e.vault = vault }

func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

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

// Initialize persists a freshly deployed pool.
func (e *Engine) Initialize(pool *Pool) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if pool == nil || pool.Address != e.address {
		return ErrPoolNotFound
	}
	if pool.MaxProtocolBorrowRatio > 10_000 {
		return ErrInvalidRatio
	}
	existing, err := e.state.GetPool(e.address)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrPoolExists
	}
	fresh := pool.Clone()
	ensurePool(fresh)
	return e.state.PutPool(fresh)
}

// Stake locks amount of CVT until at least now+lockDuration. Re-staking never
// shortens an existing lock.
func (e *Engine) Stake(caller common.Address, amount *big.Int, lockDuration time.Duration) error {
	pool, err := e.load()
	if err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if e.vault == nil {
		return ErrVaultNotWired
	}
	pos, err := e.loadPosition(caller)
	if err != nil {
		return err
	}
	checkpoint(pool, pos)
	if err := e.tokens.TransferFrom(pool.CVT, e.address, caller, e.address, amount); err != nil {
		return err
	}
	now := e.now()
	if pos.Amount.Sign() == 0 {
		pool.StakersCount++
		pos.StakedAt = now
	}
	pos.Amount.Add(pos.Amount, amount)
	if lockDuration > 0 {
		if end := now + uint64(lockDuration/time.Second); end > pos.LockEndTime {
			pos.LockEndTime = end
		}
	}
	pool.TotalStaked.Add(pool.TotalStaked, amount)
	if err := e.vault.OnStake(e.address, caller, amount); err != nil {
		return err
	}
	if err := e.store(caller, pool, pos); err != nil {
		return err
	}
	e.emitter.Emit(events.StakeDeposited{Pool: e.address, User: caller, Amount: new(big.Int).Set(amount), LockEnd: pos.LockEndTime})
	return nil
}

// Unstake returns the caller's entire stake once the lock has expired. Earned
// rewards remain claimable.
func (e *Engine) Unstake(caller common.Address) (*big.Int, error) {
	pool, err := e.load()
	if err != nil {
		return nil, err
	}
	if e.vault == nil {
		return nil, ErrVaultNotWired
	}
	pos, err := e.loadPosition(caller)
	if err != nil {
		return nil, err
	}
	if pos.Amount.Sign() == 0 {
		return nil, ErrNoStake
	}
	if e.now() < pos.LockEndTime {
		return nil, ErrLockNotExpired
	}
	checkpoint(pool, pos)
	amount := new(big.Int).Set(pos.Amount)
	if err := e.tokens.Transfer(pool.CVT, e.address, caller, amount); err != nil {
		return nil, err
	}
	pool.TotalStaked.Sub(pool.TotalStaked, amount)
	if pool.StakersCount > 0 {
		pool.StakersCount--
	}
	pos.Amount.SetInt64(0)
	pos.LockEndTime = 0
	if err := e.vault.OnUnstake(e.address, caller, amount); err != nil {
		return nil, err
	}
	if err := e.store(caller, pool, pos); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.StakeWithdrawn{Pool: e.address, User: caller, Amount: amount})
	return amount, nil
}

// ClaimRewards pays the caller's accumulated rewards in the underlying token.
func (e *Engine) ClaimRewards(caller common.Address) (*big.Int, error) {
	pool, err := e.load()
	if err != nil {
		return nil, err
	}
	pos, err := e.loadPosition(caller)
	if err != nil {
		return nil, err
	}
	checkpoint(pool, pos)
	if pos.PendingRewards.Sign() <= 0 {
		return nil, ErrNothingToClaim
	}
	amount := new(big.Int).Set(pos.PendingRewards)
	if err := e.tokens.Transfer(pool.Underlying, e.address, caller, amount); err != nil {
		return nil, err
	}
	pos.ClaimedRewards.Add(pos.ClaimedRewards, amount)
	pos.PendingRewards.SetInt64(0)
	if err := e.store(caller, pool, pos); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.StakeRewardsClaimed{Pool: e.address, User: caller, Amount: amount})
	return amount, nil
}

// NotifyRewards spreads amount across current stakers. The vault transfers
// the tokens before calling.
func (e *Engine) NotifyRewards(caller common.Address, amount *big.Int) error {
	pool, err := e.load()
	if err != nil {
		return err
	}
	if err := nativecommon.RequireAddress(e.address, RoleVault, pool.Vault, caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if pool.TotalStaked.Sign() == 0 {
		return ErrNoStakers
	}
	delta := new(big.Int).Mul(amount, wad)
	delta.Quo(delta, pool.TotalStaked)
	pool.RewardPerToken.Add(pool.RewardPerToken, delta)
	pool.TotalDistributed.Add(pool.TotalDistributed, amount)
	if err := e.state.PutPool(pool); err != nil {
		return err
	}
	e.emitter.Emit(events.StakeRewardsNotified{
		Pool:           e.address,
		Amount:         new(big.Int).Set(amount),
		RewardPerToken: new(big.Int).Set(pool.RewardPerToken),
	})
	return nil
}

// SetMaxProtocolBorrowRatio updates the protocol borrowing allowance ratio.
func (e *Engine) SetMaxProtocolBorrowRatio(caller common.Address, ratioBps uint64) error {
	pool, err := e.load()
	if err != nil {
		return err
	}
	if err := nativecommon.RequireRole(e.state, e.address, nativecommon.RoleAdmin, caller); err != nil {
		return err
	}
	if ratioBps > 10_000 {
		return ErrInvalidRatio
	}
	pool.MaxProtocolBorrowRatio = ratioBps
	if err := e.state.PutPool(pool); err != nil {
		return err
	}
	e.emitter.Emit(events.StakeRatioUpdated{Pool: e.address, RatioBps: ratioBps})
	return nil
}

// GetMaxProtocolBorrow converts the staked CVT into underlying units and
// applies the ratio.
func (e *Engine) GetMaxProtocolBorrow() (*big.Int, error) {
	pool, err := e.load()
	if err != nil {
		return nil, err
	}
	decimals, err := e.tokens.Decimals(pool.Underlying)
	if err != nil {
		return nil, err
	}
	allowance := new(big.Int).Mul(pool.TotalStaked, new(big.Int).SetUint64(pool.MaxProtocolBorrowRatio))
	allowance.Quo(allowance, basisPoints)
	return cvt.FromCVT(allowance, decimals)
}

func checkpoint(pool *Pool, pos *StakePosition) {
	earned := earnedSince(pool, pos)
	pos.PendingRewards.Add(pos.PendingRewards, earned)
	pos.RewardPerTokenPaid = new(big.Int).Set(pool.RewardPerToken)
}

func earnedSince(pool *Pool, pos *StakePosition) *big.Int {
	if pos.Amount.Sign() == 0 {
		return big.NewInt(0)
	}
	delta := new(big.Int).Sub(pool.RewardPerToken, pos.RewardPerTokenPaid)
	if delta.Sign() <= 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(pos.Amount, delta)
	return out.Quo(out, wad)
}

func (e *Engine) load() (*Pool, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	pool, err := e.state.GetPool(e.address)
	if err != nil {
		return nil, err
	}
	if pool == nil {
		return nil, ErrPoolNotFound
	}
	ensurePool(pool)
	return pool, nil
}

func (e *Engine) loadPosition(user common.Address) (*StakePosition, error) {
	pos, err := e.state.GetStakePosition(e.address, user)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		pos = &StakePosition{}
	}
	ensurePosition(pos)
	return pos, nil
}

func (e *Engine) store(user common.Address, pool *Pool, pos *StakePosition) error {
	if err := e.state.PutStakePosition(e.address, user, pos); err != nil {
		return err
	}
	return e.state.PutPool(pool)
}

func ensurePool(pool *Pool) {
	if pool.TotalStaked == nil {
		pool.TotalStaked = big.NewInt(0)
	}
	if pool.RewardPerToken == nil {
		pool.RewardPerToken = big.NewInt(0)
	}
	if pool.TotalDistributed == nil {
		pool.TotalDistributed = big.NewInt(0)
	}
}

func ensurePosition(pos *StakePosition) {
	if pos.Amount == nil {
		pos.Amount = big.NewInt(0)
	}
	if pos.RewardPerTokenPaid == nil {
		pos.RewardPerTokenPaid = big.NewInt(0)
	}
	if pos.PendingRewards == nil {
		pos.PendingRewards = big.NewInt(0)
	}
	if pos.ClaimedRewards == nil {
		pos.ClaimedRewards = big.NewInt(0)
	}
}
