package fees

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"cantorfi/core/events"
	nativecommon "cantorfi/native/common"
)

var (
	ErrNilState          = errors.New("fees: state not configured")
	ErrCollectorNotFound = errors.New("fees: collector not found")
	ErrCollectorExists   = errors.New("fees: collector already initialised")
	ErrInvalidAmount     = errors.New("fees: amount must be positive")
	ErrZeroAddress       = errors.New("fees: zero address")
	ErrExceedsAvailable  = errors.New("fees: amount exceeds undistributed fees")
)

// RoleNotifier is held by contracts allowed to report collected fees.
const RoleNotifier nativecommon.Role = "NOTIFIER"

// Collector is the persisted fee collector record.
type Collector struct {
	Address  common.Address
	Treasury common.Address
}

// Stats tracks the per-token fee flow through the collector.
type Stats struct {
	Collected   *big.Int
	Distributed *big.Int
}

// Available returns the fees still held by the collector.
func (s *Stats) Available() *big.Int {
	if s == nil || s.Collected == nil {
		return big.NewInt(0)
	}
	out := new(big.Int).Set(s.Collected)
	if s.Distributed != nil {
		out.Sub(out, s.Distributed)
	}
	if out.Sign() < 0 {
		return big.NewInt(0)
	}
	return out
}

type engineState interface {
	nativecommon.RoleView
	SetRole(scope common.Address, role nativecommon.Role, account common.Address, granted bool) error
	GetCollector(addr common.Address) (*Collector, error)
	PutCollector(collector *Collector) error
	GetFeeStats(collector, token common.Address) (*Stats, error)
	PutFeeStats(collector, token common.Address, stats *Stats) error
}

// TokenLedger pays out collected fees.
type TokenLedger interface {
	Transfer(token, from, to common.Address, amount *big.Int) error
}

// Engine executes the fee collector state transitions.
type Engine struct {
	address common.Address
	state   engineState
	tokens  TokenLedger
	emitter events.Emitter
}

// NewEngine constructs an engine bound to the collector at address.
func NewEngine(address common.Address) *Engine {
	return &Engine{address: address, emitter: events.NoopEmitter{}}
}

// Address returns the collector address.
func (e *Engine) Address() common.Address { return e.address }

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetTokens(tokens TokenLedger) { e.tokens = tokens }

// SetEmitter configures the event sink.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

// Initialize persists the collector and grants admin to admin.
func (e *Engine) Initialize(admin, treasury common.Address) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if treasury == (common.Address{}) || admin == (common.Address{}) {
		return ErrZeroAddress
	}
	existing, err := e.state.GetCollector(e.address)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrCollectorExists
	}
	if err := e.state.PutCollector(&Collector{Address: e.address, Treasury: treasury}); err != nil {
		return err
	}
	return e.state.SetRole(e.address, nativecommon.RoleAdmin, admin, true)
}

// AddNotifier authorises addr to report fees.
func (e *Engine) AddNotifier(caller, addr common.Address) error {
	return e.setNotifier(caller, addr, true)
}

// RemoveNotifier revokes a notifier.
func (e *Engine) RemoveNotifier(caller, addr common.Address) error {
	return e.setNotifier(caller, addr, false)
}

func (e *Engine) setNotifier(caller, addr common.Address, granted bool) error {
	if _, err := e.load(); err != nil {
		return err
	}
	if err := nativecommon.RequireRole(e.state, e.address, nativecommon.RoleAdmin, caller); err != nil {
		return err
	}
	if addr == (common.Address{}) {
		return ErrZeroAddress
	}
	return e.state.SetRole(e.address, RoleNotifier, addr, granted)
}

// IsNotifier reports whether addr may report fees.
func (e *Engine) IsNotifier(addr common.Address) (bool, error) {
	if e == nil || e.state == nil {
		return false, ErrNilState
	}
	return e.state.HasRole(e.address, RoleNotifier, addr)
}

// Notify records amount of token received from caller. The tokens must
// already be held by the collector.
func (e *Engine) Notify(caller, token common.Address, amount *big.Int) error {
	if _, err := e.load(); err != nil {
		return err
	}
	if err := nativecommon.RequireRole(e.state, e.address, RoleNotifier, caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	stats, err := e.stats(token)
	if err != nil {
		return err
	}
	stats.Collected.Add(stats.Collected, amount)
	if err := e.state.PutFeeStats(e.address, token, stats); err != nil {
		return err
	}
	e.emitter.Emit(events.FeesCollected{Collector: e.address, Source: caller, Token: token, Amount: new(big.Int).Set(amount)})
	return nil
}

// DistributeToTreasury forwards collected fees to the treasury.
func (e *Engine) DistributeToTreasury(caller, token common.Address, amount *big.Int) error {
	collector, err := e.load()
	if err != nil {
		return err
	}
	if err := nativecommon.RequireRole(e.state, e.address, nativecommon.RoleAdmin, caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	stats, err := e.stats(token)
	if err != nil {
		return err
	}
	if amount.Cmp(stats.Available()) > 0 {
		return ErrExceedsAvailable
	}
	if err := e.tokens.Transfer(token, e.address, collector.Treasury, amount); err != nil {
		return err
	}
	stats.Distributed.Add(stats.Distributed, amount)
	if err := e.state.PutFeeStats(e.address, token, stats); err != nil {
		return err
	}
	e.emitter.Emit(events.FeesDistributed{Collector: e.address, Treasury: collector.Treasury, Token: token, Amount: new(big.Int).Set(amount)})
	return nil
}

// SetTreasury updates the payout address.
func (e *Engine) SetTreasury(caller, treasury common.Address) error {
	collector, err := e.load()
	if err != nil {
		return err
	}
	if err := nativecommon.RequireRole(e.state, e.address, nativecommon.RoleAdmin, caller); err != nil {
		return err
	}
	if treasury == (common.Address{}) {
		return ErrZeroAddress
	}
	collector.Treasury = treasury
	return e.state.PutCollector(collector)
}

// GetCollector returns the collector record.
func (e *Engine) GetCollector() (*Collector, error) {
	return e.load()
}

// GetFeeStats returns the fee flow for token.
func (e *Engine) GetFeeStats(token common.Address) (*Stats, error) {
	if _, err := e.load(); err != nil {
		return nil, err
	}
	return e.stats(token)
}

func (e *Engine) load() (*Collector, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	collector, err := e.state.GetCollector(e.address)
	if err != nil {
		return nil, err
	}
	if collector == nil {
		return nil, ErrCollectorNotFound
	}
	return collector, nil
}

func (e *Engine) stats(token common.Address) (*Stats, error) {
	stats, err := e.state.GetFeeStats(e.address, token)
	if err != nil {
		return nil, err
	}
	if stats == nil {
		stats = &Stats{}
	}
	if stats.Collected == nil {
		stats.Collected = big.NewInt(0)
	}
	if stats.Distributed == nil {
		stats.Distributed = big.NewInt(0)
	}
	return stats, nil
}
