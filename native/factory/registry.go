package factory

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"cantorfi/core/events"
	nativecommon "cantorfi/native/common"
)

var (
	ErrNilState             = errors.New("protocol: state not configured")
	ErrNotInitialised       = errors.New("protocol: registry not initialised")
	ErrAlreadyInitialised   = errors.New("protocol: registry already initialised")
	ErrZeroAddress          = errors.New("protocol: zero address")
	ErrFeeTooHigh           = errors.New("protocol: fee exceeds cap")
	ErrFactoryNotRegistered = errors.New("protocol: factory not registered")
	ErrVaultNotFound        = errors.New("protocol: vault not found")
)

const (
	// RoleFactory marks accounts allowed to register vaults.
	RoleFactory nativecommon.Role = "FACTORY"

	MaxSetupFee       = 1_000
	MaxPerformanceFee = 5_000
	MaxBorrowFeeRate  = 5_000

	DefaultSetupFee       = 100
	DefaultPerformanceFee = 1_000
	DefaultBorrowFeeRate  = 1_500
)

// Protocol is the global registry record.
type Protocol struct {
	Admin        common.Address
	Treasury     common.Address
	FeeCollector common.Address
	Paused       bool
	// SetupFee is recorded for vault creation but no flow charges it.
	SetupFee       uint64
	PerformanceFee uint64
	BorrowFeeRate  uint64
	VaultCount     uint64
}

// Fees groups the protocol fee rates in basis points.
type Fees struct {
	SetupFee       uint64
	PerformanceFee uint64
	BorrowFeeRate  uint64
}

// DefaultFees returns the launch fee schedule.
func DefaultFees() Fees {
	return Fees{SetupFee: DefaultSetupFee, PerformanceFee: DefaultPerformanceFee, BorrowFeeRate: DefaultBorrowFeeRate}
}

// Validate checks the fee caps.
func (f Fees) Validate() error {
	if f.SetupFee > MaxSetupFee {
		return fmt.Errorf("%w: setup fee %d > %d", ErrFeeTooHigh, f.SetupFee, MaxSetupFee)
	}
	if f.PerformanceFee > MaxPerformanceFee {
		return fmt.Errorf("%w: performance fee %d > %d", ErrFeeTooHigh, f.PerformanceFee, MaxPerformanceFee)
	}
	if f.BorrowFeeRate > MaxBorrowFeeRate {
		return fmt.Errorf("%w: borrow fee rate %d > %d", ErrFeeTooHigh, f.BorrowFeeRate, MaxBorrowFeeRate)
	}
	return nil
}

type registryState interface {
	nativecommon.RoleView
	SetRole(scope common.Address, role nativecommon.Role, account common.Address, granted bool) error
	GetProtocol(addr common.Address) (*Protocol, error)
	PutProtocol(addr common.Address, protocol *Protocol) error
	GetVaultByID(registry common.Address, id uint64) (common.Address, bool, error)
	PutVaultByID(registry common.Address, id uint64, vault common.Address) error
}

// Registry holds the protocol-wide configuration and the vault directory.
type Registry struct {
	address common.Address
	state   registryState
	emitter events.Emitter
}

// NewRegistry constructs a registry bound to address.
func NewRegistry(address common.Address) *Registry {
	return &Registry{address: address, emitter: events.NoopEmitter{}}
}

// Address returns the registry address.
func (r *Registry) Address() common.Address { return r.address }

// SetState wires the registry to the external persistence layer.
func (r *Registry) SetState(state registryState) { r.state = state }

// SetEmitter configures the event sink.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	r.emitter = emitter
}

// Initialize creates the protocol record and grants admin.
func (r *Registry) Initialize(admin, treasury, feeCollector common.Address, fees Fees) error {
	if r == nil || r.state == nil {
		return ErrNilState
	}
	if admin == (common.Address{}) || treasury == (common.Address{}) {
		return ErrZeroAddress
	}
	if err := fees.Validate(); err != nil {
		return err
	}
	existing, err := r.state.GetProtocol(r.address)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrAlreadyInitialised
	}
	protocol := &Protocol{
		Admin:          admin,
		Treasury:       treasury,
		FeeCollector:   feeCollector,
		SetupFee:       fees.SetupFee,
		PerformanceFee: fees.PerformanceFee,
		BorrowFeeRate:  fees.BorrowFeeRate,
	}
	if err := r.state.PutProtocol(r.address, protocol); err != nil {
		return err
	}
	return r.state.SetRole(r.address, nativecommon.RoleAdmin, admin, true)
}

// GetProtocol returns the registry record.
func (r *Registry) GetProtocol() (*Protocol, error) {
	if r == nil || r.state == nil {
		return nil, ErrNilState
	}
	protocol, err := r.state.GetProtocol(r.address)
	if err != nil {
		return nil, err
	}
	if protocol == nil {
		return nil, ErrNotInitialised
	}
	return protocol, nil
}

// HasRole reports protocol-scope role membership.
func (r *Registry) HasRole(role nativecommon.Role, account common.Address) (bool, error) {
	if r == nil || r.state == nil {
		return false, ErrNilState
	}
	return r.state.HasRole(r.address, role, account)
}

// IsFactory reports whether addr may register vaults.
func (r *Registry) IsFactory(addr common.Address) (bool, error) {
	return r.HasRole(RoleFactory, addr)
}

func (r *Registry) AddFactory(caller, factory common.Address) error {
	return r.update(caller, "factory", func(*Protocol) (string, error) {
		if factory == (common.Address{}) {
			return "", ErrZeroAddress
		}
		return factory.Hex(), r.state.SetRole(r.address, RoleFactory, factory, true)
	})
}

func (r *Registry) RemoveFactory(caller, factory common.Address) error {
	return r.update(caller, "factoryRemoved", func(*Protocol) (string, error) {
		return factory.Hex(), r.state.SetRole(r.address, RoleFactory, factory, false)
	})
}

func (r *Registry) SetFeeCollector(caller, collector common.Address) error {
	return r.update(caller, "feeCollector", func(p *Protocol) (string, error) {
		if collector == (common.Address{}) {
			return "", ErrZeroAddress
		}
		p.FeeCollector = collector
		return collector.Hex(), nil
	})
}

func (r *Registry) SetTreasury(caller, treasury common.Address) error {
	return r.update(caller, "treasury", func(p *Protocol) (string, error) {
		if treasury == (common.Address{}) {
			return "", ErrZeroAddress
		}
		p.Treasury = treasury
		return treasury.Hex(), nil
	})
}

func (r *Registry) SetSetupFee(caller common.Address, bps uint64) error {
	return r.setFee(caller, "setupFee", func(f *Fees) { f.SetupFee = bps })
}

func (r *Registry) SetPerformanceFee(caller common.Address, bps uint64) error {
	return r.setFee(caller, "performanceFee", func(f *Fees) { f.PerformanceFee = bps })
}

func (r *Registry) SetBorrowFeeRate(caller common.Address, bps uint64) error {
	return r.setFee(caller, "borrowFeeRate", func(f *Fees) { f.BorrowFeeRate = bps })
}

// Pause halts vault entry flows protocol-wide.
func (r *Registry) Pause(caller common.Address) error {
	return r.update(caller, "paused", func(p *Protocol) (string, error) {
		p.Paused = true
		return "true", nil
	})
}

func (r *Registry) Unpause(caller common.Address) error {
	return r.update(caller, "paused", func(p *Protocol) (string, error) {
		p.Paused = false
		return "false", nil
	})
}

// RegisterVault appends vault to the directory. Only registered factories may
// call it. The assigned identifier is returned.
func (r *Registry) RegisterVault(caller, vault common.Address) (uint64, error) {
	protocol, err := r.GetProtocol()
	if err != nil {
		return 0, err
	}
	ok, err := r.IsFactory(caller)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrFactoryNotRegistered
	}
	protocol.VaultCount++
	if err := r.state.PutVaultByID(r.address, protocol.VaultCount, vault); err != nil {
		return 0, err
	}
	if err := r.state.PutProtocol(r.address, protocol); err != nil {
		return 0, err
	}
	return protocol.VaultCount, nil
}

// GetVault resolves a vault identifier.
func (r *Registry) GetVault(id uint64) (common.Address, error) {
	if _, err := r.GetProtocol(); err != nil {
		return common.Address{}, err
	}
	addr, ok, err := r.state.GetVaultByID(r.address, id)
	if err != nil {
		return common.Address{}, err
	}
	if !ok {
		return common.Address{}, ErrVaultNotFound
	}
	return addr, nil
}

// Vaults lists every registered vault in creation order.
func (r *Registry) Vaults() ([]common.Address, error) {
	protocol, err := r.GetProtocol()
	if err != nil {
		return nil, err
	}
	out := make([]common.Address, 0, protocol.VaultCount)
	for id := uint64(1); id <= protocol.VaultCount; id++ {
		addr, err := r.GetVault(id)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

func (r *Registry) setFee(caller common.Address, field string, apply func(*Fees)) error {
	return r.update(caller, field, func(p *Protocol) (string, error) {
		fees := Fees{SetupFee: p.SetupFee, PerformanceFee: p.PerformanceFee, BorrowFeeRate: p.BorrowFeeRate}
		apply(&fees)
		if err := fees.Validate(); err != nil {
			return "", err
		}
		p.SetupFee, p.PerformanceFee, p.BorrowFeeRate = fees.SetupFee, fees.PerformanceFee, fees.BorrowFeeRate
		switch field {
		case "setupFee":
			return strconv.FormatUint(fees.SetupFee, 10), nil
		case "performanceFee":
			return strconv.FormatUint(fees.PerformanceFee, 10), nil
		default:
			return strconv.FormatUint(fees.BorrowFeeRate, 10), nil
		}
	})
}

func (r *Registry) update(caller common.Address, field string, apply func(*Protocol) (string, error)) error {
	protocol, err := r.GetProtocol()
	if err != nil {
		return err
	}
	if err := nativecommon.RequireRole(r.state, r.address, nativecommon.RoleAdmin, caller); err != nil {
		return err
	}
	value, err := apply(protocol)
	if err != nil {
		return err
	}
	if err := r.state.PutProtocol(r.address, protocol); err != nil {
		return err
	}
	r.emitter.Emit(events.ProtocolUpdated{Caller: caller, Field: field, Value: value})
	return nil
}
