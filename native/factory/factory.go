package factory

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"cantorfi/core/events"
	nativecommon "cantorfi/native/common"
	"cantorfi/native/cvt"
	"cantorfi/native/fees"
	"cantorfi/native/staking"
	"cantorfi/native/token"
	"cantorfi/native/vault"
)

var (
	ErrUnknownToken    = errors.New("factory: underlying token not registered")
	ErrPoolDeployed    = errors.New("factory: staking pool already deployed")
	ErrIDMismatch      = errors.New("factory: registry assigned unexpected vault id")
	errNilCollaborator = errors.New("factory: collaborators not configured")
)

// DefaultProtocolBorrowRatio is the staking pool ratio used when none is given.
const DefaultProtocolBorrowRatio = 6_000

const (
	cvtNonce     = 1
	stakingNonce = 2
)

type roleState interface {
	nativecommon.RoleView
	SetRole(scope common.Address, role nativecommon.Role, account common.Address, granted bool) error
}

// Deployer hands out engines bound to freshly derived addresses.
type Deployer interface {
	Vault(addr common.Address) *vault.Engine
	Pool(addr common.Address) *staking.Engine
}

// Deployment describes a created vault.
type Deployment struct {
	ID    uint64
	Vault common.Address
	CVT   common.Address
}

// Factory creates vaults, their CVT tokens and staking pools at deterministic
// addresses.
type Factory struct {
	address  common.Address
	registry *Registry
	ledger   *token.Ledger
	roles    roleState
	deployer Deployer
	emitter  events.Emitter
	clock    func() time.Time
}

// New binds a factory to address.
func New(address common.Address, registry *Registry, ledger *token.Ledger, roles roleState, deployer Deployer) *Factory {
	return &Factory{
		address:  address,
		registry: registry,
		ledger:   ledger,
		roles:    roles,
		deployer: deployer,
		emitter:  events.NoopEmitter{},
		clock:    time.Now,
	}
}

func (f *Factory) Address() common.Address { return f.address }

// SetEmitter configures the event sink.
func (f *Factory) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	f.emitter = emitter
}

// SetClock overrides the time source.
func (f *Factory) SetClock(clock func() time.Time) {
	if clock != nil {
		f.clock = clock
	}
}

// GrantAdmin makes account a factory admin. It is used at genesis only.
func (f *Factory) GrantAdmin(account common.Address) error {
	if f.roles == nil {
		return errNilCollaborator
	}
	return f.roles.SetRole(f.address, nativecommon.RoleAdmin, account, true)
}

// VaultAddress returns the address the vault with id will be deployed at.
func VaultAddress(factory common.Address, id uint64) common.Address {
	return crypto.CreateAddress(factory, id)
}

// CVTAddress returns the receipt token address of vault.
func CVTAddress(vaultAddr common.Address) common.Address {
	return crypto.CreateAddress(vaultAddr, cvtNonce)
}

// PoolAddress returns the staking pool address of vault.
func PoolAddress(vaultAddr common.Address) common.Address {
	return crypto.CreateAddress(vaultAddr, stakingNonce)
}

// CreateVault validates params and deploys a vault with its CVT.
func (f *Factory) CreateVault(caller common.Address, params vault.Params) (*Deployment, error) {
	if f.registry == nil || f.ledger == nil || f.roles == nil || f.deployer == nil {
		return nil, errNilCollaborator
	}
	protocol, err := f.registry.GetProtocol()
	if err != nil {
		return nil, err
	}
	if protocol.Paused {
		return nil, nativecommon.ErrModulePaused
	}
	if err := nativecommon.RequireRole(f.roles, f.address, nativecommon.RoleAdmin, caller); err != nil {
		return nil, err
	}
	registered, err := f.registry.IsFactory(f.address)
	if err != nil {
		return nil, err
	}
	if !registered {
		return nil, ErrFactoryNotRegistered
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if _, err := f.ledger.Metadata(params.Token); err != nil {
		if errors.Is(err, token.ErrUnknownToken) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownToken, params.Token.Hex())
		}
		return nil, err
	}

	id := protocol.VaultCount + 1
	vaultAddr := VaultAddress(f.address, id)
	cvtAddr := CVTAddress(vaultAddr)

	receipt, err := cvt.Deploy(cvtAddr, f.address, f.ledger, f.roles)
	if err != nil {
		return nil, fmt.Errorf("deploy cvt: %w", err)
	}
	if err := receipt.GrantRole(f.address, nativecommon.RoleMinter, vaultAddr); err != nil {
		return nil, err
	}
	engine := f.deployer.Vault(vaultAddr)
	if err := engine.Initialize(params.Info(id, vaultAddr, cvtAddr, f.now())); err != nil {
		return nil, err
	}
	for _, admin := range []common.Address{protocol.Admin, caller} {
		if err := f.roles.SetRole(vaultAddr, nativecommon.RoleAdmin, admin, true); err != nil {
			return nil, err
		}
	}
	if protocol.FeeCollector != (common.Address{}) {
		if err := f.roles.SetRole(protocol.FeeCollector, fees.RoleNotifier, vaultAddr, true); err != nil {
			return nil, err
		}
	}
	assigned, err := f.registry.RegisterVault(f.address, vaultAddr)
	if err != nil {
		return nil, err
	}
	if assigned != id {
		return nil, fmt.Errorf("%w: %d != %d", ErrIDMismatch, assigned, id)
	}
	f.emitter.Emit(events.VaultCreated{
		VaultID: id,
		Vault:   vaultAddr,
		Token:   params.Token,
		CVT:     cvtAddr,
		Factory: f.address,
	})
	return &Deployment{ID: id, Vault: vaultAddr, CVT: cvtAddr}, nil
}

// DeployStaking creates the staking pool of vaultAddr. A zero ratio selects
// DefaultProtocolBorrowRatio. The vault admin still has to pair the pool with
// SetStakingContract.
func (f *Factory) DeployStaking(caller, vaultAddr common.Address, ratioBps uint64) (common.Address, error) {
	if f.registry == nil || f.roles == nil || f.deployer == nil {
		return common.Address{}, errNilCollaborator
	}
	protocol, err := f.registry.GetProtocol()
	if err != nil {
		return common.Address{}, err
	}
	if err := nativecommon.RequireRole(f.roles, f.address, nativecommon.RoleAdmin, caller); err != nil {
		return common.Address{}, err
	}
	info, err := f.deployer.Vault(vaultAddr).GetVaultInfo()
	if err != nil {
		return common.Address{}, err
	}
	if ratioBps == 0 {
		ratioBps = DefaultProtocolBorrowRatio
	}
	poolAddr := PoolAddress(vaultAddr)
	err = f.deployer.Pool(poolAddr).Initialize(&staking.Pool{
		Address:                poolAddr,
		Vault:                  vaultAddr,
		CVT:                    info.CVT,
		Underlying:             info.Token,
		MaxProtocolBorrowRatio: ratioBps,
		TotalStaked:            big.NewInt(0),
		CreatedAt:              f.now(),
	})
	if errors.Is(err, staking.ErrPoolExists) {
		return common.Address{}, ErrPoolDeployed
	}
	if err != nil {
		return common.Address{}, err
	}
	for _, admin := range []common.Address{protocol.Admin, caller} {
		if err := f.roles.SetRole(poolAddr, nativecommon.RoleAdmin, admin, true); err != nil {
			return common.Address{}, err
		}
	}
	f.emitter.Emit(events.StakingDeployed{Vault: vaultAddr, Pool: poolAddr, RatioBps: ratioBps})
	return poolAddr, nil
}

func (f *Factory) now() uint64 {
	ts := f.clock().Unix()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}
