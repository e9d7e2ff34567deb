package protocol

import (
	"github.com/ethereum/go-ethereum/common"

	"cantorfi/core/events"
	"cantorfi/core/state"
	"cantorfi/native/collateral"
	nativecommon "cantorfi/native/common"
	"cantorfi/native/cvt"
	"cantorfi/native/factory"
	"cantorfi/native/fees"
	"cantorfi/native/staking"
	"cantorfi/native/token"
	"cantorfi/native/vault"
	"cantorfi/observability/metrics"
)

// env is the per-transaction engine graph.
type env struct {
	rt       *Runtime
	tx       *state.Tx
	buf      *events.Buffer
	ledger   *token.Ledger
	registry *factory.Registry
	touched  []common.Address
}

func (r *Runtime) newEnv(tx *state.Tx, buf *events.Buffer) *env {
	registry := factory.NewRegistry(r.addrs.Registry)
	registry.SetState(tx)
	registry.SetEmitter(buf)
	return &env{rt: r, tx: tx, buf: buf, ledger: token.NewLedger(tx), registry: registry}
}

func (e *env) protocol() (*factory.Protocol, error) {
	return e.registry.GetProtocol()
}

func (e *env) pauses() nativecommon.PauseView {
	protocol, err := e.protocol()
	if err != nil {
		return nativecommon.PauseSet{}
	}
	return nativecommon.PauseSet{vault.ModuleName: protocol.Paused, staking.ModuleName: protocol.Paused}
}

func (e *env) collector() *fees.Engine {
	engine := fees.NewEngine(e.rt.addrs.Collector)
	engine.SetState(e.tx)
	engine.SetTokens(e.ledger)
	engine.SetEmitter(e.buf)
	return engine
}

// manager returns the collateral manager. Vaults it drives are resolved
// through CollateralVault.
func (e *env) manager() *collateral.Manager {
	m := collateral.NewManager(e.rt.addrs.Collateral)
	m.SetState(e.tx)
	m.SetVaults(e)
	m.SetTokens(e.ledger)
	m.SetEmitter(e.buf)
	m.SetClock(e.rt.clock)
	return m
}

// CollateralVault implements collateral.VaultSource with fully wired engines.
func (e *env) CollateralVault(addr common.Address) (collateral.Vault, error) {
	engine, _, err := e.vault(addr)
	if err != nil {
		return nil, err
	}
	return engine, nil
}

func (e *env) factory() *factory.Factory {
	f := factory.New(e.rt.addrs.Factory, e.registry, e.ledger, e.tx, e)
	f.SetEmitter(e.buf)
	f.SetClock(e.rt.clock)
	return f
}

// Vault implements factory.Deployer with a bare engine.
func (e *env) Vault(addr common.Address) *vault.Engine {
	engine := vault.NewEngine(addr)
	engine.SetState(e.tx)
	engine.SetTokens(e.ledger)
	engine.SetEmitter(e.buf)
	engine.SetClock(e.rt.clock)
	return engine
}

// Pool implements factory.Deployer with a bare engine.
func (e *env) Pool(addr common.Address) *staking.Engine {
	engine := staking.NewEngine(addr)
	engine.SetState(e.tx)
	engine.SetTokens(e.ledger)
	engine.SetEmitter(e.buf)
	engine.SetClock(e.rt.clock)
	return engine
}

// vault returns the fully wired engine of addr together with its paired pool
// when one is configured.
func (e *env) vault(addr common.Address) (*vault.Engine, *staking.Engine, error) {
	engine := e.Vault(addr)
	info, err := engine.GetVaultInfo()
	if err != nil {
		return nil, nil, err
	}
	engine.SetReceipt(cvt.New(info.CVT, e.ledger, e.tx))
	engine.SetPauses(e.pauses())
	if info.CollateralManager == e.rt.addrs.Collateral {
		engine.SetCollateralManager(e.manager())
	}
	if protocol, err := e.protocol(); err == nil {
		engine.SetFeeSchedule(vault.FeeSchedule{
			PerformanceFee: protocol.PerformanceFee,
			BorrowFeeRate:  protocol.BorrowFeeRate,
		})
		if protocol.FeeCollector != (common.Address{}) {
			collector := e.collector()
			if _, err := collector.GetCollector(); err == nil && collector.Address() == protocol.FeeCollector {
				engine.SetFeeSink(collector)
			}
		}
	}
	var pool *staking.Engine
	if info.StakingContract != (common.Address{}) {
		pool = e.Pool(info.StakingContract)
		pool.SetPauses(e.pauses())
		pool.SetVault(engine)
		engine.SetStaking(pool)
	}
	e.touch(addr)
	return engine, pool, nil
}

// pool resolves a staking pool and wires it to its vault.
func (e *env) pool(addr common.Address) (*staking.Engine, error) {
	bare := e.Pool(addr)
	record, err := bare.GetPool()
	if err != nil {
		return nil, err
	}
	_, paired, err := e.vault(record.Vault)
	if err != nil {
		return nil, err
	}
	if paired != nil && paired.Address() == addr {
		return paired, nil
	}
	bare.SetPauses(e.pauses())
	return bare, nil
}

func (e *env) touch(addr common.Address) {
	for _, seen := range e.touched {
		if seen == addr {
			return
		}
	}
	e.touched = append(e.touched, addr)
}

func (e *env) snapshots() []metrics.VaultSnapshot {
	out := make([]metrics.VaultSnapshot, 0, len(e.touched))
	for _, addr := range e.touched {
		st, err := e.Vault(addr).GetVaultState()
		if err != nil {
			continue
		}
		out = append(out, metrics.VaultSnapshot{
			Vault:          addr.Hex(),
			Supplied:       st.TotalSupplied,
			Borrowed:       st.TotalBorrowed,
			Available:      st.AvailableLiquidity,
			BadDebt:        st.TotalBadDebt,
			Staked:         st.TotalStakedLiquidity,
			UtilizationBps: st.UtilizationRate,
		})
	}
	return out
}

func (e *env) requireProtocolAdmin(caller common.Address) error {
	if _, err := e.protocol(); err != nil {
		return err
	}
	return nativecommon.RequireRole(e.tx, e.rt.addrs.Registry, nativecommon.RoleAdmin, caller)
}
