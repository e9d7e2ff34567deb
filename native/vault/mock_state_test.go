package vault

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "cantorfi/native/common"
	"cantorfi/native/cvt"
	"cantorfi/native/token"
)

type mockState struct {
	tokens    map[common.Address]*token.Metadata
	amounts   map[string]*big.Int
	roles     map[string]bool
	infos     map[common.Address]*Info
	states    map[common.Address]*State
	positions map[string]*Position
}

func newMockState() *mockState {
	return &mockState{
		tokens:    make(map[common.Address]*token.Metadata),
		amounts:   make(map[string]*big.Int),
		roles:     make(map[string]bool),
		infos:     make(map[common.Address]*Info),
		states:    make(map[common.Address]*State),
		positions: make(map[string]*Position),
	}
}

func (m *mockState) GetToken(addr common.Address) (*token.Metadata, error) {
	return m.tokens[addr].Clone(), nil
}

func (m *mockState) PutToken(meta *token.Metadata) error {
	m.tokens[meta.Address] = meta.Clone()
	return nil
}

func (m *mockState) getAmount(key string) (*big.Int, error) {
	if v, ok := m.amounts[key]; ok {
		return new(big.Int).Set(v), nil
	}
	return nil, nil
}

func (m *mockState) putAmount(key string, v *big.Int) error {
	m.amounts[key] = new(big.Int).Set(v)
	return nil
}

func (m *mockState) GetBalance(tok, holder common.Address) (*big.Int, error) {
	return m.getAmount("bal" + tok.Hex() + holder.Hex())
}

func (m *mockState) PutBalance(tok, holder common.Address, amount *big.Int) error {
	return m.putAmount("bal"+tok.Hex()+holder.Hex(), amount)
}

func (m *mockState) GetAllowance(tok, owner, spender common.Address) (*big.Int, error) {
	return m.getAmount("alw" + tok.Hex() + owner.Hex() + spender.Hex())
}

func (m *mockState) PutAllowance(tok, owner, spender common.Address, amount *big.Int) error {
	return m.putAmount("alw"+tok.Hex()+owner.Hex()+spender.Hex(), amount)
}

func (m *mockState) HasRole(scope common.Address, role nativecommon.Role, account common.Address) (bool, error) {
	return m.roles[scope.Hex()+string(role)+account.Hex()], nil
}

func (m *mockState) SetRole(scope common.Address, role nativecommon.Role, account common.Address, granted bool) error {
	m.roles[scope.Hex()+string(role)+account.Hex()] = granted
	return nil
}

func (m *mockState) GetVaultInfo(addr common.Address) (*Info, error) {
	return m.infos[addr].Clone(), nil
}

func (m *mockState) PutVaultInfo(info *Info) error {
	m.infos[info.Address] = info.Clone()
	return nil
}

func (m *mockState) GetVaultState(addr common.Address) (*State, error) {
	return m.states[addr].Clone(), nil
}

func (m *mockState) PutVaultState(addr common.Address, st *State) error {
	m.states[addr] = st.Clone()
	return nil
}

func (m *mockState) GetPosition(vault, user common.Address) (*Position, error) {
	return m.positions[vault.Hex()+user.Hex()].Clone(), nil
}

func (m *mockState) PutPosition(vault, user common.Address, pos *Position) error {
	m.positions[vault.Hex()+user.Hex()] = pos.Clone()
	return nil
}

func (m *mockState) GetStakedAmount(vault, user common.Address) (*big.Int, error) {
	return m.getAmount("stk" + vault.Hex() + user.Hex())
}

func (m *mockState) PutStakedAmount(vault, user common.Address, amount *big.Int) error {
	return m.putAmount("stk"+vault.Hex()+user.Hex(), amount)
}

type stubPool struct {
	address  common.Address
	max      *big.Int
	notified *big.Int
}

func (p *stubPool) Address() common.Address { return p.address }

func (p *stubPool) GetMaxProtocolBorrow() (*big.Int, error) { return new(big.Int).Set(p.max), nil }

func (p *stubPool) NotifyRewards(_ common.Address, amount *big.Int) error {
	p.notified.Add(p.notified, amount)
	return nil
}

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) advance(d time.Duration) { c.now = c.now.Add(d) }

const oneYear = 365 * 24 * time.Hour

var (
	underlying = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	vaultAddr  = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	cvtAddr    = common.HexToAddress("0x00000000000000000000000000000000000000f2")
	poolAddr   = common.HexToAddress("0x00000000000000000000000000000000000000f3")
	admin      = common.HexToAddress("0x00000000000000000000000000000000000000ad")
	treasury   = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	alice      = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob        = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	carol      = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	liquidator = common.HexToAddress("0x00000000000000000000000000000000000000d4")
)

type fixture struct {
	t       *testing.T
	state   *mockState
	ledger  *token.Ledger
	receipt *cvt.Token
	engine  *Engine
	clock   *testClock
	pool    *stubPool
}

// newFixture deploys a 6-decimal vault with the default parameters adjusted
// by mutate.
func newFixture(t *testing.T, mutate func(*Params)) *fixture {
	t.Helper()
	state := newMockState()
	ledger := token.NewLedger(state)
	if err := ledger.Register(token.Metadata{Address: underlying, Name: "USD Coin", Symbol: "USDC", Decimals: 6}); err != nil {
		t.Fatalf("register: %v", err)
	}
	receipt, err := cvt.Deploy(cvtAddr, admin, ledger, state)
	if err != nil {
		t.Fatalf("deploy cvt: %v", err)
	}
	if err := receipt.GrantRole(admin, nativecommon.RoleMinter, vaultAddr); err != nil {
		t.Fatalf("grant minter: %v", err)
	}
	_ = state.SetRole(vaultAddr, nativecommon.RoleAdmin, admin, true)

	clock := &testClock{now: time.Unix(1_700_000_000, 0)}
	engine := NewEngine(vaultAddr)
	engine.SetState(state)
	engine.SetTokens(ledger)
	engine.SetReceipt(receipt)
	engine.SetClock(clock.Now)
	engine.SetFeeSchedule(FeeSchedule{PerformanceFee: 1_000, BorrowFeeRate: 1_500})

	params := DefaultParams(underlying, treasury, 6)
	if mutate != nil {
		mutate(&params)
	}
	if err := params.Validate(); err != nil {
		t.Fatalf("params: %v", err)
	}
	if err := engine.Initialize(params.Info(1, vaultAddr, cvtAddr, uint64(clock.now.Unix()))); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	pool := &stubPool{address: poolAddr, max: big.NewInt(0), notified: big.NewInt(0)}
	engine.SetStaking(pool)
	return &fixture{t: t, state: state, ledger: ledger, receipt: receipt, engine: engine, clock: clock, pool: pool}
}

func usdc(whole int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(whole), big.NewInt(1_000_000))
}

func (f *fixture) fund(user common.Address, amount *big.Int) {
	f.t.Helper()
	if err := f.ledger.Mint(underlying, user, amount); err != nil {
		f.t.Fatalf("mint: %v", err)
	}
	if err := f.ledger.Approve(underlying, user, vaultAddr, token.MaxAllowance()); err != nil {
		f.t.Fatalf("approve: %v", err)
	}
}

func (f *fixture) supply(user common.Address, amount *big.Int) {
	f.t.Helper()
	f.fund(user, amount)
	if _, err := f.engine.Supply(user, amount, LockConfig{}); err != nil {
		f.t.Fatalf("supply: %v", err)
	}
}

func (f *fixture) balance(holder common.Address) *big.Int {
	f.t.Helper()
	bal, err := f.ledger.BalanceOf(underlying, holder)
	if err != nil {
		f.t.Fatalf("balance: %v", err)
	}
	return bal
}

func (f *fixture) vaultState() *State {
	f.t.Helper()
	st, err := f.engine.GetVaultState()
	if err != nil {
		f.t.Fatalf("state: %v", err)
	}
	return st
}

// checkSolvency asserts TotalSupplied == TotalBorrowed + AvailableLiquidity + TotalBadDebt.
func (f *fixture) checkSolvency() {
	f.t.Helper()
	st := f.vaultState()
	sum := new(big.Int).Add(st.TotalBorrowed, st.AvailableLiquidity)
	sum.Add(sum, st.TotalBadDebt)
	if sum.Cmp(st.TotalSupplied) != 0 {
		f.t.Fatalf("accounting drift: supplied=%s borrowed=%s available=%s badDebt=%s",
			st.TotalSupplied, st.TotalBorrowed, st.AvailableLiquidity, st.TotalBadDebt)
	}
}

func (f *fixture) enableStaking(max *big.Int) {
	f.t.Helper()
	f.pool.max = max
	if err := f.engine.SetStakingContract(admin, poolAddr); err != nil {
		f.t.Fatalf("set staking: %v", err)
	}
}

func expectAmount(t *testing.T, label string, got, want *big.Int) {
	t.Helper()
	if got == nil || got.Cmp(want) != 0 {
		t.Fatalf("%s: expected %s, got %v", label, want, got)
	}
}
