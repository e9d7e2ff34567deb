package collateral

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "cantorfi/native/common"
	"cantorfi/native/vault"
)

type mockState struct {
	roles   map[string]bool
	configs map[common.Address]*Config
	feeds   map[string]*PriceFeed
}

func newMockState() *mockState {
	return &mockState{
		roles:   make(map[string]bool),
		configs: make(map[common.Address]*Config),
		feeds:   make(map[string]*PriceFeed),
	}
}

func (m *mockState) HasRole(scope common.Address, role nativecommon.Role, account common.Address) (bool, error) {
	return m.roles[scope.Hex()+string(role)+account.Hex()], nil
}

func (m *mockState) SetRole(scope common.Address, role nativecommon.Role, account common.Address, granted bool) error {
	m.roles[scope.Hex()+string(role)+account.Hex()] = granted
	return nil
}

func (m *mockState) GetCollateralConfig(addr common.Address) (*Config, error) {
	return m.configs[addr].Clone(), nil
}

func (m *mockState) PutCollateralConfig(cfg *Config) error {
	m.configs[cfg.Address] = cfg.Clone()
	return nil
}

func (m *mockState) GetPriceFeed(manager, token common.Address) (*PriceFeed, error) {
	feed, ok := m.feeds[manager.Hex()+token.Hex()]
	if !ok {
		return nil, nil
	}
	clone := *feed
	clone.Price = new(big.Int).Set(feed.Price)
	return &clone, nil
}

func (m *mockState) PutPriceFeed(manager common.Address, feed *PriceFeed) error {
	clone := *feed
	m.feeds[manager.Hex()+feed.Token.Hex()] = &clone
	return nil
}

// mockVault keeps plain positions and records the manager callbacks.
type mockVault struct {
	info      *vault.Info
	positions map[common.Address]*vault.Position
	staked    map[common.Address]*big.Int
	pledged   map[common.Address]bool
	seized    map[common.Address]*big.Int
}

func newMockVault(addr, tok common.Address) *mockVault {
	return &mockVault{
		info:      &vault.Info{Address: addr, Token: tok},
		positions: make(map[common.Address]*vault.Position),
		staked:    make(map[common.Address]*big.Int),
		pledged:   make(map[common.Address]bool),
		seized:    make(map[common.Address]*big.Int),
	}
}

func (v *mockVault) position(user common.Address) *vault.Position {
	pos, ok := v.positions[user]
	if !ok {
		pos = &vault.Position{
			Amount:        big.NewInt(0),
			CrossBorrowed: big.NewInt(0),
			CrossInterest: big.NewInt(0),
		}
		v.positions[user] = pos
	}
	return pos
}

func (v *mockVault) GetVaultInfo() (*vault.Info, error) { return v.info, nil }

func (v *mockVault) GetUserPosition(user common.Address) (*vault.Position, error) {
	return v.position(user).Clone(), nil
}

func (v *mockVault) StakedAmount(user common.Address) (*big.Int, error) {
	if s, ok := v.staked[user]; ok {
		return s, nil
	}
	return big.NewInt(0), nil
}

func (v *mockVault) PledgeCollateral(caller, user common.Address) error {
	if caller != managerAddr {
		return errors.New("unexpected caller")
	}
	v.pledged[user] = true
	return nil
}

func (v *mockVault) ReleaseCollateral(_, user common.Address) error {
	delete(v.pledged, user)
	return nil
}

func (v *mockVault) SeizeCollateral(_, user, recipient common.Address, amount *big.Int) (*big.Int, error) {
	pos := v.position(user)
	seized := minBig(amount, pos.Amount)
	pos.Amount.Sub(pos.Amount, seized)
	if v.seized[recipient] == nil {
		v.seized[recipient] = big.NewInt(0)
	}
	v.seized[recipient].Add(v.seized[recipient], seized)
	return seized, nil
}

func (v *mockVault) RepayCrossCollateral(_, user common.Address, amount *big.Int) (*big.Int, error) {
	pos := v.position(user)
	paid := minBig(amount, pos.CrossDebt())
	pos.CrossBorrowed.Sub(pos.CrossBorrowed, paid)
	return paid, nil
}

type vaultSet map[common.Address]*mockVault

func (s vaultSet) CollateralVault(addr common.Address) (Vault, error) {
	v, ok := s[addr]
	if !ok {
		return nil, errors.New("unknown vault")
	}
	return v, nil
}

type tokenDecimals map[common.Address]uint8

func (d tokenDecimals) Decimals(token common.Address) (uint8, error) { return d[token], nil }

var (
	managerAddr = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	admin       = common.HexToAddress("0x00000000000000000000000000000000000000ad")
	alice       = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	keeper      = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	usdcVault   = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	wethVault   = common.HexToAddress("0x00000000000000000000000000000000000000f2")
	usdcToken   = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	wethToken   = common.HexToAddress("0x00000000000000000000000000000000000000e2")
)

func amount(whole int64, decimals int) *big.Int {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return scale.Mul(scale, big.NewInt(whole))
}

func usd(whole int64) *big.Int { return amount(whole, PriceDecimals) }

type harness struct {
	manager *Manager
	state   *mockState
	vaults  vaultSet
	now     time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		state: newMockState(),
		vaults: vaultSet{
			usdcVault: newMockVault(usdcVault, usdcToken),
			wethVault: newMockVault(wethVault, wethToken),
		},
		now: time.Unix(1_700_000_000, 0),
	}
	h.manager = NewManager(managerAddr)
	h.manager.SetState(h.state)
	h.manager.SetVaults(h.vaults)
	h.manager.SetTokens(tokenDecimals{usdcToken: 6, wethToken: 18})
	h.manager.SetClock(func() time.Time { return h.now })
	if err := h.manager.Initialize(admin, DefaultConfig(managerAddr)); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	for _, addr := range []common.Address{usdcVault, wethVault} {
		if err := h.manager.AddVault(admin, addr); err != nil {
			t.Fatalf("add vault: %v", err)
		}
	}
	if err := h.manager.SetPrice(admin, usdcToken, usd(1)); err != nil {
		t.Fatalf("usdc price: %v", err)
	}
	if err := h.manager.SetPrice(admin, wethToken, usd(3_500)); err != nil {
		t.Fatalf("weth price: %v", err)
	}
	return h
}

func TestInitializeAndAdmin(t *testing.T) {
	h := newHarness(t)
	if err := h.manager.Initialize(admin, DefaultConfig(managerAddr)); !errors.Is(err, ErrAlreadyInitialised) {
		t.Fatalf("expected already initialised, got %v", err)
	}
	if err := h.manager.AddVault(admin, usdcVault); !errors.Is(err, ErrVaultRegistered) {
		t.Fatalf("expected duplicate vault error, got %v", err)
	}
	var unauthorized *nativecommon.UnauthorizedError
	if err := h.manager.SetRiskParams(alice, 6_000, 7_500, 500); !errors.As(err, &unauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := h.manager.SetRiskParams(admin, 8_000, 8_000, 500); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("ltv must stay below the threshold, got %v", err)
	}
	if err := h.manager.SetRiskParams(admin, 6_000, 7_500, 1_000); err != nil {
		t.Fatalf("set risk params: %v", err)
	}
	cfg, err := h.manager.GetConfig()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if cfg.MaxLTV != 6_000 || cfg.LiquidationThreshold != 7_500 || cfg.LiquidationBonus != 1_000 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if len(cfg.Vaults) != 2 || cfg.Vaults[0] != usdcVault || cfg.Vaults[1] != wethVault {
		t.Fatalf("unexpected vaults %v", cfg.Vaults)
	}

	uninit := NewManager(common.HexToAddress("0x01"))
	uninit.SetState(newMockState())
	if _, err := uninit.GetAccount(alice); !errors.Is(err, ErrNotInitialised) {
		t.Fatalf("expected not initialised, got %v", err)
	}
}

func TestAccountValuesSupplyAcrossVaults(t *testing.T) {
	h := newHarness(t)
	h.vaults[wethVault].position(alice).Amount = amount(1, 18)
	h.vaults[usdcVault].position(alice).Amount = amount(10_000, 6)

	total, err := h.manager.GetTotalCollateralValueUSD(alice)
	if err != nil {
		t.Fatalf("collateral: %v", err)
	}
	if total.Cmp(usd(13_500)) != 0 {
		t.Fatalf("expected $13,500, got %s", total)
	}
	acct, err := h.manager.GetAccount(alice)
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if acct.MaxBorrowUSD.Cmp(usd(9_450)) != 0 {
		t.Fatalf("expected max borrow $9,450, got %s", acct.MaxBorrowUSD)
	}
	if acct.HealthFactor != MaxHealthFactor || acct.Liquidatable {
		t.Fatalf("debt-free account reported hf=%d liquidatable=%v", acct.HealthFactor, acct.Liquidatable)
	}
	headroom, err := h.manager.GetMaxBorrow(alice, usdcVault)
	if err != nil {
		t.Fatalf("max borrow: %v", err)
	}
	if headroom.Cmp(amount(9_450, 6)) != 0 {
		t.Fatalf("expected 9,450 USDC, got %s", headroom)
	}
	maxWeth, err := h.manager.GetMaxBorrow(alice, wethVault)
	if err != nil {
		t.Fatalf("max borrow weth: %v", err)
	}
	if maxWeth.Cmp(amount(27, 17)) != 0 {
		t.Fatalf("expected 2.7 WETH, got %s", maxWeth)
	}
}

func TestHealthFactorCountsLocalAndCrossDebt(t *testing.T) {
	h := newHarness(t)
	h.vaults[wethVault].position(alice).Amount = amount(10, 18)
	h.vaults[usdcVault].position(alice).CrossBorrowed = amount(20_000, 6)

	hf, err := h.manager.GetHealthFactor(alice)
	if err != nil {
		t.Fatalf("health factor: %v", err)
	}
	if hf != 14_000 {
		t.Fatalf("expected hf 14000, got %d", hf)
	}
	liquidatable, err := h.manager.IsLiquidatable(alice)
	if err != nil || liquidatable {
		t.Fatalf("healthy account liquidatable=%v err=%v", liquidatable, err)
	}

	h.vaults[wethVault].position(alice).BorrowedAmount = amount(3, 18)
	acct, err := h.manager.GetAccount(alice)
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if acct.DebtUSD.Cmp(usd(30_500)) != 0 || acct.CrossDebtUSD.Cmp(usd(20_000)) != 0 {
		t.Fatalf("unexpected debt %s cross %s", acct.DebtUSD, acct.CrossDebtUSD)
	}
	if !acct.Liquidatable {
		t.Fatalf("hf %d below 1.0 must be liquidatable", acct.HealthFactor)
	}
}

func TestCheckBorrowAndWithdraw(t *testing.T) {
	h := newHarness(t)
	h.vaults[wethVault].position(alice).Amount = amount(1, 18)

	if err := h.manager.CheckBorrow(alice, usdcVault, amount(3_000, 6)); !errors.Is(err, ErrInsufficientCollateral) {
		t.Fatalf("expected insufficient collateral, got %v", err)
	}
	if err := h.manager.CheckBorrow(alice, usdcVault, amount(2_450, 6)); err != nil {
		t.Fatalf("borrow at the limit: %v", err)
	}
	if err := h.manager.CheckWithdraw(alice, wethVault, amount(1, 18)); err != nil {
		t.Fatalf("withdraw without cross debt: %v", err)
	}

	h.vaults[usdcVault].position(alice).CrossBorrowed = amount(2_000, 6)
	if err := h.manager.CheckWithdraw(alice, wethVault, amount(2, 17)); !errors.Is(err, ErrInsufficientCollateral) {
		t.Fatalf("expected insufficient collateral, got %v", err)
	}
	if err := h.manager.CheckWithdraw(alice, common.HexToAddress("0x0f"), amount(1, 18)); err != nil {
		t.Fatalf("unregistered vault must not be checked: %v", err)
	}

	h.vaults[usdcVault].staked[alice] = big.NewInt(1)
	if err := h.manager.CheckBorrow(alice, usdcVault, big.NewInt(1)); !errors.Is(err, ErrStakedCollateral) {
		t.Fatalf("expected staked collateral error, got %v", err)
	}
}

func TestPledgeAndRelease(t *testing.T) {
	h := newHarness(t)
	if err := h.manager.Pledge(alice); err != nil {
		t.Fatalf("pledge: %v", err)
	}
	for addr, v := range h.vaults {
		if !v.pledged[alice] {
			t.Fatalf("vault %s not pledged", addr.Hex())
		}
	}
	h.vaults[wethVault].position(alice).CrossBorrowed = big.NewInt(1)
	if err := h.manager.ReleaseIfClear(alice); err != nil {
		t.Fatalf("release: %v", err)
	}
	if !h.vaults[usdcVault].pledged[alice] {
		t.Fatalf("pledge lifted while cross debt remains")
	}
	h.vaults[wethVault].position(alice).CrossBorrowed = big.NewInt(0)
	if err := h.manager.ReleaseIfClear(alice); err != nil {
		t.Fatalf("release: %v", err)
	}
	for addr, v := range h.vaults {
		if v.pledged[alice] {
			t.Fatalf("vault %s still pledged", addr.Hex())
		}
	}
}

func TestLiquidateSeizesDebtPlusBonus(t *testing.T) {
	h := newHarness(t)
	h.vaults[usdcVault].position(alice).Amount = amount(1_000, 6)
	h.vaults[wethVault].position(alice).Amount = amount(10, 18)
	h.vaults[usdcVault].position(alice).CrossBorrowed = amount(20_000, 6)

	if _, err := h.manager.Liquidate(keeper, alice, usdcVault); !errors.Is(err, ErrHealthy) {
		t.Fatalf("expected healthy, got %v", err)
	}
	if err := h.manager.SetPrice(admin, wethToken, usd(2_000)); err != nil {
		t.Fatalf("price drop: %v", err)
	}
	if _, err := h.manager.Liquidate(keeper, alice, wethVault); !errors.Is(err, ErrNoCrossDebt) {
		t.Fatalf("expected no cross debt in weth vault, got %v", err)
	}
	result, err := h.manager.Liquidate(keeper, alice, usdcVault)
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	if result.Repaid.Cmp(amount(20_000, 6)) != 0 {
		t.Fatalf("expected full repayment, got %s", result.Repaid)
	}
	if result.SeizedUSD.Cmp(usd(21_000)) != 0 || len(result.Seized) != 2 {
		t.Fatalf("unexpected seizure %s across %d vaults", result.SeizedUSD, len(result.Seized))
	}
	if got := h.vaults[usdcVault].seized[keeper]; got.Cmp(amount(1_000, 6)) != 0 {
		t.Fatalf("expected the usdc supply first, got %s", got)
	}
	if got := h.vaults[wethVault].seized[keeper]; got.Cmp(amount(10, 18)) != 0 {
		t.Fatalf("expected the whole weth supply, got %s", got)
	}
	if h.vaults[usdcVault].position(alice).CrossDebt().Sign() != 0 {
		t.Fatalf("cross debt left after liquidation")
	}
}

func TestFormatHealthFactor(t *testing.T) {
	cases := map[uint64]string{
		14_000:          "1.4000",
		9_600:           "0.9600",
		MaxHealthFactor: "max",
	}
	for hf, want := range cases {
		if got := FormatHealthFactor(hf); got != want {
			t.Fatalf("FormatHealthFactor(%d) = %q, want %q", hf, got, want)
		}
	}
}
