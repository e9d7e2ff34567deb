package collateral

import (
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"cantorfi/core/events"
	nativecommon "cantorfi/native/common"
	"cantorfi/native/vault"
)

type engineState interface {
	nativecommon.RoleView
	SetRole(scope common.Address, role nativecommon.Role, account common.Address, granted bool) error
	GetCollateralConfig(addr common.Address) (*Config, error)
	PutCollateralConfig(cfg *Config) error
	GetPriceFeed(manager, token common.Address) (*PriceFeed, error)
	PutPriceFeed(manager common.Address, feed *PriceFeed) error
}

// Vault is the part of a vault engine the manager drives.
type Vault interface {
	GetVaultInfo() (*vault.Info, error)
	GetUserPosition(user common.Address) (*vault.Position, error)
	StakedAmount(user common.Address) (*big.Int, error)
	PledgeCollateral(caller, user common.Address) error
	ReleaseCollateral(caller, user common.Address) error
	SeizeCollateral(caller, user, recipient common.Address, amount *big.Int) (*big.Int, error)
	RepayCrossCollateral(payer, user common.Address, amount *big.Int) (*big.Int, error)
}

// VaultSource resolves wired vault engines by address.
type VaultSource interface {
	CollateralVault(addr common.Address) (Vault, error)
}

// TokenLedger reports token decimals.
type TokenLedger interface {
	Decimals(token common.Address) (uint8, error)
}

// Manager values supply across vaults in USD and enforces the loan-to-value
// and health factor limits of cross-collateral loans.
type Manager struct {
	address common.Address
	state   engineState
	vaults  VaultSource
	tokens  TokenLedger
	oracle  Oracle
	emitter events.Emitter
	clock   func() time.Time
}

// NewManager constructs a manager bound to address.
func NewManager(address common.Address) *Manager {
	return &Manager{address: address, emitter: events.NoopEmitter{}, clock: time.Now}
}

// Address returns the manager address.
func (m *Manager) Address() common.Address { return m.address }

// SetState wires the manager to the external persistence layer.
func (m *Manager) SetState(state engineState) { m.state = state }

// SetVaults wires the vault resolver.
func (m *Manager) SetVaults(vaults VaultSource) { m.vaults = vaults }

func (m *Manager) SetTokens(tokens TokenLedger) { m.tokens = tokens }

// SetOracle replaces the stored price feeds with another price source.
func (m *Manager) SetOracle(oracle Oracle) { m.oracle = oracle }

// SetEmitter configures the event sink.
func (m *Manager) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	m.emitter = emitter
}

// SetClock overrides the time source.
func (m *Manager) SetClock(clock func() time.Time) {
	if clock != nil {
		m.clock = clock
	}
}

func (m *Manager) now() uint64 {
	ts := m.clock().Unix()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

// Initialize persists cfg and grants admin to admin.
func (m *Manager) Initialize(admin common.Address, cfg *Config) error {
	if m == nil || m.state == nil {
		return ErrNilState
	}
	if cfg == nil || cfg.Address != m.address || admin == (common.Address{}) {
		return ErrInvalidParams
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	existing, err := m.state.GetCollateralConfig(m.address)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrAlreadyInitialised
	}
	if err := m.state.PutCollateralConfig(cfg.Clone()); err != nil {
		return err
	}
	return m.state.SetRole(m.address, nativecommon.RoleAdmin, admin, true)
}

// AddVault counts the supply of vaultAddr as collateral.
func (m *Manager) AddVault(caller, vaultAddr common.Address) error {
	cfg, err := m.loadAdmin(caller)
	if err != nil {
		return err
	}
	if cfg.Registered(vaultAddr) {
		return ErrVaultRegistered
	}
	v, err := m.vaults.CollateralVault(vaultAddr)
	if err != nil {
		return err
	}
	if _, err := v.GetVaultInfo(); err != nil {
		return err
	}
	cfg.Vaults = append(cfg.Vaults, vaultAddr)
	if err := m.state.PutCollateralConfig(cfg); err != nil {
		return err
	}
	m.emitConfigured(caller, "vault", vaultAddr.Hex())
	return nil
}

// SetRiskParams updates the loan-to-value limit, the liquidation threshold
// and the liquidation bonus, all in basis points.
func (m *Manager) SetRiskParams(caller common.Address, maxLTV, threshold, bonus uint64) error {
	cfg, err := m.loadAdmin(caller)
	if err != nil {
		return err
	}
	cfg.MaxLTV = maxLTV
	cfg.LiquidationThreshold = threshold
	cfg.LiquidationBonus = bonus
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := m.state.PutCollateralConfig(cfg); err != nil {
		return err
	}
	m.emitConfigured(caller, "riskParams", fmt.Sprintf("%d/%d/%d", maxLTV, threshold, bonus))
	return nil
}

// SetOracleConfig updates the price freshness and deviation bounds.
func (m *Manager) SetOracleConfig(caller common.Address, oracle OracleConfig) error {
	cfg, err := m.loadAdmin(caller)
	if err != nil {
		return err
	}
	cfg.Oracle = oracle
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := m.state.PutCollateralConfig(cfg); err != nil {
		return err
	}
	m.emitConfigured(caller, "oracle", fmt.Sprintf("%d/%d", oracle.MaxAgeSeconds, oracle.MaxDeviationBps))
	return nil
}

// SetPrice records the USD price of token with PriceDecimals decimals. Only
// manager admins may push prices.
func (m *Manager) SetPrice(caller, token common.Address, price *big.Int) error {
	cfg, err := m.loadAdmin(caller)
	if err != nil {
		return err
	}
	if price == nil || price.Sign() <= 0 {
		return ErrInvalidPrice
	}
	prev, err := m.state.GetPriceFeed(m.address, token)
	if err != nil {
		return err
	}
	if prev != nil && !withinDeviation(prev.Price, price, cfg.Oracle.MaxDeviationBps) {
		return ErrPriceDeviation
	}
	feed := &PriceFeed{Token: token, Price: new(big.Int).Set(price), UpdatedAt: m.now()}
	if err := m.state.PutPriceFeed(m.address, feed); err != nil {
		return err
	}
	m.emitter.Emit(events.CollateralPriceUpdated{
		Manager:   m.address,
		Token:     token,
		Price:     feed.Price,
		UpdatedAt: feed.UpdatedAt,
	})
	return nil
}

// GetConfig returns a copy of the manager parameters.
func (m *Manager) GetConfig() (*Config, error) {
	return m.load()
}

// GetPriceFeed returns the stored feed of token, nil when none was pushed.
func (m *Manager) GetPriceFeed(token common.Address) (*PriceFeed, error) {
	if _, err := m.load(); err != nil {
		return nil, err
	}
	return m.state.GetPriceFeed(m.address, token)
}

// GetUSDValue converts amount of token into USD at the oracle price.
func (m *Manager) GetUSDValue(token common.Address, amount *big.Int) (*big.Int, error) {
	cfg, err := m.load()
	if err != nil {
		return nil, err
	}
	price, decimals, err := m.quote(cfg, token)
	if err != nil {
		return nil, err
	}
	return USDValue(amount, price, decimals), nil
}

// GetAccount values user's supply and debt across the registered vaults.
func (m *Manager) GetAccount(user common.Address) (*Account, error) {
	cfg, err := m.load()
	if err != nil {
		return nil, err
	}
	return m.account(cfg, user)
}

// GetTotalCollateralValueUSD returns the USD value of user's supply across
// the registered vaults.
func (m *Manager) GetTotalCollateralValueUSD(user common.Address) (*big.Int, error) {
	acct, err := m.GetAccount(user)
	if err != nil {
		return nil, err
	}
	return acct.CollateralUSD, nil
}

// GetHealthFactor returns collateral*threshold/debt in basis points.
func (m *Manager) GetHealthFactor(user common.Address) (uint64, error) {
	acct, err := m.GetAccount(user)
	if err != nil {
		return 0, err
	}
	return acct.HealthFactor, nil
}

// IsLiquidatable reports whether user's cross-collateral debt may be
// liquidated.
func (m *Manager) IsLiquidatable(user common.Address) (bool, error) {
	acct, err := m.GetAccount(user)
	if err != nil {
		return false, err
	}
	return acct.Liquidatable, nil
}

// GetMaxBorrow returns how much more user may borrow from vaultAddr, in the
// vault's token units.
func (m *Manager) GetMaxBorrow(user, vaultAddr common.Address) (*big.Int, error) {
	cfg, err := m.load()
	if err != nil {
		return nil, err
	}
	acct, err := m.account(cfg, user)
	if err != nil {
		return nil, err
	}
	headroom := new(big.Int).Sub(acct.MaxBorrowUSD, acct.DebtUSD)
	if headroom.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	info, err := m.vaultInfo(vaultAddr)
	if err != nil {
		return nil, err
	}
	price, decimals, err := m.quote(cfg, info.Token)
	if err != nil {
		return nil, err
	}
	return FromUSD(headroom, price, decimals), nil
}

// CheckBorrow rejects a borrow of amount from vaultAddr that would lift
// user's debt above the loan-to-value limit of their collateral.
func (m *Manager) CheckBorrow(user, vaultAddr common.Address, amount *big.Int) error {
	cfg, err := m.load()
	if err != nil {
		return err
	}
	acct, err := m.account(cfg, user)
	if err != nil {
		return err
	}
	if acct.staked {
		return ErrStakedCollateral
	}
	info, err := m.vaultInfo(vaultAddr)
	if err != nil {
		return err
	}
	price, decimals, err := m.quote(cfg, info.Token)
	if err != nil {
		return err
	}
	debt := new(big.Int).Add(acct.DebtUSD, USDValue(amount, price, decimals))
	if debt.Cmp(acct.MaxBorrowUSD) > 0 {
		return ErrInsufficientCollateral
	}
	return nil
}

// CheckWithdraw rejects a withdrawal of amount from vaultAddr that would
// leave user's cross-collateral debt above the loan-to-value limit.
func (m *Manager) CheckWithdraw(user, vaultAddr common.Address, amount *big.Int) error {
	cfg, err := m.load()
	if err != nil {
		return err
	}
	if !cfg.Registered(vaultAddr) {
		return nil
	}
	acct, err := m.account(cfg, user)
	if err != nil {
		return err
	}
	if acct.CrossDebtUSD.Sign() == 0 {
		return nil
	}
	info, err := m.vaultInfo(vaultAddr)
	if err != nil {
		return err
	}
	price, decimals, err := m.quote(cfg, info.Token)
	if err != nil {
		return err
	}
	remaining := new(big.Int).Sub(acct.CollateralUSD, USDValue(amount, price, decimals))
	if remaining.Sign() < 0 || acct.DebtUSD.Cmp(applyBps(remaining, cfg.MaxLTV)) > 0 {
		return ErrInsufficientCollateral
	}
	return nil
}

// Pledge marks user's supply in every registered vault as collateral and
// escrows its CVT.
func (m *Manager) Pledge(user common.Address) error {
	cfg, err := m.load()
	if err != nil {
		return err
	}
	for _, addr := range cfg.Vaults {
		v, err := m.vaults.CollateralVault(addr)
		if err != nil {
			return err
		}
		if err := v.PledgeCollateral(m.address, user); err != nil {
			return err
		}
	}
	return nil
}

// ReleaseIfClear lifts user's pledges once no registered vault holds
// cross-collateral debt for them.
func (m *Manager) ReleaseIfClear(user common.Address) error {
	cfg, err := m.load()
	if err != nil {
		return err
	}
	vaults := make([]Vault, 0, len(cfg.Vaults))
	for _, addr := range cfg.Vaults {
		v, err := m.vaults.CollateralVault(addr)
		if err != nil {
			return err
		}
		pos, err := v.GetUserPosition(user)
		if err != nil {
			return err
		}
		if pos.CrossDebt().Sign() > 0 {
			return nil
		}
		vaults = append(vaults, v)
	}
	for _, v := range vaults {
		if err := v.ReleaseCollateral(m.address, user); err != nil {
			return err
		}
	}
	return nil
}

// Liquidate closes user's cross-collateral debt in debtVault. The liquidator
// receives supply worth the debt plus the liquidation bonus, taken from the
// registered vaults in order, and repays the debt in full.
func (m *Manager) Liquidate(caller, user, debtVault common.Address) (*LiquidationResult, error) {
	cfg, err := m.load()
	if err != nil {
		return nil, err
	}
	acct, err := m.account(cfg, user)
	if err != nil {
		return nil, err
	}
	if !acct.Liquidatable {
		return nil, ErrHealthy
	}
	dv, err := m.vaults.CollateralVault(debtVault)
	if err != nil {
		return nil, err
	}
	pos, err := dv.GetUserPosition(user)
	if err != nil {
		return nil, err
	}
	owed := pos.CrossDebt()
	if owed.Sign() == 0 {
		return nil, ErrNoCrossDebt
	}
	info, err := dv.GetVaultInfo()
	if err != nil {
		return nil, err
	}
	price, decimals, err := m.quote(cfg, info.Token)
	if err != nil {
		return nil, err
	}
	owedUSD := USDValue(owed, price, decimals)
	target := new(big.Int).Add(owedUSD, applyBps(owedUSD, cfg.LiquidationBonus))

	result := &LiquidationResult{DebtVault: debtVault, RepaidUSD: owedUSD, SeizedUSD: big.NewInt(0)}
	for _, addr := range cfg.Vaults {
		if target.Sign() <= 0 {
			break
		}
		seizure, err := m.seize(cfg, addr, caller, user, target)
		if err != nil {
			return nil, err
		}
		if seizure == nil {
			continue
		}
		target.Sub(target, minBig(seizure.ValueUSD, target))
		result.SeizedUSD.Add(result.SeizedUSD, seizure.ValueUSD)
		result.Seized = append(result.Seized, *seizure)
	}
	repaid, err := dv.RepayCrossCollateral(caller, user, owed)
	if err != nil {
		return nil, err
	}
	result.Repaid = repaid
	m.emitter.Emit(events.CollateralLiquidated{
		Manager:    m.address,
		User:       user,
		Liquidator: caller,
		DebtVault:  debtVault,
		Repaid:     repaid,
		RepaidUSD:  owedUSD,
		SeizedUSD:  result.SeizedUSD,
	})
	return result, nil
}

// seize takes up to targetUSD of user's supply in addr for recipient.
func (m *Manager) seize(cfg *Config, addr, recipient, user common.Address, targetUSD *big.Int) (*Seizure, error) {
	v, err := m.vaults.CollateralVault(addr)
	if err != nil {
		return nil, err
	}
	pos, err := v.GetUserPosition(user)
	if err != nil {
		return nil, err
	}
	if pos.Amount.Sign() == 0 {
		return nil, nil
	}
	info, err := v.GetVaultInfo()
	if err != nil {
		return nil, err
	}
	price, decimals, err := m.quote(cfg, info.Token)
	if err != nil {
		return nil, err
	}
	take := pos.Amount
	if USDValue(take, price, decimals).Cmp(targetUSD) > 0 {
		take = minBig(FromUSD(targetUSD, price, decimals), pos.Amount)
	}
	if take.Sign() == 0 {
		return nil, nil
	}
	seized, err := v.SeizeCollateral(m.address, user, recipient, take)
	if err != nil {
		return nil, err
	}
	return &Seizure{Vault: addr, Amount: seized, ValueUSD: USDValue(seized, price, decimals)}, nil
}

func (m *Manager) account(cfg *Config, user common.Address) (*Account, error) {
	acct := &Account{
		CollateralUSD: big.NewInt(0),
		DebtUSD:       big.NewInt(0),
		CrossDebtUSD:  big.NewInt(0),
	}
	for _, addr := range cfg.Vaults {
		v, err := m.vaults.CollateralVault(addr)
		if err != nil {
			return nil, err
		}
		pos, err := v.GetUserPosition(user)
		if err != nil {
			return nil, err
		}
		staked, err := v.StakedAmount(user)
		if err != nil {
			return nil, err
		}
		if staked.Sign() > 0 {
			acct.staked = true
		}
		cross := pos.CrossDebt()
		debt := new(big.Int).Add(pos.Debt(), cross)
		if pos.Amount.Sign() == 0 && debt.Sign() == 0 {
			continue
		}
		info, err := v.GetVaultInfo()
		if err != nil {
			return nil, err
		}
		price, decimals, err := m.quote(cfg, info.Token)
		if err != nil {
			return nil, err
		}
		acct.CollateralUSD.Add(acct.CollateralUSD, USDValue(pos.Amount, price, decimals))
		acct.DebtUSD.Add(acct.DebtUSD, USDValue(debt, price, decimals))
		acct.CrossDebtUSD.Add(acct.CrossDebtUSD, USDValue(cross, price, decimals))
	}
	acct.MaxBorrowUSD = applyBps(acct.CollateralUSD, cfg.MaxLTV)
	acct.HealthFactor = healthFactor(acct.CollateralUSD, acct.DebtUSD, cfg.LiquidationThreshold)
	acct.Liquidatable = acct.CrossDebtUSD.Sign() > 0 && acct.HealthFactor < maxBps
	return acct, nil
}

// healthFactor returns collateral*threshold/debt in basis points, where
// 10000 is the liquidation boundary.
func healthFactor(collateral, debt *big.Int, threshold uint64) uint64 {
	if debt.Sign() <= 0 {
		return MaxHealthFactor
	}
	hf := new(big.Int).Mul(collateral, new(big.Int).SetUint64(threshold))
	hf.Quo(hf, debt)
	if !hf.IsUint64() {
		return MaxHealthFactor
	}
	return hf.Uint64()
}

func (m *Manager) quote(cfg *Config, token common.Address) (*big.Int, uint8, error) {
	oracle := m.oracle
	if oracle == nil {
		oracle = NewFeedOracle(m.address, m.state, cfg.Oracle.MaxAgeSeconds, m.now)
	}
	price, err := oracle.Price(token)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s", err, token.Hex())
	}
	decimals, err := m.tokens.Decimals(token)
	if err != nil {
		return nil, 0, err
	}
	return price, decimals, nil
}

func (m *Manager) vaultInfo(addr common.Address) (*vault.Info, error) {
	v, err := m.vaults.CollateralVault(addr)
	if err != nil {
		return nil, err
	}
	return v.GetVaultInfo()
}

func (m *Manager) load() (*Config, error) {
	if m == nil || m.state == nil {
		return nil, ErrNilState
	}
	cfg, err := m.state.GetCollateralConfig(m.address)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, ErrNotInitialised
	}
	return cfg, nil
}

func (m *Manager) loadAdmin(caller common.Address) (*Config, error) {
	cfg, err := m.load()
	if err != nil {
		return nil, err
	}
	if err := nativecommon.RequireRole(m.state, m.address, nativecommon.RoleAdmin, caller); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (m *Manager) emitConfigured(caller common.Address, field, value string) {
	m.emitter.Emit(events.CollateralConfigured{Manager: m.address, Caller: caller, Field: field, Value: value})
}

func applyBps(amount *big.Int, bps uint64) *big.Int {
	out := new(big.Int).Mul(amount, new(big.Int).SetUint64(bps))
	return out.Quo(out, big.NewInt(maxBps))
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

// FormatHealthFactor renders a health factor in basis points as a decimal
// ratio, "max" for accounts without debt.
func FormatHealthFactor(hf uint64) string {
	if hf == MaxHealthFactor {
		return "max"
	}
	return strconv.FormatUint(hf/maxBps, 10) + "." + fmt.Sprintf("%04d", hf%maxBps)
}
