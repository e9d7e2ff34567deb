package server

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"cantorfi/core/protocol"
	"cantorfi/native/cvt"
	"cantorfi/native/vault"
)

type vaultResponse struct {
	Address                string        `json:"address"`
	ID                     uint64        `json:"id"`
	Token                  string        `json:"token"`
	Symbol                 string        `json:"symbol"`
	Decimals               uint8         `json:"decimals"`
	CVT                    string        `json:"cvt"`
	Treasury               string        `json:"treasury"`
	StakingContract        string        `json:"stakingContract,omitempty"`
	Active                 bool          `json:"active"`
	Paused                 bool          `json:"paused"`
	BorrowRateBps          uint64        `json:"borrowRateBps"`
	BorrowBaseRate         uint64        `json:"borrowBaseRate"`
	BorrowSlope            uint64        `json:"borrowSlope"`
	BorrowSlope2           uint64        `json:"borrowSlope2"`
	MaxBorrowRatio         uint64        `json:"maxBorrowRatio"`
	LiquidationThreshold   uint64        `json:"liquidationThreshold"`
	LiquidationBonus       uint64        `json:"liquidationBonus"`
	UtilizationBps         uint64        `json:"utilizationBps"`
	MaxLiquidity           Amount        `json:"maxLiquidity"`
	TotalSupplied          Amount        `json:"totalSupplied"`
	TotalBorrowed          Amount        `json:"totalBorrowed"`
	AvailableLiquidity     Amount        `json:"availableLiquidity"`
	TotalInterestCollected Amount        `json:"totalInterestCollected"`
	TotalBadDebt           Amount        `json:"totalBadDebt"`
	ProtocolDebt           Amount        `json:"protocolDebt"`
	TotalStakedLiquidity   Amount        `json:"totalStakedLiquidity"`
	Pool                   *poolResponse `json:"pool,omitempty"`
}

func newVaultResponse(v *protocol.VaultView) vaultResponse {
	info, st := v.Info, v.State
	out := vaultResponse{
		Address:                info.Address.Hex(),
		ID:                     info.ID,
		Token:                  info.Token.Hex(),
		Symbol:                 v.TokenSymbol,
		Decimals:               v.Decimals,
		CVT:                    info.CVT.Hex(),
		Treasury:               info.Treasury.Hex(),
		Active:                 info.IsActive,
		Paused:                 info.Paused,
		BorrowRateBps:          v.BorrowRate,
		BorrowBaseRate:         info.BorrowBaseRate,
		BorrowSlope:            info.BorrowSlope,
		BorrowSlope2:           info.BorrowSlope2,
		MaxBorrowRatio:         info.MaxBorrowRatio,
		LiquidationThreshold:   info.EffectiveLiquidationThreshold(),
		LiquidationBonus:       info.LiquidationBonus,
		UtilizationBps:         st.UtilizationRate,
		MaxLiquidity:           newAmount(info.MaxLiquidity, v.Decimals),
		TotalSupplied:          newAmount(st.TotalSupplied, v.Decimals),
		TotalBorrowed:          newAmount(st.TotalBorrowed, v.Decimals),
		AvailableLiquidity:     newAmount(st.AvailableLiquidity, v.Decimals),
		TotalInterestCollected: newAmount(st.TotalInterestCollected, v.Decimals),
		TotalBadDebt:           newAmount(st.TotalBadDebt, v.Decimals),
		ProtocolDebt:           newAmount(st.ProtocolDebt, v.Decimals),
		TotalStakedLiquidity:   newAmount(st.TotalStakedLiquidity, cvt.Decimals),
	}
	if info.StakingContract != (common.Address{}) {
		out.StakingContract = info.StakingContract.Hex()
	}
	if v.Pool != nil {
		pool := newPoolResponse(v.Pool, nil, v.Decimals)
		out.Pool = &pool
	}
	return out
}

type positionResponse struct {
	Vault                     string `json:"vault"`
	User                      string `json:"user"`
	Amount                    Amount `json:"amount"`
	CVTBalance                Amount `json:"cvtBalance"`
	Staked                    Amount `json:"staked"`
	Locked                    bool   `json:"locked"`
	LockEndDate               uint64 `json:"lockEndDate,omitempty"`
	CanWithdrawEarly          bool   `json:"canWithdrawEarly"`
	EarlyWithdrawalFee        uint64 `json:"earlyWithdrawalFee"`
	InterestClaimed           Amount `json:"interestClaimed"`
	InterestPending           Amount `json:"interestPending"`
	BorrowedAmount            Amount `json:"borrowedAmount"`
	BorrowInterestAccumulated Amount `json:"borrowInterestAccumulated"`
	TotalDebt                 Amount `json:"totalDebt"`
	Liquidatable              bool   `json:"liquidatable"`
}

func (s *Server) listVaults(w http.ResponseWriter, r *http.Request) {
	addrs, err := s.rt.Vaults(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]vaultResponse, 0, len(addrs))
	for _, addr := range addrs {
		view, err := s.rt.Vault(r.Context(), addr)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		out = append(out, newVaultResponse(view))
	}
	writeJSON(w, http.StatusOK, map[string]any{"vaults": out})
}

func (s *Server) getVault(w http.ResponseWriter, r *http.Request) {
	addr, err := s.vaultParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.rt.Vault(r.Context(), addr)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newVaultResponse(view))
}

func (s *Server) getPosition(w http.ResponseWriter, r *http.Request) {
	addr, err := s.vaultParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	user, err := parseAddress(chi.URLParam(r, "user"), "user")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.rt.Vault(r.Context(), addr)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	pos, err := s.rt.Position(r.Context(), addr, user)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	d := view.Decimals
	p := pos.Position
	writeJSON(w, http.StatusOK, positionResponse{
		Vault:                     addr.Hex(),
		User:                      user.Hex(),
		Amount:                    newAmount(p.Amount, d),
		CVTBalance:                newAmount(p.CVTBalance, cvt.Decimals),
		Staked:                    newAmount(pos.Staked, cvt.Decimals),
		Locked:                    p.IsLocked,
		LockEndDate:               p.LockEndDate,
		CanWithdrawEarly:          p.Lock.CanWithdrawEarly,
		EarlyWithdrawalFee:        p.Lock.EarlyWithdrawalFee,
		InterestClaimed:           newAmount(p.InterestClaimed, d),
		InterestPending:           newAmount(p.InterestPending, d),
		BorrowedAmount:            newAmount(p.BorrowedAmount, d),
		BorrowInterestAccumulated: newAmount(p.BorrowInterestAccumulated, d),
		TotalDebt:                 newAmount(pos.TotalDebt, d),
		Liquidatable:              pos.Liquidatable,
	})
}

type createVaultRequest struct {
	Token                string `json:"token"`
	Treasury             string `json:"treasury"`
	MaxLiquidity         string `json:"maxLiquidity"`
	BorrowBaseRate       uint64 `json:"borrowBaseRate"`
	BorrowSlope          uint64 `json:"borrowSlope"`
	BorrowSlope2         uint64 `json:"borrowSlope2"`
	MaxBorrowRatio       uint64 `json:"maxBorrowRatio"`
	LiquidationThreshold uint64 `json:"liquidationThreshold"`
	LiquidationBonus     uint64 `json:"liquidationBonus"`
}

// createVault starts from the launch defaults and overrides every non-zero
// field of the request.
func (s *Server) createVault(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req createVaultRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	tok, err := parseAddress(req.Token, "token")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	treasury, err := parseAddress(req.Treasury, "treasury")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	meta, err := s.rt.Token(r.Context(), tok)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	params := vault.DefaultParams(tok, treasury, meta.Decimals)
	if req.MaxLiquidity != "" {
		if params.MaxLiquidity, err = (amountInput{Amount: req.MaxLiquidity}).resolve(meta.Decimals); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	overrideBps(&params.BorrowBaseRate, req.BorrowBaseRate)
	overrideBps(&params.BorrowSlope, req.BorrowSlope)
	overrideBps(&params.BorrowSlope2, req.BorrowSlope2)
	overrideBps(&params.MaxBorrowRatio, req.MaxBorrowRatio)
	overrideBps(&params.LiquidationThreshold, req.LiquidationThreshold)
	overrideBps(&params.LiquidationBonus, req.LiquidationBonus)

	dep, err := s.rt.CreateVault(r.Context(), caller, params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":    dep.ID,
		"vault": dep.Vault.Hex(),
		"cvt":   dep.CVT.Hex(),
	})
}

func overrideBps(dst *uint64, v uint64) {
	if v != 0 {
		*dst = v
	}
}

type lockInput struct {
	DurationSeconds    uint64 `json:"durationSeconds"`
	CanWithdrawEarly   bool   `json:"canWithdrawEarly"`
	EarlyWithdrawalFee uint64 `json:"earlyWithdrawalFee"`
}

type supplyRequest struct {
	amountInput
	Lock *lockInput `json:"lock,omitempty"`
}

// vaultAction resolves the caller, the vault and its underlying decimals
// shared by every vault write.
func (s *Server) vaultAction(w http.ResponseWriter, r *http.Request, body any) (common.Address, *protocol.VaultView, bool) {
	caller, err := callerOf(r)
	if err != nil {
		s.writeError(w, r, err)
		return common.Address{}, nil, false
	}
	if body != nil {
		if err := decodeJSON(w, r, body); err != nil {
			s.writeError(w, r, err)
			return common.Address{}, nil, false
		}
	}
	addr, err := s.vaultParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return common.Address{}, nil, false
	}
	view, err := s.rt.Vault(r.Context(), addr)
	if err != nil {
		s.writeError(w, r, err)
		return common.Address{}, nil, false
	}
	return caller, view, true
}

func (s *Server) supply(w http.ResponseWriter, r *http.Request) {
	var req supplyRequest
	caller, view, ok := s.vaultAction(w, r, &req)
	if !ok {
		return
	}
	amount, err := req.resolve(view.Decimals)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var lock vault.LockConfig
	if req.Lock != nil {
		lock = vault.LockConfig{
			HasLock:             req.Lock.DurationSeconds > 0,
			LockDurationSeconds: req.Lock.DurationSeconds,
			CanWithdrawEarly:    req.Lock.CanWithdrawEarly,
			EarlyWithdrawalFee:  req.Lock.EarlyWithdrawalFee,
		}
	}
	minted, err := s.rt.Supply(r.Context(), caller, view.Info.Address, amount, lock)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cvtMinted": newAmount(minted, cvt.Decimals)})
}

func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	var req amountInput
	caller, view, ok := s.vaultAction(w, r, &req)
	if !ok {
		return
	}
	amount, err := req.resolve(view.Decimals)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	received, err := s.rt.Withdraw(r.Context(), caller, view.Info.Address, amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"received": newAmount(received, view.Decimals)})
}

func (s *Server) claimInterest(w http.ResponseWriter, r *http.Request) {
	caller, view, ok := s.vaultAction(w, r, nil)
	if !ok {
		return
	}
	claimed, err := s.rt.ClaimInterest(r.Context(), caller, view.Info.Address)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"claimed": newAmount(claimed, view.Decimals)})
}

func (s *Server) borrow(w http.ResponseWriter, r *http.Request) {
	var req amountInput
	caller, view, ok := s.vaultAction(w, r, &req)
	if !ok {
		return
	}
	amount, err := req.resolve(view.Decimals)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.rt.Borrow(r.Context(), caller, view.Info.Address, amount); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"borrowed": newAmount(amount, view.Decimals)})
}

func (s *Server) repay(w http.ResponseWriter, r *http.Request) {
	var req amountInput
	caller, view, ok := s.vaultAction(w, r, &req)
	if !ok {
		return
	}
	amount, err := req.resolve(view.Decimals)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	paid, err := s.rt.RepayBorrow(r.Context(), caller, view.Info.Address, amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"repaid": newAmount(paid, view.Decimals)})
}

type liquidateRequest struct {
	User string `json:"user"`
}

func (s *Server) liquidate(w http.ResponseWriter, r *http.Request) {
	var req liquidateRequest
	caller, view, ok := s.vaultAction(w, r, &req)
	if !ok {
		return
	}
	user, err := parseAddress(req.User, "user")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.rt.Liquidate(r.Context(), caller, view.Info.Address, user)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	d := view.Decimals
	writeJSON(w, http.StatusOK, map[string]any{
		"seized":    newAmount(res.Seized, d),
		"bonus":     newAmount(res.Bonus, d),
		"principal": newAmount(res.Principal, d),
		"interest":  newAmount(res.Interest, d),
		"refund":    newAmount(res.Refund, d),
		"badDebt":   newAmount(res.BadDebt, d),
	})
}

func (s *Server) protocolBorrow(w http.ResponseWriter, r *http.Request) {
	var req amountInput
	caller, view, ok := s.vaultAction(w, r, &req)
	if !ok {
		return
	}
	amount, err := req.resolve(view.Decimals)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.rt.ProtocolBorrow(r.Context(), caller, view.Info.Address, amount); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"borrowed": newAmount(amount, view.Decimals)})
}

func (s *Server) protocolRepay(w http.ResponseWriter, r *http.Request) {
	var req amountInput
	caller, view, ok := s.vaultAction(w, r, &req)
	if !ok {
		return
	}
	amount, err := req.resolve(view.Decimals)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.rt.ProtocolRepay(r.Context(), caller, view.Info.Address, amount); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"repaid": newAmount(amount, view.Decimals)})
}

type configureVaultRequest struct {
	Paused          *bool   `json:"paused,omitempty"`
	Active          *bool   `json:"active,omitempty"`
	MaxLiquidity    *string `json:"maxLiquidity,omitempty"`
	BorrowBaseRate  *uint64 `json:"borrowBaseRate,omitempty"`
	BorrowSlope     *uint64 `json:"borrowSlope,omitempty"`
	BorrowSlope2    *uint64 `json:"borrowSlope2,omitempty"`
	Treasury        *string `json:"treasury,omitempty"`
	StakingContract *string `json:"stakingContract,omitempty"`
}

func (s *Server) configureVault(w http.ResponseWriter, r *http.Request) {
	var req configureVaultRequest
	caller, view, ok := s.vaultAction(w, r, &req)
	if !ok {
		return
	}
	action := protocol.VaultAdminAction{Pause: req.Paused, Active: req.Active}
	if req.MaxLiquidity != nil {
		v, err := (amountInput{Amount: *req.MaxLiquidity}).resolve(view.Decimals)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		action.MaxLiquidity = v
	}
	if req.BorrowBaseRate != nil || req.BorrowSlope != nil || req.BorrowSlope2 != nil {
		rates := [3]uint64{view.Info.BorrowBaseRate, view.Info.BorrowSlope, view.Info.BorrowSlope2}
		if req.BorrowBaseRate != nil {
			rates[0] = *req.BorrowBaseRate
		}
		if req.BorrowSlope != nil {
			rates[1] = *req.BorrowSlope
		}
		if req.BorrowSlope2 != nil {
			rates[2] = *req.BorrowSlope2
		}
		action.BorrowRates = &rates
	}
	if req.Treasury != nil {
		addr, err := parseAddress(*req.Treasury, "treasury")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		action.Treasury = &addr
	}
	if req.StakingContract != nil {
		addr, err := parseAddress(*req.StakingContract, "staking")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		action.StakingContract = &addr
	}
	if err := s.rt.ConfigureVault(r.Context(), caller, view.Info.Address, action); err != nil {
		s.writeError(w, r, err)
		return
	}
	updated, err := s.rt.Vault(r.Context(), view.Info.Address)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newVaultResponse(updated))
}

// deployStakingRequest leaves RatioBps zero to use the factory default.
type deployStakingRequest struct {
	RatioBps uint64 `json:"ratioBps"`
}

// deployStaking creates the vault's pool and pairs it in two transactions.
// A failed pairing leaves the pool deployed; repeating the call pairs it
// through the config endpoint.
func (s *Server) deployStaking(w http.ResponseWriter, r *http.Request) {
	var req deployStakingRequest
	caller, view, ok := s.vaultAction(w, r, &req)
	if !ok {
		return
	}
	pool, err := s.rt.DeployStaking(r.Context(), caller, view.Info.Address, req.RatioBps)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.rt.SetStakingContract(r.Context(), caller, view.Info.Address, pool); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"pool": pool.Hex()})
}
