package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"cantorfi/native/collateral"
)

type collateralConfigResponse struct {
	Manager              string   `json:"manager"`
	MaxLTV               uint64   `json:"maxLtv"`
	LiquidationThreshold uint64   `json:"liquidationThreshold"`
	LiquidationBonus     uint64   `json:"liquidationBonus"`
	MaxPriceAgeSeconds   uint64   `json:"maxPriceAgeSeconds"`
	MaxPriceDeviationBps uint64   `json:"maxPriceDeviationBps"`
	Vaults               []string `json:"vaults"`
}

type collateralAccountResponse struct {
	User          string `json:"user"`
	CollateralUSD Amount `json:"collateralUsd"`
	DebtUSD       Amount `json:"debtUsd"`
	CrossDebtUSD  Amount `json:"crossDebtUsd"`
	MaxBorrowUSD  Amount `json:"maxBorrowUsd"`
	HealthFactor  string `json:"healthFactor"`
	Liquidatable  bool   `json:"liquidatable"`
}

func (s *Server) getCollateral(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.rt.CollateralConfig(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	vaults := make([]string, 0, len(cfg.Vaults))
	for _, addr := range cfg.Vaults {
		vaults = append(vaults, addr.Hex())
	}
	writeJSON(w, http.StatusOK, collateralConfigResponse{
		Manager:              cfg.Address.Hex(),
		MaxLTV:               cfg.MaxLTV,
		LiquidationThreshold: cfg.LiquidationThreshold,
		LiquidationBonus:     cfg.LiquidationBonus,
		MaxPriceAgeSeconds:   cfg.Oracle.MaxAgeSeconds,
		MaxPriceDeviationBps: cfg.Oracle.MaxDeviationBps,
		Vaults:               vaults,
	})
}

func (s *Server) getCollateralAccount(w http.ResponseWriter, r *http.Request) {
	user, err := parseAddress(chi.URLParam(r, "user"), "user")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.rt.CollateralAccount(r.Context(), user)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	acct := view.Account
	writeJSON(w, http.StatusOK, collateralAccountResponse{
		User:          user.Hex(),
		CollateralUSD: newAmount(acct.CollateralUSD, collateral.PriceDecimals),
		DebtUSD:       newAmount(acct.DebtUSD, collateral.PriceDecimals),
		CrossDebtUSD:  newAmount(acct.CrossDebtUSD, collateral.PriceDecimals),
		MaxBorrowUSD:  newAmount(acct.MaxBorrowUSD, collateral.PriceDecimals),
		HealthFactor:  collateral.FormatHealthFactor(acct.HealthFactor),
		Liquidatable:  acct.Liquidatable,
	})
}

func (s *Server) getPrice(w http.ResponseWriter, r *http.Request) {
	tok, err := parseAddress(chi.URLParam(r, "token"), "token")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	feed, err := s.rt.CollateralPrice(r.Context(), tok)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":     tok.Hex(),
		"price":     newAmount(feed.Price, collateral.PriceDecimals),
		"updatedAt": feed.UpdatedAt,
	})
}

// setPrice takes the price in USD, as a raw eight-decimal integer or a
// display value.
func (s *Server) setPrice(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req amountInput
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	tok, err := parseAddress(chi.URLParam(r, "token"), "token")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	price, err := req.resolve(collateral.PriceDecimals)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.rt.SetCollateralPrice(r.Context(), caller, tok, price); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"price": newAmount(price, collateral.PriceDecimals)})
}

func (s *Server) getMaxBorrow(w http.ResponseWriter, r *http.Request) {
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
	headroom, err := s.rt.MaxBorrow(r.Context(), user, addr)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	debt, err := s.rt.CrossDebt(r.Context(), user, addr)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	d := view.Decimals
	writeJSON(w, http.StatusOK, map[string]any{
		"maxBorrow":         newAmount(headroom, d),
		"crossBorrowed":     newAmount(debt.Principal, d),
		"crossInterest":     newAmount(debt.Interest, d),
		"crossCollateral":   view.Info.CrossCollateral,
		"collateralManager": view.Info.CollateralManager.Hex(),
	})
}

func (s *Server) crossBorrow(w http.ResponseWriter, r *http.Request) {
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
	if err := s.rt.CrossCollateralBorrow(r.Context(), caller, view.Info.Address, amount); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"borrowed": newAmount(amount, view.Decimals)})
}

func (s *Server) crossRepay(w http.ResponseWriter, r *http.Request) {
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
	paid, err := s.rt.RepayCrossCollateral(r.Context(), caller, view.Info.Address, amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"repaid": newAmount(paid, view.Decimals)})
}

func (s *Server) crossLiquidate(w http.ResponseWriter, r *http.Request) {
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
	res, err := s.rt.LiquidateCrossCollateral(r.Context(), caller, user, view.Info.Address)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	seized := make([]map[string]any, 0, len(res.Seized))
	for _, sz := range res.Seized {
		seized = append(seized, map[string]any{
			"vault":    sz.Vault.Hex(),
			"amount":   sz.Amount.String(),
			"valueUsd": newAmount(sz.ValueUSD, collateral.PriceDecimals),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"repaid":    newAmount(res.Repaid, view.Decimals),
		"repaidUsd": newAmount(res.RepaidUSD, collateral.PriceDecimals),
		"seizedUsd": newAmount(res.SeizedUSD, collateral.PriceDecimals),
		"seized":    seized,
	})
}

type crossCollateralRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) setCrossCollateral(w http.ResponseWriter, r *http.Request) {
	var req crossCollateralRequest
	caller, view, ok := s.vaultAction(w, r, &req)
	if !ok {
		return
	}
	if err := s.rt.EnableCrossCollateral(r.Context(), caller, view.Info.Address, req.Enabled); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"crossCollateral": req.Enabled})
}
