package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"cantorfi/core/protocol"
	"cantorfi/native/token"
	"cantorfi/services/vaultd/journal"
)

type protocolResponse struct {
	Admin             string `json:"admin"`
	Treasury          string `json:"treasury"`
	FeeCollector      string `json:"feeCollector"`
	CollectorTreasury string `json:"collectorTreasury,omitempty"`
	Paused            bool   `json:"paused"`
	SetupFee          uint64 `json:"setupFee"`
	PerformanceFee    uint64 `json:"performanceFee"`
	BorrowFeeRate     uint64 `json:"borrowFeeRate"`
	VaultCount        uint64 `json:"vaultCount"`
}

func (s *Server) getProtocol(w http.ResponseWriter, r *http.Request) {
	p, err := s.rt.Protocol(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := protocolResponse{
		Admin:          p.Admin.Hex(),
		Treasury:       p.Treasury.Hex(),
		FeeCollector:   p.FeeCollector.Hex(),
		Paused:         p.Paused,
		SetupFee:       p.SetupFee,
		PerformanceFee: p.PerformanceFee,
		BorrowFeeRate:  p.BorrowFeeRate,
		VaultCount:     p.VaultCount,
	}
	if c, err := s.rt.Collector(r.Context()); err == nil {
		out.CollectorTreasury = c.Treasury.Hex()
	}
	writeJSON(w, http.StatusOK, out)
}

type updateProtocolRequest struct {
	Setting string `json:"setting"`
	Address string `json:"address"`
	Bps     uint64 `json:"bps"`
}

func (s *Server) updateProtocol(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req updateProtocolRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	update := protocol.ProtocolUpdate{Setting: protocol.ProtocolSetting(strings.TrimSpace(req.Setting)), Bps: req.Bps}
	if req.Address != "" {
		if update.Address, err = parseAddress(req.Address, "setting"); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	if err := s.rt.UpdateProtocol(r.Context(), caller, update); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.getProtocol(w, r)
}

type notifierRequest struct {
	Notifier string `json:"notifier"`
	Granted  bool   `json:"granted"`
}

func (s *Server) setNotifier(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req notifierRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	notifier, err := parseAddress(req.Notifier, "notifier")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.rt.SetNotifier(r.Context(), caller, notifier, req.Granted); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifier": notifier.Hex(), "granted": req.Granted})
}

// tokenParam loads the token named in the path.
func (s *Server) tokenParam(r *http.Request) (*token.Metadata, error) {
	addr, err := parseAddress(chi.URLParam(r, "token"), "token")
	if err != nil {
		return nil, err
	}
	return s.rt.Token(r.Context(), addr)
}

func (s *Server) getFees(w http.ResponseWriter, r *http.Request) {
	meta, err := s.tokenParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	stats, err := s.rt.FeeStats(r.Context(), meta.Address)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":       meta.Address.Hex(),
		"collected":   newAmount(stats.Collected, meta.Decimals),
		"distributed": newAmount(stats.Distributed, meta.Decimals),
		"available":   newAmount(stats.Available, meta.Decimals),
	})
}

func (s *Server) distributeFees(w http.ResponseWriter, r *http.Request) {
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
	meta, err := s.tokenParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	amount, err := req.resolve(meta.Decimals)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.rt.DistributeFees(r.Context(), caller, meta.Address, amount); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"distributed": newAmount(amount, meta.Decimals)})
}

type tokenResponse struct {
	Address     string `json:"address"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Decimals    uint8  `json:"decimals"`
	TotalSupply Amount `json:"totalSupply"`
}

func (s *Server) listTokens(w http.ResponseWriter, r *http.Request) {
	list, err := s.rt.Tokens(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]tokenResponse, 0, len(list))
	for _, meta := range list {
		out = append(out, tokenResponse{
			Address:     meta.Address.Hex(),
			Name:        meta.Name,
			Symbol:      meta.Symbol,
			Decimals:    meta.Decimals,
			TotalSupply: newAmount(meta.TotalSupply, meta.Decimals),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tokens": out})
}

// getBalance also reports the allowance granted to ?spender= when present.
func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	meta, err := s.tokenParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	holder, err := parseAddress(chi.URLParam(r, "holder"), "holder")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	balance, err := s.rt.Balance(r.Context(), meta.Address, holder)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := map[string]any{
		"token":   meta.Address.Hex(),
		"holder":  holder.Hex(),
		"balance": newAmount(balance, meta.Decimals),
	}
	if raw := r.URL.Query().Get("spender"); raw != "" {
		spender, err := parseAddress(raw, "spender")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		allowance, err := s.rt.Allowance(r.Context(), meta.Address, holder, spender)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		out["spender"] = spender.Hex()
		out["allowance"] = newAmount(allowance, meta.Decimals)
	}
	writeJSON(w, http.StatusOK, out)
}

type tokenTransferRequest struct {
	amountInput
	Spender string `json:"spender,omitempty"`
	To      string `json:"to,omitempty"`
}

type tokenOp func(caller common.Address, tok *token.Metadata, counterparty common.Address, req tokenTransferRequest) error

// tokenWrite decodes the common token request shape. field names the
// counterparty attribute the operation reads.
func (s *Server) tokenWrite(field string, op tokenOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := callerOf(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		var req tokenTransferRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		meta, err := s.tokenParam(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		raw := req.To
		if field == "spender" {
			raw = req.Spender
		}
		counterparty, err := parseAddress(raw, field)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := op(caller, meta, counterparty, req); err != nil {
			s.writeError(w, r, err)
			return
		}
		balance, err := s.rt.Balance(r.Context(), meta.Address, caller)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			field:           counterparty.Hex(),
			"callerBalance": newAmount(balance, meta.Decimals),
		})
	}
}

// approve accepts "max" as the amount for an unlimited allowance.
func (s *Server) approve(w http.ResponseWriter, r *http.Request) {
	s.tokenWrite("spender", func(caller common.Address, meta *token.Metadata, spender common.Address, req tokenTransferRequest) error {
		if strings.EqualFold(strings.TrimSpace(req.Amount), "max") {
			return s.rt.Approve(r.Context(), caller, meta.Address, spender, token.MaxAllowance())
		}
		amount, err := req.resolve(meta.Decimals)
		if err != nil {
			return err
		}
		return s.rt.Approve(r.Context(), caller, meta.Address, spender, amount)
	})(w, r)
}

func (s *Server) transfer(w http.ResponseWriter, r *http.Request) {
	s.tokenWrite("to", func(caller common.Address, meta *token.Metadata, to common.Address, req tokenTransferRequest) error {
		amount, err := req.resolve(meta.Decimals)
		if err != nil {
			return err
		}
		return s.rt.Transfer(r.Context(), caller, meta.Address, to, amount)
	})(w, r)
}

func (s *Server) mint(w http.ResponseWriter, r *http.Request) {
	s.tokenWrite("to", func(caller common.Address, meta *token.Metadata, to common.Address, req tokenTransferRequest) error {
		amount, err := req.resolve(meta.Decimals)
		if err != nil {
			return err
		}
		return s.rt.Mint(r.Context(), caller, meta.Address, to, amount)
	})(w, r)
}

type eventResponse struct {
	ID         uint64            `json:"id"`
	EventID    string            `json:"eventId"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	CreatedAt  int64             `json:"createdAt"`
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "event journal disabled", Code: "unavailable"})
		return
	}
	q := r.URL.Query()
	filter := journal.Filter{Type: q.Get("type"), Subject: q.Get("subject")}
	if raw := q.Get("after"); raw != "" {
		after, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			s.writeError(w, r, badRequest("invalid after cursor %q", raw))
			return
		}
		filter.After = after
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			s.writeError(w, r, badRequest("invalid limit %q", raw))
			return
		}
		filter.Limit = limit
	}
	entries, err := s.journal.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]eventResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, eventResponse{
			ID:         entry.ID,
			EventID:    entry.EventID.String(),
			Type:       entry.Type,
			Attributes: entry.Decoded(),
			CreatedAt:  entry.CreatedAt.Unix(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}
