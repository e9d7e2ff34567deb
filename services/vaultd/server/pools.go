package server

import (
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"cantorfi/native/cvt"
	"cantorfi/native/staking"
)

type poolResponse struct {
	Address                string  `json:"address"`
	Vault                  string  `json:"vault"`
	CVT                    string  `json:"cvt"`
	Underlying             string  `json:"underlying"`
	MaxProtocolBorrowRatio uint64  `json:"maxProtocolBorrowRatio"`
	TotalStaked            Amount  `json:"totalStaked"`
	RewardPerToken         string  `json:"rewardPerToken"`
	TotalDistributed       Amount  `json:"totalDistributed"`
	StakersCount           uint64  `json:"stakersCount"`
	CreatedAt              uint64  `json:"createdAt"`
	MaxProtocolBorrow      *Amount `json:"maxProtocolBorrow,omitempty"`
}

// newPoolResponse renders staked amounts in CVT units and rewards in the
// underlying token.
func newPoolResponse(p *staking.Pool, allowance *big.Int, decimals uint8) poolResponse {
	out := poolResponse{
		Address:                p.Address.Hex(),
		Vault:                  p.Vault.Hex(),
		CVT:                    p.CVT.Hex(),
		Underlying:             p.Underlying.Hex(),
		MaxProtocolBorrowRatio: p.MaxProtocolBorrowRatio,
		TotalStaked:            newAmount(p.TotalStaked, cvt.Decimals),
		RewardPerToken:         bigString(p.RewardPerToken),
		TotalDistributed:       newAmount(p.TotalDistributed, decimals),
		StakersCount:           p.StakersCount,
		CreatedAt:              p.CreatedAt,
	}
	if allowance != nil {
		a := newAmount(allowance, decimals)
		out.MaxProtocolBorrow = &a
	}
	return out
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

type stakeResponse struct {
	Pool           string `json:"pool"`
	User           string `json:"user"`
	Amount         Amount `json:"amount"`
	LockEndTime    uint64 `json:"lockEndTime"`
	LockExpired    bool   `json:"lockExpired"`
	PendingRewards Amount `json:"pendingRewards"`
	ClaimedRewards Amount `json:"claimedRewards"`
	StakedAt       uint64 `json:"stakedAt"`
}

// poolParam loads the pool named in the path with its underlying decimals.
func (s *Server) poolParam(r *http.Request) (*staking.Pool, *big.Int, uint8, error) {
	addr, err := parseAddress(chi.URLParam(r, "pool"), "pool")
	if err != nil {
		return nil, nil, 0, err
	}
	pool, allowance, err := s.rt.Pool(r.Context(), addr)
	if err != nil {
		return nil, nil, 0, err
	}
	meta, err := s.rt.Token(r.Context(), pool.Underlying)
	if err != nil {
		return nil, nil, 0, err
	}
	return pool, allowance, meta.Decimals, nil
}

func (s *Server) getPool(w http.ResponseWriter, r *http.Request) {
	pool, allowance, decimals, err := s.poolParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPoolResponse(pool, allowance, decimals))
}

func (s *Server) getStake(w http.ResponseWriter, r *http.Request) {
	pool, _, decimals, err := s.poolParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	user, err := parseAddress(chi.URLParam(r, "user"), "user")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.rt.StakePosition(r.Context(), pool.Address, user)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	pos := view.Position
	writeJSON(w, http.StatusOK, stakeResponse{
		Pool:           pool.Address.Hex(),
		User:           user.Hex(),
		Amount:         newAmount(pos.Amount, cvt.Decimals),
		LockEndTime:    pos.LockEndTime,
		LockExpired:    view.LockExpired,
		PendingRewards: newAmount(view.Pending, decimals),
		ClaimedRewards: newAmount(pos.ClaimedRewards, decimals),
		StakedAt:       pos.StakedAt,
	})
}

type stakeRequest struct {
	amountInput
	LockSeconds uint64 `json:"lockSeconds"`
}

func (s *Server) poolAction(w http.ResponseWriter, r *http.Request, body any) (common.Address, *staking.Pool, uint8, bool) {
	caller, err := callerOf(r)
	if err != nil {
		s.writeError(w, r, err)
		return common.Address{}, nil, 0, false
	}
	if body != nil {
		if err := decodeJSON(w, r, body); err != nil {
			s.writeError(w, r, err)
			return common.Address{}, nil, 0, false
		}
	}
	pool, _, decimals, err := s.poolParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return common.Address{}, nil, 0, false
	}
	return caller, pool, decimals, true
}

func (s *Server) stake(w http.ResponseWriter, r *http.Request) {
	var req stakeRequest
	caller, pool, _, ok := s.poolAction(w, r, &req)
	if !ok {
		return
	}
	amount, err := req.resolve(cvt.Decimals)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	lock := time.Duration(req.LockSeconds) * time.Second
	if err := s.rt.Stake(r.Context(), caller, pool.Address, amount, lock); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"staked": newAmount(amount, cvt.Decimals)})
}

func (s *Server) unstake(w http.ResponseWriter, r *http.Request) {
	caller, pool, _, ok := s.poolAction(w, r, nil)
	if !ok {
		return
	}
	amount, err := s.rt.Unstake(r.Context(), caller, pool.Address)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"unstaked": newAmount(amount, cvt.Decimals)})
}

func (s *Server) claimRewards(w http.ResponseWriter, r *http.Request) {
	caller, pool, decimals, ok := s.poolAction(w, r, nil)
	if !ok {
		return
	}
	amount, err := s.rt.ClaimRewards(r.Context(), caller, pool.Address)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"claimed": newAmount(amount, decimals)})
}

type ratioRequest struct {
	RatioBps uint64 `json:"ratioBps"`
}

func (s *Server) setRatio(w http.ResponseWriter, r *http.Request) {
	var req ratioRequest
	caller, pool, _, ok := s.poolAction(w, r, &req)
	if !ok {
		return
	}
	if err := s.rt.SetMaxProtocolBorrowRatio(r.Context(), caller, pool.Address, req.RatioBps); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ratioBps": req.RatioBps})
}
