package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"cantorfi/core/protocol"
	"cantorfi/gateway/middleware"
	"cantorfi/services/vaultd/journal"
)

const (
	maxBodyBytes = 1 << 20

	// ScopeWrite is required on every state-changing request.
	ScopeWrite = "vault:write"

	limitReads  = "reads"
	limitWrites = "writes"
)

// EventLog is the read side of the event journal.
type EventLog interface {
	List(ctx context.Context, filter journal.Filter) ([]journal.Entry, error)
}

// Config captures the dependencies of the HTTP API.
type Config struct {
	Runtime       *protocol.Runtime
	Journal       EventLog
	Hub           *Hub
	Authenticator *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
	CORS          middleware.CORSConfig
	Logger        *slog.Logger
}

// Server exposes the vault runtime over JSON HTTP.
type Server struct {
	rt             *protocol.Runtime
	journal        EventLog
	hub            *Hub
	logger         *slog.Logger
	originPatterns []string

	router http.Handler
}

func New(cfg Config) (*Server, error) {
	if cfg.Runtime == nil {
		return nil, errors.New("server: runtime required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Authenticator == nil {
		cfg.Authenticator = middleware.NewAuthenticator(middleware.AuthConfig{}, cfg.Logger)
	}
	origins := cfg.CORS.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	srv := &Server{
		rt:             cfg.Runtime,
		journal:        cfg.Journal,
		hub:            cfg.Hub,
		logger:         cfg.Logger,
		originPatterns: originHosts(origins),
	}
	srv.router = srv.buildRouter(cfg)
	return srv, nil
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(cfg.CORS))
	if cfg.Observability != nil {
		r.Use(cfg.Observability.Middleware)
		r.Method(http.MethodGet, "/metrics", cfg.Observability.MetricsHandler())
	}
	limit := func(key string) func(http.Handler) http.Handler {
		if cfg.RateLimiter == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return cfg.RateLimiter.Middleware(key)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/v1", func(api chi.Router) {
		api.Group(func(read chi.Router) {
			read.Use(limit(limitReads))
			read.Get("/protocol", s.getProtocol)
			read.Get("/vaults", s.listVaults)
			read.Get("/vaults/{vault}", s.getVault)
			read.Get("/vaults/{vault}/positions/{user}", s.getPosition)
			read.Get("/vaults/{vault}/max-borrow/{user}", s.getMaxBorrow)
			read.Get("/collateral", s.getCollateral)
			read.Get("/collateral/accounts/{user}", s.getCollateralAccount)
			read.Get("/collateral/prices/{token}", s.getPrice)
			read.Get("/pools/{pool}", s.getPool)
			read.Get("/pools/{pool}/stakes/{user}", s.getStake)
			read.Get("/fees/{token}", s.getFees)
			read.Get("/tokens", s.listTokens)
			read.Get("/tokens/{token}/balances/{holder}", s.getBalance)
			read.Get("/events", s.listEvents)
			read.Get("/stream", s.handleStream)
		})
		api.Group(func(write chi.Router) {
			write.Use(cfg.Authenticator.Middleware(ScopeWrite))
			write.Use(limit(limitWrites))
			write.Post("/protocol", s.updateProtocol)
			write.Post("/protocol/notifiers", s.setNotifier)
			write.Post("/vaults", s.createVault)
			write.Post("/vaults/{vault}/supply", s.supply)
			write.Post("/vaults/{vault}/withdraw", s.withdraw)
			write.Post("/vaults/{vault}/claim-interest", s.claimInterest)
			write.Post("/vaults/{vault}/borrow", s.borrow)
			write.Post("/vaults/{vault}/repay", s.repay)
			write.Post("/vaults/{vault}/liquidate", s.liquidate)
			write.Post("/vaults/{vault}/cross-borrow", s.crossBorrow)
			write.Post("/vaults/{vault}/cross-repay", s.crossRepay)
			write.Post("/vaults/{vault}/cross-liquidate", s.crossLiquidate)
			write.Post("/vaults/{vault}/cross-collateral", s.setCrossCollateral)
			write.Post("/collateral/prices/{token}", s.setPrice)
			write.Post("/vaults/{vault}/protocol-borrow", s.protocolBorrow)
			write.Post("/vaults/{vault}/protocol-repay", s.protocolRepay)
			write.Post("/vaults/{vault}/config", s.configureVault)
			write.Post("/vaults/{vault}/staking", s.deployStaking)
			write.Post("/pools/{pool}/stake", s.stake)
			write.Post("/pools/{pool}/unstake", s.unstake)
			write.Post("/pools/{pool}/claim", s.claimRewards)
			write.Post("/pools/{pool}/ratio", s.setRatio)
			write.Post("/fees/{token}/distribute", s.distributeFees)
			write.Post("/tokens/{token}/approve", s.approve)
			write.Post("/tokens/{token}/transfer", s.transfer)
			write.Post("/tokens/{token}/mint", s.mint)
		})
	})
	return otelhttp.NewHandler(r, "vaultd")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return badRequest("decode body: %v", err)
	}
	return nil
}

func callerOf(r *http.Request) (common.Address, error) {
	caller, ok := middleware.CallerFrom(r.Context())
	if !ok || caller == (common.Address{}) {
		return common.Address{}, badRequest("caller identity required")
	}
	return caller, nil
}

func parseAddress(raw, field string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return common.Address{}, badRequest("invalid %s address %q", field, raw)
	}
	return common.HexToAddress(raw), nil
}

// vaultParam accepts a vault address or its numeric identifier.
func (s *Server) vaultParam(r *http.Request) (common.Address, error) {
	raw := chi.URLParam(r, "vault")
	if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
		return s.rt.VaultByID(r.Context(), id)
	}
	return parseAddress(raw, "vault")
}

// originHosts converts CORS origins into websocket origin patterns, which
// match on host only.
func originHosts(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		if idx := strings.Index(origin, "://"); idx >= 0 {
			origin = origin[idx+3:]
		}
		out = append(out, origin)
	}
	return out
}
