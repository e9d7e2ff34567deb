package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	cantorconfig "cantorfi/config"
	"cantorfi/core/events"
	"cantorfi/core/protocol"
	"cantorfi/core/state"
	"cantorfi/gateway/middleware"
	"cantorfi/observability/logging"
	"cantorfi/observability/metrics"
	telemetry "cantorfi/observability/otel"
	"cantorfi/services/vaultd/config"
	"cantorfi/services/vaultd/journal"
	"cantorfi/services/vaultd/server"
	"cantorfi/storage"
)

const serviceName = "vaultd"

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/vaultd/config.yaml", "path to vaultd config")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("load .env: %v", err)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	env := strings.TrimSpace(os.Getenv("CANTOR_ENV"))
	level := slog.LevelInfo
	if cfg.Log.Debug {
		level = slog.LevelDebug
	}
	logger := logging.SetupWithFile(serviceName, env, logging.FileOptions{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Level:      level,
	})

	shutdownTelemetry, err := initTelemetry(env)
	if err != nil {
		log.Fatalf("init telemetry: %v", err)
	}
	defer func() { _ = shutdownTelemetry(context.Background()) }()

	if err := run(cfg, env, logger); err != nil {
		logger.Error("vaultd stopped", "error", err)
		os.Exit(1)
	}
}

func initTelemetry(env string) (func(context.Context) error, error) {
	cfg := telemetry.ConfigFromEnv(serviceName, env)
	cfg.ServiceVersion = version
	return telemetry.Init(context.Background(), cfg)
}

func run(cfg config.Config, env string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openStorage(cfg.Storage)
	if err != nil {
		return err
	}
	defer db.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	hub := server.NewHub(logger)
	emitters := events.Fanout{hub}
	var eventLog server.EventLog
	if cfg.Journal.DSN != "" {
		j, err := journal.Open(cfg.Journal.DSN, logger)
		if err != nil {
			return err
		}
		defer j.Close()
		emitters = append(emitters, j)
		eventLog = j
		logger.Info("event journal enabled", logging.MaskField("dsn", cfg.Journal.DSN))
	}

	rt := protocol.New(state.NewManager(db), protocol.DefaultAddresses(),
		protocol.WithLogger(logger),
		protocol.WithTracer(otel.Tracer(serviceName)),
		protocol.WithMetrics(metrics.NewVaultMetrics(registry)),
		protocol.WithEmitter(emitters),
	)
	if err := bootstrap(ctx, rt, cfg.Genesis, logger); err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		Runtime: rt,
		Journal: eventLog,
		Hub:     hub,
		Authenticator: middleware.NewAuthenticator(middleware.AuthConfig{
			Enabled:       cfg.Auth.Enabled,
			HMACSecret:    cfg.Auth.HMACSecret,
			Issuer:        cfg.Auth.Issuer,
			Audience:      cfg.Auth.Audience,
			OptionalPaths: cfg.Auth.OptionalPaths,
			ClockSkew:     cfg.Auth.ClockSkew,
		}, logger),
		RateLimiter: middleware.NewRateLimiter(rateLimits(cfg.RateLimit), logger),
		Observability: middleware.NewObservability(middleware.ObservabilityConfig{
			ServiceName: serviceName,
			LogRequests: cfg.Log.Debug,
			Enabled:     true,
		}, registry, logger),
		CORS:   middleware.CORSConfig{AllowedOrigins: cfg.CORS.AllowedOrigins},
		Logger: logger,
	})
	if err != nil {
		return err
	}

	logger.Info("write authentication",
		"enabled", cfg.Auth.Enabled,
		logging.MaskField("hmac_secret", cfg.Auth.HMACSecret))

	if cfg.HTTP.TLS.AllowInsecure && !cfg.HTTP.TLS.Enabled() && !strings.EqualFold(env, "dev") && !isLoopback(cfg.HTTP.Listen) {
		return fmt.Errorf("plaintext vaultd mode is restricted to loopback listeners or dev environment")
	}
	if !cfg.Auth.Enabled && !strings.EqualFold(env, "dev") && !isLoopback(cfg.HTTP.Listen) {
		return fmt.Errorf("unauthenticated vaultd mode is restricted to loopback listeners or dev environment")
	}
	tlsCfg, err := loadTLS(cfg.HTTP.TLS)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Listen,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		TLSConfig:    tlsCfg,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("vaultd http listening", "addr", cfg.HTTP.Listen, "tls", tlsCfg != nil)
		var err error
		if tlsCfg != nil {
			err = httpServer.ListenAndServeTLS("", "")
		} else {
			err = httpServer.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	var grpcServer *grpc.Server
	if cfg.GRPC.Listen != "" {
		listener, err := net.Listen("tcp", cfg.GRPC.Listen)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", cfg.GRPC.Listen, err)
		}
		options := []grpc.ServerOption{
			grpc.ChainUnaryInterceptor(otelgrpc.UnaryServerInterceptor()),
			grpc.ChainStreamInterceptor(otelgrpc.StreamServerInterceptor()),
		}
		if tlsCfg != nil {
			options = append(options, grpc.Creds(credentials.NewTLS(tlsCfg)))
		}
		grpcServer = grpc.NewServer(options...)
		healthServer := health.NewServer()
		healthServer.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
		healthpb.RegisterHealthServer(grpcServer, healthServer)
		g.Go(func() error {
			logger.Info("vaultd health listening", "addr", cfg.GRPC.Listen)
			return grpcServer.Serve(listener)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if grpcServer != nil {
			grpcServer.GracefulStop()
		}
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openStorage(cfg config.StorageConfig) (storage.Database, error) {
	switch cfg.Backend {
	case config.StorageLevelDB:
		db, err := storage.NewLevelDB(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open leveldb: %w", err)
		}
		return db, nil
	default:
		return storage.NewMemDB(), nil
	}
}

// bootstrap applies the genesis file on first start. Restarts over a
// persistent store keep the existing deployment.
func bootstrap(ctx context.Context, rt *protocol.Runtime, path string, logger *slog.Logger) error {
	g, err := cantorconfig.LoadGenesis(path)
	if err != nil {
		return fmt.Errorf("load genesis: %w", err)
	}
	deployed, err := rt.Bootstrap(ctx, g)
	if errors.Is(err, protocol.ErrAlreadyBootstrapped) {
		logger.Info("state already bootstrapped, skipping genesis")
		return nil
	}
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	for _, dep := range deployed {
		logger.Info("vault deployed",
			"id", dep.ID,
			"symbol", dep.Symbol,
			"vault", dep.Vault.Hex(),
			"cvt", dep.CVT.Hex(),
			"pool", dep.Pool.Hex())
	}
	return nil
}

func rateLimits(in map[string]config.RateLimit) map[string]middleware.RateLimit {
	out := make(map[string]middleware.RateLimit, len(in))
	for key, limit := range in {
		out[key] = middleware.RateLimit{
			RatePerSecond: limit.RatePerSecond,
			Burst:         limit.Burst,
			DefaultTokens: limit.DefaultTokens,
			Tokens:        limit.Tokens,
		}
	}
	return out
}

func loadTLS(cfg config.TLSConfig) (*tls.Config, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(cfg.CertPath, cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("load tls keypair: %w", err)
	}
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
	}, nil
}

func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	ip := net.ParseIP(host)
	return host == "localhost" || (ip != nil && ip.IsLoopback())
}
