package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPListen = ":8080"

	StorageMemory  = "memory"
	StorageLevelDB = "leveldb"
)

// Config captures the runtime settings of the vault daemon.
type Config struct {
	HTTP      HTTPConfig           `yaml:"http"`
	GRPC      GRPCConfig           `yaml:"grpc"`
	Storage   StorageConfig        `yaml:"storage"`
	Journal   JournalConfig        `yaml:"journal"`
	Genesis   string               `yaml:"genesis"`
	Auth      AuthConfig           `yaml:"auth"`
	RateLimit map[string]RateLimit `yaml:"rate_limits"`
	CORS      CORSConfig           `yaml:"cors"`
	Log       LogConfig            `yaml:"log"`
}

type HTTPConfig struct {
	Listen          string        `yaml:"listen"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	TLS             TLSConfig     `yaml:"tls"`
}

// TLSConfig describes the certificate served over HTTPS.
type TLSConfig struct {
	CertPath      string `yaml:"cert"`
	KeyPath       string `yaml:"key"`
	AllowInsecure bool   `yaml:"allow_insecure"`
}

// GRPCConfig configures the health endpoint. An empty listen address
// disables it.
type GRPCConfig struct {
	Listen string `yaml:"listen"`
}

type StorageConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// JournalConfig selects the event journal database. An empty DSN disables
// the journal.
type JournalConfig struct {
	DSN string `yaml:"dsn"`
}

// AuthConfig configures bearer-token authentication of write routes.
// Running without it requires AllowUnauthenticated, a development switch
// under which callers name themselves in a header.
type AuthConfig struct {
	Enabled              bool          `yaml:"enabled"`
	AllowUnauthenticated bool          `yaml:"allow_unauthenticated"`
	HMACSecret           string        `yaml:"hmac_secret"`
	Issuer               string        `yaml:"issuer"`
	Audience             string        `yaml:"audience"`
	OptionalPaths        []string      `yaml:"optional_paths"`
	ClockSkew            time.Duration `yaml:"clock_skew"`
}

type RateLimit struct {
	RatePerSecond float64        `yaml:"rate_per_second"`
	Burst         int            `yaml:"burst"`
	DefaultTokens int            `yaml:"default_tokens"`
	Tokens        map[string]int `yaml:"tokens"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LogConfig enables the rotating log file.
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Debug      bool   `yaml:"debug"`
}

// Load reads the YAML configuration from disk and validates the result.
func Load(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		return Config{}, fmt.Errorf("config path required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML document.
func Parse(data []byte) (Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) normalize() {
	cfg.HTTP.Listen = strings.TrimSpace(cfg.HTTP.Listen)
	if cfg.HTTP.Listen == "" {
		cfg.HTTP.Listen = defaultHTTPListen
	}
	if cfg.HTTP.ReadTimeout <= 0 {
		cfg.HTTP.ReadTimeout = 10 * time.Second
	}
	if cfg.HTTP.WriteTimeout <= 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout <= 0 {
		cfg.HTTP.ShutdownTimeout = 5 * time.Second
	}
	cfg.HTTP.TLS.CertPath = strings.TrimSpace(cfg.HTTP.TLS.CertPath)
	cfg.HTTP.TLS.KeyPath = strings.TrimSpace(cfg.HTTP.TLS.KeyPath)
	cfg.GRPC.Listen = strings.TrimSpace(cfg.GRPC.Listen)

	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = StorageMemory
	}
	cfg.Storage.Path = strings.TrimSpace(cfg.Storage.Path)
	cfg.Journal.DSN = strings.TrimSpace(cfg.Journal.DSN)
	cfg.Genesis = strings.TrimSpace(cfg.Genesis)

	cfg.Auth.HMACSecret = strings.TrimSpace(cfg.Auth.HMACSecret)
	cfg.Auth.Issuer = strings.TrimSpace(cfg.Auth.Issuer)
	cfg.Auth.Audience = strings.TrimSpace(cfg.Auth.Audience)
	cfg.Auth.OptionalPaths = trimAll(cfg.Auth.OptionalPaths)
	cfg.CORS.AllowedOrigins = trimAll(cfg.CORS.AllowedOrigins)
	cfg.Log.File = strings.TrimSpace(cfg.Log.File)
}

func (cfg *Config) validate() error {
	switch cfg.Storage.Backend {
	case StorageMemory:
	case StorageLevelDB:
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage: path required for leveldb backend")
		}
	default:
		return fmt.Errorf("storage: unknown backend %q", cfg.Storage.Backend)
	}
	if cfg.Genesis == "" {
		return fmt.Errorf("genesis path required")
	}
	if dsn := cfg.Journal.DSN; dsn != "" && !strings.HasPrefix(dsn, "sqlite://") &&
		!strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return fmt.Errorf("journal: dsn must use sqlite:// or postgres://")
	}
	if err := cfg.HTTP.TLS.validate(); err != nil {
		return fmt.Errorf("http tls: %w", err)
	}
	if err := cfg.Auth.validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	for name, limit := range cfg.RateLimit {
		if limit.RatePerSecond < 0 || limit.Burst < 0 {
			return fmt.Errorf("rate_limits.%s: values must not be negative", name)
		}
	}
	return nil
}

func (cfg TLSConfig) validate() error {
	hasCert := cfg.CertPath != ""
	hasKey := cfg.KeyPath != ""
	if hasCert != hasKey {
		return fmt.Errorf("cert and key must either both be provided or both be empty")
	}
	if !cfg.AllowInsecure && !hasCert {
		return fmt.Errorf("cert and key are required unless allow_insecure=true")
	}
	return nil
}

func (cfg AuthConfig) validate() error {
	if !cfg.Enabled {
		if !cfg.AllowUnauthenticated {
			return fmt.Errorf("enabled must be true unless allow_unauthenticated=true")
		}
		return nil
	}
	if len(cfg.HMACSecret) < 16 {
		return fmt.Errorf("hmac_secret must be at least 16 characters")
	}
	return nil
}

// Enabled reports whether HTTPS is configured.
func (cfg TLSConfig) Enabled() bool { return cfg.CertPath != "" }

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
