// Package config defines the top-level configuration for the market engine
// host and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/marketengine/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by MARKETENGINE_* environment variables.
type Config struct {
	Engine   EngineConfig   `toml:"engine"`
	Wallet   WalletConfig   `toml:"wallet"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Keeper   KeeperConfig   `toml:"keeper"`
	Archive  ArchiveConfig  `toml:"archive"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Metrics  MetricsConfig  `toml:"metrics"`
	LogLevel string         `toml:"log_level"`
}

// EngineConfig seeds the first GlobalConfig version when the database holds
// none. Later changes go through the admin operations.
type EngineConfig struct {
	Authority        string   `toml:"authority"`
	SettlementSigner string   `toml:"settlement_signer"`
	Keeper           string   `toml:"keeper"`
	Operators        []string `toml:"operators"`

	Fees                          domain.FeeConfig `toml:"fees"`
	MaxOrderFeeBps                uint16           `toml:"max_order_fee_bps"`
	MarketCreationFee             uint64           `toml:"market_creation_fee"`
	TerminationReward             uint64           `toml:"termination_reward"`
	TerminationCheckFee           uint64           `toml:"termination_check_fee"`
	DefaultTerminationProbability uint32           `toml:"default_termination_probability"`
	RandomnessMaxAge              uint64           `toml:"randomness_max_age"`
	InactivityTimeout             duration         `toml:"inactivity_timeout"`

	// Genesis is slot zero; SlotDuration converts wall time since then to
	// ledger slots.
	Genesis      time.Time `toml:"genesis"`
	SlotDuration duration  `toml:"slot_duration"`
	LockTTL      duration `toml:"lock_ttl"`
}

// WalletConfig says where the settlement signer's seed comes from. The host
// only needs it to sign trades it settles itself (tooling and tests).
type WalletConfig struct {
	Seed             string `toml:"seed"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// KeeperConfig controls the inactivity sweep.
type KeeperConfig struct {
	Enabled     bool     `toml:"enabled"`
	Interval    duration `toml:"interval"`
	Concurrency int      `toml:"concurrency"`
	// Identity is the key the sweep calls TerminateIfInactive as.
	Identity string `toml:"identity"`
}

// ArchiveConfig controls the event archive uploads.
type ArchiveConfig struct {
	Enabled   bool     `toml:"enabled"`
	Interval  duration `toml:"interval"`
	Prefix    string   `toml:"prefix"`
	BatchSize int      `toml:"batch_size"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	// HMACSecret, when set, requires signed mutating requests.
	HMACSecret string   `toml:"hmac_secret"`
	HMACWindow duration `toml:"hmac_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Engine: EngineConfig{
			Fees:                          domain.DefaultFeeConfig(),
			MaxOrderFeeBps:                domain.DefaultMaxOrderFeeBps,
			MarketCreationFee:             domain.DefaultMarketCreationFee,
			TerminationReward:             domain.DefaultTerminationReward,
			DefaultTerminationProbability: domain.DefaultTerminationProbability,
			RandomnessMaxAge:              domain.DefaultRandomnessMaxAge,
			InactivityTimeout:             duration{domain.DefaultInactivityTimeout},
			Genesis:                       time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			SlotDuration:                  duration{400 * time.Millisecond},
			LockTTL:                       duration{10 * time.Second},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "marketengine",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "marketengine-events",
			ForcePathStyle: true,
		},
		Keeper: KeeperConfig{
			Enabled:     true,
			Interval:    duration{time.Minute},
			Concurrency: 4,
		},
		Archive: ArchiveConfig{
			Enabled:   false,
			Interval:  duration{15 * time.Minute},
			Prefix:    "events",
			BatchSize: 5_000,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
			HMACWindow:  duration{30 * time.Second},
		},
		Notify: NotifyConfig{
			Events: []string{string(domain.EventMarketSettled), string(domain.EventMarketTerminated)},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// GlobalConfig builds the version-one GlobalConfig from the engine section.
func (c *Config) GlobalConfig(now time.Time) (domain.GlobalConfig, error) {
	e := c.Engine
	g := domain.DefaultGlobalConfig()
	var err error
	if g.Authority, err = parseKey(e.Authority); err != nil {
		return g, fmt.Errorf("config: engine.authority: %w", err)
	}
	if g.SettlementSigner, err = parseKey(e.SettlementSigner); err != nil {
		return g, fmt.Errorf("config: engine.settlement_signer: %w", err)
	}
	if g.Keeper, err = parseKey(e.Keeper); err != nil {
		return g, fmt.Errorf("config: engine.keeper: %w", err)
	}
	g.Operators = make([]domain.Pubkey, 0, len(e.Operators))
	for _, s := range e.Operators {
		k, err := domain.ParsePubkey(s)
		if err != nil {
			return g, fmt.Errorf("config: engine.operators: %w", err)
		}
		g.Operators = append(g.Operators, k)
	}
	g.Version = 1
	g.Fees = e.Fees
	g.MaxOrderFeeBps = e.MaxOrderFeeBps
	g.MarketCreationFee = e.MarketCreationFee
	g.TerminationReward = e.TerminationReward
	g.TerminationCheckFee = e.TerminationCheckFee
	g.DefaultTerminationProbability = e.DefaultTerminationProbability
	g.RandomnessMaxAge = e.RandomnessMaxAge
	g.InactivityTimeout = e.InactivityTimeout.Duration
	g.UpdatedAt = now
	return g, nil
}

func parseKey(s string) (domain.Pubkey, error) {
	if s == "" {
		return domain.Pubkey{}, nil
	}
	return domain.ParsePubkey(s)
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Engine
	e := c.Engine
	if e.Authority == "" {
		errs = append(errs, "engine: authority must be set")
	}
	for _, k := range []struct{ name, value string }{
		{"authority", e.Authority},
		{"settlement_signer", e.SettlementSigner},
		{"keeper", e.Keeper},
	} {
		if _, err := parseKey(k.value); err != nil {
			errs = append(errs, fmt.Sprintf("engine: %s: %v", k.name, err))
		}
	}
	if len(e.Operators) > domain.MaxOperators {
		errs = append(errs, fmt.Sprintf("engine: at most %d operators, got %d", domain.MaxOperators, len(e.Operators)))
	}
	for _, op := range e.Operators {
		if _, err := domain.ParsePubkey(op); err != nil {
			errs = append(errs, fmt.Sprintf("engine: operator %q: %v", op, err))
		}
	}
	f := e.Fees
	if f.CenterTakerRate > domain.MaxTakerFeeRate {
		errs = append(errs, fmt.Sprintf("engine.fees: center_taker_rate must be <= %d", domain.MaxTakerFeeRate))
	}
	if f.CenterTakerRate < f.ExtremeTakerRate {
		errs = append(errs, "engine.fees: center_taker_rate must be >= extreme_taker_rate")
	}
	if sum := uint64(f.PlatformShare) + uint64(f.MakerRebateShare) + uint64(f.CreatorIncentiveShare); sum != 1_000_000 {
		errs = append(errs, fmt.Sprintf("engine.fees: shares must sum to 1000000, got %d", sum))
	}
	if e.DefaultTerminationProbability > domain.MaxTerminationProbability {
		errs = append(errs, fmt.Sprintf("engine: default_termination_probability must be <= %d", domain.MaxTerminationProbability))
	}
	if e.InactivityTimeout.Duration <= 0 {
		errs = append(errs, "engine: inactivity_timeout must be > 0")
	}
	if e.SlotDuration.Duration <= 0 {
		errs = append(errs, "engine: slot_duration must be > 0")
	}
	if e.LockTTL.Duration <= 0 {
		errs = append(errs, "engine: lock_ttl must be > 0")
	}

	// Wallet
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Keeper
	if c.Keeper.Enabled {
		if c.Keeper.Interval.Duration <= 0 {
			errs = append(errs, "keeper: interval must be > 0")
		}
		if c.Keeper.Concurrency < 1 {
			errs = append(errs, "keeper: concurrency must be >= 1")
		}
		if _, err := parseKey(c.Keeper.Identity); err != nil {
			errs = append(errs, fmt.Sprintf("keeper: identity: %v", err))
		}
	}

	// Archive
	if c.Archive.Enabled {
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.Archive.Interval.Duration <= 0 {
			errs = append(errs, "archive: interval must be > 0")
		}
		if c.Archive.BatchSize < 1 {
			errs = append(errs, "archive: batch_size must be >= 1")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.HMACSecret != "" && c.Server.HMACWindow.Duration <= 0 {
			errs = append(errs, "server: hmac_window must be > 0 when hmac_secret is set")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
