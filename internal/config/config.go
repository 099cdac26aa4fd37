// Package config defines the top-level configuration for the CarbidX engine
// and provides validation helpers.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by CARBIDX_* environment variables.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Auth     AuthConfig     `toml:"auth"`
	Auction  AuctionConfig  `toml:"auction"`
	LogLevel string         `toml:"log_level"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIRateLimit / APIRateWindow cap requests per client IP across the
	// whole API. A zero limit disables the middleware.
	APIRateLimit  int      `toml:"api_rate_limit"`
	APIRateWindow duration `toml:"api_rate_window"`
}

// PostgresConfig holds PostgreSQL connection parameters. When both DSN and
// Host are empty the engine falls back to the in-memory record store.
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

// Enabled reports whether a PostgreSQL endpoint is configured.
func (c PostgresConfig) Enabled() bool {
	return c.DSN != "" || c.Host != ""
}

// RedisConfig holds Redis connection parameters. Redis backs the per-auction
// admission lock, the event bus, and the bid rate limiter; when Addr is empty
// the in-process equivalents are used instead.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// Enabled reports whether a Redis endpoint is configured.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// S3Config holds S3-compatible object storage parameters for closed-auction
// archival. Archival is disabled when Bucket is empty.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// Enabled reports whether closed-auction archival is configured.
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

// AuthConfig holds token issuance and password hashing parameters.
type AuthConfig struct {
	JWTSecret  string   `toml:"jwt_secret"`
	TokenTTL   duration `toml:"token_ttl"`
	BcryptCost int      `toml:"bcrypt_cost"`
}

// AuctionConfig holds the auction-engine tunables.
type AuctionConfig struct {
	// DefaultDurationHours is applied when a car request omits its duration.
	DefaultDurationHours int `toml:"default_duration_hours"`
	// SweepInterval is how often expired Active auctions are closed.
	SweepInterval duration `toml:"sweep_interval"`
	// BidLockTTL bounds how long one admission may hold an auction's lock.
	BidLockTTL duration `toml:"bid_lock_ttl"`
	// BidRateLimit / BidRateWindow cap bid submissions per dealer.
	BidRateLimit  int      `toml:"bid_rate_limit"`
	BidRateWindow duration `toml:"bid_rate_window"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
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

// Defaults returns the built-in configuration that Load merges a TOML file
// on top of.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:          8080,
			APIRateLimit:  100,
			APIRateWindow: duration{time.Minute},
		},
		Postgres: PostgresConfig{
			Port:         5432,
			SSLMode:      "disable",
			PoolMaxConns: 10,
			PoolMinConns: 2,
		},
		Redis: RedisConfig{
			PoolSize: 10,
		},
		Auth: AuthConfig{
			TokenTTL:   duration{30 * time.Minute},
			BcryptCost: 10,
		},
		Auction: AuctionConfig{
			DefaultDurationHours: 24,
			SweepInterval:        duration{time.Minute},
			BidLockTTL:           duration{5 * time.Second},
			BidRateLimit:         10,
			BidRateWindow:        duration{time.Second},
		},
		LogLevel: "info",
	}
}

// Validate checks the configuration for inconsistencies that would only
// surface later at runtime.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server port %d", c.Server.Port)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("config: auth.jwt_secret is required")
	}
	if c.Auth.TokenTTL.Duration <= 0 {
		return fmt.Errorf("config: auth.token_ttl must be positive")
	}
	if c.Auction.DefaultDurationHours <= 0 {
		return fmt.Errorf("config: auction.default_duration_hours must be positive")
	}
	if c.Auction.SweepInterval.Duration <= 0 {
		return fmt.Errorf("config: auction.sweep_interval must be positive")
	}
	if c.Auction.BidLockTTL.Duration <= 0 {
		return fmt.Errorf("config: auction.bid_lock_ttl must be positive")
	}
	if c.Auction.BidRateLimit <= 0 || c.Auction.BidRateWindow.Duration <= 0 {
		return fmt.Errorf("config: auction.bid_rate_limit and bid_rate_window must be positive")
	}
	if c.S3.Enabled() && c.S3.Region == "" {
		return fmt.Errorf("config: s3.region is required when s3.bucket is set")
	}
	return nil
}
