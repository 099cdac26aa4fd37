package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies CARBIDX_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load. A missing file is not an
// error: defaults plus environment overrides apply.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known CARBIDX_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This lets
// operators inject secrets at deploy time without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Server ──
	setInt(&cfg.Server.Port, "CARBIDX_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "CARBIDX_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.APIRateLimit, "CARBIDX_SERVER_API_RATE_LIMIT")
	setDuration(&cfg.Server.APIRateWindow, "CARBIDX_SERVER_API_RATE_WINDOW")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "CARBIDX_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "CARBIDX_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "CARBIDX_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "CARBIDX_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "CARBIDX_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "CARBIDX_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "CARBIDX_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "CARBIDX_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "CARBIDX_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "CARBIDX_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "CARBIDX_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "CARBIDX_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "CARBIDX_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "CARBIDX_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "CARBIDX_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "CARBIDX_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "CARBIDX_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "CARBIDX_S3_REGION")
	setStr(&cfg.S3.Bucket, "CARBIDX_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "CARBIDX_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "CARBIDX_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "CARBIDX_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "CARBIDX_S3_FORCE_PATH_STYLE")

	// ── Auth ──
	setStr(&cfg.Auth.JWTSecret, "CARBIDX_AUTH_JWT_SECRET")
	setDuration(&cfg.Auth.TokenTTL, "CARBIDX_AUTH_TOKEN_TTL")
	setInt(&cfg.Auth.BcryptCost, "CARBIDX_AUTH_BCRYPT_COST")

	// ── Auction ──
	setInt(&cfg.Auction.DefaultDurationHours, "CARBIDX_AUCTION_DEFAULT_DURATION_HOURS")
	setDuration(&cfg.Auction.SweepInterval, "CARBIDX_AUCTION_SWEEP_INTERVAL")
	setDuration(&cfg.Auction.BidLockTTL, "CARBIDX_AUCTION_BID_LOCK_TTL")
	setInt(&cfg.Auction.BidRateLimit, "CARBIDX_AUCTION_BID_RATE_LIMIT")
	setDuration(&cfg.Auction.BidRateWindow, "CARBIDX_AUCTION_BID_RATE_WINDOW")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "CARBIDX_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
