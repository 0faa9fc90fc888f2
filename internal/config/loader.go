package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies BOOKWATCH_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known BOOKWATCH_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Feed ──
	setStr(&cfg.Feed.WsURL, "BOOKWATCH_FEED_WS_URL")
	setStr(&cfg.Feed.Symbol, "BOOKWATCH_FEED_SYMBOL")

	// ── Book ──
	setInt(&cfg.Book.Depth, "BOOKWATCH_BOOK_DEPTH")
	setDuration(&cfg.Book.RenderInterval, "BOOKWATCH_BOOK_RENDER_INTERVAL")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "BOOKWATCH_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "BOOKWATCH_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "BOOKWATCH_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "BOOKWATCH_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "BOOKWATCH_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "BOOKWATCH_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "BOOKWATCH_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "BOOKWATCH_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "BOOKWATCH_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "BOOKWATCH_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "BOOKWATCH_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "BOOKWATCH_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "BOOKWATCH_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "BOOKWATCH_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "BOOKWATCH_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "BOOKWATCH_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "BOOKWATCH_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "BOOKWATCH_S3_REGION")
	setStr(&cfg.S3.Bucket, "BOOKWATCH_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "BOOKWATCH_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "BOOKWATCH_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "BOOKWATCH_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "BOOKWATCH_S3_FORCE_PATH_STYLE")

	// ── Retention ──
	setBool(&cfg.Retention.Enabled, "BOOKWATCH_RETENTION_ENABLED")
	setInt(&cfg.Retention.RetentionDays, "BOOKWATCH_RETENTION_DAYS")
	setDuration(&cfg.Retention.SweepInterval, "BOOKWATCH_RETENTION_SWEEP_INTERVAL")

	// ── Top-level ──
	setStr(&cfg.Mode, "BOOKWATCH_MODE")
	setStr(&cfg.LogLevel, "BOOKWATCH_LOG_LEVEL")
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
