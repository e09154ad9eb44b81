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
// built-in defaults, applies TRADEDIARY_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
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

// applyEnvOverrides reads well-known TRADEDIARY_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "TRADEDIARY_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "TRADEDIARY_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "TRADEDIARY_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "TRADEDIARY_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "TRADEDIARY_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "TRADEDIARY_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "TRADEDIARY_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "TRADEDIARY_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "TRADEDIARY_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "TRADEDIARY_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "TRADEDIARY_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TRADEDIARY_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TRADEDIARY_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "TRADEDIARY_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "TRADEDIARY_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "TRADEDIARY_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "TRADEDIARY_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "TRADEDIARY_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "TRADEDIARY_S3_REGION")
	setStr(&cfg.S3.Bucket, "TRADEDIARY_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "TRADEDIARY_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "TRADEDIARY_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "TRADEDIARY_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "TRADEDIARY_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "TRADEDIARY_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "TRADEDIARY_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "TRADEDIARY_SERVER_CORS_ORIGINS")

	// ── Sync ──
	setBool(&cfg.Sync.Enabled, "TRADEDIARY_SYNC_ENABLED")
	setDuration(&cfg.Sync.Interval, "TRADEDIARY_SYNC_INTERVAL")
	setInt(&cfg.Sync.Days, "TRADEDIARY_SYNC_DAYS")
	setBool(&cfg.Sync.Stream, "TRADEDIARY_SYNC_STREAM")
	setStr(&cfg.Sync.BybitBaseURL, "TRADEDIARY_SYNC_BYBIT_BASE_URL")
	setStr(&cfg.Sync.BybitWSURL, "TRADEDIARY_SYNC_BYBIT_WS_URL")
	setStr(&cfg.Sync.OKXBaseURL, "TRADEDIARY_SYNC_OKX_BASE_URL")

	// ── Ledger ──
	setFloat64(&cfg.Ledger.DustEpsilon, "TRADEDIARY_LEDGER_DUST_EPSILON")
	setInt(&cfg.Ledger.MoneyScale, "TRADEDIARY_LEDGER_MONEY_SCALE")
	setInt(&cfg.Ledger.QuantityScale, "TRADEDIARY_LEDGER_QUANTITY_SCALE")

	// ── Secrets ──
	setStr(&cfg.Secrets.MasterPassword, "TRADEDIARY_SECRETS_MASTER_PASSWORD")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "TRADEDIARY_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "TRADEDIARY_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "TRADEDIARY_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "TRADEDIARY_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "TRADEDIARY_MODE")
	setStr(&cfg.LogLevel, "TRADEDIARY_LOG_LEVEL")
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

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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
