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
// built-in defaults, applies POOLBOOK_* environment variable overrides, and
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

// applyEnvOverrides reads well-known POOLBOOK_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Server ──
	setInt(&cfg.Server.Port, "POOLBOOK_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "POOLBOOK_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimit, "POOLBOOK_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateLimitWindow, "POOLBOOK_SERVER_RATE_LIMIT_WINDOW")

	// ── Database ──
	setStr(&cfg.Database.DSN, "POOLBOOK_DATABASE_DSN")
	setStr(&cfg.Database.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Database.Host, "POOLBOOK_DATABASE_HOST")
	setInt(&cfg.Database.Port, "POOLBOOK_DATABASE_PORT")
	setStr(&cfg.Database.Database, "POOLBOOK_DATABASE_NAME")
	setStr(&cfg.Database.User, "POOLBOOK_DATABASE_USER")
	setStr(&cfg.Database.Password, "POOLBOOK_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "POOLBOOK_DATABASE_SSL_MODE")
	setInt(&cfg.Database.PoolMaxConns, "POOLBOOK_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "POOLBOOK_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "POOLBOOK_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "POOLBOOK_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POOLBOOK_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POOLBOOK_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POOLBOOK_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "POOLBOOK_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "POOLBOOK_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "POOLBOOK_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "POOLBOOK_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "POOLBOOK_S3_REGION")
	setStr(&cfg.S3.Bucket, "POOLBOOK_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "POOLBOOK_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "POOLBOOK_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "POOLBOOK_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "POOLBOOK_S3_FORCE_PATH_STYLE")
	setInt(&cfg.S3.RetentionDays, "POOLBOOK_S3_RETENTION_DAYS")

	// ── Auth ──
	setStr(&cfg.Auth.JWTSecret, "POOLBOOK_AUTH_JWT_SECRET")
	setStr(&cfg.Auth.JWTSecret, "JWT_SECRET") // compatibility alias
	setDuration(&cfg.Auth.TokenTTL, "POOLBOOK_AUTH_TOKEN_TTL")

	// ── Economy ──
	setInt64(&cfg.Economy.MinStake, "POOLBOOK_ECONOMY_MIN_STAKE")
	setInt64(&cfg.Economy.StartingBalance, "POOLBOOK_ECONOMY_STARTING_BALANCE")
	setInt64(&cfg.Economy.BonusMin, "POOLBOOK_ECONOMY_BONUS_MIN")
	setInt64(&cfg.Economy.BonusMax, "POOLBOOK_ECONOMY_BONUS_MAX")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "POOLBOOK_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "POOLBOOK_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "POOLBOOK_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "POOLBOOK_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "POOLBOOK_MODE")
	setStr(&cfg.LogLevel, "POOLBOOK_LOG_LEVEL")
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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
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
			if p = strings.TrimSpace(p); p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
