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
// built-in defaults, applies ODDSGATE_* environment variable overrides, and
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

// applyEnvOverrides reads well-known ODDSGATE_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Upstream ──
	setStr(&cfg.Upstream.URL, "ODDSGATE_UPSTREAM_URL")
	setStr(&cfg.Upstream.APIKey, "ODDSGATE_UPSTREAM_API_KEY")
	setStringSlice(&cfg.Upstream.Sports, "ODDSGATE_UPSTREAM_SPORTS")
	setStringSlice(&cfg.Upstream.Bookmakers, "ODDSGATE_UPSTREAM_BOOKMAKERS")
	setStringSlice(&cfg.Upstream.PropsBookmakers, "ODDSGATE_UPSTREAM_PROPS_BOOKMAKERS")
	setStr(&cfg.Upstream.PrimaryOddsEvent, "ODDSGATE_UPSTREAM_PRIMARY_ODDS_EVENT")
	setStringSlice(&cfg.Upstream.ExtraOddsEvents, "ODDSGATE_UPSTREAM_EXTRA_ODDS_EVENTS")
	setDuration(&cfg.Upstream.ReconnectDelay, "ODDSGATE_UPSTREAM_RECONNECT_DELAY")
	setInt(&cfg.Upstream.MaxReconnectAttempts, "ODDSGATE_UPSTREAM_MAX_RECONNECT_ATTEMPTS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "ODDSGATE_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ODDSGATE_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "ODDSGATE_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimit, "ODDSGATE_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "ODDSGATE_SERVER_RATE_WINDOW")
	setDuration(&cfg.Server.WatchInterval, "ODDSGATE_SERVER_WATCH_INTERVAL")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ODDSGATE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ODDSGATE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ODDSGATE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ODDSGATE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ODDSGATE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ODDSGATE_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "ODDSGATE_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "ODDSGATE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ODDSGATE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ODDSGATE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ODDSGATE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ODDSGATE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ODDSGATE_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ODDSGATE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ODDSGATE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ODDSGATE_POSTGRES_RUN_MIGRATIONS")

	// ── Entitlements ──
	setDuration(&cfg.Entitlements.CacheTTL, "ODDSGATE_ENTITLEMENTS_CACHE_TTL")
	setStr(&cfg.Entitlements.DefaultTier, "ODDSGATE_ENTITLEMENTS_DEFAULT_TIER")
	setBool(&cfg.Entitlements.DefaultCanProps, "ODDSGATE_ENTITLEMENTS_DEFAULT_CAN_PROPS")
	setBool(&cfg.Entitlements.DefaultCanOnDemand, "ODDSGATE_ENTITLEMENTS_DEFAULT_CAN_ON_DEMAND")
	setInt(&cfg.Entitlements.DefaultRequestQuota, "ODDSGATE_ENTITLEMENTS_DEFAULT_REQUEST_QUOTA")

	// ── On-demand ──
	setDuration(&cfg.OnDemand.TTL, "ODDSGATE_ON_DEMAND_TTL")
	setInt(&cfg.OnDemand.MaxPending, "ODDSGATE_ON_DEMAND_MAX_PENDING")
	setInt(&cfg.OnDemand.RateLimit, "ODDSGATE_ON_DEMAND_RATE_LIMIT")
	setDuration(&cfg.OnDemand.RateWindow, "ODDSGATE_ON_DEMAND_RATE_WINDOW")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "ODDSGATE_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Interval, "ODDSGATE_ARCHIVE_INTERVAL")
	setStr(&cfg.Archive.Prefix, "ODDSGATE_ARCHIVE_PREFIX")
	setStr(&cfg.Archive.Endpoint, "ODDSGATE_ARCHIVE_ENDPOINT")
	setStr(&cfg.Archive.Region, "ODDSGATE_ARCHIVE_REGION")
	setStr(&cfg.Archive.Bucket, "ODDSGATE_ARCHIVE_BUCKET")
	setStr(&cfg.Archive.AccessKey, "ODDSGATE_ARCHIVE_ACCESS_KEY")
	setStr(&cfg.Archive.SecretKey, "ODDSGATE_ARCHIVE_SECRET_KEY")
	setBool(&cfg.Archive.UseSSL, "ODDSGATE_ARCHIVE_USE_SSL")
	setBool(&cfg.Archive.ForcePathStyle, "ODDSGATE_ARCHIVE_FORCE_PATH_STYLE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ODDSGATE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ODDSGATE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ODDSGATE_NOTIFY_DISCORD_WEBHOOK_URL")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "ODDSGATE_LOG_LEVEL")
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
