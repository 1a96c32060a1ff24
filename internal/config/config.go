// Package config defines the top-level configuration for the odds gateway
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ODDSGATE_* environment variables.
type Config struct {
	Upstream     UpstreamConfig     `toml:"upstream"`
	Server       ServerConfig       `toml:"server"`
	Redis        RedisConfig        `toml:"redis"`
	Postgres     PostgresConfig     `toml:"postgres"`
	Entitlements EntitlementsConfig `toml:"entitlements"`
	OnDemand     OnDemandConfig     `toml:"on_demand"`
	Archive      ArchiveConfig      `toml:"archive"`
	Notify       NotifyConfig       `toml:"notify"`
	LogLevel     string             `toml:"log_level"`
}

// UpstreamConfig holds the upstream odds feed connection parameters.
type UpstreamConfig struct {
	URL                  string   `toml:"url"`
	APIKey               string   `toml:"api_key"`
	Sports               []string `toml:"sports"`
	Bookmakers           []string `toml:"bookmakers"`
	PropsBookmakers      []string `toml:"props_bookmakers"`
	PrimaryOddsEvent     string   `toml:"primary_odds_event"`
	ExtraOddsEvents      []string `toml:"extra_odds_events"`
	ReconnectDelay       duration `toml:"reconnect_delay"`
	MaxReconnectAttempts int      `toml:"max_reconnect_attempts"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`

	// RateLimit requests per RateWindow per client IP. Zero disables HTTP
	// rate limiting.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`

	// WatchInterval is the refresh period for watch-<query> WebSocket
	// subscriptions.
	WatchInterval duration `toml:"watch_interval"`
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

// PostgresConfig holds PostgreSQL connection parameters for the entitlement
// store. Leaving both dsn and host empty disables the store; every consumer
// then receives the default entitlement.
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

// Enabled reports whether an entitlement store is configured at all.
func (p PostgresConfig) Enabled() bool {
	return strings.TrimSpace(p.DSN) != "" || strings.TrimSpace(p.Host) != ""
}

// EntitlementsConfig holds the entitlement resolution parameters and the
// default entitlement used when no store is configured.
type EntitlementsConfig struct {
	CacheTTL            duration `toml:"cache_ttl"`
	DefaultTier         string   `toml:"default_tier"`
	DefaultCanProps     bool     `toml:"default_can_props"`
	DefaultCanOnDemand  bool     `toml:"default_can_on_demand"`
	DefaultRequestQuota int      `toml:"default_request_quota"`
}

// OnDemandConfig bounds the request correlator.
type OnDemandConfig struct {
	TTL        duration `toml:"ttl"`
	MaxPending int      `toml:"max_pending"`
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
}

// ArchiveConfig holds the optional snapshot archiver parameters and its
// S3-compatible storage target.
type ArchiveConfig struct {
	Enabled  bool     `toml:"enabled"`
	Interval duration `toml:"interval"`
	Prefix   string   `toml:"prefix"`

	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string `toml:"telegram_token"`
	TelegramChatID    string `toml:"telegram_chat_id"`
	DiscordWebhookURL string `toml:"discord_webhook_url"`
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

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Upstream: UpstreamConfig{
			Sports:               []string{"americanfootball_nfl", "basketball_nba"},
			Bookmakers:           []string{"pinnacle", "fanduel", "draftkings"},
			PropsBookmakers:      []string{},
			PrimaryOddsEvent:     "odds-update",
			ReconnectDelay:       duration{2 * time.Second},
			MaxReconnectAttempts: 10,
		},
		Server: ServerConfig{
			Enabled:       true,
			Port:          8000,
			CORSOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:     120,
			RateWindow:    duration{time.Minute},
			WatchInterval: duration{15 * time.Second},
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Postgres: PostgresConfig{
			Port:          5432,
			Database:      "oddsgate",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Entitlements: EntitlementsConfig{
			CacheTTL:            duration{time.Minute},
			DefaultTier:         "free",
			DefaultCanProps:     false,
			DefaultCanOnDemand:  false,
			DefaultRequestQuota: 10,
		},
		OnDemand: OnDemandConfig{
			TTL:        duration{30 * time.Second},
			MaxPending: 1000,
			RateLimit:  10,
			RateWindow: duration{time.Minute},
		},
		Archive: ArchiveConfig{
			Enabled:        false,
			Interval:       duration{5 * time.Minute},
			Prefix:         "snapshots",
			Region:         "us-east-1",
			UseSSL:         false,
			ForcePathStyle: true,
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

// validTiers enumerates the accepted entitlement tiers.
var validTiers = map[string]bool{
	"free":    true,
	"basic":   true,
	"premium": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Upstream. An empty url is not an error: the feed is simply disabled and
	// the gateway serves whatever is cached. The remaining fields only matter
	// when a feed is configured.
	if c.Upstream.URL != "" {
		if len(c.Upstream.Sports) == 0 {
			errs = append(errs, "upstream: at least one sport must be configured")
		}
		if c.Upstream.MaxReconnectAttempts < 1 {
			errs = append(errs, "upstream: max_reconnect_attempts must be >= 1")
		}
		if c.Upstream.ReconnectDelay.Duration < 0 {
			errs = append(errs, "upstream: reconnect_delay must not be negative")
		}
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Postgres, only when configured.
	if c.Postgres.Enabled() {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
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
	}

	// Entitlements
	if !validTiers[strings.ToLower(c.Entitlements.DefaultTier)] {
		errs = append(errs, fmt.Sprintf("entitlements: unknown default_tier %q (valid: free, basic, premium)", c.Entitlements.DefaultTier))
	}
	if c.Entitlements.DefaultRequestQuota < 0 {
		errs = append(errs, "entitlements: default_request_quota must be >= 0")
	}

	// OnDemand
	if c.OnDemand.TTL.Duration <= 0 {
		errs = append(errs, "on_demand: ttl must be > 0")
	}
	if c.OnDemand.MaxPending < 1 {
		errs = append(errs, "on_demand: max_pending must be >= 1")
	}
	if c.OnDemand.RateLimit < 1 {
		errs = append(errs, "on_demand: rate_limit must be >= 1")
	}

	// Archive, only when enabled.
	if c.Archive.Enabled {
		if c.Archive.Bucket == "" {
			errs = append(errs, "archive: bucket must not be empty when enabled")
		}
		if c.Archive.Interval.Duration <= 0 {
			errs = append(errs, "archive: interval must be > 0 when enabled")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
