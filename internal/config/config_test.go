package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Upstream.URL = "wss://feed.example.com/ws"
	return cfg
}

func TestValidate_DefaultsWithURLPass(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{
			name:    "no sports",
			mutate:  func(c *Config) { c.Upstream.Sports = nil },
			wantMsg: "at least one sport",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.LogLevel = "verbose" },
			wantMsg: "unknown log_level",
		},
		{
			name:    "bad default tier",
			mutate:  func(c *Config) { c.Entitlements.DefaultTier = "platinum" },
			wantMsg: "unknown default_tier",
		},
		{
			name:    "zero on-demand ttl",
			mutate:  func(c *Config) { c.OnDemand.TTL = duration{} },
			wantMsg: "on_demand: ttl",
		},
		{
			name: "archive enabled without bucket",
			mutate: func(c *Config) {
				c.Archive.Enabled = true
				c.Archive.Bucket = ""
			},
			wantMsg: "archive: bucket",
		},
		{
			name: "server port out of range",
			mutate: func(c *Config) {
				c.Server.Port = 70000
			},
			wantMsg: "server: port",
		},
		{
			name: "postgres min over max",
			mutate: func(c *Config) {
				c.Postgres.Host = "localhost"
				c.Postgres.PoolMinConns = 20
			},
			wantMsg: "pool_min_conns must not exceed pool_max_conns",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Validate() error = %q, want it to mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.Upstream.Sports = nil
	cfg.LogLevel = "verbose"
	cfg.Redis.Addr = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() error = nil, want combined error")
	}
	for _, want := range []string{"at least one sport", "unknown log_level", "redis: addr"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error missing %q: %v", want, err)
		}
	}
}

func TestValidate_EmptyUpstreamURLDisablesFeed(t *testing.T) {
	// No upstream url means the feed is disabled, not that the gateway
	// refuses to start. Upstream sub-fields are ignored in that case.
	cfg := Defaults()
	cfg.Upstream.URL = ""
	cfg.Upstream.Sports = nil
	cfg.Upstream.MaxReconnectAttempts = 0

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil with feed disabled", err)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("ODDSGATE_UPSTREAM_URL", "wss://override.example.com/ws")
	t.Setenv("ODDSGATE_UPSTREAM_SPORTS", "basketball_nba, icehockey_nhl")
	t.Setenv("ODDSGATE_SERVER_PORT", "9100")
	t.Setenv("ODDSGATE_SERVER_ENABLED", "false")
	t.Setenv("ODDSGATE_ON_DEMAND_TTL", "45s")
	t.Setenv("ODDSGATE_LOG_LEVEL", "debug")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	if cfg.Upstream.URL != "wss://override.example.com/ws" {
		t.Errorf("Upstream.URL = %q, want env override", cfg.Upstream.URL)
	}
	if len(cfg.Upstream.Sports) != 2 || cfg.Upstream.Sports[1] != "icehockey_nhl" {
		t.Errorf("Upstream.Sports = %v, want trimmed comma split", cfg.Upstream.Sports)
	}
	if cfg.Server.Port != 9100 || cfg.Server.Enabled {
		t.Errorf("Server = %+v, want port 9100 disabled", cfg.Server)
	}
	if cfg.OnDemand.TTL.Duration != 45*time.Second {
		t.Errorf("OnDemand.TTL = %v, want 45s", cfg.OnDemand.TTL.Duration)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestApplyEnvOverrides_EmptyVarsLeaveDefaults(t *testing.T) {
	t.Setenv("ODDSGATE_SERVER_PORT", "")
	t.Setenv("ODDSGATE_UPSTREAM_SPORTS", "")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want default 8000", cfg.Server.Port)
	}
	if len(cfg.Upstream.Sports) != 2 {
		t.Errorf("Upstream.Sports = %v, want defaults kept", cfg.Upstream.Sports)
	}
}
