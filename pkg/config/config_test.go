package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// helper to build a minimal valid config that can be tweaked in tests.
func validBaseConfig() *Config {
	cfg := DefaultConfig()
	cfg.RateLimiting.Enabled = true
	cfg.RateLimiting.HTTP.RequestsPerSecond = 10
	cfg.RateLimiting.HTTP.Burst = 20
	cfg.RateLimiting.HTTP.MaxConcurrent = 5
	cfg.RateLimiting.WebSocket.MaxConcurrent = 10
	return cfg
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("expected default config to be valid, got: %v", err)
	}
}

func TestValidate_RateLimitingDisabled_AllowsZeroValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 0
	cfg.RateLimiting.HTTP.Burst = 0
	cfg.RateLimiting.HTTP.MaxConcurrent = 0

	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected config to be valid when rate limiting disabled, got error: %v", err)
	}
}

func TestValidate_InvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"http rps must be > 0", func(c *Config) { c.RateLimiting.HTTP.RequestsPerSecond = 0 }},
		{"http burst must be > 0", func(c *Config) { c.RateLimiting.HTTP.Burst = 0 }},
		{"http max concurrent must be >= 0", func(c *Config) { c.RateLimiting.HTTP.MaxConcurrent = -1 }},
		{"ws max concurrent must be >= 0", func(c *Config) { c.RateLimiting.WebSocket.MaxConcurrent = -1 }},
		{"room id required", func(c *Config) { c.Dashboard.RoomID = "" }},
		{"room id must be file safe", func(c *Config) { c.Dashboard.RoomID = "team:standup" }},
		{"poll interval must be > 0", func(c *Config) { c.Dashboard.PollInterval = 0 }},
		{"unknown default range", func(c *Config) { c.Dashboard.DefaultRange = "2h" }},
		{"display limit must be > 0", func(c *Config) { c.Dashboard.DisplayLimit = 0 }},
		{"gauge max must be > 0", func(c *Config) { c.Dashboard.GaugeMaxMs = 0 }},
		{"stats url required", func(c *Config) { c.Stats.BaseURL = "" }},
		{"history cache ttl not negative", func(c *Config) { c.Stats.HistoryCache = -time.Second }},
		{"unknown export sink", func(c *Config) { c.Export.Sink = "s3" }},
		{"redis sink needs redis", func(c *Config) { c.Export.Sink = "redis"; c.Redis.Enabled = false }},
		{"sample rate bounded", func(c *Config) { c.Tracing.Enabled = true; c.Tracing.SampleRate = 2 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validBaseConfig()
			cfg.Server.ReadTimeout = time.Second
			cfg.Server.WriteTimeout = time.Second
			tc.mutate(cfg)

			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for case %q, got nil", tc.name)
			}
		})
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("RILLSCOPE_ROOM_ID", "room-from-env")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Dashboard.RoomID != "room-from-env" {
		t.Fatalf("expected env override, got %q", cfg.Dashboard.RoomID)
	}
	if cfg.Dashboard.PollInterval != 5*time.Second {
		t.Fatalf("expected default poll interval, got %v", cfg.Dashboard.PollInterval)
	}
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
dashboard:
  room_id: standup
  is_admin: true
  poll_interval: 2s
  default_range: 24h
stats:
  base_url: http://stats.internal:9000
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Dashboard.RoomID != "standup" || !cfg.Dashboard.IsAdmin {
		t.Fatalf("dashboard section not applied: %+v", cfg.Dashboard)
	}
	if cfg.Dashboard.DefaultRange != "24h" || cfg.Dashboard.PollInterval != 2*time.Second {
		t.Fatalf("unexpected dashboard timing: %+v", cfg.Dashboard)
	}
	if cfg.Dashboard.DisplayLimit != 3 {
		t.Fatalf("expected default display limit to survive, got %d", cfg.Dashboard.DisplayLimit)
	}
	if cfg.Stats.BaseURL != "http://stats.internal:9000" {
		t.Fatalf("unexpected stats url %q", cfg.Stats.BaseURL)
	}
}

func TestLoad_InvalidYAMLFailsValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("export:\n  sink: ftp\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error")
	}
}
