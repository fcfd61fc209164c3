package config

import (
	"fmt"
	"os"
	"time"

	"rillscope/pkg/validation"

	"gopkg.in/yaml.v2"
)

// RetryConfig configures retries of stats calls.
type RetryConfig struct {
	Enabled      bool          `yaml:"enabled"`
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// CircuitBreakerConfig configures the stats circuit breaker.
type CircuitBreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	MaxFailures      int           `yaml:"max_failures"`
	ResetTimeout     time.Duration `yaml:"reset_timeout"`
	HalfOpenMaxCalls int           `yaml:"half_open_max_calls"`
}

// Config is the rillscope configuration.
type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Dashboard struct {
		RoomID                 string        `yaml:"room_id"`
		IsAdmin                bool          `yaml:"is_admin"`
		PollInterval           time.Duration `yaml:"poll_interval"`
		DefaultRange           string        `yaml:"default_range"`
		DisplayLimit           int           `yaml:"display_limit"`
		SeriesLength           int           `yaml:"series_length"`
		HistoryRefreshInterval time.Duration `yaml:"history_refresh_interval"`
		GaugeMaxMs             float64       `yaml:"gauge_max_ms"`
		ChartWidth             float64       `yaml:"chart_width"`
		ChartHeight            float64       `yaml:"chart_height"`
	} `yaml:"dashboard"`

	Stats struct {
		BaseURL        string               `yaml:"base_url"`
		APIKey         string               `yaml:"api_key"`
		Timeout        time.Duration        `yaml:"timeout"`
		HistoryCache   time.Duration        `yaml:"history_cache_ttl"` // 0 disables
		Retry          RetryConfig          `yaml:"retry"`
		CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	} `yaml:"stats"`

	Export struct {
		Sink      string        `yaml:"sink"` // file | redis | memory
		Directory string        `yaml:"directory"`
		RedisTTL  time.Duration `yaml:"redis_ttl"`
	} `yaml:"export"`

	Monitoring struct {
		PrometheusEnabled bool   `yaml:"prometheus_enabled"`
		MetricsPath       string `yaml:"metrics_path"`
	} `yaml:"monitoring"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	Auth struct {
		JWTSecret      string        `yaml:"jwt_secret"`
		AccessTokenTTL time.Duration `yaml:"access_token_ttl"`
		AdminRole      string        `yaml:"admin_role"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
	} `yaml:"auth"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
			MaxConcurrent     int     `yaml:"max_concurrent"` // global concurrent HTTP requests
		} `yaml:"http"`

		WebSocket struct {
			MaxConcurrent int `yaml:"max_concurrent_connections"`
		} `yaml:"websocket"`
	} `yaml:"rate_limiting"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		ServiceName string  `yaml:"service_name"`
		JaegerURL   string  `yaml:"jaeger_url"`
		Environment string  `yaml:"environment"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`
}

var validRanges = map[string]bool{"5m": true, "1h": true, "6h": true, "24h": true, "7d": true, "30d": true}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Server
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	// Dashboard
	if c.Dashboard.RoomID == "" {
		return fmt.Errorf("dashboard.room_id must not be empty")
	}
	if err := validation.ValidateRoomID(c.Dashboard.RoomID); err != nil {
		return fmt.Errorf("dashboard.room_id: %w", err)
	}
	if c.Dashboard.PollInterval <= 0 {
		return fmt.Errorf("dashboard.poll_interval must be > 0")
	}
	if !validRanges[c.Dashboard.DefaultRange] {
		return fmt.Errorf("dashboard.default_range must be one of 5m, 1h, 6h, 24h, 7d, 30d")
	}
	if c.Dashboard.DisplayLimit <= 0 {
		return fmt.Errorf("dashboard.display_limit must be > 0")
	}
	if c.Dashboard.SeriesLength < 2 {
		return fmt.Errorf("dashboard.series_length must be >= 2")
	}
	if c.Dashboard.HistoryRefreshInterval < 0 {
		return fmt.Errorf("dashboard.history_refresh_interval must be >= 0")
	}
	if c.Dashboard.GaugeMaxMs <= 0 {
		return fmt.Errorf("dashboard.gauge_max_ms must be > 0")
	}
	if c.Dashboard.ChartWidth <= 0 || c.Dashboard.ChartHeight <= 0 {
		return fmt.Errorf("dashboard.chart_width and chart_height must be > 0")
	}

	// Stats
	if c.Stats.BaseURL == "" {
		return fmt.Errorf("stats.base_url must not be empty")
	}
	if c.Stats.Timeout <= 0 {
		return fmt.Errorf("stats.timeout must be > 0")
	}
	if c.Stats.HistoryCache < 0 {
		return fmt.Errorf("stats.history_cache_ttl must be >= 0")
	}
	if c.Stats.Retry.Enabled && c.Stats.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("stats.retry.max_attempts must be > 0 when retry is enabled")
	}
	if c.Stats.CircuitBreaker.Enabled {
		if c.Stats.CircuitBreaker.MaxFailures <= 0 {
			return fmt.Errorf("stats.circuit_breaker.max_failures must be > 0 when the breaker is enabled")
		}
		if c.Stats.CircuitBreaker.ResetTimeout <= 0 {
			return fmt.Errorf("stats.circuit_breaker.reset_timeout must be > 0 when the breaker is enabled")
		}
	}

	// Export
	switch c.Export.Sink {
	case "file":
		if c.Export.Directory == "" {
			return fmt.Errorf("export.directory must not be empty when export.sink=file")
		}
	case "redis":
		if !c.Redis.Enabled {
			return fmt.Errorf("export.sink=redis requires redis.enabled=true")
		}
	case "memory":
	default:
		return fmt.Errorf("export.sink must be one of file, redis, memory")
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
	}

	// Auth
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must not be empty")
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("auth.access_token_ttl must be > 0")
	}

	// Rate limiting
	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.http.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.Burst <= 0 {
			return fmt.Errorf("rate_limiting.http.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.http.max_concurrent must be >= 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.websocket.max_concurrent_connections must be >= 0 when rate limiting is enabled")
		}
	}

	// Tracing
	if c.Tracing.Enabled {
		if c.Tracing.JaegerURL == "" {
			return fmt.Errorf("tracing.jaeger_url must not be empty when tracing is enabled")
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be within [0, 1]")
		}
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.Dashboard.RoomID = "default"
	cfg.Dashboard.IsAdmin = false
	cfg.Dashboard.PollInterval = 5 * time.Second
	cfg.Dashboard.DefaultRange = "1h"
	cfg.Dashboard.DisplayLimit = 3
	cfg.Dashboard.SeriesLength = 60
	cfg.Dashboard.HistoryRefreshInterval = time.Minute
	cfg.Dashboard.GaugeMaxMs = 500
	cfg.Dashboard.ChartWidth = 600
	cfg.Dashboard.ChartHeight = 300

	cfg.Stats.BaseURL = "http://localhost:8080"
	cfg.Stats.Timeout = 4 * time.Second
	cfg.Stats.HistoryCache = 30 * time.Second
	cfg.Stats.Retry = RetryConfig{
		Enabled:      true,
		MaxAttempts:  2,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     time.Second,
	}
	cfg.Stats.CircuitBreaker = CircuitBreakerConfig{
		Enabled:          true,
		MaxFailures:      5,
		ResetTimeout:     30 * time.Second,
		HalfOpenMaxCalls: 1,
	}

	cfg.Export.Sink = "file"
	cfg.Export.Directory = "exports"
	cfg.Export.RedisTTL = 7 * 24 * time.Hour

	cfg.Monitoring.PrometheusEnabled = true
	cfg.Monitoring.MetricsPath = "/metrics"

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10

	cfg.Auth.JWTSecret = "change-me-in-production"
	cfg.Auth.AccessTokenTTL = 12 * time.Hour
	cfg.Auth.AdminRole = "admin"
	cfg.Auth.AllowedOrigins = []string{"*"}

	// Rate limiting defaults (disabled by default)
	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 50
	cfg.RateLimiting.HTTP.Burst = 100
	cfg.RateLimiting.HTTP.MaxConcurrent = 0
	cfg.RateLimiting.WebSocket.MaxConcurrent = 0

	cfg.Tracing.Enabled = false
	cfg.Tracing.ServiceName = "rillscope"
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.Environment = "development"
	cfg.Tracing.SampleRate = 1.0

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("RILLSCOPE_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if room := os.Getenv("RILLSCOPE_ROOM_ID"); room != "" {
		c.Dashboard.RoomID = room
	}
	if url := os.Getenv("RILLSCOPE_STATS_URL"); url != "" {
		c.Stats.BaseURL = url
	}
	if key := os.Getenv("RILLSCOPE_STATS_API_KEY"); key != "" {
		c.Stats.APIKey = key
	}
	if level := os.Getenv("RILLSCOPE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if secret := os.Getenv("RILLSCOPE_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if addr := os.Getenv("RILLSCOPE_REDIS_ADDRESS"); addr != "" {
		c.Redis.Address = addr
		c.Redis.Enabled = true
	}
}
