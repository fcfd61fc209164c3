package main

import (
	"fmt"

	"rillscope/internal/core/charts"
	"rillscope/internal/core/domain"
	"rillscope/internal/core/ports"
	"rillscope/internal/core/services"
	"rillscope/internal/infrastructure/reliability"
	"rillscope/internal/infrastructure/repositories"
	"rillscope/internal/infrastructure/repositories/memory"
	"rillscope/internal/infrastructure/statsclient"
	"rillscope/pkg/artifact"
	"rillscope/pkg/cache"
	"rillscope/pkg/circuitbreaker"
	"rillscope/pkg/config"
	"rillscope/pkg/retry"
	"rillscope/pkg/validation"

	"go.uber.org/zap"
)

func controllerConfig(cfg *config.Config) services.ControllerConfig {
	d := cfg.Dashboard
	return services.ControllerConfig{
		RoomID:                 d.RoomID,
		IsAdmin:                d.IsAdmin,
		PollInterval:           d.PollInterval,
		DefaultRange:           domain.RangeToken(d.DefaultRange),
		DisplayLimit:           d.DisplayLimit,
		SeriesLength:           d.SeriesLength,
		HistoryRefreshInterval: d.HistoryRefreshInterval,
		GaugeMaxMs:             d.GaugeMaxMs,
		ChartSize:              charts.Size{Width: d.ChartWidth, Height: d.ChartHeight},
	}
}

func retryConfig(cfg config.RetryConfig) retry.Config {
	rc := retry.DefaultConfig()
	rc.Enabled = cfg.Enabled
	if cfg.MaxAttempts > 0 {
		rc.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.InitialDelay > 0 {
		rc.InitialDelay = cfg.InitialDelay
	}
	if cfg.MaxDelay > 0 {
		rc.MaxDelay = cfg.MaxDelay
	}
	return rc
}

func breakerConfig(cfg config.CircuitBreakerConfig) circuitbreaker.Config {
	bc := circuitbreaker.DefaultConfig()
	if cfg.MaxFailures > 0 {
		bc.FailureThreshold = cfg.MaxFailures
	}
	if cfg.ResetTimeout > 0 {
		bc.Timeout = cfg.ResetTimeout
	}
	if cfg.HalfOpenMaxCalls > 0 {
		bc.MaxRequestsHalfOpen = cfg.HalfOpenMaxCalls
	}
	return bc
}

// statsStack is the provider as the controller sees it, plus the raw
// client which also moderates.
type statsStack struct {
	client   *statsclient.Client
	wrapper  *reliability.StatsProviderWrapper
	provider ports.StatsProvider
}

func buildStats(cfg *config.Config, log *zap.SugaredLogger) (*statsStack, error) {
	if err := validation.ValidateURL(cfg.Stats.BaseURL); err != nil {
		return nil, fmt.Errorf("stats.base_url: %w", err)
	}

	client := statsclient.NewClient(cfg.Stats.BaseURL, cfg.Stats.APIKey, cfg.Stats.Timeout)

	var opts []reliability.WrapperOption
	if cfg.Stats.CircuitBreaker.Enabled {
		opts = append(opts, reliability.WithCircuitBreaker(breakerConfig(cfg.Stats.CircuitBreaker)))
	}
	wrapper := reliability.NewStatsProviderWrapper(client, retryConfig(cfg.Stats.Retry), log, opts...)

	stack := &statsStack{client: client, wrapper: wrapper, provider: wrapper}
	if ttl := cfg.Stats.HistoryCache; ttl > 0 {
		stack.provider = reliability.NewHistoryCache(wrapper, cache.New[*domain.HistoricalSnapshot](ttl))
	}
	return stack, nil
}

// exportOptions routes exports to the configured sink. The file sink
// writes through the artifact store; redis and memory use an export
// repository, which also serves stored exports back.
func exportOptions(cfg *config.Config, factory *repositories.RepositoryFactory, log *zap.SugaredLogger) ([]services.ControllerOption, error) {
	switch cfg.Export.Sink {
	case "file":
		store, err := artifact.NewFileStorage(cfg.Export.Directory)
		if err != nil {
			return nil, fmt.Errorf("export directory: %w", err)
		}
		return []services.ControllerOption{services.WithArtifactStore(store)}, nil
	case "redis":
		if factory.RedisClient() == nil {
			log.Warnw("export sink is redis but Redis is unavailable, keeping exports in memory")
		}
		return []services.ControllerOption{services.WithExportSink(factory.CreateExportRepository())}, nil
	case "memory":
		return []services.ControllerOption{services.WithExportSink(memory.NewMemoryExportRepository())}, nil
	default:
		return nil, fmt.Errorf("unknown export sink %q", cfg.Export.Sink)
	}
}
