package repositories

import (
	"context"
	"time"

	"rillscope/internal/core/ports"
	"rillscope/internal/infrastructure/repositories/memory"
	redisrepo "rillscope/internal/infrastructure/repositories/redis"
	"rillscope/pkg/config"
	rlog "rillscope/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory hands out export repositories, backed by Redis when it
// is enabled and reachable and by memory otherwise.
type RepositoryFactory struct {
	useRedis    bool
	redisClient *redis.Client
	exportTTL   time.Duration
	logger      *zap.SugaredLogger
}

// NewRepositoryFactory connects to Redis when it is enabled. A failed
// connection falls back to memory repositories rather than failing startup.
func NewRepositoryFactory(cfg *config.Config, log *zap.SugaredLogger) *RepositoryFactory {
	logger := rlog.OrNop(log)
	factory := &RepositoryFactory{
		useRedis:  cfg.Redis.Enabled,
		exportTTL: cfg.Export.RedisTTL,
		logger:    logger,
	}

	if cfg.Redis.Enabled {
		client, err := redisrepo.Connect(context.Background(), redisrepo.ClientOptions{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		}, logger)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory repositories",
				"error", err,
			)
			factory.useRedis = false
		} else {
			factory.redisClient = client
			logger.Info("using Redis repositories")
		}
	}

	if !factory.useRedis {
		logger.Info("using memory repositories")
	}

	return factory
}

// CreateExportRepository returns a Redis repository when connected. The
// memory fallback is a fresh store on every call.
func (f *RepositoryFactory) CreateExportRepository() ports.ExportRepository {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisExportRepository(f.redisClient, f.exportTTL)
	}
	return memory.NewMemoryExportRepository()
}

// RedisClient returns the shared client, or nil when Redis is not in use.
func (f *RepositoryFactory) RedisClient() *redis.Client {
	if !f.useRedis {
		return nil
	}
	return f.redisClient
}

// Close closes the Redis client, if any.
func (f *RepositoryFactory) Close() error {
	if f.redisClient != nil {
		return f.redisClient.Close()
	}
	return nil
}
