package redis

import (
	"context"
	"fmt"
	"time"

	"rillscope/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ClientOptions is the subset of redis.Options the config exposes.
type ClientOptions struct {
	Address  string
	Password string
	DB       int
	PoolSize int
	// ConnectTimeout bounds the initial ping and migrations.
	ConnectTimeout time.Duration
}

func (o ClientOptions) redisOptions() *redis.Options {
	return &redis.Options{
		Addr:         o.Address,
		Password:     o.Password,
		DB:           o.DB,
		PoolSize:     o.PoolSize,
		MinIdleConns: min(2, max(o.PoolSize, 0)),
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Connect opens a pooled client, checks it answers and brings the export
// key schema up to date. The client is closed again on any failure.
func Connect(ctx context.Context, opts ClientOptions, log *zap.SugaredLogger) (*redis.Client, error) {
	log = logger.OrNop(log)
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 5 * time.Second
	}

	client := redis.NewClient(opts.redisOptions())

	ctx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Address, err)
	}

	if err := Migrate(ctx, client, log); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to migrate export keys: %w", err)
	}

	log.Infow("connected to Redis",
		"address", opts.Address,
		"db", opts.DB,
		"pool_size", opts.PoolSize,
	)
	return client, nil
}
