package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"rillscope/internal/core/domain"
	"rillscope/internal/core/services"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	schemaVersionKey     = keyPrefix + "schema:version"
	currentSchemaVersion = 1
)

// Migration represents a key schema migration
type Migration struct {
	Version int
	Up      func(ctx context.Context, client redis.UniversalClient) error
}

// Migrate runs all pending migrations
func Migrate(ctx context.Context, client redis.UniversalClient, logger *zap.SugaredLogger) error {
	currentVersion, err := getSchemaVersion(ctx, client)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	if currentVersion >= currentSchemaVersion {
		if logger != nil {
			logger.Infow("schema is up to date",
				"current_version", currentVersion,
				"target_version", currentSchemaVersion,
			)
		}
		return nil
	}

	for _, migration := range getMigrations() {
		if migration.Version <= currentVersion {
			continue
		}
		if logger != nil {
			logger.Infow("running migration", "version", migration.Version)
		}

		if err := migration.Up(ctx, client); err != nil {
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}
		if err := setSchemaVersion(ctx, client, migration.Version); err != nil {
			return fmt.Errorf("failed to update schema version: %w", err)
		}
	}

	if logger != nil {
		logger.Infow("all migrations completed", "final_version", currentSchemaVersion)
	}
	return nil
}

func getSchemaVersion(ctx context.Context, client redis.UniversalClient) (int, error) {
	val, err := client.Get(ctx, schemaVersionKey).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

func setSchemaVersion(ctx context.Context, client redis.UniversalClient, version int) error {
	return client.Set(ctx, schemaVersionKey, version, 0).Err()
}

func getMigrations() []Migration {
	return []Migration{
		{Version: 1, Up: indexStoredExports},
	}
}

// parsePayloadKey splits "rillscope:export:{room}:{id}". Room ids may
// contain colons; export ids never do.
func parsePayloadKey(key string) (roomID, id string, ok bool) {
	rest, found := strings.CutPrefix(key, keyPrefix+"export:")
	if !found {
		return "", "", false
	}
	i := strings.LastIndex(rest, ":")
	if i <= 0 || i == len(rest)-1 {
		return "", "", false
	}
	return rest[:i], rest[i+1:], true
}

// indexStoredExports adds listing metadata for payloads written before
// exports were indexed. Existing index entries are left untouched.
func indexStoredExports(ctx context.Context, client redis.UniversalClient) error {
	iter := client.Scan(ctx, 0, keyPrefix+"export:*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		roomID, id, ok := parsePayloadKey(key)
		if !ok {
			continue
		}

		data, err := client.Get(ctx, key).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return err
		}
		var payload domain.ExportPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			continue
		}

		rec := domain.ExportRecord{
			ID:        id,
			RoomID:    roomID,
			Filename:  services.ExportFilename(roomID, payload.ExportedAt),
			SizeBytes: len(data),
			CreatedAt: payload.ExportedAt,
		}
		meta, err := json.Marshal(rec)
		if err != nil {
			return err
		}

		pipe := client.Pipeline()
		pipe.HSetNX(ctx, keyPrefix+"exports_meta:"+roomID, id, meta)
		pipe.ZAddNX(ctx, keyPrefix+"exports:"+roomID, redis.Z{Score: float64(payload.ExportedAt.UnixMilli()), Member: id})
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
	}
	return iter.Err()
}
