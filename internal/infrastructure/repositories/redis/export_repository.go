package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"rillscope/internal/core/domain"
	"rillscope/internal/core/ports"
	"rillscope/internal/core/services"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "rillscope:"

// RedisExportRepository stores each export payload under its own key with a
// TTL. Per room, a sorted set indexes ids by creation time and a hash holds
// the listing metadata.
type RedisExportRepository struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
	newID  func() string
}

// NewRedisExportRepository stores exports in Redis for ttl. Zero keeps them.
func NewRedisExportRepository(client redis.UniversalClient, ttl time.Duration) *RedisExportRepository {
	return &RedisExportRepository{
		client: client,
		prefix: keyPrefix,
		ttl:    ttl,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

func (r *RedisExportRepository) payloadKey(roomID, id string) string {
	return r.prefix + "export:" + roomID + ":" + id
}

func (r *RedisExportRepository) indexKey(roomID string) string {
	return r.prefix + "exports:" + roomID
}

func (r *RedisExportRepository) metaKey(roomID string) string {
	return r.prefix + "exports_meta:" + roomID
}

// Deliver stores payload and indexes it under its room.
func (r *RedisExportRepository) Deliver(ctx context.Context, payload *domain.ExportPayload) error {
	if payload == nil {
		return fmt.Errorf("nil export payload")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal export: %w", err)
	}

	at := r.now().UTC()
	rec := domain.ExportRecord{
		ID:        r.newID(),
		RoomID:    payload.RoomID,
		Filename:  services.ExportFilename(payload.RoomID, at),
		SizeBytes: len(data),
		CreatedAt: at,
	}
	meta, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal export record: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.payloadKey(rec.RoomID, rec.ID), data, r.ttl)
		pipe.HSet(ctx, r.metaKey(rec.RoomID), rec.ID, meta)
		pipe.ZAdd(ctx, r.indexKey(rec.RoomID), redis.Z{Score: float64(at.UnixMilli()), Member: rec.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store export in Redis: %w", err)
	}
	return nil
}

// Get loads a stored export.
func (r *RedisExportRepository) Get(ctx context.Context, roomID, id string) (*domain.ExportPayload, error) {
	data, err := r.client.Get(ctx, r.payloadKey(roomID, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrExportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get export from Redis: %w", err)
	}

	var payload domain.ExportPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal export: %w", err)
	}
	return &payload, nil
}

// List returns the room's exports newest first. Index entries whose
// payload has expired are pruned.
func (r *RedisExportRepository) List(ctx context.Context, roomID string) ([]*domain.ExportRecord, error) {
	ids, err := r.client.ZRevRange(ctx, r.indexKey(roomID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}
	if len(ids) == 0 {
		return []*domain.ExportRecord{}, nil
	}

	pipe := r.client.Pipeline()
	exists := make([]*redis.IntCmd, len(ids))
	for i, id := range ids {
		exists[i] = pipe.Exists(ctx, r.payloadKey(roomID, id))
	}
	metaCmd := pipe.HMGet(ctx, r.metaKey(roomID), ids...)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to load export metadata: %w", err)
	}

	metas := metaCmd.Val()
	records := make([]*domain.ExportRecord, 0, len(ids))
	var expired []string
	for i, id := range ids {
		raw, _ := metas[i].(string)
		if exists[i].Val() == 0 || raw == "" {
			expired = append(expired, id)
			continue
		}
		var rec domain.ExportRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			expired = append(expired, id)
			continue
		}
		records = append(records, &rec)
	}

	if len(expired) > 0 {
		r.prune(ctx, roomID, expired)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

func (r *RedisExportRepository) prune(ctx context.Context, roomID string, ids []string) {
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	pipe := r.client.Pipeline()
	pipe.ZRem(ctx, r.indexKey(roomID), members...)
	pipe.HDel(ctx, r.metaKey(roomID), ids...)
	_, _ = pipe.Exec(ctx)
}

// Delete removes a stored export and its index entry.
func (r *RedisExportRepository) Delete(ctx context.Context, roomID, id string) error {
	var del *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, r.payloadKey(roomID, id))
		pipe.HDel(ctx, r.metaKey(roomID), id)
		pipe.ZRem(ctx, r.indexKey(roomID), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete export: %w", err)
	}
	if del.Val() == 0 {
		return domain.ErrExportNotFound
	}
	return nil
}

var _ ports.ExportRepository = (*RedisExportRepository)(nil)
