package reliability

import (
	"context"

	"rillscope/internal/core/domain"
	"rillscope/internal/core/ports"
	"rillscope/pkg/cache"
)

// HistoryCache serves repeated historical analytics requests for the same
// room and range from memory. Live stats always go to the provider.
type HistoryCache struct {
	ports.StatsProvider
	cache *cache.Cache[*domain.HistoricalSnapshot]
}

// NewHistoryCache wraps provider with c for historical analytics.
func NewHistoryCache(provider ports.StatsProvider, c *cache.Cache[*domain.HistoricalSnapshot]) *HistoryCache {
	return &HistoryCache{StatsProvider: provider, cache: c}
}

func historyKey(roomID string, rng domain.RangeToken) string {
	return roomID + "|" + string(rng)
}

// GetHistoricalAnalytics serves roomID/rng from the cache when present.
func (h *HistoryCache) GetHistoricalAnalytics(ctx context.Context, roomID string, rng domain.RangeToken) (*domain.HistoricalSnapshot, error) {
	v, _, err := h.cache.GetOrLoad(ctx, historyKey(roomID, rng), func(ctx context.Context) (*domain.HistoricalSnapshot, error) {
		return h.StatsProvider.GetHistoricalAnalytics(ctx, roomID, rng)
	})
	return v, err
}

// InvalidateRoom drops every cached range of a room.
func (h *HistoryCache) InvalidateRoom(roomID string) int {
	return h.cache.Invalidate(roomID + "|")
}

var _ ports.StatsProvider = (*HistoryCache)(nil)
