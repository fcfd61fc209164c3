package reliability

import (
	"context"
	"errors"
	"testing"
	"time"

	"rillscope/internal/core/domain"
	"rillscope/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct {
	history  int
	detailed int
	failNext bool
}

func (p *countingProvider) GetDetailedStats(ctx context.Context) (*domain.Snapshot, error) {
	p.detailed++
	return &domain.Snapshot{}, nil
}

func (p *countingProvider) GetRoomStats(ctx context.Context, roomID string) (*domain.ParticipantSnapshot, error) {
	return &domain.ParticipantSnapshot{}, nil
}

func (p *countingProvider) GetHistoricalAnalytics(ctx context.Context, roomID string, rng domain.RangeToken) (*domain.HistoricalSnapshot, error) {
	p.history++
	if p.failNext {
		p.failNext = false
		return nil, errors.New("upstream down")
	}
	return &domain.HistoricalSnapshot{}, nil
}

func TestHistoryCache(t *testing.T) {
	p := &countingProvider{}
	h := NewHistoryCache(p, cache.New[*domain.HistoricalSnapshot](time.Minute))
	ctx := context.Background()

	first, err := h.GetHistoricalAnalytics(ctx, "room-1", domain.Range1h)
	require.NoError(t, err)
	second, err := h.GetHistoricalAnalytics(ctx, "room-1", domain.Range1h)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, p.history)

	_, err = h.GetHistoricalAnalytics(ctx, "room-1", domain.Range24h)
	require.NoError(t, err)
	assert.Equal(t, 2, p.history)

	assert.Equal(t, 2, h.InvalidateRoom("room-1"))
	_, err = h.GetHistoricalAnalytics(ctx, "room-1", domain.Range1h)
	require.NoError(t, err)
	assert.Equal(t, 3, p.history)

	_, err = h.GetDetailedStats(ctx)
	require.NoError(t, err)
	_, err = h.GetDetailedStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, p.detailed, "live stats are never cached")
}

func TestHistoryCache_ErrorsNotCached(t *testing.T) {
	p := &countingProvider{failNext: true}
	h := NewHistoryCache(p, cache.New[*domain.HistoricalSnapshot](time.Minute))

	_, err := h.GetHistoricalAnalytics(context.Background(), "room-1", domain.Range7d)
	assert.Error(t, err)
	_, err = h.GetHistoricalAnalytics(context.Background(), "room-1", domain.Range7d)
	assert.NoError(t, err)
	assert.Equal(t, 2, p.history)
}
