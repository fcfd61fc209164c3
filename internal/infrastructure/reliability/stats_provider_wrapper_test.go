package reliability

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"rillscope/internal/core/domain"
	"rillscope/internal/infrastructure/statsclient"
	"rillscope/pkg/circuitbreaker"
	"rillscope/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockStatsProvider struct {
	mock.Mock
}

func (m *MockStatsProvider) GetDetailedStats(ctx context.Context) (*domain.Snapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Snapshot), args.Error(1)
}

func (m *MockStatsProvider) GetRoomStats(ctx context.Context, roomID string) (*domain.ParticipantSnapshot, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ParticipantSnapshot), args.Error(1)
}

func (m *MockStatsProvider) GetHistoricalAnalytics(ctx context.Context, roomID string, rng domain.RangeToken) (*domain.HistoricalSnapshot, error) {
	args := m.Called(ctx, roomID, rng)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.HistoricalSnapshot), args.Error(1)
}

func fastRetry(attempts int) retry.Config {
	return retry.Config{
		Enabled:      true,
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		Multiplier:   1,
	}
}

func TestStatsProviderWrapper_RetriesTransientFailures(t *testing.T) {
	provider := new(MockStatsProvider)
	provider.On("GetDetailedStats", mock.Anything).Return(nil, errors.New("connection reset")).Twice()
	provider.On("GetDetailedStats", mock.Anything).Return(&domain.Snapshot{}, nil).Once()

	w := NewStatsProviderWrapper(provider, fastRetry(3), zap.NewNop().Sugar())

	snap, err := w.GetDetailedStats(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, snap)
	provider.AssertNumberOfCalls(t, "GetDetailedStats", 3)
}

func TestStatsProviderWrapper_PermanentErrorIsNotRetried(t *testing.T) {
	notFound := &statsclient.StatusError{Path: "/x", StatusCode: http.StatusNotFound}
	provider := new(MockStatsProvider)
	provider.On("GetRoomStats", mock.Anything, "room-1").Return(nil, notFound)

	w := NewStatsProviderWrapper(provider, fastRetry(3), nil)

	_, err := w.GetRoomStats(context.Background(), "room-1")
	var se *statsclient.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	provider.AssertNumberOfCalls(t, "GetRoomStats", 1)
}

func TestStatsProviderWrapper_OpenBreakerReportsUnavailable(t *testing.T) {
	provider := new(MockStatsProvider)
	provider.On("GetHistoricalAnalytics", mock.Anything, "room-1", domain.Range1h).Return(nil, errors.New("boom"))

	w := NewStatsProviderWrapper(provider, retry.Config{}, nil, WithCircuitBreaker(circuitbreaker.Config{
		FailureThreshold: 2,
		Timeout:          time.Hour,
	}))

	for i := 0; i < 2; i++ {
		_, err := w.GetHistoricalAnalytics(context.Background(), "room-1", domain.Range1h)
		assert.EqualError(t, err, "boom")
	}

	_, err := w.GetHistoricalAnalytics(context.Background(), "room-1", domain.Range1h)
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	provider.AssertNumberOfCalls(t, "GetHistoricalAnalytics", 2)

	stats, ok := w.GetCircuitBreakerStats()
	require.True(t, ok)
	assert.Equal(t, circuitbreaker.StateOpen, stats.State)
}

func TestStatsProviderWrapper_OpenBreakerStopsRetries(t *testing.T) {
	provider := new(MockStatsProvider)
	provider.On("GetDetailedStats", mock.Anything).Return(nil, errors.New("boom"))

	w := NewStatsProviderWrapper(provider, fastRetry(5), nil, WithCircuitBreaker(circuitbreaker.Config{
		FailureThreshold: 1,
		Timeout:          time.Hour,
	}))

	_, err := w.GetDetailedStats(context.Background())
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	provider.AssertNumberOfCalls(t, "GetDetailedStats", 1)
}

func TestStatsProviderWrapper_NoBreaker(t *testing.T) {
	w := NewStatsProviderWrapper(new(MockStatsProvider), retry.Config{}, nil)
	_, ok := w.GetCircuitBreakerStats()
	assert.False(t, ok)
}
