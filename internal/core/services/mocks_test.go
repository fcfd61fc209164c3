package services

import (
	"context"
	"sync"
	"time"

	"rillscope/internal/core/domain"

	"github.com/stretchr/testify/mock"
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

type MockModerator struct {
	mock.Mock
}

func (m *MockModerator) Mute(ctx context.Context, roomID, participantID string) error {
	return m.Called(ctx, roomID, participantID).Error(0)
}

func (m *MockModerator) Kick(ctx context.Context, roomID, participantID string) error {
	return m.Called(ctx, roomID, participantID).Error(0)
}

type MockAlertPublisher struct {
	mock.Mock
}

func (m *MockAlertPublisher) PublishAlertEvent(ctx context.Context, event domain.AlertEvent) error {
	return m.Called(ctx, event).Error(0)
}

// fakeProvider is a hand-driven StatsProvider for timing-sensitive tests.
// Each hook may block on the context to simulate a slow provider.
type fakeProvider struct {
	mu           sync.Mutex
	detailed     func(ctx context.Context, call int) (*domain.Snapshot, error)
	room         func(ctx context.Context, call int) (*domain.ParticipantSnapshot, error)
	history      func(ctx context.Context, rng domain.RangeToken, call int) (*domain.HistoricalSnapshot, error)
	detailedN    int
	roomN        int
	historyN     int
	historyCalls []domain.RangeToken
}

func (f *fakeProvider) GetDetailedStats(ctx context.Context) (*domain.Snapshot, error) {
	f.mu.Lock()
	f.detailedN++
	n, fn := f.detailedN, f.detailed
	f.mu.Unlock()
	if fn == nil {
		return &domain.Snapshot{}, nil
	}
	return fn(ctx, n)
}

func (f *fakeProvider) GetRoomStats(ctx context.Context, roomID string) (*domain.ParticipantSnapshot, error) {
	f.mu.Lock()
	f.roomN++
	n, fn := f.roomN, f.room
	f.mu.Unlock()
	if fn == nil {
		return &domain.ParticipantSnapshot{}, nil
	}
	return fn(ctx, n)
}

func (f *fakeProvider) GetHistoricalAnalytics(ctx context.Context, roomID string, rng domain.RangeToken) (*domain.HistoricalSnapshot, error) {
	f.mu.Lock()
	f.historyN++
	f.historyCalls = append(f.historyCalls, rng)
	n, fn := f.historyN, f.history
	f.mu.Unlock()
	if fn == nil {
		return &domain.HistoricalSnapshot{}, nil
	}
	return fn(ctx, rng, n)
}

func (f *fakeProvider) detailedCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detailedN
}

func (f *fakeProvider) historyRanges() []domain.RangeToken {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.RangeToken(nil), f.historyCalls...)
}

// tickLog collects TickResults delivered by a poller.
type tickLog struct {
	mu      sync.Mutex
	results []TickResult
}

func (l *tickLog) add(r TickResult) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.results = append(l.results, r)
}

func (l *tickLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.results)
}

func (l *tickLog) all() []TickResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]TickResult(nil), l.results...)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func ptr[T any](v T) *T { return &v }
