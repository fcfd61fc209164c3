package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"rillscope/internal/core/charts"
	"rillscope/internal/core/domain"
	"rillscope/internal/core/ports"
	"rillscope/pkg/artifact"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tickFor = 5 * time.Millisecond
)

// countingSurface counts draw calls; safe for concurrent use.
type countingSurface struct {
	mu    sync.Mutex
	calls int
	clear int
}

func (s *countingSurface) hit(clear bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if clear {
		s.clear++
	}
}

func (s *countingSurface) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls, s.clear
}

func (s *countingSurface) ClearRect(x, y, w, h float64) { s.hit(true) }
func (s *countingSurface) FillRect(x, y, w, h float64) { s.hit(false) }
func (s *countingSurface) BeginPath() { s.hit(false) }
func (s *countingSurface) MoveTo(x, y float64) { s.hit(false) }
func (s *countingSurface) LineTo(x, y float64) { s.hit(false) }
func (s *countingSurface) Arc(x, y, r, start, end float64) { s.hit(false) }
func (s *countingSurface) Stroke() { s.hit(false) }
func (s *countingSurface) Fill() { s.hit(false) }
func (s *countingSurface) FillText(text string, x, y float64) { s.hit(false) }
func (s *countingSurface) SetFillStyle(style string) { s.hit(false) }
func (s *countingSurface) SetStrokeStyle(style string) { s.hit(false) }
func (s *countingSurface) SetLineWidth(width float64) { s.hit(false) }
func (s *countingSurface) SetFont(font string) { s.hit(false) }

func exampleSnapshot() *domain.Snapshot {
	return &domain.Snapshot{
		Bandwidth: &domain.Bandwidth{Upload: 6000, Download: 2000},
		Video:     &domain.MediaStats{Quality: 4},
		Audio:     &domain.MediaStats{Quality: 5},
		Connection: &domain.ConnectionStats{
			RTT:        50,
			Jitter:     10,
			PacketLoss: 0.01,
			State:      domain.StateConnected,
		},
	}
}

func exampleParticipants() *domain.ParticipantSnapshot {
	return &domain.ParticipantSnapshot{
		ParticipantCount: 4,
		SpeakingCount:    1,
		VideoCount:       2,
		Participants: []domain.Participant{
			{ID: "p1", Name: ptr("alice"), IsSpeaking: true, HasVideo: true, HasAudio: true, Quality: 4, Latency: 45},
			{ID: "p2", Name: ptr("Bob"), AvatarURL: ptr("https://cdn.example/bob.png"), HasVideo: true, HasAudio: true, Quality: 5, Latency: 60},
			{ID: "p3", HasAudio: false, Quality: 3, Latency: 120},
		},
	}
}

func newTestController(t *testing.T, provider ports.StatsProvider, opts ...ControllerOption) *DashboardController {
	t.Helper()
	c, err := NewDashboardController(ControllerConfig{
		RoomID:       "room-1",
		PollInterval: time.Hour,
	}, provider, nil, opts...)
	require.NoError(t, err)
	t.Cleanup(c.Unmount)
	return c
}

func mountAndWaitForTick(t *testing.T, c *DashboardController) {
	t.Helper()
	require.NoError(t, c.Mount(context.Background()))
	require.Eventually(t, func() bool { return c.State().Generation >= 1 }, waitFor, tickFor)
}

func TestNewDashboardController_RequiresRoom(t *testing.T) {
	_, err := NewDashboardController(ControllerConfig{RoomID: "  "}, &fakeProvider{}, nil)
	assert.ErrorIs(t, err, domain.ErrRoomIDRequired)

	_, err = NewDashboardController(ControllerConfig{RoomID: "team:standup"}, &fakeProvider{}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidRoomID)
}

func TestDashboardController_InitialState(t *testing.T) {
	c := newTestController(t, &fakeProvider{})

	s := c.State()
	assert.Equal(t, domain.TabOverview, s.ActiveTab)
	assert.Equal(t, domain.Range1h, s.TimeRange)
	assert.True(t, s.AutoRefresh)
	assert.Equal(t, domain.FilterAll, s.StatusFilter)
	assert.Empty(t, s.SearchFilter)
	assert.Len(t, c.Charts(), 4)
}

func TestDashboardController_ExampleSnapshot(t *testing.T) {
	provider := &fakeProvider{
		detailed: func(ctx context.Context, call int) (*domain.Snapshot, error) {
			return exampleSnapshot(), nil
		},
	}
	c := newTestController(t, provider)
	mountAndWaitForTick(t, c)

	view := c.View(false)
	require.Len(t, view.Alerts, 1)
	assert.Equal(t, domain.AlertHighBandwidth, view.Alerts[0].Kind)
	assert.Equal(t, "High Bandwidth Usage", view.Alerts[0].Message)
	assert.Equal(t, 1, view.AlertCount)
	assert.Equal(t, "1.00%", view.Connection.PacketLoss)
	assert.Equal(t, "10ms", view.Connection.Jitter)
	assert.Equal(t, "50ms", view.Connection.RTT)
	assert.Equal(t, domain.StateConnected, view.Connection.State)
	assert.Equal(t, 4, view.Quality.Video)
	assert.Equal(t, 5, view.Quality.Audio)
}

func TestDashboardController_PerformanceLabels(t *testing.T) {
	provider := &fakeProvider{
		room: func(ctx context.Context, call int) (*domain.ParticipantSnapshot, error) {
			return exampleParticipants(), nil
		},
	}
	c := newTestController(t, provider)
	mountAndWaitForTick(t, c)

	perf := c.View(false).Performance
	require.Len(t, perf.Participants, 3)
	assert.Equal(t, "45ms", perf.Participants[0].Latency)
	assert.Equal(t, "60ms", perf.Participants[1].Latency)
	assert.Equal(t, "120ms", perf.Participants[2].Latency)
	assert.Equal(t, "75ms", perf.AverageRTT)
	assert.Equal(t, "4.0/5", perf.AverageQuality)

	counts := c.View(false).Counts
	assert.Equal(t, 4, counts.Participants, "reported count is kept as-is")
	assert.Equal(t, 3, counts.Listed)
}

func TestDashboardController_FailedFetchKeepsPreviousData(t *testing.T) {
	provider := &fakeProvider{
		detailed: func(ctx context.Context, call int) (*domain.Snapshot, error) {
			if call == 1 {
				return exampleSnapshot(), nil
			}
			return nil, errors.New("stats endpoint down")
		},
	}
	c, err := NewDashboardController(ControllerConfig{RoomID: "room-1", PollInterval: 20 * time.Millisecond}, provider, nil)
	require.NoError(t, err)
	t.Cleanup(c.Unmount)
	require.NoError(t, c.Mount(context.Background()))

	require.Eventually(t, func() bool { return provider.detailedCalls() >= 3 }, waitFor, tickFor)
	assert.Equal(t, "50ms", c.View(false).Connection.RTT)
	assert.Equal(t, 1, c.View(false).AlertCount)
}

func TestNextState(t *testing.T) {
	prev := DashboardState{
		ActiveTab:    domain.TabHistory,
		Snapshot:     exampleSnapshot(),
		Participants: exampleParticipants(),
		Generation:   3,
	}

	t.Run("both failed", func(t *testing.T) {
		next := nextState(prev, TickResult{Generation: 4, SnapshotErr: errors.New("x"), ParticipantsErr: errors.New("y")})
		assert.Equal(t, prev, next)
	})

	t.Run("partial success", func(t *testing.T) {
		fresh := &domain.Snapshot{}
		next := nextState(prev, TickResult{Generation: 4, Snapshot: fresh, ParticipantsErr: errors.New("y")})
		assert.Same(t, fresh, next.Snapshot)
		assert.Same(t, prev.Participants, next.Participants)
		assert.Equal(t, uint64(4), next.Generation)
		assert.Equal(t, domain.TabHistory, next.ActiveTab)
	})
}

func TestDashboardController_SetTimeRange(t *testing.T) {
	release := make(chan struct{})
	provider := &fakeProvider{
		history: func(ctx context.Context, rng domain.RangeToken, call int) (*domain.HistoricalSnapshot, error) {
			if rng == domain.Range24h {
				<-release
				return &domain.HistoricalSnapshot{PeakParticipants: ptr(20)}, nil
			}
			return &domain.HistoricalSnapshot{PeakParticipants: ptr(7)}, nil
		},
	}
	c := newTestController(t, provider)
	require.NoError(t, c.Mount(context.Background()))
	require.Eventually(t, func() bool { return c.View(false).History.PeakParticipants == "7" }, waitFor, tickFor)

	require.NoError(t, c.SetTimeRange(domain.Range24h))
	require.Eventually(t, func() bool { return len(provider.historyRanges()) == 2 }, waitFor, tickFor)

	// the old snapshot is still shown while the new fetch is pending
	view := c.View(false)
	assert.Equal(t, domain.Range24h, view.TimeRange)
	assert.Equal(t, "7", view.History.PeakParticipants)
	assert.Equal(t, domain.Range1h, view.History.Range)

	require.NoError(t, c.SetTimeRange(domain.Range24h), "same range is a no-op")
	close(release)

	require.Eventually(t, func() bool { return c.View(false).History.PeakParticipants == "20" }, waitFor, tickFor)
	assert.Equal(t, []domain.RangeToken{domain.Range1h, domain.Range24h}, provider.historyRanges())
}

func TestDashboardController_QuickRangeChangesKeepLatest(t *testing.T) {
	for i := 0; i < 20; i++ {
		release := make(chan struct{})
		provider := &fakeProvider{
			history: func(ctx context.Context, rng domain.RangeToken, call int) (*domain.HistoricalSnapshot, error) {
				switch rng {
				case domain.Range6h:
					<-release
					return &domain.HistoricalSnapshot{PeakParticipants: ptr(6)}, nil
				case domain.Range24h:
					return &domain.HistoricalSnapshot{PeakParticipants: ptr(24)}, nil
				}
				return &domain.HistoricalSnapshot{PeakParticipants: ptr(1)}, nil
			},
		}
		c := newTestController(t, provider)
		require.NoError(t, c.Mount(context.Background()))
		require.Eventually(t, func() bool { return c.View(false).History.PeakParticipants == "1" }, waitFor, tickFor)

		require.NoError(t, c.SetTimeRange(domain.Range6h))
		require.NoError(t, c.SetTimeRange(domain.Range24h))
		require.Eventually(t, func() bool { return c.View(false).History.Range == domain.Range24h }, waitFor, tickFor)

		close(release)
		require.Eventually(t, func() bool { return len(provider.historyRanges()) == 3 }, waitFor, tickFor)
		assert.Never(t, func() bool {
			v := c.View(false)
			return v.History.Range != domain.Range24h || v.History.PeakParticipants != "24"
		}, 50*time.Millisecond, tickFor)
		assert.Equal(t, domain.Range24h, c.State().TimeRange)
		c.Unmount()
	}
}

func TestDashboardController_SetTimeRangeInvalid(t *testing.T) {
	c := newTestController(t, &fakeProvider{})
	assert.ErrorIs(t, c.SetTimeRange("2w"), domain.ErrInvalidRange)
}

func TestDashboardController_AutoRefresh(t *testing.T) {
	provider := &fakeProvider{}
	c, err := NewDashboardController(ControllerConfig{RoomID: "room-1", PollInterval: 20 * time.Millisecond}, provider, nil)
	require.NoError(t, err)
	t.Cleanup(c.Unmount)
	require.NoError(t, c.Mount(context.Background()))
	require.Eventually(t, func() bool { return provider.detailedCalls() >= 2 }, waitFor, tickFor)

	require.NoError(t, c.SetAutoRefresh(false))
	time.Sleep(30 * time.Millisecond)
	frozen := provider.detailedCalls()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, frozen, provider.detailedCalls())
	assert.False(t, c.State().AutoRefresh)

	require.NoError(t, c.SetAutoRefresh(true))
	assert.Eventually(t, func() bool { return provider.detailedCalls() > frozen }, waitFor, tickFor)
}

func TestDashboardController_TabSwitchKeepsPolling(t *testing.T) {
	provider := &fakeProvider{}
	c, err := NewDashboardController(ControllerConfig{RoomID: "room-1", PollInterval: 20 * time.Millisecond}, provider, nil)
	require.NoError(t, err)
	t.Cleanup(c.Unmount)
	require.NoError(t, c.Mount(context.Background()))

	require.NoError(t, c.SetActiveTab(domain.TabPerformance))
	before := provider.detailedCalls()
	assert.Eventually(t, func() bool { return provider.detailedCalls() > before+1 }, waitFor, tickFor)
	assert.Equal(t, domain.TabPerformance, c.State().ActiveTab)

	assert.ErrorIs(t, c.SetActiveTab("settings"), domain.ErrInvalidTab)
}

func TestDashboardController_UnmountSilencesEverything(t *testing.T) {
	provider := &fakeProvider{}
	c, err := NewDashboardController(ControllerConfig{RoomID: "room-1", PollInterval: 20 * time.Millisecond}, provider, nil)
	require.NoError(t, err)

	surface := &countingSurface{}
	require.NoError(t, c.AttachSurface(charts.ChartBandwidth, surface))
	updates := 0
	var mu sync.Mutex
	c.OnUpdate(func(DashboardView) {
		mu.Lock()
		updates++
		mu.Unlock()
	})

	require.NoError(t, c.Mount(context.Background()))
	require.Eventually(t, func() bool { return provider.detailedCalls() >= 2 }, waitFor, tickFor)

	c.Unmount()
	calls := provider.detailedCalls()
	drawn, _ := surface.counts()
	mu.Lock()
	seen := updates
	mu.Unlock()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, calls, provider.detailedCalls())
	after, _ := surface.counts()
	assert.Equal(t, drawn, after)
	mu.Lock()
	assert.Equal(t, seen, updates)
	mu.Unlock()

	assert.ErrorIs(t, c.SetActiveTab(domain.TabHistory), domain.ErrNotMounted)
	assert.ErrorIs(t, c.Mount(context.Background()), domain.ErrPollerStopped)
	c.Unmount()
}

func TestDashboardController_SurfacesRedrawEachTick(t *testing.T) {
	c := newTestController(t, &fakeProvider{})

	surface := &countingSurface{}
	require.NoError(t, c.AttachSurface(charts.ChartLatency, surface))
	_, clears := surface.counts()
	assert.Equal(t, 1, clears, "attach replays the current chart")

	mountAndWaitForTick(t, c)
	assert.Eventually(t, func() bool {
		_, clears := surface.counts()
		return clears == 2
	}, waitFor, tickFor)

	assert.ErrorIs(t, c.AttachSurface("heatmap", surface), domain.ErrUnknownChart)
	_, err := c.Chart("heatmap")
	assert.ErrorIs(t, err, domain.ErrUnknownChart)
}

func TestDashboardController_ParticipantViews(t *testing.T) {
	provider := &fakeProvider{
		room: func(ctx context.Context, call int) (*domain.ParticipantSnapshot, error) {
			return exampleParticipants(), nil
		},
	}
	c := newTestController(t, provider)
	mountAndWaitForTick(t, c)

	all := c.ParticipantViews(false)
	require.Len(t, all, 3)
	assert.Equal(t, "alice", all[0].Name)
	assert.Equal(t, "A", all[0].AvatarGlyph)
	assert.Empty(t, all[1].AvatarGlyph)
	assert.Equal(t, "https://cdn.example/bob.png", all[1].AvatarURL)
	assert.Equal(t, "Unknown", all[2].Name)
	assert.Equal(t, "?", all[2].AvatarGlyph)
	assert.Empty(t, all[0].Actions)

	admin := c.ParticipantViews(true)
	assert.Equal(t, []domain.ModerationAction{domain.ActionMute, domain.ActionKick}, admin[0].Actions)

	tests := []struct {
		name   string
		search string
		status domain.StatusFilter
		want   []string
	}{
		{"search case-insensitive", "BO", domain.FilterAll, []string{"p2"}},
		{"speaking", "", domain.FilterSpeaking, []string{"p1"}},
		{"video", "", domain.FilterVideo, []string{"p1", "p2"}},
		{"audio", "", domain.FilterAudio, []string{"p1", "p2"}},
		{"muted", "", domain.FilterMuted, []string{"p3"}},
		{"search matches unknown", "unk", domain.FilterAll, []string{"p3"}},
		{"combined", "a", domain.FilterSpeaking, []string{"p1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, c.SetSearchFilter(tt.search))
			require.NoError(t, c.SetStatusFilter(tt.status))

			var ids []string
			for _, v := range c.ParticipantViews(false) {
				ids = append(ids, v.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	assert.ErrorIs(t, c.SetStatusFilter("away"), domain.ErrInvalidStatusFilter)
}

func TestDashboardController_Moderate(t *testing.T) {
	provider := &fakeProvider{
		room: func(ctx context.Context, call int) (*domain.ParticipantSnapshot, error) {
			return exampleParticipants(), nil
		},
	}
	moderator := new(MockModerator)
	moderator.On("Mute", mock.Anything, "room-1", "p2").Return(nil)
	moderator.On("Kick", mock.Anything, "room-1", "p3").Return(errors.New("signaling unavailable"))

	c := newTestController(t, provider, WithModerator(moderator))
	mountAndWaitForTick(t, c)
	ctx := context.Background()

	assert.ErrorIs(t, c.Moderate(ctx, false, "p2", domain.ActionMute), domain.ErrForbidden)
	assert.ErrorIs(t, c.Moderate(ctx, true, "p9", domain.ActionMute), domain.ErrParticipantNotFound)
	assert.ErrorIs(t, c.Moderate(ctx, true, "p2", "ban"), domain.ErrUnknownModerationAction)
	assert.NoError(t, c.Moderate(ctx, true, "p2", domain.ActionMute))
	assert.EqualError(t, c.Moderate(ctx, true, "p3", domain.ActionKick), "signaling unavailable")

	moderator.AssertExpectations(t)
	moderator.AssertNotCalled(t, "Mute", mock.Anything, mock.Anything, "p9")
}

func TestDashboardController_ModerateWithoutModerator(t *testing.T) {
	c := newTestController(t, &fakeProvider{})
	assert.ErrorIs(t, c.Moderate(context.Background(), true, "p1", domain.ActionKick), domain.ErrModerationUnavailable)
}

func TestDashboardController_DismissAndClear(t *testing.T) {
	provider := &fakeProvider{
		detailed: func(ctx context.Context, call int) (*domain.Snapshot, error) {
			return snapshotWith(6000, 0, 1, 1, 400), nil
		},
	}
	var published atomic.Int32
	publisher := new(MockAlertPublisher)
	publisher.On("PublishAlertEvent", mock.Anything, mock.Anything).
		Return(nil).
		Run(func(mock.Arguments) { published.Add(1) })

	c := newTestController(t, provider, WithAlertPublisher(publisher))
	require.NoError(t, c.Mount(context.Background()))
	require.Eventually(t, func() bool { return published.Load() == 3 }, waitFor, tickFor)

	view := c.View(false)
	require.Equal(t, 3, view.AlertCount)
	require.Len(t, view.Alerts, 3)

	target := view.Alerts[1].ID
	require.NoError(t, c.DismissAlert(target))
	after := c.View(false)
	assert.Equal(t, 2, after.AlertCount)
	for _, a := range after.Alerts {
		assert.NotEqual(t, target, a.ID)
	}
	assert.ErrorIs(t, c.DismissAlert(target), domain.ErrAlertNotFound)

	n, err := c.ClearAlerts()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Zero(t, c.View(false).AlertCount)

	raised, retired := 0, 0
	for _, call := range publisher.Calls {
		ev := call.Arguments.Get(1).(domain.AlertEvent)
		assert.Equal(t, "room-1", ev.RoomID)
		switch ev.Type {
		case domain.AlertRaised:
			raised++
		case domain.AlertRetired:
			retired++
		}
	}
	assert.Equal(t, 3, raised)
	assert.Equal(t, 3, retired)
}

func TestDashboardController_ExportToStore(t *testing.T) {
	store, err := artifact.NewFileStorage(t.TempDir())
	require.NoError(t, err)

	provider := &fakeProvider{
		detailed: func(ctx context.Context, call int) (*domain.Snapshot, error) {
			return exampleSnapshot(), nil
		},
		room: func(ctx context.Context, call int) (*domain.ParticipantSnapshot, error) {
			return exampleParticipants(), nil
		},
	}
	c := newTestController(t, provider, WithArtifactStore(store))
	mountAndWaitForTick(t, c)

	name, err := c.Export(context.Background())
	require.NoError(t, err)
	assert.Contains(t, name, "room-1")
	assert.Regexp(t, `^analytics-room-1-\d+\.json$`, name)

	records, err := c.StoredExports(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, name, records[0].Filename)
	assert.False(t, records[0].CreatedAt.IsZero())

	rc, err := c.OpenExport(context.Background(), name)
	require.NoError(t, err)
	rc.Close()

	_, err = c.OpenExport(context.Background(), "analytics-other-1.json")
	assert.ErrorIs(t, err, domain.ErrExportNotFound)
}

func TestDashboardController_ExportToSink(t *testing.T) {
	var got *domain.ExportPayload
	sink := ports.ExportSinkFunc(func(ctx context.Context, p *domain.ExportPayload) error {
		got = p
		return nil
	})
	provider := &fakeProvider{
		detailed: func(ctx context.Context, call int) (*domain.Snapshot, error) {
			return exampleSnapshot(), nil
		},
		room: func(ctx context.Context, call int) (*domain.ParticipantSnapshot, error) {
			return exampleParticipants(), nil
		},
	}
	c := newTestController(t, provider, WithExportSink(sink))
	mountAndWaitForTick(t, c)

	name, err := c.Export(context.Background())
	require.NoError(t, err)
	assert.Empty(t, name)
	require.NotNil(t, got)
	assert.Equal(t, "room-1", got.RoomID)
	assert.Len(t, got.Participants, 3)
	assert.Len(t, got.Alerts, 1)
	assert.Equal(t, 6000.0, got.RealTimeData.UploadKbps())
}

func TestDashboardController_ExportWithoutTarget(t *testing.T) {
	c := newTestController(t, &fakeProvider{})

	_, err := c.Export(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoExportTarget)

	payload := c.BuildExport()
	assert.Equal(t, "room-1", payload.RoomID)
	assert.NotNil(t, payload.Participants)
	assert.NotNil(t, payload.Alerts)
}

func TestDashboardController_OnUpdateUnsubscribe(t *testing.T) {
	c := newTestController(t, &fakeProvider{})

	var mu sync.Mutex
	var views []DashboardView
	stop := c.OnUpdate(func(v DashboardView) {
		mu.Lock()
		views = append(views, v)
		mu.Unlock()
	})

	require.NoError(t, c.SetActiveTab(domain.TabParticipants))
	require.NoError(t, c.SetActiveTab(domain.TabParticipants))
	stop()
	require.NoError(t, c.SetActiveTab(domain.TabHistory))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, views, 1, "unchanged state and unsubscribed listeners are not notified")
	assert.Equal(t, domain.TabParticipants, views[0].ActiveTab)
}

func TestDashboardController_BandwidthSeriesIsBounded(t *testing.T) {
	provider := &fakeProvider{
		detailed: func(ctx context.Context, call int) (*domain.Snapshot, error) {
			return &domain.Snapshot{Bandwidth: &domain.Bandwidth{Upload: float64(call)}}, nil
		},
	}
	c, err := NewDashboardController(ControllerConfig{
		RoomID:       "room-1",
		PollInterval: 10 * time.Millisecond,
		SeriesLength: 3,
	}, provider, nil)
	require.NoError(t, err)
	t.Cleanup(c.Unmount)
	require.NoError(t, c.Mount(context.Background()))

	require.Eventually(t, func() bool { return provider.detailedCalls() >= 6 }, waitFor, tickFor)
	c.Unmount()

	c.mu.RLock()
	defer c.mu.RUnlock()
	assert.LessOrEqual(t, len(c.series), 3)
	lines := c.charts[charts.ChartBandwidth].Count(charts.OpLineTo)
	assert.LessOrEqual(t, lines, 4)
}
