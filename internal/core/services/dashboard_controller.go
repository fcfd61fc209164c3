package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"rillscope/internal/core/charts"
	"rillscope/internal/core/domain"
	"rillscope/internal/core/ports"
	"rillscope/pkg/artifact"
	"rillscope/pkg/logger"
	"rillscope/pkg/validation"

	"go.uber.org/zap"
)

const DefaultSeriesLength = 60

// ControllerConfig configures a DashboardController. Zero values get defaults.
type ControllerConfig struct {
	RoomID                 string
	IsAdmin                bool
	PollInterval           time.Duration
	DefaultRange           domain.RangeToken
	DisplayLimit           int
	SeriesLength           int
	HistoryRefreshInterval time.Duration // 0 disables
	GaugeMaxMs             float64
	ChartSize              charts.Size
}

func (c *ControllerConfig) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if !c.DefaultRange.Valid() {
		c.DefaultRange = domain.DefaultRange
	}
	if c.DisplayLimit <= 0 {
		c.DisplayLimit = DefaultAlertDisplayLimit
	}
	if c.SeriesLength <= 0 {
		c.SeriesLength = DefaultSeriesLength
	}
	if c.GaugeMaxMs <= 0 {
		c.GaugeMaxMs = charts.DefaultGaugeMax
	}
}

// DashboardState is the controller-owned state. Snapshot and Participants
// are replaced wholesale by each successful fetch.
type DashboardState struct {
	ActiveTab    domain.Tab
	TimeRange    domain.RangeToken
	AutoRefresh  bool
	SearchFilter string
	StatusFilter domain.StatusFilter
	Snapshot     *domain.Snapshot
	Participants *domain.ParticipantSnapshot
	Generation   uint64
	UpdatedAt    time.Time
}

// nextState applies one tick. Only fetches that succeeded replace data.
func nextState(s DashboardState, t TickResult) DashboardState {
	updated := false
	if t.SnapshotErr == nil {
		s.Snapshot = t.Snapshot
		updated = true
	}
	if t.ParticipantsErr == nil {
		s.Participants = t.Participants
		updated = true
	}
	if updated {
		s.Generation = t.Generation
		s.UpdatedAt = t.CompletedAt
	}
	return s
}

// ControllerOption configures a DashboardController.
type ControllerOption func(*DashboardController)

// WithExportSink routes Export to sink instead of the artifact store.
func WithExportSink(sink ports.ExportSink) ControllerOption {
	return func(c *DashboardController) { c.sink = sink }
}

// WithArtifactStore saves exports as files in store.
func WithArtifactStore(store artifact.Storage) ControllerOption {
	return func(c *DashboardController) { c.store = store }
}

// WithModerator enables mute and kick.
func WithModerator(m ports.Moderator) ControllerOption {
	return func(c *DashboardController) { c.moderator = m }
}

// WithMetricsRecorder records poll, alert and export metrics on m.
func WithMetricsRecorder(m ports.MetricsRecorder) ControllerOption {
	return func(c *DashboardController) { c.metrics = m }
}

// WithAlertPublisher publishes alert raised and retired events.
func WithAlertPublisher(p ports.AlertPublisher) ControllerOption {
	return func(c *DashboardController) { c.publisher = p }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ControllerOption {
	return func(c *DashboardController) { c.now = now }
}

// DashboardController coordinates polling, alerting, history, chart
// rendering and export for one room.
type DashboardController struct {
	cfg       ControllerConfig
	provider  ports.StatsProvider
	logger    *zap.SugaredLogger
	sink      ports.ExportSink
	store     artifact.Storage
	moderator ports.Moderator
	metrics   ports.MetricsRecorder
	publisher ports.AlertPublisher
	now       func() time.Time

	poller   *MetricsPoller
	alerts   *AlertEngine
	history  *HistoryAggregator
	exporter *ExportBuilder
	quality  *QualityService

	mu           sync.RWMutex
	state        DashboardState
	series       []charts.BandwidthSample
	charts       charts.ChartSet
	surfaces     map[string]charts.Surface
	listeners    map[int]func(DashboardView)
	nextListener int
	mounted      bool
	unmounted    bool
	ctx          context.Context
	cancel       context.CancelFunc
	refresh      *time.Timer
}

// NewDashboardController creates an unmounted controller for cfg.RoomID.
func NewDashboardController(cfg ControllerConfig, provider ports.StatsProvider, log *zap.SugaredLogger, opts ...ControllerOption) (*DashboardController, error) {
	cfg.RoomID = strings.TrimSpace(cfg.RoomID)
	if cfg.RoomID == "" {
		return nil, domain.ErrRoomIDRequired
	}
	if err := validation.ValidateRoomID(cfg.RoomID); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRoomID, err)
	}
	cfg.applyDefaults()
	base := logger.OrNop(log)

	c := &DashboardController{
		cfg:       cfg,
		provider:  provider,
		logger:    base.With("room_id", cfg.RoomID),
		now:       time.Now,
		quality:   NewQualityService(),
		surfaces:  make(map[string]charts.Surface),
		listeners: make(map[int]func(DashboardView)),
		state: DashboardState{
			ActiveTab:    domain.TabOverview,
			TimeRange:    cfg.DefaultRange,
			AutoRefresh:  true,
			StatusFilter: domain.FilterAll,
		},
	}
	for _, opt := range opts {
		opt(c)
	}

	c.poller = NewMetricsPoller(provider, cfg.RoomID, base,
		WithPollerMetrics(c.metrics),
		WithPollerClock(c.now),
	)
	c.alerts = NewAlertEngine(
		WithDisplayLimit(cfg.DisplayLimit),
		WithAlertClock(c.now),
	)
	c.history = NewHistoryAggregator(provider, base,
		WithHistoryMetrics(c.metrics),
		WithHistoryClock(c.now),
	)
	c.exporter = NewExportBuilder(cfg.RoomID, c.exportState, c.store, base,
		WithExportClock(c.now),
		WithExportMetrics(c.metrics),
	)
	c.charts = c.renderCharts()

	return c, nil
}

// RoomID returns the room the controller watches.
func (c *DashboardController) RoomID() string { return c.cfg.RoomID }

// IsAdmin reports the host-configured admin flag.
func (c *DashboardController) IsAdmin() bool { return c.cfg.IsAdmin }

// Mount starts polling and the initial history fetch. ctx bounds every
// fetch the controller issues until Unmount.
func (c *DashboardController) Mount(ctx context.Context) error {
	c.mu.Lock()
	if c.unmounted {
		c.mu.Unlock()
		return domain.ErrPollerStopped
	}
	if c.mounted {
		c.mu.Unlock()
		return domain.ErrPollerStarted
	}
	c.mounted = true
	c.ctx, c.cancel = context.WithCancel(ctx)
	rng := c.state.TimeRange
	fetch := c.historyFetchLocked(rng)
	c.poller.SetEnabled(c.state.AutoRefresh)
	c.scheduleRefreshLocked()
	c.mu.Unlock()

	if err := c.poller.Start(c.cfg.PollInterval, c.applyTick); err != nil {
		return err
	}
	fetch()

	c.logger.Infow("Dashboard mounted",
		"range", rng,
		"poll_interval", c.cfg.PollInterval,
	)
	return nil
}

// Unmount stops polling and history fetches and drops surfaces and
// listeners. Nothing is mutated or drawn afterwards.
func (c *DashboardController) Unmount() {
	c.mu.Lock()
	if c.unmounted {
		c.mu.Unlock()
		return
	}
	c.unmounted = true
	c.surfaces = make(map[string]charts.Surface)
	c.listeners = make(map[int]func(DashboardView))
	if c.refresh != nil {
		c.refresh.Stop()
		c.refresh = nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()

	c.poller.Stop()
	c.logger.Infow("Dashboard unmounted")
}

// State returns a copy of the dashboard state.
func (c *DashboardController) State() DashboardState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// SetActiveTab switches tabs. Polling is unaffected.
func (c *DashboardController) SetActiveTab(tab domain.Tab) error {
	if _, err := domain.ParseTab(string(tab)); err != nil {
		return err
	}
	return c.mutate(func(s *DashboardState) bool {
		changed := s.ActiveTab != tab
		s.ActiveTab = tab
		return changed
	})
}

// SetTimeRange selects the history window. An actual change issues exactly
// one history fetch; the previous snapshot stays visible until it lands.
func (c *DashboardController) SetTimeRange(rng domain.RangeToken) error {
	if !rng.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidRange, rng)
	}

	fetch := func() {}
	err := c.mutate(func(s *DashboardState) bool {
		if s.TimeRange == rng {
			return false
		}
		s.TimeRange = rng
		if c.mounted {
			fetch = c.historyFetchLocked(rng)
		}
		return true
	})
	if err != nil {
		return err
	}
	fetch()
	return nil
}

// SetAutoRefresh pauses or resumes polling. Resuming ticks immediately;
// pausing freezes the displayed snapshot.
func (c *DashboardController) SetAutoRefresh(enabled bool) error {
	return c.mutate(func(s *DashboardState) bool {
		if s.AutoRefresh == enabled {
			return false
		}
		s.AutoRefresh = enabled
		c.poller.SetEnabled(enabled)
		return true
	})
}

// SetSearchFilter sets the participant name filter.
func (c *DashboardController) SetSearchFilter(q string) error {
	return c.mutate(func(s *DashboardState) bool {
		changed := s.SearchFilter != q
		s.SearchFilter = q
		return changed
	})
}

// SetStatusFilter sets the participant status filter.
func (c *DashboardController) SetStatusFilter(f domain.StatusFilter) error {
	if _, err := domain.ParseStatusFilter(string(f)); err != nil {
		return err
	}
	return c.mutate(func(s *DashboardState) bool {
		changed := s.StatusFilter != f
		s.StatusFilter = f
		return changed
	})
}

// mutate runs fn under the lock and notifies listeners when it reports a
// change.
func (c *DashboardController) mutate(fn func(s *DashboardState) bool) error {
	c.mu.Lock()
	if c.unmounted {
		c.mu.Unlock()
		return domain.ErrNotMounted
	}
	if !fn(&c.state) {
		c.mu.Unlock()
		return nil
	}
	view, listeners := c.viewLocked(c.cfg.IsAdmin), c.listenersLocked()
	c.mu.Unlock()

	notify(listeners, view)
	return nil
}

// applyTick is the poller callback: state transition, alert evaluation,
// series append, chart redraw, then events and listeners.
func (c *DashboardController) applyTick(t TickResult) {
	c.mu.Lock()
	// a paused dashboard keeps its snapshot frozen
	if c.unmounted || !c.state.AutoRefresh {
		c.mu.Unlock()
		return
	}

	c.state = nextState(c.state, t)

	var diff AlertDiff
	if t.SnapshotErr == nil {
		diff = c.alerts.Evaluate(c.state.Snapshot)
		c.appendSampleLocked(c.state.Snapshot, t.CompletedAt)
	}
	c.charts = c.renderCharts()
	c.replayLocked()

	view, listeners := c.viewLocked(c.cfg.IsAdmin), c.listenersLocked()
	ctx := c.ctx
	c.mu.Unlock()

	if c.metrics != nil {
		if t.SnapshotErr == nil {
			c.metrics.RecordSnapshot(t.Snapshot)
		}
		if t.ParticipantsErr == nil {
			c.metrics.RecordParticipants(view.Counts.Participants)
		}
		c.metrics.RecordActiveAlerts(view.AlertCount)
	}
	c.publishDiff(ctx, diff)
	notify(listeners, view)
}

func (c *DashboardController) appendSampleLocked(s *domain.Snapshot, at time.Time) {
	if at.IsZero() {
		at = c.now()
	}
	c.series = append(c.series, charts.BandwidthSample{
		At:       at,
		Upload:   s.UploadKbps(),
		Download: s.DownloadKbps(),
	})
	if over := len(c.series) - c.cfg.SeriesLength; over > 0 {
		c.series = append(c.series[:0:0], c.series[over:]...)
	}
}

func (c *DashboardController) renderCharts() charts.ChartSet {
	return charts.RenderAll(charts.ChartInput{
		Size:         c.cfg.ChartSize,
		Samples:      c.series,
		Snapshot:     c.state.Snapshot,
		Participants: c.state.Participants,
		GaugeMax:     c.cfg.GaugeMaxMs,
	})
}

func (c *DashboardController) replayLocked() {
	for name, s := range c.surfaces {
		charts.Replay(c.charts[name], s)
	}
}

// historyFetchLocked takes the next history ticket while c.mu is held, so
// tickets follow the order of range changes, and returns the function that
// starts the fetch once the lock is released.
func (c *DashboardController) historyFetchLocked(rng domain.RangeToken) func() {
	ctx := c.ctx
	if ctx == nil {
		return func() {}
	}
	ticket := c.history.Begin()
	return func() { go c.runHistoryFetch(ctx, ticket, rng) }
}

func (c *DashboardController) runHistoryFetch(ctx context.Context, ticket uint64, rng domain.RangeToken) {
	if err := c.history.FetchTicket(ctx, ticket, c.cfg.RoomID, rng); err != nil {
		return
	}
	c.mu.RLock()
	if c.unmounted {
		c.mu.RUnlock()
		return
	}
	view, listeners := c.viewLocked(c.cfg.IsAdmin), c.listenersLocked()
	c.mu.RUnlock()
	notify(listeners, view)
}

func (c *DashboardController) scheduleRefreshLocked() {
	every := c.cfg.HistoryRefreshInterval
	if every <= 0 || c.unmounted {
		return
	}
	c.refresh = time.AfterFunc(every, func() {
		c.mu.Lock()
		if c.unmounted {
			c.mu.Unlock()
			return
		}
		fetch := func() {}
		if c.state.AutoRefresh {
			fetch = c.historyFetchLocked(c.state.TimeRange)
		}
		c.scheduleRefreshLocked()
		c.mu.Unlock()

		fetch()
	})
}

// View formats the current state for display.
func (c *DashboardController) View(admin bool) DashboardView {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.viewLocked(admin)
}

func (c *DashboardController) viewLocked(admin bool) DashboardView {
	s := c.state
	return DashboardView{
		RoomID:       c.cfg.RoomID,
		IsAdmin:      admin,
		ActiveTab:    s.ActiveTab,
		TimeRange:    s.TimeRange,
		AutoRefresh:  s.AutoRefresh,
		SearchFilter: s.SearchFilter,
		StatusFilter: s.StatusFilter,
		Connection:   connectionView(s.Snapshot, c.quality),
		Quality:      qualityView(s.Snapshot),
		Counts:       countsView(s.Participants),
		Alerts:       c.alerts.ActiveAlerts(),
		AlertCount:   c.alerts.AlertCount(),
		Performance:  performanceView(s.Participants, c.quality),
		History:      historyView(c.history, c.now()),
		Generation:   s.Generation,
		UpdatedAt:    s.UpdatedAt,
	}
}

// ParticipantViews lists participants matching the current search and
// status filters. Moderation actions are included only for admins.
func (c *DashboardController) ParticipantViews(admin bool) []ParticipantView {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var list []domain.Participant
	if c.state.Participants != nil {
		list = c.state.Participants.Participants
	}
	return filterParticipants(list, c.state.SearchFilter, c.state.StatusFilter, admin)
}

// Charts returns the most recently rendered command lists.
func (c *DashboardController) Charts() charts.ChartSet {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(charts.ChartSet, len(c.charts))
	for name, list := range c.charts {
		out[name] = list
	}
	return out
}

// ChartSize is the size every chart is rendered at.
func (c *DashboardController) ChartSize() charts.Size { return c.cfg.ChartSize.Normalized() }

// Chart returns the latest draw commands for one chart.
func (c *DashboardController) Chart(name string) (charts.CommandList, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	list, ok := c.charts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownChart, name)
	}
	return list, nil
}

// AttachSurface binds a drawing surface to a chart. The current chart is
// replayed onto it straight away and again after every tick.
func (c *DashboardController) AttachSurface(name string, s charts.Surface) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.unmounted {
		return domain.ErrNotMounted
	}
	list, ok := c.charts[name]
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownChart, name)
	}
	c.surfaces[name] = s
	charts.Replay(list, s)
	return nil
}

// OnUpdate registers fn to receive the admin-agnostic view after every
// change. The returned func unregisters it.
func (c *DashboardController) OnUpdate(fn func(DashboardView)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.unmounted {
		return func() {}
	}
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

func (c *DashboardController) listenersLocked() []func(DashboardView) {
	if len(c.listeners) == 0 {
		return nil
	}
	ids := make([]int, 0, len(c.listeners))
	for id := range c.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(DashboardView), 0, len(ids))
	for _, id := range ids {
		out = append(out, c.listeners[id])
	}
	return out
}

func notify(listeners []func(DashboardView), view DashboardView) {
	for _, fn := range listeners {
		fn(view)
	}
}

// DismissAlert dismisses the active alert with id.
func (c *DashboardController) DismissAlert(id string) error {
	c.mu.Lock()
	if c.unmounted {
		c.mu.Unlock()
		return domain.ErrNotMounted
	}
	alert, found := c.findAlert(id)
	if err := c.alerts.Dismiss(id); err != nil {
		c.mu.Unlock()
		return err
	}
	view, listeners := c.viewLocked(c.cfg.IsAdmin), c.listenersLocked()
	ctx := c.ctx
	c.mu.Unlock()

	if found {
		c.publishDiff(ctx, AlertDiff{Retired: []domain.Alert{alert}})
	}
	notify(listeners, view)
	return nil
}

func (c *DashboardController) findAlert(id string) (domain.Alert, bool) {
	for _, a := range c.alerts.All() {
		if a.ID == id {
			return a, true
		}
	}
	return domain.Alert{}, false
}

// ClearAlerts dismisses every active alert and returns how many there were.
func (c *DashboardController) ClearAlerts() (int, error) {
	c.mu.Lock()
	if c.unmounted {
		c.mu.Unlock()
		return 0, domain.ErrNotMounted
	}
	cleared := c.alerts.ClearAll()
	view, listeners := c.viewLocked(c.cfg.IsAdmin), c.listenersLocked()
	ctx := c.ctx
	c.mu.Unlock()

	c.publishDiff(ctx, AlertDiff{Retired: cleared})
	notify(listeners, view)
	return len(cleared), nil
}

func (c *DashboardController) publishDiff(ctx context.Context, diff AlertDiff) {
	if c.publisher == nil || diff.Empty() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	publish := func(typ domain.AlertEventType, alerts []domain.Alert) {
		for _, a := range alerts {
			event := domain.AlertEvent{Type: typ, RoomID: c.cfg.RoomID, Alert: a}
			if err := c.publisher.PublishAlertEvent(ctx, event); err != nil {
				c.logger.Warnw("Failed to publish alert event",
					"type", typ,
					"alert_id", a.ID,
					"error", err,
				)
			}
		}
	}
	publish(domain.AlertRetired, diff.Retired)
	publish(domain.AlertRaised, diff.Raised)
}

func (c *DashboardController) exportState() domain.ExportPayload {
	c.mu.RLock()
	defer c.mu.RUnlock()

	payload := domain.ExportPayload{
		RealTimeData: c.state.Snapshot,
		Alerts:       c.alerts.All(),
	}
	payload.HistoricalData, _ = c.history.Snapshot()
	if c.state.Participants != nil {
		payload.Participants = append([]domain.Participant(nil), c.state.Participants.Participants...)
	}
	return payload
}

// BuildExport captures the current state without delivering it.
func (c *DashboardController) BuildExport() *domain.ExportPayload {
	return c.exporter.BuildSnapshot()
}

// Export delivers the snapshot to the configured sink, or writes it to the
// artifact store and returns the filename.
func (c *DashboardController) Export(ctx context.Context) (string, error) {
	return c.exporter.Export(ctx, c.sink)
}

// StoredExports lists exports kept for this room, newest first.
func (c *DashboardController) StoredExports(ctx context.Context) ([]*domain.ExportRecord, error) {
	if repo, ok := c.sink.(ports.ExportRepository); ok {
		return repo.List(ctx, c.cfg.RoomID)
	}
	if c.store == nil {
		return []*domain.ExportRecord{}, nil
	}

	prefix := ExportPrefix(c.cfg.RoomID)
	names, err := c.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}
	records := make([]*domain.ExportRecord, 0, len(names))
	for _, name := range names {
		rec := &domain.ExportRecord{ID: name, RoomID: c.cfg.RoomID, Filename: name}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".json")
		if ms, err := strconv.ParseInt(stamp, 10, 64); err == nil {
			rec.CreatedAt = time.UnixMilli(ms).UTC()
		}
		records = append(records, rec)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// OpenExport returns a stored export by id (repository sink) or file name
// (artifact store).
func (c *DashboardController) OpenExport(ctx context.Context, name string) (io.ReadCloser, error) {
	if repo, ok := c.sink.(ports.ExportRepository); ok {
		payload, err := repo.Get(ctx, c.cfg.RoomID, name)
		if err != nil {
			return nil, err
		}
		data, err := Encode(payload)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	if c.store == nil || !strings.HasPrefix(name, ExportPrefix(c.cfg.RoomID)) {
		return nil, domain.ErrExportNotFound
	}
	rc, err := c.store.Load(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExportNotFound, err)
	}
	return rc, nil
}

// Moderate applies a moderation action to a participant currently in the
// room. Only admins may moderate.
func (c *DashboardController) Moderate(ctx context.Context, admin bool, participantID string, action domain.ModerationAction) error {
	if !admin {
		return domain.ErrForbidden
	}
	if _, err := domain.ParseModerationAction(string(action)); err != nil {
		return err
	}
	if c.moderator == nil {
		return domain.ErrModerationUnavailable
	}

	c.mu.RLock()
	found := false
	if c.state.Participants != nil {
		for _, p := range c.state.Participants.Participants {
			if p.ID == participantID {
				found = true
				break
			}
		}
	}
	c.mu.RUnlock()
	if !found {
		return fmt.Errorf("%w: %q", domain.ErrParticipantNotFound, participantID)
	}

	var err error
	switch action {
	case domain.ActionMute:
		err = c.moderator.Mute(ctx, c.cfg.RoomID, participantID)
	case domain.ActionKick:
		err = c.moderator.Kick(ctx, c.cfg.RoomID, participantID)
	}
	if err != nil {
		c.logger.Errorw("Moderation action failed",
			"participant_id", participantID,
			"action", action,
			"error", err,
		)
		return err
	}

	c.logger.Infow("Moderation action applied",
		"participant_id", participantID,
		"action", action,
	)
	return nil
}
