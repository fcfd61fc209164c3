package services

import (
	"context"
	"sync"
	"time"

	"rillscope/internal/core/domain"
	"rillscope/internal/core/ports"
	"rillscope/pkg/logger"
	"rillscope/pkg/tracing"

	"go.uber.org/zap"
)

const (
	DefaultPollInterval = 5 * time.Second

	SourceDetailedStats = "detailed_stats"
	SourceRoomStats     = "room_stats"
	SourceHistory       = "historical_stats"
)

// TickResult is the outcome of one poll cycle. Snapshot and Participants
// are nil when the matching fetch failed.
type TickResult struct {
	Generation      uint64
	Snapshot        *domain.Snapshot
	Participants    *domain.ParticipantSnapshot
	SnapshotErr     error
	ParticipantsErr error
	CompletedAt     time.Time
}

// PollerOption configures a MetricsPoller.
type PollerOption func(*MetricsPoller)

// WithPollerMetrics records ticks and fetch errors on m.
func WithPollerMetrics(m ports.MetricsRecorder) PollerOption {
	return func(p *MetricsPoller) { p.metrics = m }
}

// WithFetchTimeout bounds each provider call. Defaults to the poll interval.
func WithFetchTimeout(d time.Duration) PollerOption {
	return func(p *MetricsPoller) { p.fetchTimeout = d }
}

// WithPollerClock replaces time.Now for CompletedAt and CollectedAt.
func WithPollerClock(now func() time.Time) PollerOption {
	return func(p *MetricsPoller) { p.now = now }
}

// MetricsPoller drives the real-time collection loop. Ticks are fixed-rate:
// the next tick is scheduled when a tick starts, so a slow provider can
// produce overlapping fetches. Results are applied in generation order and
// anything older than the last applied generation is dropped.
type MetricsPoller struct {
	provider     ports.StatsProvider
	roomID       string
	logger       *zap.SugaredLogger
	metrics      ports.MetricsRecorder
	fetchTimeout time.Duration
	now          func() time.Time

	mu         sync.Mutex
	interval   time.Duration
	onTick     func(TickResult)
	timer      *time.Timer
	started    bool
	stopped    bool
	enabled    bool
	epoch      uint64
	generation uint64
	applied    uint64
	ctx        context.Context
	cancel     context.CancelFunc

	// serialises onTick
	applyMu sync.Mutex
}

// NewMetricsPoller creates a poller for roomID. It is enabled and idle
// until Start.
func NewMetricsPoller(provider ports.StatsProvider, roomID string, log *zap.SugaredLogger, opts ...PollerOption) *MetricsPoller {
	ctx, cancel := context.WithCancel(context.Background())
	p := &MetricsPoller{
		provider: provider,
		roomID:   roomID,
		logger:   logger.OrNop(log),
		now:      time.Now,
		enabled:  true,
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start begins polling. The first tick fires immediately when the poller
// is enabled. onTick must not call Stop.
func (p *MetricsPoller) Start(interval time.Duration, onTick func(TickResult)) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return domain.ErrPollerStopped
	}
	if p.started {
		return domain.ErrPollerStarted
	}
	p.started = true
	p.interval = interval
	p.onTick = onTick
	if p.fetchTimeout <= 0 {
		p.fetchTimeout = interval
	}

	if p.enabled {
		p.scheduleLocked(0)
	}

	p.logger.Infow("Metrics poller started",
		"room_id", p.roomID,
		"interval", interval,
		"enabled", p.enabled,
	)
	return nil
}

// SetEnabled pauses or resumes polling. Resuming triggers an immediate
// tick; pausing cancels the pending timer and keeps the last applied data.
func (p *MetricsPoller) SetEnabled(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped || p.enabled == enabled {
		return
	}
	p.enabled = enabled
	p.epoch++

	if !enabled {
		p.stopTimerLocked()
		return
	}
	if p.started {
		p.scheduleLocked(0)
	}
}

// Stop cancels the pending timer and in-flight fetches. It is safe to call
// repeatedly; once it returns onTick is never invoked again.
func (p *MetricsPoller) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.epoch++
	p.stopTimerLocked()
	p.cancel()
	p.mu.Unlock()

	// wait for a delivery that passed the stopped check before we got the lock
	p.applyMu.Lock()
	p.applyMu.Unlock()

	p.logger.Infow("Metrics poller stopped", "room_id", p.roomID)
}

// Enabled reports whether the poller is scheduling ticks.
func (p *MetricsPoller) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled && !p.stopped
}

// Generation returns the number of ticks issued so far.
func (p *MetricsPoller) Generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generation
}

func (p *MetricsPoller) scheduleLocked(delay time.Duration) {
	p.stopTimerLocked()
	epoch := p.epoch
	p.timer = time.AfterFunc(delay, func() { p.tick(epoch) })
}

func (p *MetricsPoller) stopTimerLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *MetricsPoller) tick(epoch uint64) {
	p.mu.Lock()
	if p.stopped || !p.enabled || epoch != p.epoch {
		p.mu.Unlock()
		return
	}
	p.generation++
	gen := p.generation
	parent := p.ctx
	timeout := p.fetchTimeout
	p.scheduleLocked(p.interval)
	p.mu.Unlock()

	ctx, span := tracing.TraceTick(parent, p.roomID, gen)
	defer span.End()

	if p.metrics != nil {
		p.metrics.RecordTick(gen)
	}

	result := p.collect(ctx, gen, timeout)
	p.deliver(epoch, result)
}

func (p *MetricsPoller) collect(ctx context.Context, gen uint64, timeout time.Duration) TickResult {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := TickResult{Generation: gen}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		result.Snapshot, result.SnapshotErr = p.provider.GetDetailedStats(ctx)
		if result.SnapshotErr != nil {
			result.Snapshot = nil
			p.reportFailure(SourceDetailedStats, result.SnapshotErr)
		} else if result.Snapshot != nil && result.Snapshot.CollectedAt.IsZero() {
			result.Snapshot.CollectedAt = p.now()
		}
	}()
	go func() {
		defer wg.Done()
		result.Participants, result.ParticipantsErr = p.provider.GetRoomStats(ctx, p.roomID)
		if result.ParticipantsErr != nil {
			result.Participants = nil
			p.reportFailure(SourceRoomStats, result.ParticipantsErr)
		}
	}()
	wg.Wait()

	if result.SnapshotErr != nil {
		tracing.RecordError(ctx, result.SnapshotErr)
	}
	if result.ParticipantsErr != nil {
		tracing.RecordError(ctx, result.ParticipantsErr)
	}

	result.CompletedAt = p.now()
	return result
}

func (p *MetricsPoller) reportFailure(source string, err error) {
	// fetches aborted by Stop are not provider failures
	if p.ctx.Err() != nil {
		return
	}
	p.logger.Errorw("Error collecting real-time data:",
		"source", source,
		"room_id", p.roomID,
		"error", err,
	)
	if p.metrics != nil {
		p.metrics.RecordFetchError(source)
	}
}

// deliver hands result to onTick unless the poller was stopped, paused or
// resumed after the tick started.
func (p *MetricsPoller) deliver(epoch uint64, result TickResult) {
	p.applyMu.Lock()
	defer p.applyMu.Unlock()

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	if !p.enabled || epoch != p.epoch {
		p.mu.Unlock()
		p.logger.Debugw("Discarding tick from before pause",
			"room_id", p.roomID,
			"generation", result.Generation,
		)
		return
	}
	if applied := p.applied; result.Generation <= applied {
		p.mu.Unlock()
		p.logger.Debugw("Discarding stale tick",
			"room_id", p.roomID,
			"generation", result.Generation,
			"applied", applied,
		)
		return
	}
	p.applied = result.Generation
	onTick := p.onTick
	p.mu.Unlock()

	if onTick != nil {
		onTick(result)
	}
}
