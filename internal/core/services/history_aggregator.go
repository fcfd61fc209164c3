package services

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"rillscope/internal/core/domain"
	"rillscope/internal/core/ports"
	"rillscope/pkg/logger"
	"rillscope/pkg/tracing"
	"rillscope/pkg/utils"

	"go.uber.org/zap"
)

// HistoryOption configures a HistoryAggregator.
type HistoryOption func(*HistoryAggregator)

// WithHistoryMetrics records fetch durations and outcomes on m.
func WithHistoryMetrics(m ports.MetricsRecorder) HistoryOption {
	return func(h *HistoryAggregator) { h.metrics = m }
}

// WithHistoryClock replaces time.Now.
func WithHistoryClock(now func() time.Time) HistoryOption {
	return func(h *HistoryAggregator) { h.now = now }
}

// HistoryAggregator holds the historical snapshot for the selected range.
// A failed fetch keeps the previous snapshot; a fetch that resolves after a
// newer one has been applied is dropped.
type HistoryAggregator struct {
	provider ports.StatsProvider
	logger   *zap.SugaredLogger
	metrics  ports.MetricsRecorder
	now      func() time.Time

	mu        sync.RWMutex
	snapshot  *domain.HistoricalSnapshot
	rng       domain.RangeToken
	issued    uint64
	applied   uint64
	fetchedAt time.Time
}

// NewHistoryAggregator creates an aggregator with no snapshot.
func NewHistoryAggregator(provider ports.StatsProvider, log *zap.SugaredLogger, opts ...HistoryOption) *HistoryAggregator {
	h := &HistoryAggregator{
		provider: provider,
		logger:   logger.OrNop(log),
		now:      time.Now,
		rng:      domain.DefaultRange,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Begin reserves the next request ticket. Results are applied in ticket
// order: a response for a ticket older than the applied one is dropped.
func (h *HistoryAggregator) Begin() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.issued++
	return h.issued
}

// Fetch loads the historical snapshot for rng. It returns the provider error
// for callers that care; the held snapshot is untouched on failure.
func (h *HistoryAggregator) Fetch(ctx context.Context, roomID string, rng domain.RangeToken) error {
	if !rng.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidRange, rng)
	}
	return h.FetchTicket(ctx, h.Begin(), roomID, rng)
}

// FetchTicket is Fetch for a ticket taken earlier with Begin.
func (h *HistoryAggregator) FetchTicket(ctx context.Context, gen uint64, roomID string, rng domain.RangeToken) error {
	if !rng.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidRange, rng)
	}

	ctx, span := tracing.TraceHistoryFetch(ctx, roomID, string(rng))
	defer span.End()

	start := h.now()
	snap, err := h.provider.GetHistoricalAnalytics(ctx, roomID, rng)
	if h.metrics != nil {
		h.metrics.RecordHistoryFetch(rng, h.now().Sub(start), err)
	}
	if err != nil {
		tracing.RecordError(ctx, err)
		if ctx.Err() == nil {
			h.logger.Errorw("Error fetching historical data:",
				"source", SourceHistory,
				"room_id", roomID,
				"range", rng,
				"error", err,
			)
		}
		return err
	}

	// a fetch cancelled by teardown must not change what is shown
	if ctx.Err() != nil {
		return ctx.Err()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if gen < h.applied {
		h.logger.Debugw("Discarding stale historical data",
			"room_id", roomID,
			"range", rng,
		)
		return nil
	}
	if snap == nil {
		snap = &domain.HistoricalSnapshot{}
	}
	h.applied = gen
	h.snapshot = snap
	h.rng = rng
	h.fetchedAt = h.now()
	return nil
}

// Snapshot returns the held snapshot (nil before the first success) and
// the range it was fetched for.
func (h *HistoryAggregator) Snapshot() (*domain.HistoricalSnapshot, domain.RangeToken) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snapshot, h.rng
}

// HeldHistory is one consistent read of the aggregator.
type HeldHistory struct {
	Snapshot  *domain.HistoricalSnapshot
	Range     domain.RangeToken
	FetchedAt time.Time
}

// Held returns the snapshot, its range and its fetch time under one lock.
func (h *HistoryAggregator) Held() HeldHistory {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return HeldHistory{Snapshot: h.snapshot, Range: h.rng, FetchedAt: h.fetchedAt}
}

// FetchedAt is when the held snapshot was applied.
func (h *HistoryAggregator) FetchedAt() time.Time {
	return h.Held().FetchedAt
}

// DurationLabel formats the session duration, e.g. "45m".
func (h *HistoryAggregator) DurationLabel(now time.Time) string {
	return durationLabel(h.Held().Snapshot, now)
}

// DataTransferredLabel formats the transferred volume in MB.
func (h *HistoryAggregator) DataTransferredLabel() string {
	return dataTransferredLabel(h.Held().Snapshot)
}

// PeakParticipantsLabel formats the peak participant count.
func (h *HistoryAggregator) PeakParticipantsLabel() string {
	return peakParticipantsLabel(h.Held().Snapshot)
}

// AverageQualityLabel formats the average quality score.
func (h *HistoryAggregator) AverageQualityLabel() string {
	return averageQualityLabel(h.Held().Snapshot)
}

func durationLabel(snap *domain.HistoricalSnapshot, now time.Time) string {
	return utils.CompactDuration(snap.SessionDuration(now))
}

func dataTransferredLabel(snap *domain.HistoricalSnapshot) string {
	return utils.FormatMegabytes(snap.TransferredMB())
}

func peakParticipantsLabel(snap *domain.HistoricalSnapshot) string {
	return strconv.Itoa(snap.Peak())
}

func averageQualityLabel(snap *domain.HistoricalSnapshot) string {
	return utils.FormatQuality(snap.Quality())
}
