// Package webrtc derives dashboard snapshots from a live pion peer
// connection.
package webrtc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"rillscope/internal/core/domain"
	"rillscope/internal/core/ports"
	"rillscope/pkg/logger"

	"github.com/pion/interceptor"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// StatsGetter is satisfied by *webrtc.PeerConnection.
type StatsGetter interface {
	GetStats() webrtc.StatsReport
}

// PeerConnectionStatsProvider implements ports.StatsProvider for the local
// side of a call. Room and history data are not visible from a single peer
// connection and come from the fallback provider when one is set.
type PeerConnectionStatsProvider struct {
	pc       StatsGetter
	fallback ports.StatsProvider
	sampler  *RTCPSampler
	now      func() time.Time
	logger   *zap.SugaredLogger

	mu         sync.Mutex
	lastSent   uint64
	lastRecv   uint64
	lastAt     time.Time
	haveBytes  bool
	estimators map[string]*JitterEstimator
}

// ProviderOption configures a PeerConnectionStatsProvider.
type ProviderOption func(*PeerConnectionStatsProvider)

// WithFallback serves room and history lookups from p.
func WithFallback(p ports.StatsProvider) ProviderOption {
	return func(s *PeerConnectionStatsProvider) { s.fallback = p }
}

// WithRTCPSampler fills loss and jitter gaps from RTCP reports.
func WithRTCPSampler(sampler *RTCPSampler) ProviderOption {
	return func(s *PeerConnectionStatsProvider) { s.sampler = sampler }
}

// WithProviderClock replaces time.Now.
func WithProviderClock(now func() time.Time) ProviderOption {
	return func(s *PeerConnectionStatsProvider) { s.now = now }
}

// NewPeerConnectionStatsProvider measures pc.
func NewPeerConnectionStatsProvider(pc StatsGetter, log *zap.SugaredLogger, opts ...ProviderOption) *PeerConnectionStatsProvider {
	p := &PeerConnectionStatsProvider{
		pc:         pc,
		now:        time.Now,
		logger:     logger.OrNop(log),
		estimators: make(map[string]*JitterEstimator),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// inboundTotals accumulates inbound-rtp stats of one media kind.
type inboundTotals struct {
	streams  int
	jitterMs float64
	lost     int64
	received int64
}

func (t inboundTotals) loss() float64 {
	if t.lost <= 0 || t.lost+t.received <= 0 {
		return 0
	}
	return float64(t.lost) / float64(t.lost+t.received)
}

// GetDetailedStats converts the current stats report into a snapshot.
func (p *PeerConnectionStatsProvider) GetDetailedStats(ctx context.Context) (*domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := p.pc.GetStats()
	now := p.now()

	var (
		sent, recv uint64
		transports int
		pair       *webrtc.ICECandidatePairStats
		inbound    = map[string]*inboundTotals{}
	)

	for _, stats := range report {
		switch s := stats.(type) {
		case webrtc.TransportStats:
			sent += s.BytesSent
			recv += s.BytesReceived
			transports++
		case webrtc.ICECandidatePairStats:
			pair = preferPair(pair, &s)
		case webrtc.InboundRTPStreamStats:
			addInbound(inbound, s)
		case *webrtc.TransportStats:
			sent += s.BytesSent
			recv += s.BytesReceived
			transports++
		case *webrtc.ICECandidatePairStats:
			pair = preferPair(pair, s)
		case *webrtc.InboundRTPStreamStats:
			addInbound(inbound, *s)
		}
	}

	snap := &domain.Snapshot{CollectedAt: now}
	if transports > 0 {
		snap.Bandwidth = p.bandwidth(sent, recv, now)
	}

	conn := &domain.ConnectionStats{State: pairState(pair)}
	if pair != nil {
		conn.RTT = pair.CurrentRoundTripTime * 1000
	}

	var lost, received int64
	var jitterSum float64
	var jitterStreams int
	for kind, t := range inbound {
		lost += t.lost
		received += t.received
		jitterSum += t.jitterMs
		jitterStreams += t.streams

		media := &domain.MediaStats{Quality: estimateQuality(t.loss(), t.jitterMs/float64(t.streams))}
		switch kind {
		case "video":
			snap.Video = media
		case "audio":
			snap.Audio = media
		}
	}
	if jitterStreams > 0 {
		conn.Jitter = jitterSum / float64(jitterStreams)
	}
	if lost > 0 && lost+received > 0 {
		conn.PacketLoss = float64(lost) / float64(lost+received)
	}

	p.fillFromEstimators(snap, conn, jitterStreams == 0)
	p.fillFromRTCP(conn, jitterStreams == 0)

	snap.Connection = conn
	return snap, nil
}

func addInbound(into map[string]*inboundTotals, s webrtc.InboundRTPStreamStats) {
	t := into[s.Kind]
	if t == nil {
		t = &inboundTotals{}
		into[s.Kind] = t
	}
	t.streams++
	t.jitterMs += s.Jitter * 1000
	t.lost += int64(s.PacketsLost)
	t.received += int64(s.PacketsReceived)
}

// preferPair keeps the nominated pair, falling back to a succeeded one.
func preferPair(current, candidate *webrtc.ICECandidatePairStats) *webrtc.ICECandidatePairStats {
	switch {
	case current == nil:
		return candidate
	case candidate.Nominated && !current.Nominated:
		return candidate
	case candidate.Nominated == current.Nominated &&
		candidate.State == webrtc.StatsICECandidatePairStateSucceeded &&
		current.State != webrtc.StatsICECandidatePairStateSucceeded:
		return candidate
	default:
		return current
	}
}

func pairState(pair *webrtc.ICECandidatePairStats) domain.ConnectionState {
	if pair == nil {
		return domain.StateUnknown
	}
	switch pair.State {
	case webrtc.StatsICECandidatePairStateSucceeded:
		return domain.StateConnected
	case webrtc.StatsICECandidatePairStateInProgress,
		webrtc.StatsICECandidatePairStateWaiting,
		webrtc.StatsICECandidatePairStateFrozen:
		return domain.StateConnecting
	case webrtc.StatsICECandidatePairStateFailed:
		return domain.StateDisconnected
	default:
		return domain.StateUnknown
	}
}

// bandwidth turns cumulative transport byte counters into kbps over the
// interval since the previous call. The first call and counter resets
// read as zero.
func (p *PeerConnectionStatsProvider) bandwidth(sent, recv uint64, now time.Time) *domain.Bandwidth {
	p.mu.Lock()
	defer p.mu.Unlock()

	bw := &domain.Bandwidth{}
	if p.haveBytes {
		if secs := now.Sub(p.lastAt).Seconds(); secs > 0 {
			if sent >= p.lastSent {
				bw.Upload = float64(sent-p.lastSent) * 8 / 1000 / secs
			}
			if recv >= p.lastRecv {
				bw.Download = float64(recv-p.lastRecv) * 8 / 1000 / secs
			}
		}
	}
	p.lastSent, p.lastRecv, p.lastAt, p.haveBytes = sent, recv, now, true
	return bw
}

// fillFromEstimators supplies per-kind quality for media the stats report
// did not cover, and connection jitter/loss when no inbound-rtp was seen.
func (p *PeerConnectionStatsProvider) fillFromEstimators(snap *domain.Snapshot, conn *domain.ConnectionStats, noInbound bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var jitterSum, lossSum float64
	var n int
	for kind, est := range p.estimators {
		if !est.Started() {
			continue
		}
		jitter, loss := est.JitterMs(), est.Loss()
		jitterSum += jitter
		lossSum += loss
		n++

		media := &domain.MediaStats{Quality: estimateQuality(loss, jitter)}
		switch {
		case kind == "video" && snap.Video == nil:
			snap.Video = media
		case kind == "audio" && snap.Audio == nil:
			snap.Audio = media
		}
	}
	if noInbound && n > 0 {
		conn.Jitter = jitterSum / float64(n)
		conn.PacketLoss = lossSum / float64(n)
	}
}

func (p *PeerConnectionStatsProvider) fillFromRTCP(conn *domain.ConnectionStats, noInbound bool) {
	if p.sampler == nil {
		return
	}
	sample, ok := p.sampler.Sample()
	if !ok {
		return
	}
	if conn.RTT == 0 && sample.HasRTT {
		conn.RTT = sample.RTTMs
	}
	if noInbound && conn.Jitter == 0 && conn.PacketLoss == 0 {
		conn.Jitter = sample.JitterMs
		conn.PacketLoss = sample.PacketLoss
	}
}

// estimateQuality grades a stream from 5 down to 0.
func estimateQuality(loss, jitterMs float64) int {
	q := domain.MaxQuality
	for _, limit := range []float64{0.01, 0.03, 0.08, 0.15} {
		if loss > limit {
			q--
		}
	}
	if jitterMs > 30 {
		q--
	}
	if jitterMs > 100 {
		q--
	}
	return domain.ClampQuality(q)
}

// ObserveRTP feeds a received packet of the given media kind into that
// kind's jitter estimator.
func (p *PeerConnectionStatsProvider) ObserveRTP(kind string, pkt *rtp.Packet, arrival time.Time) {
	p.mu.Lock()
	est := p.estimators[kind]
	if est == nil {
		clock := uint32(ClockRateVideo)
		if kind == "audio" {
			clock = ClockRateAudio
		}
		est = NewJitterEstimator(clock)
		p.estimators[kind] = est
	}
	p.mu.Unlock()

	est.Observe(pkt, arrival)
}

// WatchTrack reads packets from a remote track until it ends or ctx is
// cancelled, feeding them to ObserveRTP.
func (p *PeerConnectionStatsProvider) WatchTrack(ctx context.Context, track *webrtc.TrackRemote) {
	kind := track.Kind().String()
	for ctx.Err() == nil {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				p.logger.Warnw("error reading track", "track_id", track.ID(), "kind", kind, "error", err)
			}
			return
		}
		p.ObserveRTP(kind, pkt, p.now())
	}
}

// WatchReceiver reads RTCP from a receiver until it ends or ctx is
// cancelled, feeding receiver reports to the sampler.
func (p *PeerConnectionStatsProvider) WatchReceiver(ctx context.Context, receiver *webrtc.RTPReceiver) {
	p.watchRTCP(ctx, receiver.ReadRTCP)
}

// WatchSender is WatchReceiver for the reports a remote receiver sends
// back about our outbound track.
func (p *PeerConnectionStatsProvider) WatchSender(ctx context.Context, sender *webrtc.RTPSender) {
	p.watchRTCP(ctx, sender.ReadRTCP)
}

func (p *PeerConnectionStatsProvider) watchRTCP(ctx context.Context, read func() ([]rtcp.Packet, interceptor.Attributes, error)) {
	if p.sampler == nil {
		return
	}
	for ctx.Err() == nil {
		packets, _, err := read()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				p.logger.Warnw("error reading RTCP packets", "error", err)
			}
			return
		}
		p.sampler.Observe(packets, p.now())
	}
}

// GetRoomStats delegates to the fallback provider.
func (p *PeerConnectionStatsProvider) GetRoomStats(ctx context.Context, roomID string) (*domain.ParticipantSnapshot, error) {
	if p.fallback == nil {
		return nil, fmt.Errorf("room stats for %s: %w", roomID, domain.ErrProviderUnavailable)
	}
	return p.fallback.GetRoomStats(ctx, roomID)
}

// GetHistoricalAnalytics delegates to the fallback provider.
func (p *PeerConnectionStatsProvider) GetHistoricalAnalytics(ctx context.Context, roomID string, rng domain.RangeToken) (*domain.HistoricalSnapshot, error) {
	if p.fallback == nil {
		return nil, fmt.Errorf("analytics for %s: %w", roomID, domain.ErrProviderUnavailable)
	}
	return p.fallback.GetHistoricalAnalytics(ctx, roomID, rng)
}

var _ ports.StatsProvider = (*PeerConnectionStatsProvider)(nil)
