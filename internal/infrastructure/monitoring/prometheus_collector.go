package monitoring

import (
	"time"

	"rillscope/internal/core/domain"
	"rillscope/internal/core/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector implements ports.MetricsRecorder for one room.
type PrometheusCollector struct {
	// Counters
	ticksTotal       prometheus.Counter
	fetchErrorsTotal *prometheus.CounterVec
	exportsTotal     *prometheus.CounterVec

	// Gauges
	generation    prometheus.Gauge
	uploadKbps    prometheus.Gauge
	downloadKbps  prometheus.Gauge
	packetLoss    prometheus.Gauge
	mediaQuality  *prometheus.GaugeVec
	participants  prometheus.Gauge
	activeAlerts  prometheus.Gauge
	lastTickStamp prometheus.Gauge

	// Histograms
	rtt             prometheus.Histogram
	jitter          prometheus.Histogram
	historyDuration *prometheus.HistogramVec
}

// NewPrometheusCollector registers the rillscope metrics on reg, labelled
// with the room they describe. A nil reg uses the default registerer.
func NewPrometheusCollector(reg prometheus.Registerer, roomID string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(prometheus.WrapRegistererWith(prometheus.Labels{"room_id": roomID}, reg))

	return &PrometheusCollector{
		ticksTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "rillscope_poll_ticks_total",
			Help: "Total number of completed poll ticks",
		}),

		fetchErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rillscope_fetch_errors_total",
			Help: "Failed stats fetches by source",
		}, []string{"source"}),

		exportsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rillscope_exports_total",
			Help: "Analytics exports by sink and outcome",
		}, []string{"sink", "result"}),

		generation: factory.NewGauge(prometheus.GaugeOpts{
			Name: "rillscope_poll_generation",
			Help: "Generation of the latest applied poll tick",
		}),

		uploadKbps: factory.NewGauge(prometheus.GaugeOpts{
			Name: "rillscope_upload_kbps",
			Help: "Current upload bandwidth in kbps",
		}),

		downloadKbps: factory.NewGauge(prometheus.GaugeOpts{
			Name: "rillscope_download_kbps",
			Help: "Current download bandwidth in kbps",
		}),

		packetLoss: factory.NewGauge(prometheus.GaugeOpts{
			Name: "rillscope_packet_loss_ratio",
			Help: "Current packet loss (0-1)",
		}),

		mediaQuality: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rillscope_media_quality",
			Help: "Current media quality score (0-5)",
		}, []string{"kind"}),

		participants: factory.NewGauge(prometheus.GaugeOpts{
			Name: "rillscope_participants",
			Help: "Number of participants reported for the room",
		}),

		activeAlerts: factory.NewGauge(prometheus.GaugeOpts{
			Name: "rillscope_active_alerts",
			Help: "Number of active alerts",
		}),

		lastTickStamp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "rillscope_last_snapshot_timestamp_seconds",
			Help: "Unix time of the latest successful snapshot",
		}),

		rtt: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "rillscope_rtt_seconds",
			Help:    "Round-trip time of the local connection",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.2, 0.3, 0.5, 1},
		}),

		jitter: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "rillscope_jitter_seconds",
			Help:    "Jitter of the local connection",
			Buckets: []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1},
		}),

		historyDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rillscope_history_fetch_duration_seconds",
			Help:    "Duration of historical analytics fetches",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		}, []string{"range", "result"}),
	}
}

// RecordTick counts a completed tick and records its generation.
func (p *PrometheusCollector) RecordTick(generation uint64) {
	p.ticksTotal.Inc()
	p.generation.Set(float64(generation))
}

// RecordFetchError counts a failed fetch from source.
func (p *PrometheusCollector) RecordFetchError(source string) {
	p.fetchErrorsTotal.WithLabelValues(source).Inc()
}

// RecordSnapshot updates the bandwidth, quality and connection metrics.
func (p *PrometheusCollector) RecordSnapshot(s *domain.Snapshot) {
	if s == nil {
		return
	}
	p.uploadKbps.Set(s.UploadKbps())
	p.downloadKbps.Set(s.DownloadKbps())
	p.packetLoss.Set(s.PacketLoss())
	if s.HasVideo() {
		p.mediaQuality.WithLabelValues("video").Set(float64(s.VideoQuality()))
	}
	if s.HasAudio() {
		p.mediaQuality.WithLabelValues("audio").Set(float64(s.AudioQuality()))
	}
	if s.HasConnection() {
		p.rtt.Observe(s.RTT() / 1000)
		p.jitter.Observe(s.Jitter() / 1000)
	}
	if !s.CollectedAt.IsZero() {
		p.lastTickStamp.Set(float64(s.CollectedAt.Unix()))
	}
}

// RecordParticipants records the room size.
func (p *PrometheusCollector) RecordParticipants(count int) {
	p.participants.Set(float64(count))
}

// RecordActiveAlerts records the number of active alerts.
func (p *PrometheusCollector) RecordActiveAlerts(count int) {
	p.activeAlerts.Set(float64(count))
}

// RecordHistoryFetch observes a historical analytics fetch.
func (p *PrometheusCollector) RecordHistoryFetch(rng domain.RangeToken, duration time.Duration, err error) {
	p.historyDuration.WithLabelValues(string(rng), result(err)).Observe(duration.Seconds())
}

// RecordExport counts an export by sink and outcome.
func (p *PrometheusCollector) RecordExport(sink string, err error) {
	p.exportsTotal.WithLabelValues(sink, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

var _ ports.MetricsRecorder = (*PrometheusCollector)(nil)
