package charts

import (
	"rillscope/internal/core/domain"
)

const (
	ChartBandwidth    = "bandwidth"
	ChartQuality      = "quality"
	ChartParticipants = "participants"
	ChartLatency      = "latency"
)

// ChartNames lists the charts in display order.
func ChartNames() []string {
	return []string{ChartBandwidth, ChartQuality, ChartParticipants, ChartLatency}
}

// ChartInput is everything the four dashboard charts draw from.
type ChartInput struct {
	Size         Size
	Samples      []BandwidthSample
	Snapshot     *domain.Snapshot
	Participants *domain.ParticipantSnapshot
	GaugeMax     float64
}

// ChartSet maps chart names to their command lists.
type ChartSet map[string]CommandList

// RenderAll renders every chart from in.
func RenderAll(in ChartInput) ChartSet {
	return ChartSet{
		ChartBandwidth:    RenderBandwidth(in.Size, in.Samples),
		ChartQuality:      RenderQualityMeter(in.Size, in.Snapshot.VideoQuality(), in.Snapshot.AudioQuality()),
		ChartParticipants: RenderParticipantsPie(in.Size, ParticipantBreakdown(in.Participants)),
		ChartLatency:      RenderLatencyGauge(in.Size, in.Snapshot.RTT(), in.GaugeMax),
	}
}
