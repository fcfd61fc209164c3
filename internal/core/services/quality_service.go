package services

import (
	"rillscope/internal/core/domain"
)

// QualityThresholds are the limits a connection must stay within to be
// classified at a level.
type QualityThresholds struct {
	MaxLatency    float64 // ms
	MaxPacketLoss float64 // fraction 0-1
	MinQuality    int     // 0-5
}

// QualityService classifies connection and participant quality.
type QualityService struct {
	thresholds map[domain.QualityLevel]QualityThresholds
}

// NewQualityService creates a service with the default thresholds.
func NewQualityService() *QualityService {
	return &QualityService{
		thresholds: map[domain.QualityLevel]QualityThresholds{
			domain.QualityGood: {
				MaxLatency:    100,
				MaxPacketLoss: 0.01,
				MinQuality:    4,
			},
			domain.QualityFair: {
				MaxLatency:    HighLatencyThresholdMs,
				MaxPacketLoss: 0.05,
				MinQuality:    PoorQualityThreshold + 1,
			},
		},
	}
}

// ClassifySnapshot grades the local connection. Missing tracks do not
// lower the grade.
func (qs *QualityService) ClassifySnapshot(s *domain.Snapshot) domain.QualityLevel {
	quality := domain.MaxQuality
	if s.HasVideo() {
		quality = min(quality, s.VideoQuality())
	}
	if s.HasAudio() {
		quality = min(quality, s.AudioQuality())
	}
	return qs.classify(s.RTT(), s.PacketLoss(), quality)
}

// ClassifyParticipant grades a participant by score and latency.
func (qs *QualityService) ClassifyParticipant(p domain.Participant) domain.QualityLevel {
	return qs.classify(p.LatencyMs(), 0, p.QualityScore())
}

// ClassifyLatency grades a round-trip time on its own.
func (qs *QualityService) ClassifyLatency(ms float64) domain.QualityLevel {
	return qs.classify(ms, 0, domain.MaxQuality)
}

func (qs *QualityService) classify(latency, loss float64, quality int) domain.QualityLevel {
	if qs.meetsQualityRequirements(latency, loss, quality, qs.thresholds[domain.QualityGood]) {
		return domain.QualityGood
	} else if qs.meetsQualityRequirements(latency, loss, quality, qs.thresholds[domain.QualityFair]) {
		return domain.QualityFair
	} else {
		return domain.QualityPoor
	}
}

func (qs *QualityService) meetsQualityRequirements(latency, loss float64, quality int, threshold QualityThresholds) bool {
	return latency <= threshold.MaxLatency &&
		loss <= threshold.MaxPacketLoss &&
		quality >= threshold.MinQuality
}
