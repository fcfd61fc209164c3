package services

import (
	"strconv"
	"time"

	"rillscope/internal/core/domain"
	"rillscope/pkg/utils"
)

// ConnectionView is the formatted connection panel.
type ConnectionView struct {
	State      domain.ConnectionState `json:"state"`
	RTT        string                 `json:"rtt"`
	Jitter     string                 `json:"jitter"`
	PacketLoss string                 `json:"packetLoss"`
	Upload     string                 `json:"upload"`
	Download   string                 `json:"download"`
	Total      string                 `json:"total"`
	Level      domain.QualityLevel    `json:"level"`
}

// QualityView is the formatted media quality panel.
type QualityView struct {
	Video    int    `json:"video"`
	Audio    int    `json:"audio"`
	HasVideo bool   `json:"hasVideo"`
	HasAudio bool   `json:"hasAudio"`
	Label    string `json:"label"`
}

// CountsView carries the counters as reported by the provider. They are
// not reconciled with the participant list.
type CountsView struct {
	Participants int `json:"participants"`
	Speaking     int `json:"speaking"`
	Video        int `json:"video"`
	Listed       int `json:"listed"`
}

// ParticipantLatency is one row of the latency table.
type ParticipantLatency struct {
	ID      string              `json:"id"`
	Name    string              `json:"name"`
	Latency string              `json:"latency"`
	Quality int                 `json:"quality"`
	Level   domain.QualityLevel `json:"level"`
}

// PerformanceView backs the performance tab.
type PerformanceView struct {
	AverageRTT     string               `json:"averageRtt"`
	AverageQuality string               `json:"averageQuality"`
	Participants   []ParticipantLatency `json:"participants"`
}

// HistoryView is the formatted history panel.
type HistoryView struct {
	Range            domain.RangeToken `json:"range"`
	Loaded           bool              `json:"loaded"`
	Duration         string            `json:"duration"`
	DataTransferred  string            `json:"dataTransferred"`
	PeakParticipants string            `json:"peakParticipants"`
	AverageQuality   string            `json:"averageQuality"`
	FetchedAt        time.Time         `json:"fetchedAt,omitempty"`
}

// ParticipantView is one row of the participants list.
type ParticipantView struct {
	ID          string                    `json:"id"`
	Name        string                    `json:"name"`
	AvatarURL   string                    `json:"avatarUrl,omitempty"`
	AvatarGlyph string                    `json:"avatarGlyph,omitempty"`
	IsSpeaking  bool                      `json:"isSpeaking"`
	HasVideo    bool                      `json:"hasVideo"`
	HasAudio    bool                      `json:"hasAudio"`
	Quality     int                       `json:"quality"`
	Latency     string                    `json:"latency"`
	Actions     []domain.ModerationAction `json:"actions,omitempty"`
}

// DashboardView is the formatted, render-ready state of a dashboard.
type DashboardView struct {
	RoomID       string              `json:"roomId"`
	IsAdmin      bool                `json:"isAdmin"`
	ActiveTab    domain.Tab          `json:"activeTab"`
	TimeRange    domain.RangeToken   `json:"timeRange"`
	AutoRefresh  bool                `json:"autoRefresh"`
	SearchFilter string              `json:"searchFilter"`
	StatusFilter domain.StatusFilter `json:"statusFilter"`
	Connection   ConnectionView      `json:"connection"`
	Quality      QualityView         `json:"quality"`
	Counts       CountsView          `json:"counts"`
	Alerts       []domain.Alert      `json:"alerts"`
	AlertCount   int                 `json:"alertCount"`
	Performance  PerformanceView     `json:"performance"`
	History      HistoryView         `json:"history"`
	Generation   uint64              `json:"generation"`
	UpdatedAt    time.Time           `json:"updatedAt,omitempty"`
}

func connectionView(s *domain.Snapshot, qs *QualityService) ConnectionView {
	return ConnectionView{
		State:      s.State(),
		RTT:        utils.FormatMillis(s.RTT()),
		Jitter:     utils.FormatMillis(s.Jitter()),
		PacketLoss: utils.FormatPercent(s.PacketLoss()),
		Upload:     utils.FormatKbps(s.UploadKbps()),
		Download:   utils.FormatKbps(s.DownloadKbps()),
		Total:      utils.FormatKbps(s.TotalBandwidth()),
		Level:      qs.ClassifySnapshot(s),
	}
}

func qualityView(s *domain.Snapshot) QualityView {
	v := QualityView{
		Video:    s.VideoQuality(),
		Audio:    s.AudioQuality(),
		HasVideo: s.HasVideo(),
		HasAudio: s.HasAudio(),
	}
	v.Label = strconv.Itoa(v.Video) + "/5 video, " + strconv.Itoa(v.Audio) + "/5 audio"
	return v
}

func countsView(ps *domain.ParticipantSnapshot) CountsView {
	if ps == nil {
		return CountsView{}
	}
	return CountsView{
		Participants: max(ps.ParticipantCount, 0),
		Speaking:     max(ps.SpeakingCount, 0),
		Video:        max(ps.VideoCount, 0),
		Listed:       len(ps.Participants),
	}
}

// performanceView averages latency and quality over the listed
// participants; an empty list averages to zero.
func performanceView(ps *domain.ParticipantSnapshot, qs *QualityService) PerformanceView {
	var list []domain.Participant
	if ps != nil {
		list = ps.Participants
	}

	view := PerformanceView{Participants: make([]ParticipantLatency, 0, len(list))}
	var latencySum float64
	var qualitySum int
	for _, p := range list {
		latencySum += p.LatencyMs()
		qualitySum += p.QualityScore()
		view.Participants = append(view.Participants, ParticipantLatency{
			ID:      p.ID,
			Name:    p.DisplayName(),
			Latency: utils.FormatMillis(p.LatencyMs()),
			Quality: p.QualityScore(),
			Level:   qs.ClassifyParticipant(p),
		})
	}

	var avgLatency, avgQuality float64
	if n := len(list); n > 0 {
		avgLatency = latencySum / float64(n)
		avgQuality = float64(qualitySum) / float64(n)
	}
	view.AverageRTT = utils.FormatMillis(avgLatency)
	view.AverageQuality = utils.FormatQuality(avgQuality)
	return view
}

func historyView(h *HistoryAggregator, now time.Time) HistoryView {
	held := h.Held()
	return HistoryView{
		Range:            held.Range,
		Loaded:           held.Snapshot != nil,
		Duration:         durationLabel(held.Snapshot, now),
		DataTransferred:  dataTransferredLabel(held.Snapshot),
		PeakParticipants: peakParticipantsLabel(held.Snapshot),
		AverageQuality:   averageQualityLabel(held.Snapshot),
		FetchedAt:        held.FetchedAt,
	}
}

func participantView(p domain.Participant, admin bool) ParticipantView {
	v := ParticipantView{
		ID:          p.ID,
		Name:        p.DisplayName(),
		AvatarGlyph: p.AvatarGlyph(),
		IsSpeaking:  p.IsSpeaking,
		HasVideo:    p.HasVideo,
		HasAudio:    p.HasAudio,
		Quality:     p.QualityScore(),
		Latency:     utils.FormatMillis(p.LatencyMs()),
	}
	if p.HasAvatar() {
		v.AvatarURL = *p.AvatarURL
	}
	if admin {
		v.Actions = []domain.ModerationAction{domain.ActionMute, domain.ActionKick}
	}
	return v
}

// filterParticipants applies the free-text name search and the status
// filter, preserving provider order.
func filterParticipants(list []domain.Participant, search string, status domain.StatusFilter, admin bool) []ParticipantView {
	out := make([]ParticipantView, 0, len(list))
	for _, p := range list {
		if search != "" && !utils.ContainsFold(p.DisplayName(), search) {
			continue
		}
		if !status.Matches(p) {
			continue
		}
		out = append(out, participantView(p, admin))
	}
	return out
}
