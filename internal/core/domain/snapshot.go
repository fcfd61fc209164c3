package domain

import (
	"math"
	"time"
)

// ConnectionState is the local connection state.
type ConnectionState string

const (
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateDisconnected ConnectionState = "disconnected"
	StateUnknown      ConnectionState = "unknown"
)

// ParseConnectionState maps provider strings onto the known states.
// Anything unrecognised becomes StateUnknown.
func ParseConnectionState(s string) ConnectionState {
	switch ConnectionState(s) {
	case StateConnecting, StateConnected, StateDisconnected:
		return ConnectionState(s)
	default:
		return StateUnknown
	}
}

const MaxQuality = 5

// Bandwidth is in kbps.
type Bandwidth struct {
	Upload   float64 `json:"upload"`   // kbps
	Download float64 `json:"download"` // kbps
}

// MediaStats holds a 0-5 quality score.
type MediaStats struct {
	Quality int `json:"quality"` // 0-5
}

// ConnectionStats describes the local transport. RTT and Jitter are in ms.
type ConnectionStats struct {
	RTT        float64         `json:"rtt"`        // ms
	Jitter     float64         `json:"jitter"`     // ms
	PacketLoss float64         `json:"packetLoss"` // fraction 0-1
	State      ConnectionState `json:"state"`
}

// Snapshot is one real-time reading of the local connection. Every
// sub-object may be absent; the accessor methods are the only place
// defaults are applied.
type Snapshot struct {
	Bandwidth   *Bandwidth       `json:"bandwidth,omitempty"`
	Video       *MediaStats      `json:"video,omitempty"`
	Audio       *MediaStats      `json:"audio,omitempty"`
	Connection  *ConnectionStats `json:"connection,omitempty"`
	CollectedAt time.Time        `json:"collectedAt"`
}

// UploadKbps returns 0 when bandwidth is unknown.
func (s *Snapshot) UploadKbps() float64 {
	if s == nil || s.Bandwidth == nil {
		return 0
	}
	return finite(s.Bandwidth.Upload)
}

func (s *Snapshot) DownloadKbps() float64 {
	if s == nil || s.Bandwidth == nil {
		return 0
	}
	return finite(s.Bandwidth.Download)
}

// TotalBandwidth is upload plus download.
func (s *Snapshot) TotalBandwidth() float64 {
	return s.UploadKbps() + s.DownloadKbps()
}

func (s *Snapshot) HasVideo() bool { return s != nil && s.Video != nil }

func (s *Snapshot) HasAudio() bool { return s != nil && s.Audio != nil }

func (s *Snapshot) HasConnection() bool { return s != nil && s.Connection != nil }

func (s *Snapshot) VideoQuality() int {
	if !s.HasVideo() {
		return 0
	}
	return ClampQuality(s.Video.Quality)
}

func (s *Snapshot) AudioQuality() int {
	if !s.HasAudio() {
		return 0
	}
	return ClampQuality(s.Audio.Quality)
}

// RTT returns the round-trip time in ms, 0 when unknown.
func (s *Snapshot) RTT() float64 {
	if !s.HasConnection() {
		return 0
	}
	return finite(s.Connection.RTT)
}

func (s *Snapshot) Jitter() float64 {
	if !s.HasConnection() {
		return 0
	}
	return finite(s.Connection.Jitter)
}

func (s *Snapshot) PacketLoss() float64 {
	if !s.HasConnection() {
		return 0
	}
	return math.Min(math.Max(finite(s.Connection.PacketLoss), 0), 1)
}

// State returns StateUnknown without connection stats.
func (s *Snapshot) State() ConnectionState {
	if !s.HasConnection() {
		return StateUnknown
	}
	return ParseConnectionState(string(s.Connection.State))
}

// ClampQuality bounds q to 0-5.
func ClampQuality(q int) int {
	if q < 0 {
		return 0
	}
	if q > MaxQuality {
		return MaxQuality
	}
	return q
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
