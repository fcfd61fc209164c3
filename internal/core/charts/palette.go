package charts

const (
	ColorBackground = "#0f172a"
	ColorGrid       = "#1e293b"
	ColorTrack      = "#334155"
	ColorText       = "#e2e8f0"
	ColorMuted      = "#64748b"

	ColorUpload   = "#38bdf8"
	ColorDownload = "#a78bfa"

	ColorGood = "#22c55e"
	ColorFair = "#f59e0b"
	ColorPoor = "#ef4444"

	ColorSpeaking    = "#22c55e"
	ColorNotSpeaking = "#64748b"
	ColorVideoOn     = "#38bdf8"

	FontLabel = "12px sans-serif"
	FontValue = "bold 16px sans-serif"
)

// LatencyBands splits round-trip time into severity bands (ms, inclusive
// upper bounds).
type LatencyBands struct {
	GoodMax float64
	FairMax float64
}

var DefaultLatencyBands = LatencyBands{GoodMax: 100, FairMax: 300}

// Color returns the band colour for rtt.
func (b LatencyBands) Color(rtt float64) string {
	switch {
	case rtt <= b.GoodMax:
		return ColorGood
	case rtt <= b.FairMax:
		return ColorFair
	default:
		return ColorPoor
	}
}

func qualityColor(q int) string {
	switch {
	case q >= 4:
		return ColorGood
	case q == 3:
		return ColorFair
	default:
		return ColorPoor
	}
}
