package charts

import (
	"math"

	"rillscope/pkg/utils"
)

const (
	gaugeStart = 0.75 * math.Pi
	gaugeSpan  = 1.5 * math.Pi
)

// DefaultGaugeMax is the round-trip time, in ms, at full sweep.
const DefaultGaugeMax = 500

// RenderLatencyGauge draws a 270 degree track and a foreground arc whose
// sweep is min(rtt, gaugeMax)/gaugeMax, coloured by DefaultLatencyBands. A
// non-positive gaugeMax gives an empty sweep.
func RenderLatencyGauge(size Size, rtt, gaugeMax float64) CommandList {
	return RenderLatencyGaugeBands(size, rtt, gaugeMax, DefaultLatencyBands)
}

// RenderLatencyGaugeBands is RenderLatencyGauge with custom colour bands.
func RenderLatencyGaugeBands(size Size, rtt, gaugeMax float64, bands LatencyBands) CommandList {
	size = size.normalized()
	p := &pen{}

	rtt = clean(rtt)
	cx, cy := size.Width/2, size.Height/2+size.Height*0.1
	radius := math.Max(math.Min(size.Width, size.Height)/2-20, 1)

	p.clearRect(0, 0, size.Width, size.Height)

	p.lineWidth(12)
	p.strokeStyle(ColorTrack)
	p.beginPath()
	p.arc(cx, cy, radius, gaugeStart, gaugeStart+gaugeSpan)
	p.stroke()

	fraction := 0.0
	if gaugeMax > 0 && !math.IsInf(gaugeMax, 0) {
		fraction = clamp01(math.Min(rtt, gaugeMax) / gaugeMax)
	}
	color := bands.Color(rtt)

	p.strokeStyle(color)
	p.beginPath()
	p.arc(cx, cy, radius, gaugeStart, gaugeStart+gaugeSpan*fraction)
	p.stroke()

	p.font(FontValue)
	p.fillStyle(color)
	p.fillText(utils.FormatMillis(rtt), cx-20, cy+6)

	return p.cmds
}
