package charts

import (
	"fmt"
	"math"
	"time"
)

// BandwidthSample is one point of the bandwidth series, in kbps.
type BandwidthSample struct {
	At       time.Time `json:"at"`
	Upload   float64   `json:"upload"`   // kbps
	Download float64   `json:"download"` // kbps
}

const (
	plotPadLeft   = 48
	plotPadRight  = 12
	plotPadTop    = 24
	plotPadBottom = 20
	gridLines     = 4
)

// RenderBandwidth draws upload and download as two line series scaled to
// the largest sample. Without samples each series is a flat baseline.
func RenderBandwidth(size Size, samples []BandwidthSample) CommandList {
	size = size.normalized()
	p := &pen{}

	left, top := float64(plotPadLeft), float64(plotPadTop)
	plotW := math.Max(size.Width-plotPadLeft-plotPadRight, 1)
	plotH := math.Max(size.Height-plotPadTop-plotPadBottom, 1)
	bottom := top + plotH

	p.clearRect(0, 0, size.Width, size.Height)
	p.fillStyle(ColorBackground)
	p.fillRect(0, 0, size.Width, size.Height)

	p.fillStyle(ColorGrid)
	for i := 0; i <= gridLines; i++ {
		y := top + plotH*float64(i)/gridLines
		p.fillRect(left, y, plotW, 1)
	}

	peak := 0.0
	for _, s := range samples {
		peak = math.Max(peak, math.Max(clean(s.Upload), clean(s.Download)))
	}
	scale := peak
	if scale <= 0 {
		scale = 1
	}

	p.font(FontLabel)
	p.fillStyle(ColorMuted)
	p.fillText(fmt.Sprintf("%.0f kbps", peak), 4, top+4)
	p.fillText("0", 4, bottom)

	series := []struct {
		label string
		color string
		value func(BandwidthSample) float64
	}{
		{"Upload", ColorUpload, func(s BandwidthSample) float64 { return s.Upload }},
		{"Download", ColorDownload, func(s BandwidthSample) float64 { return s.Download }},
	}

	p.lineWidth(2)
	for i, sr := range series {
		p.strokeStyle(sr.color)
		p.beginPath()
		switch len(samples) {
		case 0:
			p.moveTo(left, bottom)
			p.lineTo(left+plotW, bottom)
		case 1:
			y := bottom - plotH*clamp01(clean(sr.value(samples[0]))/scale)
			p.moveTo(left, y)
			p.lineTo(left+plotW, y)
		default:
			step := plotW / float64(len(samples)-1)
			for j, s := range samples {
				x := left + step*float64(j)
				y := bottom - plotH*clamp01(clean(sr.value(s))/scale)
				if j == 0 {
					p.moveTo(x, y)
				} else {
					p.lineTo(x, y)
				}
			}
		}
		p.stroke()

		p.fillStyle(sr.color)
		p.fillText(sr.label, left+float64(i)*80, 14)
	}

	return p.cmds
}

func clean(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}
