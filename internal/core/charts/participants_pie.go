package charts

import (
	"fmt"
	"math"

	"rillscope/internal/core/domain"
)

// PieSlice is one segment of the participants chart.
type PieSlice struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Color string  `json:"color"`
}

// ParticipantBreakdown splits the room into speaking, not speaking and
// video-on wedges using the reported counters.
func ParticipantBreakdown(ps *domain.ParticipantSnapshot) []PieSlice {
	var total, speaking, video int
	if ps != nil {
		total, speaking, video = ps.ParticipantCount, ps.SpeakingCount, ps.VideoCount
	}
	notSpeaking := total - speaking
	if notSpeaking < 0 {
		notSpeaking = 0
	}
	return []PieSlice{
		{Label: "Speaking", Value: float64(max(speaking, 0)), Color: ColorSpeaking},
		{Label: "Not speaking", Value: float64(notSpeaking), Color: ColorNotSpeaking},
		{Label: "Video on", Value: float64(max(video, 0)), Color: ColorVideoOn},
	}
}

// RenderParticipantsPie draws one wedge per positive slice, sized by its
// share of the total. A zero total renders a single empty ring.
func RenderParticipantsPie(size Size, slices []PieSlice) CommandList {
	size = size.normalized()
	p := &pen{}

	cx, cy := size.Width/2, size.Height/2
	radius := math.Max(math.Min(size.Width, size.Height)/2-16, 1)

	p.clearRect(0, 0, size.Width, size.Height)

	total := 0.0
	for _, s := range slices {
		total += clean(s.Value)
	}

	if total <= 0 {
		p.strokeStyle(ColorTrack)
		p.lineWidth(2)
		p.beginPath()
		p.arc(cx, cy, radius, 0, 2*math.Pi)
		p.stroke()
		p.font(FontLabel)
		p.fillStyle(ColorMuted)
		p.fillText("No participants", cx-40, cy+4)
		return p.cmds
	}

	start := -math.Pi / 2
	for _, s := range slices {
		v := clean(s.Value)
		if v == 0 {
			continue
		}
		end := start + 2*math.Pi*v/total
		p.fillStyle(s.Color)
		p.beginPath()
		p.moveTo(cx, cy)
		p.arc(cx, cy, radius, start, end)
		p.fill()
		start = end
	}

	p.font(FontLabel)
	for i, s := range slices {
		p.fillStyle(s.Color)
		p.fillText(fmt.Sprintf("%s: %.0f", s.Label, clean(s.Value)), 4, 14+float64(i)*16)
	}

	return p.cmds
}
