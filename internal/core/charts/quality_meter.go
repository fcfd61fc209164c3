package charts

import (
	"fmt"

	"rillscope/internal/core/domain"
)

// RenderQualityMeter draws one horizontal bar per track, proportional to
// quality/5, with the track name and numeric value as labels.
func RenderQualityMeter(size Size, video, audio int) CommandList {
	size = size.normalized()
	p := &pen{}

	p.clearRect(0, 0, size.Width, size.Height)

	rows := []struct {
		label   string
		quality int
	}{
		{"Video", domain.ClampQuality(video)},
		{"Audio", domain.ClampQuality(audio)},
	}

	labelW := 60.0
	valueW := 48.0
	trackX := labelW
	trackW := size.Width - labelW - valueW
	if trackW < 1 {
		trackW = 1
	}
	rowH := size.Height / float64(len(rows))
	barH := rowH * 0.4

	p.font(FontLabel)
	for i, row := range rows {
		y := rowH*float64(i) + (rowH-barH)/2

		p.fillStyle(ColorTrack)
		p.fillRect(trackX, y, trackW, barH)

		p.fillStyle(qualityColor(row.quality))
		p.fillRect(trackX, y, trackW*float64(row.quality)/domain.MaxQuality, barH)

		p.fillStyle(ColorText)
		p.fillText(row.label, 4, y+barH*0.75)
		p.fillText(fmt.Sprintf("%d/%d", row.quality, domain.MaxQuality), trackX+trackW+6, y+barH*0.75)
	}

	return p.cmds
}
