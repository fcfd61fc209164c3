package ui

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const sparklineBlocks = "▁▂▃▄▅▆▇█"

var sparklineBlockRunes = []rune(sparklineBlocks)

// RenderSparkline draws the last width values as block characters scaled
// between their min and max. Non-finite values draw as the lowest block.
func RenderSparkline(data []float64, width int) string {
	if len(data) == 0 || width <= 0 {
		return ""
	}
	if len(data) > width {
		data = data[len(data)-width:]
	}

	minVal, maxVal := math.Inf(1), math.Inf(-1)
	for _, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}

	var sb strings.Builder
	levels := len(sparklineBlockRunes)
	for _, v := range data {
		level := 0
		switch {
		case math.IsNaN(v) || math.IsInf(v, 0):
		case maxVal == minVal:
			level = levels / 2
		default:
			level = int((v - minVal) / (maxVal - minVal) * float64(levels-1))
			level = max(0, min(level, levels-1))
		}
		sb.WriteRune(sparklineBlockRunes[level])
	}

	return lipgloss.NewStyle().Foreground(ColorInfo).Render(sb.String())
}
