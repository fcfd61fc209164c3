package ui

import (
	"rillscope/internal/core/domain"

	"github.com/charmbracelet/lipgloss"
)

// ANSI palette, readable on light and dark terminals.
const (
	ColorSuccess lipgloss.Color = "2"
	ColorError   lipgloss.Color = "1"
	ColorWarning lipgloss.Color = "3"
	ColorInfo    lipgloss.Color = "6"
	ColorPrimary lipgloss.Color = "7"
	ColorMuted   lipgloss.Color = "8"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorInfo)
	labelStyle = lipgloss.NewStyle().Foreground(ColorMuted).Width(14)
	valueStyle = lipgloss.NewStyle().Foreground(ColorPrimary)
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorMuted).
			Padding(0, 1)
)

func levelColor(level domain.QualityLevel) lipgloss.Color {
	switch level {
	case domain.QualityGood:
		return ColorSuccess
	case domain.QualityFair:
		return ColorWarning
	case domain.QualityPoor:
		return ColorError
	default:
		return ColorMuted
	}
}

func qualityColor(q int) lipgloss.Color {
	switch {
	case q >= 4:
		return ColorSuccess
	case q >= 3:
		return ColorWarning
	default:
		return ColorError
	}
}
