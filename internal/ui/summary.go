// Package ui renders dashboard views for terminals.
package ui

import (
	"fmt"
	"strings"

	"rillscope/internal/core/services"

	"github.com/charmbracelet/lipgloss"
)

const sparklineWidth = 40

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value)
}

// RenderSummary lays out a dashboard view as a boxed terminal panel.
// bandwidth, when present, is drawn as a sparkline of total kbps.
func RenderSummary(view services.DashboardView, bandwidth []float64) string {
	conn := view.Connection
	q := view.Quality

	lines := []string{
		titleStyle.Render(fmt.Sprintf("Room %s", view.RoomID)),
		"",
		row("State", lipgloss.NewStyle().Foreground(levelColor(conn.Level)).Render(string(conn.State))),
		row("RTT", valueStyle.Render(conn.RTT)),
		row("Jitter", valueStyle.Render(conn.Jitter)),
		row("Packet loss", valueStyle.Render(conn.PacketLoss)),
		row("Upload", valueStyle.Render(conn.Upload)),
		row("Download", valueStyle.Render(conn.Download)),
	}
	if spark := RenderSparkline(bandwidth, sparklineWidth); spark != "" {
		lines = append(lines, row("Bandwidth", spark))
	}

	lines = append(lines, "", row("Quality", renderQuality(q)))
	lines = append(lines, row("Participants", valueStyle.Render(fmt.Sprintf("%d (%d speaking, %d video)",
		view.Counts.Participants, view.Counts.Speaking, view.Counts.Video))))
	lines = append(lines, row("Avg latency", valueStyle.Render(view.Performance.AverageRTT)))

	if view.History.Loaded {
		h := view.History
		lines = append(lines, row("History "+string(h.Range), valueStyle.Render(fmt.Sprintf("%s, %s transferred, peak %s",
			h.Duration, h.DataTransferred, h.PeakParticipants))))
	}

	lines = append(lines, "", renderAlerts(view))
	return boxStyle.Render(strings.Join(lines, "\n"))
}

func renderQuality(q services.QualityView) string {
	var parts []string
	if q.HasVideo {
		parts = append(parts, lipgloss.NewStyle().Foreground(qualityColor(q.Video)).Render(fmt.Sprintf("video %d/5", q.Video)))
	}
	if q.HasAudio {
		parts = append(parts, lipgloss.NewStyle().Foreground(qualityColor(q.Audio)).Render(fmt.Sprintf("audio %d/5", q.Audio)))
	}
	if len(parts) == 0 {
		return lipgloss.NewStyle().Foreground(ColorMuted).Render("no media")
	}
	return strings.Join(parts, "  ")
}

func renderAlerts(view services.DashboardView) string {
	if len(view.Alerts) == 0 {
		return lipgloss.NewStyle().Foreground(ColorSuccess).Render("No active alerts")
	}

	warn := lipgloss.NewStyle().Foreground(ColorWarning)
	lines := []string{warn.Bold(true).Render(fmt.Sprintf("%d active alert(s)", view.AlertCount))}
	for _, a := range view.Alerts {
		lines = append(lines, warn.Render("  ! "+a.Message))
	}
	if hidden := view.AlertCount - len(view.Alerts); hidden > 0 {
		lines = append(lines, lipgloss.NewStyle().Foreground(ColorMuted).Render(fmt.Sprintf("  and %d more", hidden)))
	}
	return strings.Join(lines, "\n")
}
