// Package tui holds the bubbletea views behind --tui.
//
// inspect_session and stats_session render the same payloads as the table
// output. The live view follows a running stream session.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/ripestream/types"
)

var (
	accentColor = lipgloss.Color("#B91C1C") // lychee shell
	fleshColor  = lipgloss.Color("#FEF3C7")
	okColor     = lipgloss.Color("#16A34A")
	busyColor   = lipgloss.Color("#D97706")
	badColor    = lipgloss.Color("#DC2626")
	dimColor    = lipgloss.Color("#6B7280")
	infoColor   = lipgloss.Color("#2563EB")
)

var (
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(accentColor).MarginBottom(1)
	LabelStyle = lipgloss.NewStyle().Foreground(dimColor).Width(16)
	ValueStyle = lipgloss.NewStyle().Foreground(fleshColor)
	HelpStyle  = lipgloss.NewStyle().Foreground(dimColor).MarginTop(1)
	BoxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accentColor).
			Padding(1, 2)

	okStyle   = lipgloss.NewStyle().Foreground(okColor)
	busyStyle = lipgloss.NewStyle().Foreground(busyColor)
	badStyle  = lipgloss.NewStyle().Foreground(badColor)

	statBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 2).
			Width(20).
			Align(lipgloss.Center)
	statLabelStyle = lipgloss.NewStyle().Foreground(dimColor).Align(lipgloss.Center)
	statValueStyle = lipgloss.NewStyle().Bold(true).Align(lipgloss.Center)
)

var ripenessStyles = map[types.Ripeness]lipgloss.Style{
	types.RipenessGreen: lipgloss.NewStyle().Foreground(lipgloss.Color("#22C55E")),
	types.RipenessHalf:  lipgloss.NewStyle().Foreground(lipgloss.Color("#EAB308")),
	types.RipenessRed:   lipgloss.NewStyle().Foreground(lipgloss.Color("#DC2626")),
	types.RipenessYoung: lipgloss.NewStyle().Foreground(lipgloss.Color("#A3E635")),
}

// RipenessStyle colors text for one ripeness class.
func RipenessStyle(class types.Ripeness) lipgloss.Style {
	if s, ok := ripenessStyles[class]; ok {
		return s
	}
	return ValueStyle
}

// StateStyle colors a session state, outcome or harvest suggestion.
func StateStyle(state string) lipgloss.Style {
	switch state {
	case "stopped", "idle", "ready":
		return okStyle
	case "connecting", "streaming", "stopping", "partially_ready", "not_ready":
		return busyStyle
	case "error", "session_error", "setup_failure", "recording_failure", "overripe_risk":
		return badStyle
	}
	return ValueStyle
}

// statBox draws a bordered number with a caption below it.
func statBox(label string, value int64, color lipgloss.Color) string {
	body := lipgloss.JoinVertical(lipgloss.Center,
		statValueStyle.Foreground(color).Render(formatCount(value)),
		statLabelStyle.Render(label))
	return statBoxStyle.BorderForeground(color).Render(body)
}
