package tui

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/ripestream/cli/reader"
)

// StatsModel is a Bubble Tea model for stats views.
type StatsModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewStatsModel creates a new stats model.
func NewStatsModel(viewType string, data any) StatsModel {
	return StatsModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m StatsModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case "stats_session":
		content = m.renderStatsSession()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m StatsModel) renderStatsSession() string {
	data, ok := m.data.(*reader.MetricsSnapshot)
	if !ok {
		return "Invalid data type for stats_session"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("Session %s (%s)", data.SessionID, data.Policy)))
	b.WriteString("\n\n")

	capture := []string{
		statBox("Frames Sent", data.FramesSent, infoColor),
		statBox("Skipped", data.FramesSkipped, busyColor),
		statBox("Coalesced", data.TicksCoalesced, busyColor),
		statBox("KiB Sent", data.BytesSent/1024, infoColor),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, capture...))
	b.WriteString("\n")

	recording := []string{
		statBox("Received", data.RecordsReceived, infoColor),
		statBox("Persisted", data.RecordsPersisted, okColor),
		statBox("Dropped", data.RecordsDropped, badColor),
		statBox("Write Fails", data.LodeWriteFailure, badColor),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, recording...))

	if len(data.EnvelopesByType) > 0 {
		b.WriteString("\n")
		names := make([]string, 0, len(data.EnvelopesByType))
		for name := range data.EnvelopesByType {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			b.WriteString(fmt.Sprintf("%s %s\n",
				LabelStyle.Render(name+":"),
				ValueStyle.Render(formatCount(data.EnvelopesByType[name]))))
		}
	}

	return b.String()
}

// formatCount groups thousands: 12345 renders as 12,345.
func formatCount(n int64) string {
	digits := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(digits, "-")
	digits = strings.TrimPrefix(digits, "-")
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// RunStatsTUI runs the stats TUI.
func RunStatsTUI(viewType string, data any) error {
	model := NewStatsModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderStatsStatic renders stats data without full TUI (for fallback).
func RenderStatsStatic(viewType string, data any) string {
	model := NewStatsModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
