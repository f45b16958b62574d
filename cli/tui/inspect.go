package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/ripestream/cli/reader"
	"github.com/pithecene-io/ripestream/types"
)

// InspectModel is a Bubble Tea model for inspect views.
type InspectModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewInspectModel creates a new inspect model.
func NewInspectModel(viewType string, data any) InspectModel {
	return InspectModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case "inspect_session":
		content = m.renderInspectSession()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m InspectModel) renderInspectSession() string {
	data, ok := m.data.(*reader.InspectSessionResponse)
	if !ok {
		return "Invalid data type for inspect_session"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Session Details"))
	b.WriteString("\n\n")

	rows := [][]string{
		{"Session ID", data.SessionID},
		{"Source", data.Source},
		{"Day", data.Day},
		{"Model", data.ModelVersion},
		{"Schema", data.SchemaVersion},
		{"Frames", fmt.Sprintf("%d", data.Frames)},
		{"Errors", fmt.Sprintf("%d", data.Errors)},
	}
	if data.LastError != "" {
		rows = append(rows, []string{"Last Error", data.LastError})
	}
	for _, row := range rows {
		b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render(row[0]+":"), ValueStyle.Render(row[1])))
	}

	if data.HasSummary {
		b.WriteString("\n")
		b.WriteString(TitleStyle.Render("Summary"))
		b.WriteString("\n")
		suggestion := string(data.HarvestSuggestion)
		b.WriteString(fmt.Sprintf("%s %s\n",
			LabelStyle.Render("Harvest:"),
			StateStyle(suggestion).Render(suggestion)))
		b.WriteString(fmt.Sprintf("%s %s\n",
			LabelStyle.Render("Detected:"),
			ValueStyle.Render(fmt.Sprintf("%d", data.TotalDetected))))
		if data.RipenessRatio != nil {
			b.WriteString(renderRatio(*data.RipenessRatio))
		}
	} else {
		b.WriteString("\n")
		b.WriteString(busyStyle.Render("No session summary recorded"))
		b.WriteString("\n")
	}

	return BoxStyle.Render(b.String())
}

// renderRatio draws one proportional bar per ripeness class.
func renderRatio(r types.RipenessRatio) string {
	const width = 30
	fractions := map[types.Ripeness]float64{
		types.RipenessGreen: r.Green,
		types.RipenessHalf:  r.Half,
		types.RipenessRed:   r.Red,
		types.RipenessYoung: r.Young,
	}

	var b strings.Builder
	for _, class := range types.RipenessClasses {
		f := fractions[class]
		n := int(f*width + 0.5)
		bar := RipenessStyle(class).Render(strings.Repeat("█", n))
		b.WriteString(fmt.Sprintf("%s %s %5.1f%%\n",
			LabelStyle.Render(string(class)+":"), bar, f*100))
	}
	return b.String()
}

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// RunInspectTUI runs the inspect TUI.
func RunInspectTUI(viewType string, data any) error {
	model := NewInspectModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderInspectStatic renders inspect data without full TUI (for fallback).
func RenderInspectStatic(viewType string, data any) string {
	model := NewInspectModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
