package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pithecene-io/ripestream/envelope"
	"github.com/pithecene-io/ripestream/stream"
	"github.com/pithecene-io/ripestream/types"
)

// liveRefresh is how often the live view polls the feed.
const liveRefresh = 100 * time.Millisecond

// LiveResult is the final line shown when the session ends.
type LiveResult struct {
	Outcome string
	Message string
}

// LiveFeed is a stream.Observer that keeps the latest session snapshot
// for the live view. Callbacks only store a pointer.
type LiveFeed struct {
	latest atomic.Pointer[stream.Session]
	result atomic.Pointer[LiveResult]
	done   chan struct{}
	once   sync.Once
}

// NewLiveFeed creates an empty feed.
func NewLiveFeed() *LiveFeed {
	return &LiveFeed{done: make(chan struct{})}
}

// OnEnvelope implements stream.Observer.
func (f *LiveFeed) OnEnvelope(s stream.Session, _ envelope.Envelope) {
	f.latest.Store(&s)
}

// OnState implements stream.Observer.
func (f *LiveFeed) OnState(s stream.Session, _ stream.State) {
	f.latest.Store(&s)
}

// Finish records the session outcome and ends the live view.
func (f *LiveFeed) Finish(outcome, message string) {
	f.once.Do(func() {
		f.result.Store(&LiveResult{Outcome: outcome, Message: message})
		close(f.done)
	})
}

// Done is closed by Finish.
func (f *LiveFeed) Done() <-chan struct{} {
	return f.done
}

var _ stream.Observer = (*LiveFeed)(nil)

type tickMsg time.Time

// LiveModel is a Bubble Tea model following a running session.
type LiveModel struct {
	feed     *LiveFeed
	onStop   func()
	spinner  spinner.Model
	session  stream.Session
	result   *LiveResult
	stopping bool
}

// NewLiveModel creates a live model. onStop is called once when the user
// asks to stop; the view keeps running until the feed finishes.
func NewLiveModel(feed *LiveFeed, onStop func()) LiveModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = busyStyle
	return LiveModel{
		feed:    feed,
		onStop:  onStop,
		spinner: sp,
		session: stream.Session{State: stream.StateIdle},
	}
}

func tick() tea.Cmd {
	return tea.Tick(liveRefresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init implements tea.Model.
func (m LiveModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

// Update implements tea.Model.
func (m LiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		if s := m.feed.latest.Load(); s != nil {
			m.session = *s
		}
		if r := m.feed.result.Load(); r != nil {
			m.result = r
			return m, tea.Quit
		}
		return m, tick()

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			if m.stopping {
				// Second request: leave the view, the stream keeps shutting down.
				return m, tea.Quit
			}
			m.stopping = true
			if m.onStop != nil {
				m.onStop()
			}
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m LiveModel) View() string {
	s := m.session
	var b strings.Builder

	title := "ripestream"
	if s.ID != "" {
		title += " · " + s.ID
	}
	b.WriteString(TitleStyle.Render(title))
	b.WriteString("\n")

	state := string(s.State)
	line := StateStyle(state).Render(state)
	if !s.State.Settled() && m.result == nil {
		line = m.spinner.View() + " " + line
	}
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("State:"), line))
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Endpoint:"), ValueStyle.Render(s.Endpoint)))
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Model:"), ValueStyle.Render(deref(s.ModelVersion))))
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Frames:"),
		ValueStyle.Render(fmt.Sprintf("%d", s.FramesReceived))))

	if s.LastFrame != nil {
		b.WriteString("\n")
		b.WriteString(renderTally(s.LastFrame.FrameSummary))
	}
	if s.LastError != nil {
		b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Last error:"), badStyle.Render(*s.LastError)))
	}
	if s.Summary != nil {
		suggestion := string(s.Summary.HarvestSuggestion)
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("%s %s (%d detected)\n",
			LabelStyle.Render("Harvest:"),
			StateStyle(suggestion).Render(suggestion),
			s.Summary.TotalDetected))
		b.WriteString(renderRatio(s.Summary.RipenessRatio))
	}

	content := BoxStyle.Render(b.String())
	switch {
	case m.result != nil:
		footer := StateStyle(m.result.Outcome).Render(m.result.Outcome)
		if m.result.Message != "" {
			footer += " " + HelpStyle.Render(m.result.Message)
		}
		return content + "\n" + footer + "\n"
	case m.stopping:
		return content + "\n" + HelpStyle.Render("Stopping... press q again to leave")
	default:
		return content + "\n" + HelpStyle.Render("Press q or Ctrl+C to stop")
	}
}

// renderTally shows the latest frame's per-class counts.
func renderTally(t types.RipenessTally) string {
	parts := make([]string, 0, len(types.RipenessClasses))
	for _, class := range types.RipenessClasses {
		parts = append(parts, RipenessStyle(class).Render(fmt.Sprintf("%s %d", class, t.Count(class))))
	}
	return fmt.Sprintf("%s %s\n", LabelStyle.Render("Last frame:"),
		ValueStyle.Render(fmt.Sprintf("%d total · %s", t.Total, strings.Join(parts, " · "))))
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

// RunLive runs the live view until the feed finishes, ctx is canceled, or
// the user leaves. It writes to out and reads keys from in.
func RunLive(ctx context.Context, feed *LiveFeed, onStop func(), in io.Reader, out io.Writer) error {
	p := tea.NewProgram(NewLiveModel(feed, onStop),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
	)
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		// Program killed by context cancellation.
		return nil
	}
	return err
}
