package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pithecene-io/ripestream/cli/reader"
	"github.com/pithecene-io/ripestream/stream"
	"github.com/pithecene-io/ripestream/types"
)

func TestIsTUISupported(t *testing.T) {
	tests := []struct {
		viewType string
		want     bool
	}{
		{"inspect_session", true},
		{"stats_session", true},
		{"inspect_run", false},
		{"stream", false},
		{"version", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.viewType, func(t *testing.T) {
			if got := IsTUISupported(tt.viewType); got != tt.want {
				t.Errorf("IsTUISupported(%q) = %v, want %v", tt.viewType, got, tt.want)
			}
		})
	}
}

func TestSupportedTUIViews(t *testing.T) {
	for _, v := range SupportedTUIViews() {
		if !IsTUISupported(v) {
			t.Errorf("SupportedTUIViews() returned %q but IsTUISupported returns false", v)
		}
	}
}

func TestRun_UnsupportedViewType(t *testing.T) {
	if err := Run("list_sessions", nil); err == nil {
		t.Error("Expected error for unsupported view type")
	}
}

func TestRenderInspectStatic_Session(t *testing.T) {
	data := &reader.InspectSessionResponse{
		SessionID:         "sess-1",
		Source:            "orchard-a",
		Frames:            12,
		HasSummary:        true,
		TotalDetected:     9,
		HarvestSuggestion: types.HarvestReady,
		RipenessRatio:     &types.RipenessRatio{Red: 1},
	}
	out := RenderInspectStatic("inspect_session", data)
	for _, want := range []string{"sess-1", "orchard-a", "ready", "100.0%"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderInspectStatic_WrongType(t *testing.T) {
	out := RenderInspectStatic("inspect_session", "nope")
	if !strings.Contains(out, "Invalid data type") {
		t.Errorf("expected invalid data message, got:\n%s", out)
	}
}

func TestRenderStatsStatic_Session(t *testing.T) {
	data := &reader.MetricsSnapshot{
		SessionID:       "sess-1",
		Policy:          "strict",
		FramesSent:      42,
		EnvelopesByType: map[string]int64{"frame": 40},
	}
	out := RenderStatsStatic("stats_session", data)
	for _, want := range []string{"sess-1", "strict", "42", "frame"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestLiveModel_FollowsFeed(t *testing.T) {
	feed := NewLiveFeed()
	var stops int
	m := NewLiveModel(feed, func() { stops++ })

	model := "lychee-v2"
	feed.OnEnvelope(stream.Session{
		ID: "sess-1", State: stream.StateStreaming, ModelVersion: &model, FramesReceived: 3,
		LastFrame: &types.FrameResult{FrameSummary: types.RipenessTally{Total: 2, Red: 2}},
	}, nil)

	next, cmd := m.Update(tickMsg{})
	m = next.(LiveModel)
	if cmd == nil {
		t.Fatal("expected another tick while running")
	}
	view := m.View()
	for _, want := range []string{"sess-1", "streaming", "lychee-v2", "red 2"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}

	// First q requests a stop, second leaves.
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	m = next.(LiveModel)
	if stops != 1 || !m.stopping {
		t.Fatalf("stops = %d stopping = %v, want 1/true", stops, m.stopping)
	}
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command on second q")
	}
	if stops != 1 {
		t.Errorf("onStop called %d times, want 1", stops)
	}
}

func TestLiveModel_QuitsOnFinish(t *testing.T) {
	feed := NewLiveFeed()
	m := NewLiveModel(feed, nil)

	feed.OnState(stream.Session{ID: "sess-1", State: stream.StateStopped}, stream.StateStopping)
	feed.Finish("stopped", "session stopped")
	feed.Finish("ignored", "")

	select {
	case <-feed.Done():
	default:
		t.Fatal("Done not closed after Finish")
	}

	next, cmd := m.Update(tickMsg{})
	m = next.(LiveModel)
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if m.result == nil || m.result.Outcome != "stopped" {
		t.Fatalf("result = %+v, want stopped", m.result)
	}
	if !strings.Contains(m.View(), "session stopped") {
		t.Errorf("view missing final message:\n%s", m.View())
	}
}

func TestFormatCount(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{12345, "12,345"},
		{1234567, "1,234,567"},
		{-4200, "-4,200"},
	}
	for _, tt := range tests {
		if got := formatCount(tt.n); got != tt.want {
			t.Errorf("formatCount(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestRipenessStyle_UnknownFallsBack(t *testing.T) {
	if got := RipenessStyle(types.Ripeness("overripe")).Render("x"); !strings.Contains(got, "x") {
		t.Errorf("fallback style dropped text: %q", got)
	}
}
