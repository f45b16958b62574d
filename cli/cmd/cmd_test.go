package cmd

import (
	"testing"
)

func hasFlag(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}

func TestReadOnlyFlags_IncludesTUI(t *testing.T) {
	var names []string
	for _, f := range ReadOnlyFlags() {
		names = append(names, f.Names()[0])
	}
	if !hasFlag(names, "tui") {
		t.Error("ReadOnlyFlags should include --tui flag for explicit error handling")
	}
}

func TestReadOnlyFlags_FreshValues(t *testing.T) {
	a, b := ReadOnlyFlags(), ReadOnlyFlags()
	for i := range a {
		if a[i] == b[i] {
			t.Errorf("flag %v shared between calls", a[i].Names())
		}
	}
}

func TestStreamCommand_FlagNamesUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, f := range StreamCommand().Flags {
		for _, name := range f.Names() {
			if seen[name] {
				t.Errorf("duplicate flag %q", name)
			}
			seen[name] = true
		}
	}
	for _, want := range []string{"base-url", "source", "fps", "policy", "storage-path", "adapter", "tui", "report"} {
		if !seen[want] {
			t.Errorf("stream command missing --%s", want)
		}
	}
}

func TestInspectCommand_Subcommands(t *testing.T) {
	cmd := InspectCommand()
	got := make(map[string]bool)
	for _, sub := range cmd.Subcommands {
		got[sub.Name] = true
	}
	for _, want := range []string{"session", "metrics"} {
		if !got[want] {
			t.Errorf("inspect missing subcommand %q", want)
		}
	}
}
