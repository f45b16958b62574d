package tui

import (
	"fmt"
	"slices"
	"sort"
)

// views maps the read-only view names to their runners. The live stream
// dashboard is not listed; it is started with RunLive.
var views = map[string]func(viewType string, data any) error{
	"inspect_session": RunInspectTUI,
	"stats_session":   RunStatsTUI,
}

// Run opens the read-only view registered as viewType.
func Run(viewType string, data any) error {
	run, ok := views[viewType]
	if !ok {
		return fmt.Errorf("TUI mode is not supported for %s", viewType)
	}
	return run(viewType, data)
}

// IsTUISupported reports whether viewType has a read-only view.
func IsTUISupported(viewType string) bool {
	return slices.Contains(SupportedTUIViews(), viewType)
}

// SupportedTUIViews lists the read-only views in name order.
func SupportedTUIViews() []string {
	names := make([]string, 0, len(views))
	for name := range views {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
