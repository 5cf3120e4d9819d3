package tui

import (
	"fmt"
	"slices"
	"strings"
)

// View types with TUI support.
const (
	ViewInspectTransfer = "inspect_transfer"
	ViewStatsTransfers  = "stats_transfers"
)

// Run starts the appropriate TUI based on the view type.
// Returns an error if the view type doesn't support TUI.
func Run(viewType string, data any) error {
	if !IsTUISupported(viewType) {
		return fmt.Errorf("TUI mode is not supported for %s", viewType)
	}

	if strings.HasPrefix(viewType, "inspect_") {
		return RunInspectTUI(viewType, data)
	}
	return RunStatsTUI(viewType, data)
}

// IsTUISupported returns true if the view type supports TUI mode.
// Only the read-only inspect and stats views do.
func IsTUISupported(viewType string) bool {
	return slices.Contains(SupportedTUIViews(), viewType)
}

// SupportedTUIViews returns a list of view types that support TUI.
func SupportedTUIViews() []string {
	return []string{
		ViewInspectTransfer,
		ViewStatsTransfers,
	}
}
