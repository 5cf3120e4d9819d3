// Package tui provides Bubble Tea TUI components for the haul CLI.
//
// TUI rules:
//   - TUI is opt-in only (--tui flag)
//   - TUI is read-only (inspect, stats commands)
//   - TUI renders the same payloads as json/table/yaml output
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/haul/types"
)

var (
	primaryColor   = lipgloss.Color("#0EA5E9") // sky
	successColor   = lipgloss.Color("#22C55E")
	warningColor   = lipgloss.Color("#EAB308")
	errorColor     = lipgloss.Color("#DC2626")
	mutedColor     = lipgloss.Color("#64748B")
	highlightColor = lipgloss.Color("#A855F7")
	textColor      = lipgloss.Color("#F8FAFC")
)

var (
	// TitleStyle renders section headings.
	TitleStyle = lipgloss.NewStyle().Bold(true).Underline(true).Foreground(primaryColor)

	// LabelStyle renders the left column of label/value rows.
	LabelStyle = lipgloss.NewStyle().Foreground(mutedColor).Width(18)

	// ValueStyle renders the right column of label/value rows.
	ValueStyle = lipgloss.NewStyle().Foreground(textColor)

	// BoxStyle frames the inspect view.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	// HelpStyle renders the key hint line.
	HelpStyle = lipgloss.NewStyle().Faint(true).MarginTop(1)

	// StatBoxStyle frames one counter in the stats view.
	StatBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Width(18).
			Align(lipgloss.Center)

	// StatLabelStyle renders the caption under a counter.
	StatLabelStyle = lipgloss.NewStyle().Foreground(mutedColor)

	// StatValueStyle renders a counter.
	StatValueStyle = lipgloss.NewStyle().Bold(true)
)

var statusColors = map[types.TransferStatus]lipgloss.Color{
	types.TransferStatusCompleted: successColor,
	types.TransferStatusMismatch:  warningColor,
	types.TransferStatusFailed:    errorColor,
}

// StatusStyle returns a style for a transfer status.
func StatusStyle(status types.TransferStatus) lipgloss.Style {
	color, ok := statusColors[status]
	if !ok {
		return ValueStyle
	}
	return lipgloss.NewStyle().Bold(true).Foreground(color)
}
