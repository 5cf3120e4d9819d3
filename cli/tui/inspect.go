package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/pithecene-io/haul/types"
)

// InspectModel is a Bubble Tea model for inspect views.
type InspectModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
	showHash bool
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
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Hashes):
			m.showHash = !m.showHash
			return m, nil
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
	case ViewInspectTransfer:
		content = m.renderInspectTransfer()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press h to toggle digests, q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m InspectModel) renderInspectTransfer() string {
	data, ok := m.data.(*types.TransferReport)
	if !ok {
		return "Invalid data type for inspect_transfer"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Transfer Details"))
	b.WriteString("\n\n")

	rows := [][2]string{
		{"Transfer ID", data.TransferID},
		{"Status", string(data.Status)},
		{"Started At", data.StartedAt},
		{"Framing", string(data.Framing)},
		{"Isolation", data.Isolation},
		{"Transform", data.Transform},
		{"Chunk Size", humanize.IBytes(uint64(max(data.ChunkSize, 0)))},
		{"Fragments", fmt.Sprintf("%d", data.Fragments)},
		{"Payload", humanize.IBytes(uint64(max(data.PayloadBytes, 0)))},
		{"Result", humanize.IBytes(uint64(max(data.ResultBytes, 0)))},
	}
	if data.Message != "" {
		rows = append(rows, [2]string{"Message", data.Message})
	}

	for _, row := range rows {
		value := ValueStyle.Render(row[1])
		if row[0] == "Status" {
			value = StatusStyle(data.Status).Render(row[1])
		}
		b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render(row[0]+":"), value))
	}

	b.WriteString("\n")
	b.WriteString(TitleStyle.Render("Timing"))
	b.WriteString("\n")
	b.WriteString(m.renderTiming(data))

	if m.showHash {
		b.WriteString("\n")
		b.WriteString(TitleStyle.Render("Digests"))
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("  Source:"), ValueStyle.Render(data.SourceSHA256)))
		b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("  Result:"), ValueStyle.Render(data.ResultSHA256)))
	}

	return BoxStyle.Render(b.String())
}

// renderTiming draws outbound and return legs as proportional bars.
func (m InspectModel) renderTiming(data *types.TransferReport) string {
	const barWidth = 30
	total := data.OutboundMs + data.ReturnMs
	bar := func(ms int64, color lipgloss.Color) string {
		n := 0
		if total > 0 {
			n = int(ms * barWidth / total)
		}
		return lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", n)) +
			strings.Repeat("░", barWidth-n)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s %s %dms\n", LabelStyle.Render("  Outbound:"), bar(data.OutboundMs, highlightColor), data.OutboundMs))
	b.WriteString(fmt.Sprintf("%s %s %dms\n", LabelStyle.Render("  Return:"), bar(data.ReturnMs, primaryColor), data.ReturnMs))
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("  Total:"), ValueStyle.Render(fmt.Sprintf("%dms", data.DurationMs))))
	return b.String()
}

// keyMap defines key bindings.
type keyMap struct {
	Quit   key.Binding
	Hashes key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Hashes: key.NewBinding(
		key.WithKeys("h"),
		key.WithHelp("h", "toggle digests"),
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
