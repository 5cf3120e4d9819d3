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
	case ViewStatsTransfers:
		content = m.renderStatsTransfers()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m StatsModel) renderStatsTransfers() string {
	data, ok := m.data.(*types.TransferStats)
	if !ok {
		return "Invalid data type for stats_transfers"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Transfer Statistics"))
	b.WriteString("\n\n")

	boxes := []string{
		m.renderStatBox("Total", fmt.Sprintf("%d", data.Total), highlightColor),
		m.renderStatBox("Completed", fmt.Sprintf("%d", data.Completed), successColor),
		m.renderStatBox("Mismatch", fmt.Sprintf("%d", data.Mismatch), warningColor),
		m.renderStatBox("Failed", fmt.Sprintf("%d", data.Failed), errorColor),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
	b.WriteString("\n")

	volume := []string{
		m.renderStatBox("Sent", humanize.IBytes(uint64(max(data.PayloadBytes, 0))), primaryColor),
		m.renderStatBox("Returned", humanize.IBytes(uint64(max(data.ResultBytes, 0))), primaryColor),
		m.renderStatBox("Avg Duration", fmt.Sprintf("%dms", data.AvgDurationMs), mutedColor),
		m.renderStatBox("Max Duration", fmt.Sprintf("%dms", data.MaxDurationMs), mutedColor),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, volume...))

	return b.String()
}

func (m StatsModel) renderStatBox(label, value string, color lipgloss.Color) string {
	boxStyle := StatBoxStyle.BorderForeground(color)

	valueStr := StatValueStyle.Foreground(color).Render(value)
	labelStr := StatLabelStyle.Render(label)

	content := lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr)

	return boxStyle.Render(content)
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
