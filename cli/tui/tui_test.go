package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pithecene-io/haul/types"
)

func testReport() *types.TransferReport {
	return &types.TransferReport{
		TransferID:   "6f1c2a4e-8d7b-4c11-9a50-1b2c3d4e5f60",
		Status:       types.TransferStatusMismatch,
		Message:      "sha256 mismatch",
		Framing:      types.FramingIndexed,
		Isolation:    "process",
		Transform:    "invert",
		ChunkSize:    8 << 20,
		PayloadBytes: 64 << 20,
		ResultBytes:  64 << 20,
		Fragments:    8,
		SourceSHA256: "aaaa",
		ResultSHA256: "bbbb",
		OutboundMs:   30,
		ReturnMs:     10,
		DurationMs:   40,
	}
}

func TestIsTUISupported(t *testing.T) {
	tests := []struct {
		viewType string
		want     bool
	}{
		{ViewInspectTransfer, true},
		{ViewStatsTransfers, true},

		// Not supported: list, run, version
		{"list_transfers", false},
		{"run", false},
		{"version", false},

		// Not supported: unknown prefixes of supported views
		{"inspect_", false},
		{"unknown", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.viewType, func(t *testing.T) {
			got := IsTUISupported(tt.viewType)
			if got != tt.want {
				t.Errorf("IsTUISupported(%q) = %v, want %v", tt.viewType, got, tt.want)
			}
		})
	}
}

func TestSupportedTUIViews(t *testing.T) {
	views := SupportedTUIViews()
	if len(views) != 2 {
		t.Errorf("SupportedTUIViews() returned %d views, expected 2", len(views))
	}
	for _, v := range views {
		if !IsTUISupported(v) {
			t.Errorf("SupportedTUIViews() returned %q but IsTUISupported returns false", v)
		}
	}
}

func TestRun_UnsupportedViewType(t *testing.T) {
	if err := Run("list_transfers", nil); err == nil {
		t.Error("Expected error for unsupported view type")
	}
}

func TestRenderInspectStatic_Transfer(t *testing.T) {
	out := RenderInspectStatic(ViewInspectTransfer, testReport())
	for _, want := range []string{"Transfer Details", "6f1c2a4e-8d7b-4c11-9a50-1b2c3d4e5f60", "mismatch", "64 MiB", "invert", "Outbound"} {
		if !strings.Contains(out, want) {
			t.Errorf("inspect view missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "aaaa") {
		t.Error("digests should be hidden until toggled")
	}
}

func TestInspectModel_ToggleDigests(t *testing.T) {
	var model tea.Model = NewInspectModel(ViewInspectTransfer, testReport())
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("h")})
	if !strings.Contains(model.View(), "aaaa") {
		t.Error("digests should show after pressing h")
	}

	model, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Error("q should return a quit command")
	}
	if model.View() != "" {
		t.Error("view should be empty after quitting")
	}
}

func TestRenderInspectStatic_WrongType(t *testing.T) {
	out := RenderInspectStatic(ViewInspectTransfer, "not a report")
	if !strings.Contains(out, "Invalid data type") {
		t.Errorf("expected invalid type message, got:\n%s", out)
	}
}

func TestRenderStatsStatic_Transfers(t *testing.T) {
	stats := types.Summarize([]*types.TransferReport{testReport()})
	out := RenderStatsStatic(ViewStatsTransfers, stats)
	for _, want := range []string{"Transfer Statistics", "Completed", "Mismatch", "64 MiB", "40ms"} {
		if !strings.Contains(out, want) {
			t.Errorf("stats view missing %q:\n%s", want, out)
		}
	}
}
