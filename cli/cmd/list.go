package cmd

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/haul/cli/render"
	"github.com/pithecene-io/haul/lode"
	"github.com/pithecene-io/haul/types"
)

// listWarningThreshold is the number of items above which we warn about using --limit.
const listWarningThreshold = 100

// isStderrTTY returns true if stderr is a TTY.
func isStderrTTY() bool {
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// TransferRow is the thin list view of a stored transfer report.
type TransferRow struct {
	TransferID   string               `json:"transfer_id" yaml:"transfer_id"`
	Status       types.TransferStatus `json:"status" yaml:"status"`
	StartedAt    string               `json:"started_at" yaml:"started_at"`
	Framing      types.FramingMode    `json:"framing" yaml:"framing"`
	Transform    string               `json:"transform" yaml:"transform"`
	PayloadBytes int                  `json:"payload_bytes" yaml:"payload_bytes"`
	DurationMs   int64                `json:"duration_ms" yaml:"duration_ms"`
}

// PayloadRow is the list view of a stored payload.
type PayloadRow struct {
	Name string `json:"name" yaml:"name"`
	Path string `json:"path" yaml:"path"`
}

// ListCommand returns the list command with subcommands.
// List returns thin slices; inspect gives the full record.
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List stored entities (transfers, payloads)",
		Subcommands: []*cli.Command{
			listTransfersCommand(),
			listPayloadsCommand(),
		},
	}
}

func listTransfersCommand() *cli.Command {
	flags := append(ReadOnlyFlags(),
		ConfigFlag,
		&cli.StringFlag{
			Name:  "status",
			Usage: "Filter by status: completed, failed, mismatch",
		},
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Maximum number of transfers to return (0 = no limit)",
			Value: 0,
		},
	)
	return &cli.Command{
		Name:   "transfers",
		Usage:  "List transfers, newest first",
		Flags:  append(flags, StorageFlags()...),
		Action: listTransfersAction,
	}
}

func listTransfersAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	// TUI not supported for list commands
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for list commands", 1)
	}

	st, err := openReadStores(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	reports, err := lode.ReadReports(c.Context, st.reports)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to read transfers: %v", err), 1)
	}

	limit := c.Int("limit")
	rows := filterTransfers(reports, types.TransferStatus(c.String("status")), limit)

	// Warn if output is large and --limit was not specified (TTY only to avoid noise in pipelines)
	if len(rows) > listWarningThreshold && limit == 0 && isStderrTTY() {
		fmt.Fprintf(os.Stderr, "Warning: returning %d results. Consider using --limit to reduce output.\n\n", len(rows))
	}

	return r.Render(rows)
}

// filterTransfers keeps reports matching status (empty matches all), up
// to limit rows (0 means no limit).
func filterTransfers(reports []*types.TransferReport, status types.TransferStatus, limit int) []TransferRow {
	rows := []TransferRow{}
	for _, rep := range reports {
		if status != "" && rep.Status != status {
			continue
		}
		rows = append(rows, TransferRow{
			TransferID:   rep.TransferID,
			Status:       rep.Status,
			StartedAt:    rep.StartedAt,
			Framing:      rep.Framing,
			Transform:    rep.Transform,
			PayloadBytes: rep.PayloadBytes,
			DurationMs:   rep.DurationMs,
		})
		if limit > 0 && len(rows) == limit {
			break
		}
	}
	return rows
}

func listPayloadsCommand() *cli.Command {
	return &cli.Command{
		Name:   "payloads",
		Usage:  "List stored payloads",
		Flags:  append(append(ReadOnlyFlags(), ConfigFlag), StorageFlags()...),
		Action: listPayloadsAction,
	}
}

func listPayloadsAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for list commands", 1)
	}

	st, err := openReadStores(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	names, err := st.payloads.List(c.Context)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to list payloads: %v", err), 1)
	}

	rows := make([]PayloadRow, 0, len(names))
	for _, name := range names {
		rows = append(rows, PayloadRow{Name: name, Path: lode.PayloadPath(name)})
	}
	return r.Render(rows)
}
