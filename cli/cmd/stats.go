package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/haul/cli/render"
	"github.com/pithecene-io/haul/cli/tui"
	"github.com/pithecene-io/haul/lode"
	"github.com/pithecene-io/haul/types"
)

// StatsCommand returns the stats command with subcommands.
// Stats returns aggregated, derived facts.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show aggregated statistics (transfers)",
		Subcommands: []*cli.Command{
			statsTransfersCommand(),
		},
	}
}

func statsTransfersCommand() *cli.Command {
	flags := append(TUIReadOnlyFlags(), ConfigFlag)
	return &cli.Command{
		Name:   "transfers",
		Usage:  "Show transfer statistics",
		Flags:  append(flags, StorageFlags()...),
		Action: statsTransfersAction,
	}
}

func statsTransfersAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	st, err := openReadStores(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	reports, err := lode.ReadReports(c.Context, st.reports)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to read transfers: %v", err), 1)
	}

	stats := types.Summarize(reports)
	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewStatsTransfers, stats)
	}
	return r.Render(stats)
}
