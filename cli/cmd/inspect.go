package cmd

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/haul/cli/render"
	"github.com/pithecene-io/haul/cli/tui"
	"github.com/pithecene-io/haul/lode"
)

// InspectCommand returns the inspect command with subcommands.
// Inspect returns a deep view of a single entity.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Inspect a single entity (transfer)",
		Subcommands: []*cli.Command{
			inspectTransferCommand(),
		},
	}
}

func inspectTransferCommand() *cli.Command {
	flags := append(TUIReadOnlyFlags(), ConfigFlag)
	return &cli.Command{
		Name:      "transfer",
		Usage:     "Inspect a transfer by ID (a unique prefix of 8+ characters also matches)",
		ArgsUsage: "<transfer-id>",
		Flags:     append(flags, StorageFlags()...),
		Action:    inspectTransferAction,
	}
}

func inspectTransferAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("transfer-id required", 1)
	}
	transferID := c.Args().First()

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	st, err := openReadStores(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	report, err := lode.FindReport(c.Context, st.reports, transferID)
	if errors.Is(err, lode.ErrReportNotFound) {
		return cli.Exit(fmt.Sprintf("transfer %s not found", transferID), 1)
	}
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to read transfer: %v", err), 1)
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewInspectTransfer, report)
	}
	return r.Render(report)
}
