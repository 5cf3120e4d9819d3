// Package main provides the haul CLI entrypoint.
//
// Usage:
//
//	haul <command> [subcommand] [options]
//
// Exit codes for `run`:
//   - 0: payload came back and verified
//   - 1: transfer failed
//   - 2: payload came back but did not verify
//   - 3: invalid configuration
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/haul/cli/cmd"
	"github.com/pithecene-io/haul/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           "haul",
		Usage:          "Chunked payload transfer between a coordinator and a worker",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.RunCommand(),
			cmd.WorkerCommand(),
			cmd.InspectCommand(),
			cmd.StatsCommand(),
			cmd.ListCommand(),
			cmd.VersionCommand("", commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already handled the exit for cli.ExitCoder errors.
		// This branch handles unexpected errors that weren't wrapped.
		os.Exit(1)
	}
}

// exitErrHandler handles errors from the CLI, preserving exit codes from cli.Exit().
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	// Check for ExitCoder (from cli.Exit), handles wrapped errors
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// cli.Exit("", N).Error() returns "exit status N", so skip those
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	// Unexpected error - print and exit with code 1
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
