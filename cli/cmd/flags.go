// Package cmd provides CLI commands for the haul binary.
package cmd

import "github.com/urfave/cli/v2"

// Shared flags for read-only commands.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	// Only valid for select read-only commands (inspect, stats).
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (inspect, stats only)",
	}

	// ConfigFlag points at a haul.yaml file.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to haul.yaml (flags override file values)",
		EnvVars: []string{"HAUL_CONFIG"},
	}
)

// ReadOnlyFlags returns the shared flags for all read-only commands.
// Includes --tui so that unsupported commands can provide explicit error messages
// instead of generic "flag not defined" errors.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// TUIReadOnlyFlags returns flags for commands that support TUI mode.
// This is an alias for ReadOnlyFlags, kept for documentation clarity.
func TUIReadOnlyFlags() []cli.Flag {
	return ReadOnlyFlags()
}

// EndpointFlags returns the transfer settings shared by run and worker.
func EndpointFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "chunk-size",
			Usage: "Fragment size bound, e.g. 8MiB or 1048576",
		},
		&cli.StringFlag{
			Name:  "framing",
			Usage: "Outbound framing: indexed or batch",
		},
		&cli.StringFlag{
			Name:  "transform",
			Usage: "Worker transform: identity, invert, zstd, unzstd (comma-separated to chain)",
		},
		&cli.DurationFlag{
			Name:  "stall-timeout",
			Usage: "Abandon a partial transfer after this long without progress (0 disables)",
		},
	}
}

// StorageFlags returns the storage settings shared by run and the
// read-only report commands.
func StorageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "storage-backend",
			Usage: "Storage backend: fs, memory or s3",
		},
		&cli.StringFlag{
			Name:  "storage-path",
			Usage: "Storage root (fs: directory, s3: bucket/prefix)",
		},
		&cli.StringFlag{
			Name:  "storage-region",
			Usage: "AWS region for the s3 backend (optional, uses default chain)",
		},
		&cli.StringFlag{
			Name:  "storage-endpoint",
			Usage: "Custom S3 endpoint for S3-compatible providers",
		},
		&cli.BoolFlag{
			Name:  "storage-s3-path-style",
			Usage: "Use path-style S3 addressing",
		},
	}
}
