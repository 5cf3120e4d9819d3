package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/haul/chunk"
	"github.com/pithecene-io/haul/cli/config"
	"github.com/pithecene-io/haul/cli/render"
	"github.com/pithecene-io/haul/lode"
	"github.com/pithecene-io/haul/metrics"
	"github.com/pithecene-io/haul/runtime"
	"github.com/pithecene-io/haul/types"
)

// RunCommand returns the run command.
// This is the only command that moves data. Exit codes:
//   - 0: payload came back and verified
//   - 1: transfer failed
//   - 2: payload came back but did not verify
//   - 3: invalid configuration
func RunCommand() *cli.Command {
	flags := []cli.Flag{
		ConfigFlag,
		FormatFlag,
		NoColorFlag,
		&cli.StringFlag{
			Name:  "isolation",
			Usage: "Worker isolation: inproc or process",
		},
		&cli.StringFlag{
			Name:  "worker",
			Usage: "haul binary to launch for process isolation (default: this binary)",
		},
		&cli.StringFlag{
			Name:  "payload-size",
			Usage: "Size of the generated payload, e.g. 64MiB",
		},
		&cli.StringFlag{
			Name:  "payload",
			Usage: "Load the source payload by name from storage instead of generating one",
		},
		&cli.StringFlag{
			Name:  "result-name",
			Usage: "Name to store the returned payload under (default: <transfer-id>.bin)",
		},
		&cli.StringFlag{
			Name:  "adapter",
			Usage: "Completion notification: webhook or redis",
		},
		&cli.StringFlag{
			Name:  "adapter-url",
			Usage: "Webhook URL or redis://host:port/db",
		},
		&cli.StringFlag{
			Name:  "adapter-channel",
			Usage: "Redis pub/sub channel",
		},
		&cli.DurationFlag{
			Name:  "adapter-timeout",
			Usage: "Per-notification timeout",
		},
		&cli.IntFlag{
			Name:  "adapter-retries",
			Usage: "Notification retry attempts",
		},
		&cli.StringFlag{
			Name:  "report",
			Usage: "Write a JSON run report to this path (- for stderr)",
		},
		&cli.BoolFlag{
			Name:  "progress",
			Usage: "Print a dot per outbound fragment to stderr",
		},
		&cli.BoolFlag{
			Name:  "quiet",
			Usage: "Suppress logs and result output",
		},
	}
	flags = append(flags, EndpointFlags()...)
	flags = append(flags, StorageFlags()...)

	return &cli.Command{
		Name:   "run",
		Usage:  "Ship a payload to a worker and back, then verify it",
		Flags:  flags,
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	cfg, err := loadSettings(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid configuration: %v", err), runtime.ExitCodeConfigError)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeConfigError)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rtCfg, closeFn, err := buildRoundTrip(ctx, c, cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid configuration: %v", err), runtime.ExitCodeConfigError)
	}
	defer func() { _ = closeFn() }()

	result, err := runtime.RoundTrip(ctx, rtCfg)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeForError(err))
	}
	if c.Bool("progress") {
		fmt.Fprintln(os.Stderr)
	}

	report := runtime.BuildRunReport(result)
	if path := c.String("report"); path != "" {
		if err := runtime.WriteRunReport(report, path); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}
	if !c.Bool("quiet") {
		if err := r.Render(report); err != nil {
			return err
		}
	}

	if code := result.ExitCode(); code != runtime.ExitCodeCompleted {
		return cli.Exit("", code)
	}
	return nil
}

// buildRoundTrip turns settings into a RoundTripConfig. The returned
// close function releases the adapter.
func buildRoundTrip(ctx context.Context, c *cli.Context, cfg *config.Config) (*runtime.RoundTripConfig, func() error, error) {
	noop := func() error { return nil }

	wc := workerConfig(cfg)
	ec, err := wc.EndpointConfig()
	if err != nil {
		return nil, noop, err
	}
	if c.Bool("progress") {
		ec.Progress = chunk.Dots(os.Stderr)
	}

	isolation, err := runtime.ParseIsolation(cfg.Isolation)
	if err != nil {
		return nil, noop, err
	}

	rtCfg := &runtime.RoundTripConfig{
		Endpoint:    ec,
		Isolation:   isolation,
		PayloadSize: runtime.DefaultPayloadSize,
		PayloadName: cfg.Payload,
		ResultName:  c.String("result-name"),
		WorkerPath:  cfg.Worker,
		Collector:   metrics.NewCollector(string(types.RoleCoordinator), string(ec.Framing), string(isolation)),
	}
	if cfg.PayloadSize != nil {
		rtCfg.PayloadSize = int(*cfg.PayloadSize)
	}
	if !c.Bool("quiet") {
		rtCfg.LogOutput = os.Stderr
	}
	if isolation == runtime.IsolationProcess && rtCfg.WorkerPath == "" {
		self, err := os.Executable()
		if err != nil {
			return nil, noop, fmt.Errorf("resolve worker binary: %w", err)
		}
		rtCfg.WorkerPath = self
	}

	if sc, ok := storageConfig(cfg); ok {
		st, err := openStores(ctx, sc)
		if err != nil {
			return nil, noop, err
		}
		rtCfg.Payloads = st.payloads
		rtCfg.Reports = lode.NewReportWriter(st.reports)
	}

	a, err := buildAdapter(cfg.Adapter)
	if err != nil {
		return nil, noop, err
	}
	if a == nil {
		return rtCfg, noop, nil
	}
	rtCfg.Adapter = a
	return rtCfg, a.Close, nil
}
