package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/haul/log"
	"github.com/pithecene-io/haul/metrics"
	"github.com/pithecene-io/haul/runtime"
	"github.com/pithecene-io/haul/types"
)

// WorkerCommand returns the worker command. It serves the worker role on
// stdin/stdout and is normally launched by run with process isolation.
// Logs go to stderr so stdout carries frames only.
func WorkerCommand() *cli.Command {
	return &cli.Command{
		Name:   "worker",
		Usage:  "Serve the worker role on stdin/stdout (launched by run)",
		Flags:  append([]cli.Flag{ConfigFlag}, EndpointFlags()...),
		Action: workerAction,
	}
}

func workerAction(c *cli.Context) error {
	cfg, err := loadSettings(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid configuration: %v", err), runtime.ExitCodeConfigError)
	}
	ec, err := workerConfig(cfg).EndpointConfig()
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid configuration: %v", err), runtime.ExitCodeConfigError)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := log.NewLoggerWithWriter(&types.EndpointMeta{
		Role:       types.RoleWorker,
		EndpointID: runtime.WorkerEndpointID(),
	}, os.Stderr)
	defer func() { _ = logger.Sync() }()
	sugar := logger.Sugar()
	sugar.Infof("worker serving %s framing, chunk size %d", ec.Framing, ec.ChunkSize)

	err = runtime.ServeWorker(ctx, os.Stdin, os.Stdout, runtime.ServeConfig{
		Endpoint:  ec,
		Logger:    logger,
		Collector: metrics.NewCollector(string(types.RoleWorker), string(ec.Framing), "stream"),
	})
	if err != nil {
		sugar.Errorf("worker stopped: %v", err)
		return cli.Exit(err.Error(), runtime.ExitCodeForError(err))
	}
	return nil
}
