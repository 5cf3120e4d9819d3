package runtime

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/multierr"

	"github.com/pithecene-io/haul/endpoint"
	"github.com/pithecene-io/haul/log"
	"github.com/pithecene-io/haul/metrics"
	"github.com/pithecene-io/haul/transport"
	"github.com/pithecene-io/haul/types"
)

// ServeConfig configures a worker serving over a byte stream.
type ServeConfig struct {
	// Endpoint holds the worker's transfer settings.
	Endpoint endpoint.Config
	// Logger receives worker logs. If nil, logging is disabled.
	Logger *log.Logger
	// Collector records worker metrics. May be nil.
	Collector *metrics.Collector
}

// ServeWorker runs the worker role over in and out until the coordinator
// closes its end of the stream or ctx is done. A clean end of stream
// returns nil.
func ServeWorker(ctx context.Context, in io.Reader, out io.Writer, cfg ServeConfig) (err error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	stream := transport.NewStream(in, out,
		transport.WithLogger(logger),
		transport.WithCollector(cfg.Collector),
	)
	defer func() {
		err = multierr.Append(err, stream.Close())
	}()

	worker, err := endpoint.NewWorker(stream, cfg.Endpoint, logger, cfg.Collector)
	if err != nil {
		return err
	}

	err = worker.Serve(ctx)
	logger.Info("worker stopped", map[string]any{
		"served":        worker.Served(),
		"failed":        worker.Failed(),
		"bytes_read":    stream.BytesRead(),
		"bytes_written": stream.BytesWritten(),
	})
	return err
}

// WorkerEndpointID returns the endpoint id handed down by the coordinator,
// or a pid-derived id when running standalone.
func WorkerEndpointID() string {
	if id := os.Getenv(EnvEndpointID); id != "" {
		return id
	}
	return endpointID(types.RoleWorker)
}

func endpointID(role types.Role) string {
	return fmt.Sprintf("%s-%d", role, os.Getpid())
}
