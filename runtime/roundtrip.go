// Package runtime wires coordinator and worker endpoints into a complete
// round trip: payload in, transform applied on the far side, payload back,
// verified, stored and reported.
package runtime

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/pithecene-io/haul/adapter"
	"github.com/pithecene-io/haul/endpoint"
	"github.com/pithecene-io/haul/ipc"
	"github.com/pithecene-io/haul/lode"
	"github.com/pithecene-io/haul/log"
	"github.com/pithecene-io/haul/metrics"
	"github.com/pithecene-io/haul/transform"
	"github.com/pithecene-io/haul/transport"
	"github.com/pithecene-io/haul/types"
)

// Isolation selects where the worker runs.
type Isolation string

const (
	// IsolationInproc runs the worker in-process over a pipe transport.
	IsolationInproc Isolation = "inproc"
	// IsolationProcess runs the worker as a child process over stdio.
	IsolationProcess Isolation = "process"
)

// ParseIsolation parses an isolation mode. Empty selects IsolationInproc.
func ParseIsolation(s string) (Isolation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(IsolationInproc):
		return IsolationInproc, nil
	case string(IsolationProcess):
		return IsolationProcess, nil
	default:
		return "", fmt.Errorf("invalid isolation %q (must be inproc or process)", s)
	}
}

const (
	// DefaultPayloadSize is the generated payload size when none is configured.
	DefaultPayloadSize = 64 << 20
	// DefaultChannelBuffer is the per-direction pipe buffer for inproc runs.
	DefaultChannelBuffer = 64
	// workerExitGrace bounds how long a worker may take to exit after its
	// stdin is closed.
	workerExitGrace = 10 * time.Second
	// persistTimeout bounds storing, reporting and publishing.
	persistTimeout = 30 * time.Second
)

// RoundTripConfig configures one round trip.
type RoundTripConfig struct {
	// Endpoint holds the transfer settings shared by both roles.
	Endpoint endpoint.Config
	// Isolation selects inproc or process workers.
	Isolation Isolation
	// PayloadSize is the size of the generated source payload.
	PayloadSize int
	// PayloadName loads the source payload from Payloads instead of generating one.
	PayloadName string
	// ResultName is the payload name the result is stored under.
	// Defaults to "<transfer_id>.bin".
	ResultName string
	// Payloads stores the result and optionally supplies the source. May be nil.
	Payloads *lode.PayloadStore
	// Reports receives the transfer report. May be nil.
	Reports *lode.ReportWriter
	// Adapter is notified after the report is written. May be nil.
	Adapter adapter.Adapter
	// WorkerPath is the haul binary used for process isolation.
	WorkerPath string
	// WorkerFactory overrides worker launch (for testing).
	// If nil, uses NewWorkerProcess.
	WorkerFactory WorkerFactory
	// ChannelBuffer is the inproc pipe buffer per direction.
	ChannelBuffer int
	// LogOutput receives JSON logs from both roles. If nil, logging is disabled.
	LogOutput io.Writer
	// Collector records coordinator metrics. May be nil.
	Collector *metrics.Collector
}

// Validate checks the round trip configuration. Endpoint settings are
// checked against the channel when the endpoints are built.
func (c *RoundTripConfig) Validate() error {
	if c.PayloadSize < 0 {
		return fmt.Errorf("payload_size must not be negative, got %d", c.PayloadSize)
	}
	if c.PayloadName != "" && c.Payloads == nil {
		return errors.New("loading a named payload requires storage")
	}
	switch c.Isolation {
	case IsolationInproc, "":
	case IsolationProcess:
		if c.WorkerPath == "" && c.WorkerFactory == nil {
			return errors.New("process isolation requires a worker binary path")
		}
	default:
		return fmt.Errorf("invalid isolation %q", c.Isolation)
	}
	return nil
}

// RoundTripResult describes a finished round trip.
type RoundTripResult struct {
	// Report is the stored summary. Always set.
	Report *types.TransferReport
	// Result is the coordinator's view of the transfer. Nil on failure.
	Result *endpoint.Result
	// Err is the transfer error, nil when the payload came back.
	Err error
	// StoragePath is where the result payload was stored, if anywhere.
	StoragePath string
	// WorkerStderr is the captured worker stderr (process isolation).
	WorkerStderr string
	// TeardownErr collects errors from closing channels and reaping the worker.
	TeardownErr error
	// PersistErr collects errors from storing, reporting and publishing.
	// These never change Report.Status.
	PersistErr error
	// Metrics is the coordinator metrics snapshot.
	Metrics metrics.Snapshot
}

// ExitCode returns the process exit code for this result.
func (r *RoundTripResult) ExitCode() int {
	return ExitCodeForStatus(r.Report.Status)
}

// GeneratePayload returns n bytes of the repeating 0..255 pattern.
func GeneratePayload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 256)
	}
	return b
}

// Digest returns the hex sha256 of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// link is the coordinator's side of a wired transport plus whatever runs
// the worker on the other end.
type link struct {
	ch       transport.Channel
	worker   *endpoint.Worker
	launcher Launcher
	peer     transport.Channel
}

// RoundTrip ships a payload to a worker and back, verifies the result and
// records the outcome.
//
// Execution flow:
//  1. Obtain the source payload and the expected result
//  2. Wire the transport and start the worker
//  3. Run coordinator (and inproc worker) under one errgroup
//  4. Tear down the link and reap the worker
//  5. Verify, store, report and publish
//
// A non-nil error means the round trip never started; transfer failures
// are reported through the result.
func RoundTrip(ctx context.Context, cfg *RoundTripConfig) (*RoundTripResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &ConfigError{Err: err}
	}
	if cfg.Isolation == "" {
		cfg.Isolation = IsolationInproc
	}

	transferID := uuid.NewString()
	baseLogger := newLogger(cfg.LogOutput, types.RoleCoordinator, endpointID(types.RoleCoordinator))
	logger := baseLogger.WithTransfer(transferID)

	source, err := loadSource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	tr := cfg.Endpoint.Transform
	if tr == nil {
		tr = transform.Identity()
	}
	expected, err := tr.Apply(source)
	if err != nil {
		return nil, fmt.Errorf("apply %s to source: %w", tr.Name(), err)
	}

	started := time.Now()
	logger.Info("round trip starting", map[string]any{
		"isolation":     string(cfg.Isolation),
		"payload_bytes": len(source),
		"transform":     tr.Name(),
	})

	lk, err := wire(ctx, cfg, transferID, baseLogger)
	if err != nil {
		return nil, err
	}

	coord, err := endpoint.NewCoordinator(lk.ch, cfg.Endpoint, baseLogger, cfg.Collector)
	if err != nil {
		return nil, multierr.Append(&ConfigError{Err: err}, lk.close(ctx))
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return ignoreCanceled(coord.Run(gctx)) })
	if lk.worker != nil {
		g.Go(func() error { return ignoreCanceled(lk.worker.Serve(gctx)) })
	}

	var (
		res         *endpoint.Result
		transferErr error
	)
	g.Go(func() error {
		defer stop()
		res, transferErr = coord.TransferWithID(gctx, transferID, source)
		return nil
	})
	runErr := g.Wait()

	result := &RoundTripResult{Result: res}
	if transferErr != nil && runErr != nil {
		transferErr = multierr.Append(transferErr, runErr)
	} else {
		result.TeardownErr = runErr
	}
	result.Err = transferErr

	exit, closeErr := lk.reap(ctx)
	result.TeardownErr = multierr.Append(result.TeardownErr, closeErr)
	if exit != nil {
		result.WorkerStderr = string(exit.Stderr)
	}
	if result.TeardownErr != nil {
		logger.Warn("teardown failed", map[string]any{"error": result.TeardownErr.Error()})
	}

	result.Report = buildReport(cfg, tr, transferID, started, source, expected, res, transferErr)
	result.Report.DurationMs = time.Since(started).Milliseconds()
	logger.Info("round trip finished", map[string]any{
		"status":      string(result.Report.Status),
		"duration_ms": result.Report.DurationMs,
	})

	// Persist even when the caller has given up on the transfer itself.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	persist(persistCtx, cfg, result, logger)
	result.Metrics = cfg.Collector.Snapshot()
	return result, nil
}

func loadSource(ctx context.Context, cfg *RoundTripConfig) ([]byte, error) {
	if cfg.PayloadName != "" {
		data, err := cfg.Payloads.Get(ctx, cfg.PayloadName)
		if err != nil {
			return nil, fmt.Errorf("load payload %q: %w", cfg.PayloadName, err)
		}
		return data, nil
	}
	return GeneratePayload(cfg.PayloadSize), nil
}

func wire(ctx context.Context, cfg *RoundTripConfig, transferID string, logger *log.Logger) (*link, error) {
	if cfg.Isolation == IsolationProcess {
		return wireProcess(ctx, cfg, transferID, logger)
	}

	buffer := cfg.ChannelBuffer
	if buffer <= 0 {
		buffer = DefaultChannelBuffer
	}
	coordEnd, workerEnd := transport.NewPipe(buffer, ipc.MaxChunkSize())
	workerLogger := newLogger(cfg.LogOutput, types.RoleWorker, endpointID(types.RoleWorker))
	workerCollector := metrics.NewCollector(string(types.RoleWorker), string(cfg.Endpoint.Framing), "pipe")

	worker, err := endpoint.NewWorker(workerEnd, cfg.Endpoint, workerLogger, workerCollector)
	if err != nil {
		return nil, multierr.Combine(&ConfigError{Err: err}, coordEnd.Close(), workerEnd.Close())
	}
	return &link{ch: coordEnd, worker: worker, peer: workerEnd}, nil
}

func wireProcess(ctx context.Context, cfg *RoundTripConfig, transferID string, logger *log.Logger) (*link, error) {
	if cfg.Endpoint.Framing == types.FramingBatch {
		return nil, &ConfigError{Err: endpoint.ErrBatchUnsupported}
	}

	tr := cfg.Endpoint.Transform
	if tr == nil {
		tr = transform.Identity()
	}
	wcfg := &WorkerConfig{
		BinaryPath:   cfg.WorkerPath,
		EndpointID:   fmt.Sprintf("%s-%s", types.RoleWorker, transferID[:8]),
		ChunkSize:    cfg.Endpoint.ChunkSize,
		Framing:      cfg.Endpoint.Framing,
		Transform:    tr.Name(),
		StallTimeout: cfg.Endpoint.StallTimeout,
	}
	var launcher Launcher
	if cfg.WorkerFactory != nil {
		launcher = cfg.WorkerFactory(wcfg)
	} else {
		launcher = NewWorkerProcess(wcfg)
	}

	if err := launcher.Start(ctx); err != nil {
		cfg.Collector.IncWorkerLaunchFailure()
		return nil, fmt.Errorf("launch worker: %w", err)
	}

	stream := transport.NewStream(launcher.Stdout(), launcher.Stdin(),
		transport.WithLogger(logger),
		transport.WithCollector(cfg.Collector),
	)
	return &link{ch: stream, launcher: launcher}, nil
}

// close releases the link without waiting for a process worker.
func (l *link) close(ctx context.Context) error {
	_, err := l.reap(ctx)
	return err
}

// reap closes both ends and, for process workers, waits for exit.
// Closing the stream closes the worker's stdin, which ends its Serve loop.
func (l *link) reap(ctx context.Context) (*WorkerExit, error) {
	err := l.ch.Close()
	if l.peer != nil {
		err = multierr.Append(err, l.peer.Close())
	}
	if l.launcher == nil {
		return nil, err
	}

	exit, waitErr := waitWorker(ctx, l.launcher, workerExitGrace)
	err = multierr.Append(err, waitErr)
	if exit != nil && exit.ExitCode != 0 {
		err = multierr.Append(err, fmt.Errorf("worker exited with code %d", exit.ExitCode))
	}
	return exit, err
}

func waitWorker(ctx context.Context, l Launcher, grace time.Duration) (*WorkerExit, error) {
	type waited struct {
		exit *WorkerExit
		err  error
	}
	done := make(chan waited, 1)
	go func() {
		exit, err := l.Wait()
		done <- waited{exit, err}
	}()

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case w := <-done:
		return w.exit, w.err
	case <-timer.C:
	case <-ctx.Done():
	}

	killErr := l.Kill()
	w := <-done
	return w.exit, multierr.Combine(
		fmt.Errorf("worker did not exit within %s", grace),
		killErr,
		w.err,
	)
}

func buildReport(cfg *RoundTripConfig, tr transform.Transform, transferID string, started time.Time,
	source, expected []byte, res *endpoint.Result, transferErr error,
) *types.TransferReport {
	framing := cfg.Endpoint.Framing
	if framing == "" {
		framing = types.FramingIndexed
	}
	report := &types.TransferReport{
		TransferID:   transferID,
		Framing:      framing,
		Isolation:    string(cfg.Isolation),
		Transform:    tr.Name(),
		ChunkSize:    cfg.Endpoint.ChunkSize,
		PayloadBytes: len(source),
		SourceSHA256: Digest(source),
		StartedAt:    started.UTC().Format(time.RFC3339Nano),
	}

	if transferErr != nil {
		report.Status = types.TransferStatusFailed
		report.Message = transferErr.Error()
		return report
	}

	report.ResultBytes = len(res.Payload)
	report.Fragments = res.FragmentsOut
	report.ResultSHA256 = Digest(res.Payload)
	report.OutboundMs = res.Outbound.Milliseconds()
	report.ReturnMs = res.Return.Milliseconds()

	if want := Digest(expected); want != report.ResultSHA256 {
		report.Status = types.TransferStatusMismatch
		report.Message = fmt.Sprintf("sha256 mismatch: expected %s, got %s", want, report.ResultSHA256)
		return report
	}
	report.Status = types.TransferStatusCompleted
	return report
}

// persist stores the result payload, writes the report and publishes the
// completion event. Each step is best effort.
func persist(ctx context.Context, cfg *RoundTripConfig, result *RoundTripResult, logger *log.Logger) {
	if cfg.Payloads != nil && result.Result != nil {
		name := cfg.ResultName
		if name == "" {
			name = result.Report.TransferID + ".bin"
		}
		if err := cfg.Payloads.Put(ctx, name, result.Result.Payload); err != nil {
			result.PersistErr = multierr.Append(result.PersistErr, fmt.Errorf("store result: %w", err))
		} else {
			result.StoragePath = lode.PayloadPath(name)
		}
	}

	if cfg.Reports != nil {
		if err := cfg.Reports.Write(ctx, result.Report); err != nil {
			result.PersistErr = multierr.Append(result.PersistErr, fmt.Errorf("write report: %w", err))
		}
	}

	if cfg.Adapter != nil {
		event := adapter.NewTransferCompletedEvent(result.Report, result.StoragePath)
		if err := cfg.Adapter.Publish(ctx, event); err != nil {
			result.PersistErr = multierr.Append(result.PersistErr, fmt.Errorf("publish event: %w", err))
		}
	}

	for _, err := range multierr.Errors(result.PersistErr) {
		logger.Warn("post-transfer step failed", map[string]any{"error": err.Error()})
	}
}

func newLogger(w io.Writer, role types.Role, id string) *log.Logger {
	if w == nil {
		return log.NewNop()
	}
	return log.NewLoggerWithWriter(&types.EndpointMeta{Role: role, EndpointID: id}, w)
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
