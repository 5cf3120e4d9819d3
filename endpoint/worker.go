package endpoint

import (
	"context"
	"sync/atomic"

	"github.com/pithecene-io/haul/log"
	"github.com/pithecene-io/haul/metrics"
	"github.com/pithecene-io/haul/session"
	"github.com/pithecene-io/haul/transport"
	"github.com/pithecene-io/haul/types"
)

// abortKindTransform tags aborts caused by a failing transform.
const abortKindTransform = "transform"

// Worker reassembles inbound payloads, applies the configured transform and
// sends the result back under the same transfer id.
type Worker struct {
	*base
	served atomic.Int64
	failed atomic.Int64
}

// NewWorker validates cfg against ch and returns a worker.
func NewWorker(ch transport.Channel, cfg Config, logger *log.Logger, collector *metrics.Collector) (*Worker, error) {
	b, err := newBase(ch, cfg, logger, collector)
	if err != nil {
		return nil, err
	}
	return &Worker{base: b}, nil
}

// Role returns types.RoleWorker.
func (w *Worker) Role() types.Role { return types.RoleWorker }

// Run is an alias for Serve.
func (w *Worker) Run(ctx context.Context) error { return w.Serve(ctx) }

// Serve answers inbound transfers until ctx is done or the coordinator
// closes the channel.
func (w *Worker) Serve(ctx context.Context) error {
	r := newReceiver(w.ch, &w.cfg, w.logger, w.collector, func(done Completion) {
		w.handle(ctx, done)
	})
	w.logger.Info("worker serving", map[string]any{
		"transform":  w.cfg.transform().Name(),
		"chunk_size": w.cfg.ChunkSize,
		"framing":    string(w.cfg.Framing),
	})
	return r.run(ctx)
}

// Served returns the number of transfers answered successfully.
func (w *Worker) Served() int64 { return w.served.Load() }

// Failed returns the number of inbound transfers that could not be answered.
func (w *Worker) Failed() int64 { return w.failed.Load() }

func (w *Worker) handle(ctx context.Context, done Completion) {
	logger := w.logger.WithTransfer(done.TransferID)

	if done.Err != nil {
		w.failed.Add(1)
		w.collector.IncTransferFailed()
		// An abort from the coordinator needs no reply.
		if session.IsAborted(done.Err) {
			return
		}
		kind, _ := session.KindOf(done.Err)
		w.sender.abort(ctx, done.TransferID, kind.String(), done.Err.Error())
		return
	}

	out, err := w.cfg.transform().Apply(done.Payload)
	if err != nil {
		w.failed.Add(1)
		w.collector.IncTransferFailed()
		logger.Error("transform failed", map[string]any{"error": err.Error()})
		w.sender.abort(ctx, done.TransferID, abortKindTransform, err.Error())
		return
	}

	if _, err := w.sender.send(ctx, done.TransferID, out); err != nil {
		w.failed.Add(1)
		w.collector.IncTransferFailed()
		logger.Error("return leg failed", map[string]any{"error": err.Error()})
		if session.IsOversize(err) {
			w.sender.abort(ctx, done.TransferID, session.ErrorOversize.String(), err.Error())
		}
		return
	}

	w.served.Add(1)
	w.collector.IncTransferCompleted()
	logger.Info("transfer answered", map[string]any{
		"in_bytes":  len(done.Payload),
		"out_bytes": len(out),
		"fragments": done.Fragments,
	})
}
