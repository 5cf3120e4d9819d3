package endpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pithecene-io/haul/log"
	"github.com/pithecene-io/haul/metrics"
	"github.com/pithecene-io/haul/session"
	"github.com/pithecene-io/haul/transport"
	"github.com/pithecene-io/haul/types"
)

// Completion is delivered once per inbound transfer. Exactly one of
// Payload or Err is meaningful.
type Completion struct {
	TransferID string
	Payload    []byte
	Fragments  int
	Err        error
}

// receiver drains a channel into a Session and reports completions and
// session errors through one handler. It is the only goroutine that
// touches the session.
type receiver struct {
	ch        transport.Channel
	cfg       *Config
	session   *session.Session
	logger    *log.Logger
	collector *metrics.Collector
	handler   func(Completion)
}

func newReceiver(ch transport.Channel, cfg *Config, logger *log.Logger, collector *metrics.Collector, handler func(Completion)) *receiver {
	return &receiver{
		ch:        ch,
		cfg:       cfg,
		session:   session.New(cfg.ChunkSize),
		logger:    logger,
		collector: collector,
		handler:   handler,
	}
}

// erroringChannel is implemented by transports that can fail mid-stream.
type erroringChannel interface {
	Err() error
}

// run processes messages until ctx is done or the channel closes.
// A channel that closed because of a decode error returns that error.
func (r *receiver) run(ctx context.Context) error {
	var tick <-chan time.Time
	if r.cfg.StallTimeout > 0 {
		ticker := time.NewTicker(watchdogInterval(r.cfg.StallTimeout))
		defer ticker.Stop()
		tick = ticker.C
	}

	msgs := r.ch.Messages()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-tick:
			r.checkStall(now)
		case msg, ok := <-msgs:
			if !ok {
				if ec, ok := r.ch.(erroringChannel); ok {
					if err := ec.Err(); err != nil {
						return fmt.Errorf("inbound stream: %w", err)
					}
				}
				return nil
			}
			r.dispatch(msg)
		}
	}
}

func watchdogInterval(timeout time.Duration) time.Duration {
	interval := timeout / 4
	if interval < 5*time.Millisecond {
		interval = 5 * time.Millisecond
	}
	if interval > time.Second {
		interval = time.Second
	}
	return interval
}

func (r *receiver) checkStall(now time.Time) {
	if !r.session.Stalled(now, r.cfg.StallTimeout) {
		return
	}
	id := r.session.TransferID()
	err := session.NewStalledError(id, r.session.Received(), r.session.Expected())
	r.session.Reset()
	r.collector.IncStall()
	r.logger.Warn("transfer stalled", map[string]any{
		"transfer_id": id,
		"timeout":     r.cfg.StallTimeout.String(),
	})
	r.handler(Completion{TransferID: id, Err: err})
}

func (r *receiver) dispatch(msg any) {
	switch f := msg.(type) {
	case *types.IndexedFrame:
		r.receiveIndexed(f)
	case *types.BatchFrame:
		r.receiveBatch(f)
	case *types.AbortFrame:
		r.receiveAbort(f)
	default:
		r.logger.Warn("ignoring unknown message", map[string]any{
			"type": fmt.Sprintf("%T", msg),
		})
	}
}

func (r *receiver) receiveIndexed(f *types.IndexedFrame) {
	d, err := r.session.Receive(f)
	if err != nil {
		r.recordSessionError(err)
		id := f.TransferID
		var se *session.Error
		if errors.As(err, &se) && se.TransferID != "" {
			id = se.TransferID
		}
		r.handler(Completion{TransferID: id, Err: err})
		return
	}

	switch d.Status {
	case session.StatusDuplicate:
		r.collector.IncFrameDuplicate()
		r.logger.Debug("duplicate fragment absorbed", map[string]any{
			"transfer_id": d.TransferID,
			"index":       f.Index,
		})
	case session.StatusAccepted:
		r.collector.RecordFrameReceived(len(f.Data))
	case session.StatusComplete:
		r.collector.RecordFrameReceived(len(f.Data))
		r.handler(Completion{TransferID: d.TransferID, Payload: d.Payload, Fragments: d.Expected})
	}
}

func (r *receiver) receiveBatch(f *types.BatchFrame) {
	if r.session.Retired(f.TransferID) {
		r.collector.IncFrameDuplicate()
		r.logger.Debug("redelivered batch absorbed", map[string]any{"transfer_id": f.TransferID})
		return
	}
	payload, err := session.AssembleBatch(f, r.cfg.ChunkSize)
	if err != nil {
		r.recordSessionError(err)
		r.handler(Completion{TransferID: f.TransferID, Err: err})
		return
	}
	r.session.Retire(f.TransferID)
	r.collector.RecordFrameReceived(len(payload))
	r.handler(Completion{TransferID: f.TransferID, Payload: payload, Fragments: len(f.Fragments)})
}

func (r *receiver) receiveAbort(f *types.AbortFrame) {
	r.collector.IncAbortReceived()
	if f.TransferID == "" || f.TransferID == r.session.TransferID() {
		r.session.Reset()
	}
	r.logger.Warn("peer aborted transfer", map[string]any{
		"transfer_id": f.TransferID,
		"kind":        f.Kind,
		"reason":      f.Reason,
	})
	r.handler(Completion{
		TransferID: f.TransferID,
		Err:        session.NewAbortedError(f.TransferID, f.Kind, f.Reason),
	})
}

func (r *receiver) recordSessionError(err error) {
	kind, _ := session.KindOf(err)
	switch kind {
	case session.ErrorMismatch:
		r.collector.IncMismatch()
	case session.ErrorOversize:
		r.collector.IncOversize()
	case session.ErrorIndexRange:
		r.collector.IncIndexRange()
	}
	r.logger.Error("session error", map[string]any{
		"kind":  kind.String(),
		"error": err.Error(),
	})
}
