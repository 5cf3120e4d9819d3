package endpoint

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/pithecene-io/haul/log"
	"github.com/pithecene-io/haul/metrics"
	"github.com/pithecene-io/haul/transport"
	"github.com/pithecene-io/haul/types"
)

// abortGrace bounds the best-effort abort sent after a cancelled transfer.
const abortGrace = time.Second

// Result describes one completed round trip.
type Result struct {
	TransferID string
	// Payload is the reassembled return leg.
	Payload []byte
	// FragmentsOut and FragmentsBack count fragments per leg.
	FragmentsOut  int
	FragmentsBack int
	// Outbound is the time spent sending; Return is the time from the last
	// outbound frame until the return leg completed.
	Outbound time.Duration
	Return   time.Duration
}

// Duration returns the total round-trip time.
func (r *Result) Duration() time.Duration {
	return r.Outbound + r.Return
}

// Coordinator owns the source payload: it ships it to the worker and waits
// for the transformed payload to come back.
//
// Run must be active for Transfer to complete. Transfers share one channel
// and the worker's single session, so concurrent calls are serialized and
// only one transfer is in flight at a time.
type Coordinator struct {
	*base
	receiver *receiver

	started  atomic.Bool
	stopped  chan struct{}
	inflight chan struct{}

	mu      sync.Mutex
	pending map[string]chan Completion
	stopErr error
}

// NewCoordinator validates cfg against ch and returns a coordinator.
func NewCoordinator(ch transport.Channel, cfg Config, logger *log.Logger, collector *metrics.Collector) (*Coordinator, error) {
	b, err := newBase(ch, cfg, logger, collector)
	if err != nil {
		return nil, err
	}
	c := &Coordinator{
		base:    b,
		stopped:  make(chan struct{}),
		inflight: make(chan struct{}, 1),
		pending:  make(map[string]chan Completion),
	}
	c.receiver = newReceiver(ch, &b.cfg, b.logger, collector, c.complete)
	return c, nil
}

// Role returns types.RoleCoordinator.
func (c *Coordinator) Role() types.Role { return types.RoleCoordinator }

// Run drains the return leg until ctx is done or the channel closes.
// Transfers still waiting when Run exits fail with ErrStopped.
func (c *Coordinator) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return errors.New("coordinator already running")
	}
	err := c.receiver.run(ctx)

	c.mu.Lock()
	c.stopErr = err
	c.mu.Unlock()
	close(c.stopped)
	return err
}

// Transfer ships payload to the worker under a fresh transfer id and returns
// the payload it sends back.
func (c *Coordinator) Transfer(ctx context.Context, payload []byte) (*Result, error) {
	return c.TransferWithID(ctx, uuid.NewString(), payload)
}

// TransferWithID is Transfer with a caller-chosen transfer id. It waits
// for any transfer already in flight to finish first.
func (c *Coordinator) TransferWithID(ctx context.Context, transferID string, payload []byte) (*Result, error) {
	if transferID == "" {
		return nil, errors.New("transfer id is required")
	}
	select {
	case c.inflight <- struct{}{}:
		defer func() { <-c.inflight }()
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.stopped:
		return nil, ErrStopped
	}
	logger := c.logger.WithTransfer(transferID)

	waiter := make(chan Completion, 1)
	c.mu.Lock()
	c.pending[transferID] = waiter
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, transferID)
		c.mu.Unlock()
	}()

	c.collector.IncTransferStarted()
	logger.Info("transfer started", map[string]any{
		"bytes":      len(payload),
		"chunk_size": c.cfg.ChunkSize,
		"framing":    string(c.cfg.Framing),
	})

	start := time.Now()
	sent, err := c.sender.send(ctx, transferID, payload)
	if err != nil {
		c.collector.IncTransferFailed()
		if sent > 0 {
			c.abortPeer(ctx, transferID, "cancelled", err.Error())
		}
		return nil, err
	}
	outbound := time.Since(start)

	select {
	case done := <-waiter:
		if done.Err != nil {
			c.collector.IncTransferFailed()
			logger.Error("transfer failed", map[string]any{"error": done.Err.Error()})
			return nil, done.Err
		}
		c.collector.IncTransferCompleted()
		result := &Result{
			TransferID:    transferID,
			Payload:       done.Payload,
			FragmentsOut:  sent,
			FragmentsBack: done.Fragments,
			Outbound:      outbound,
			Return:        time.Since(start) - outbound,
		}
		logger.Info("transfer completed", map[string]any{
			"bytes":       len(done.Payload),
			"duration_ms": result.Duration().Milliseconds(),
		})
		return result, nil
	case <-ctx.Done():
		c.collector.IncTransferFailed()
		c.abortPeer(ctx, transferID, "cancelled", ctx.Err().Error())
		return nil, ctx.Err()
	case <-c.stopped:
		c.collector.IncTransferFailed()
		c.mu.Lock()
		stopErr := c.stopErr
		c.mu.Unlock()
		if stopErr != nil && !errors.Is(stopErr, context.Canceled) {
			return nil, fmt.Errorf("%w: %w", ErrStopped, stopErr)
		}
		return nil, ErrStopped
	}
}

func (c *Coordinator) abortPeer(ctx context.Context, transferID, kind, reason string) {
	abortCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abortGrace)
	defer cancel()
	c.sender.abort(abortCtx, transferID, kind, reason)
}

// complete routes a return-leg completion to its waiting transfer. An error
// without a transfer id fails every waiter; anything else naming an unknown
// transfer is stale and dropped.
func (c *Coordinator) complete(done Completion) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if waiter, ok := c.pending[done.TransferID]; ok {
		deliver(waiter, done)
		return
	}
	if done.Err == nil {
		c.logger.Warn("completion for unknown transfer", map[string]any{
			"transfer_id": done.TransferID,
			"bytes":       len(done.Payload),
		})
		return
	}
	if done.TransferID != "" {
		c.logger.Warn("dropping error for unknown transfer", map[string]any{
			"transfer_id": done.TransferID,
			"error":       done.Err.Error(),
		})
		return
	}
	for _, waiter := range c.pending {
		deliver(waiter, done)
	}
}

func deliver(waiter chan Completion, done Completion) {
	select {
	case waiter <- done:
	default:
	}
}
