package endpoint

import (
	"context"
	"fmt"

	"github.com/pithecene-io/haul/chunk"
	"github.com/pithecene-io/haul/log"
	"github.com/pithecene-io/haul/metrics"
	"github.com/pithecene-io/haul/session"
	"github.com/pithecene-io/haul/transport"
	"github.com/pithecene-io/haul/types"
)

// sender drives the outbound leg: split, bound-check, frame, send.
type sender struct {
	ch        transport.Channel
	cfg       *Config
	logger    *log.Logger
	collector *metrics.Collector
}

// send ships payload under transferID and returns the fragment count.
// Every fragment is checked against ChunkSize before the first frame is
// sent; an oversize fragment aborts the leg with nothing on the wire.
func (s *sender) send(ctx context.Context, transferID string, payload []byte) (int, error) {
	fragments, err := chunk.Split(payload, s.cfg.ChunkSize, s.cfg.Progress)
	if err != nil {
		return 0, err
	}

	for i, frag := range fragments {
		if len(frag) > s.cfg.ChunkSize {
			s.collector.IncOversize()
			return 0, session.NewOversizeError(transferID, i, len(frag), s.cfg.ChunkSize)
		}
	}

	switch s.cfg.Framing {
	case types.FramingBatch:
		frame := types.NewBatchFrame(transferID, fragments)
		if err := s.ch.Send(ctx, frame); err != nil {
			return 0, fmt.Errorf("send batch frame: %w", err)
		}
		s.collector.RecordFrameSent(frame.Size())
	default:
		total := len(fragments)
		for i, frag := range fragments {
			if err := s.ch.Send(ctx, types.NewIndexedFrame(transferID, i, total, frag)); err != nil {
				return i, fmt.Errorf("send fragment %d/%d: %w", i, total, err)
			}
			s.collector.RecordFrameSent(len(frag))
		}
	}

	s.logger.Debug("outbound leg sent", map[string]any{
		"transfer_id": transferID,
		"fragments":   len(fragments),
		"bytes":       len(payload),
		"framing":     string(s.cfg.Framing),
	})
	return len(fragments), nil
}

// abort notifies the peer that transferID is dead. Best effort.
func (s *sender) abort(ctx context.Context, transferID string, kind, reason string) {
	if err := s.ch.Send(ctx, types.NewAbortFrame(transferID, kind, reason)); err != nil {
		s.logger.Warn("failed to send abort", map[string]any{
			"transfer_id": transferID,
			"kind":        kind,
			"error":       err.Error(),
		})
		return
	}
	s.collector.IncAbortSent()
}
