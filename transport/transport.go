// Package transport provides the message channels that carry haul frames
// between a coordinator and a worker.
//
// A Channel is FIFO per direction and enforces a per-message ceiling. It
// makes no delivery guarantee beyond that; reassembly tolerates reordering
// and duplication.
package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/pithecene-io/haul/types"
)

// ErrClosed is returned by Send once either end of the channel is closed.
var ErrClosed = errors.New("transport: channel closed")

// Caps describes what a channel can carry.
type Caps struct {
	// MaxMessageSize is the largest fragment a single message may carry,
	// inclusive. Channels report it net of framing overhead, so it sits
	// strictly below the wire ceiling. Zero means unbounded.
	MaxMessageSize int
	// NativeBatch reports whether a BatchFrame arrives as the same ordered
	// collection that was sent. Only then is batch framing safe.
	NativeBatch bool
}

// Channel is one end of a bidirectional message channel.
type Channel interface {
	// Send delivers msg to the peer. It blocks until the message is queued,
	// ctx is done, or the channel is closed.
	Send(ctx context.Context, msg any) error
	// Messages yields messages from the peer. It is closed when the peer
	// closes or the underlying stream ends.
	Messages() <-chan any
	// Caps reports the channel capabilities.
	Caps() Caps
	// Close releases the channel. Safe to call more than once.
	Close() error
}

// MessageTooLargeError reports a fragment above the channel ceiling.
type MessageTooLargeError struct {
	Size  int
	Limit int
}

func (e *MessageTooLargeError) Error() string {
	return fmt.Sprintf("transport: message of %d bytes exceeds ceiling %d", e.Size, e.Limit)
}

// IsMessageTooLarge reports whether err is a *MessageTooLargeError.
func IsMessageTooLarge(err error) bool {
	var tooLarge *MessageTooLargeError
	return errors.As(err, &tooLarge)
}

// checkCeiling enforces limit on every fragment a frame carries.
func checkCeiling(msg any, limit int) error {
	if limit <= 0 {
		return nil
	}
	switch f := msg.(type) {
	case *types.IndexedFrame:
		if len(f.Data) > limit {
			return &MessageTooLargeError{Size: len(f.Data), Limit: limit}
		}
	case *types.BatchFrame:
		for _, frag := range f.Fragments {
			if len(frag) > limit {
				return &MessageTooLargeError{Size: len(frag), Limit: limit}
			}
		}
	}
	return nil
}
