package transport

import (
	"context"
	"sync"
)

// PipeEnd is one end of an in-process channel pair.
// Messages travel by reference, so a BatchFrame arrives intact.
type PipeEnd struct {
	out      chan any
	in       chan any
	done     chan struct{}
	peerDone chan struct{}
	max      int

	mu   sync.RWMutex
	once sync.Once
}

// NewPipe creates a connected pair of in-process channel ends.
// buffer is the queue depth per direction; maxMessage is the per-fragment
// ceiling (<= 0 disables it).
func NewPipe(buffer, maxMessage int) (*PipeEnd, *PipeEnd) {
	if buffer < 0 {
		buffer = 0
	}
	ab := make(chan any, buffer)
	ba := make(chan any, buffer)
	aDone := make(chan struct{})
	bDone := make(chan struct{})

	a := &PipeEnd{out: ab, in: ba, done: aDone, peerDone: bDone, max: maxMessage}
	b := &PipeEnd{out: ba, in: ab, done: bDone, peerDone: aDone, max: maxMessage}
	return a, b
}

// Send queues msg for the peer.
func (p *PipeEnd) Send(ctx context.Context, msg any) error {
	if err := checkCeiling(msg, p.max); err != nil {
		return err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	select {
	case <-p.done:
		return ErrClosed
	case <-p.peerDone:
		return ErrClosed
	default:
	}

	select {
	case p.out <- msg:
		return nil
	case <-p.done:
		return ErrClosed
	case <-p.peerDone:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Messages returns the inbound queue.
func (p *PipeEnd) Messages() <-chan any {
	return p.in
}

// Caps reports native batch support and the configured ceiling.
func (p *PipeEnd) Caps() Caps {
	return Caps{MaxMessageSize: p.max, NativeBatch: true}
}

// Close stops this end. The peer's Messages channel is closed once any
// in-flight Send returns.
func (p *PipeEnd) Close() error {
	p.once.Do(func() {
		close(p.done)
		p.mu.Lock()
		close(p.out)
		p.mu.Unlock()
	})
	return nil
}
