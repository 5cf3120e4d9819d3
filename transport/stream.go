package transport

import (
	"context"
	"errors"
	"io"
	"sync"

	"go.uber.org/multierr"

	"github.com/pithecene-io/haul/iox"
	"github.com/pithecene-io/haul/ipc"
	"github.com/pithecene-io/haul/log"
	"github.com/pithecene-io/haul/metrics"
)

// Stream carries frames over a byte stream using the ipc wire format.
// Each frame is one message, so a BatchFrame would have to fit in a single
// frame; Stream therefore does not advertise native batch support.
type Stream struct {
	reader  *iox.CountingReader
	writer  *iox.CountingWriter
	closers []io.Closer
	encoder *ipc.FrameEncoder

	msgs chan any
	done chan struct{}

	logger    *log.Logger
	collector *metrics.Collector

	mu     sync.Mutex
	err    error
	closed bool
}

// StreamOption configures a Stream.
type StreamOption func(*Stream)

// WithLogger sets the logger used for decode errors.
func WithLogger(l *log.Logger) StreamOption {
	return func(s *Stream) { s.logger = l }
}

// WithCollector records IPC decode errors.
func WithCollector(c *metrics.Collector) StreamOption {
	return func(s *Stream) { s.collector = c }
}

// NewStream starts reading frames from r and writes outbound frames to w.
// If r or w implement io.Closer they are closed by Close.
func NewStream(r io.Reader, w io.Writer, opts ...StreamOption) *Stream {
	s := &Stream{
		reader: iox.NewCountingReader(r),
		writer: iox.NewCountingWriter(w),
		msgs:   make(chan any, 64),
		done:   make(chan struct{}),
		logger: log.NewNop(),
	}
	s.encoder = ipc.NewFrameEncoder(s.writer)
	if c, ok := w.(io.Closer); ok {
		s.closers = append(s.closers, c)
	}
	if c, ok := r.(io.Closer); ok {
		s.closers = append(s.closers, c)
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.readLoop()
	return s
}

func (s *Stream) readLoop() {
	defer close(s.msgs)

	decoder := ipc.NewFrameDecoder(s.reader)
	for {
		payload, err := decoder.ReadFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.fail(err)
			}
			return
		}

		frame, err := ipc.DecodeFrame(payload)
		if err != nil {
			s.fail(err)
			return
		}

		select {
		case s.msgs <- frame:
		case <-s.done:
			return
		}
	}
}

func (s *Stream) fail(err error) {
	s.mu.Lock()
	closed := s.closed
	if s.err == nil && !closed {
		s.err = err
	}
	s.mu.Unlock()

	// Reads fail with a closed-pipe error after Close; that is not a decode error.
	if closed {
		return
	}
	s.collector.IncIPCDecodeErrors()
	s.logger.Error("stream decode failed", map[string]any{
		"error": err.Error(),
		"fatal": ipc.IsFatalFrameError(err),
		"bytes": s.reader.Count(),
	})
}

// Send encodes msg and writes it as one frame.
func (s *Stream) Send(ctx context.Context, msg any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	if err := checkCeiling(msg, s.Caps().MaxMessageSize); err != nil {
		return err
	}
	_, err := s.encoder.WriteFrame(msg)
	return err
}

// Messages yields decoded frames. It is closed at end of stream or on the
// first decode error; see Err.
func (s *Stream) Messages() <-chan any {
	return s.msgs
}

// Caps reports the frame-bounded ceiling and no native batch support.
func (s *Stream) Caps() Caps {
	return Caps{MaxMessageSize: ipc.MaxChunkSize(), NativeBatch: false}
}

// Err returns the error that ended the read loop, if any.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// BytesRead returns the number of wire bytes read.
func (s *Stream) BytesRead() int64 { return s.reader.Count() }

// BytesWritten returns the number of wire bytes written.
func (s *Stream) BytesWritten() int64 { return s.writer.Count() }

// Close closes the underlying reader and writer.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()

	var err error
	for _, c := range s.closers {
		if cerr := c.Close(); cerr != nil && !errors.Is(cerr, io.ErrClosedPipe) {
			err = multierr.Append(err, cerr)
		}
	}
	return err
}
