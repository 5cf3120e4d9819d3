// Package ipc implements the byte-stream wire format for haul frames.
//
// Each frame is a 4-byte big-endian length prefix followed by a msgpack
// body. The body is a map whose "type" field discriminates indexed, batch
// and abort frames.
package ipc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/haul/types"
)

// Frame size constants.
const (
	// MaxFrameSize is the maximum frame size (16 MiB), including length prefix.
	MaxFrameSize = 16 * 1024 * 1024
	// MaxPayloadSize is the maximum body size (MaxFrameSize - 4 bytes).
	MaxPayloadSize = MaxFrameSize - LengthPrefixSize
	// DefaultChunkSize is the default fragment size (8 MiB raw bytes).
	// Half the frame ceiling leaves room for msgpack overhead.
	DefaultChunkSize = 8 * 1024 * 1024
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
	// EnvelopeOverhead bounds the msgpack bytes an indexed frame adds
	// around its data (field names, transfer id, integers).
	EnvelopeOverhead = 256
)

// MaxChunkSize returns the largest fragment that still fits in one frame.
func MaxChunkSize() int {
	return MaxPayloadSize - EnvelopeOverhead
}

// FrameErrorKind classifies frame errors.
type FrameErrorKind int

const (
	// FrameErrorPartial indicates a truncated or incomplete frame.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge indicates a frame exceeding MaxFrameSize.
	FrameErrorTooLarge
	// FrameErrorDecode indicates a msgpack decoding error.
	FrameErrorDecode
	// FrameErrorEncode indicates a msgpack encoding error.
	FrameErrorEncode
)

// FrameError represents a frame encoding or decoding error.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFatal returns true if this error is fatal to the stream.
// Partial and oversized frames leave the stream unsynchronized.
func (e *FrameError) IsFatal() bool {
	return e.Kind == FrameErrorPartial || e.Kind == FrameErrorTooLarge
}

// IsFatalFrameError returns true if the error is a fatal frame error.
func IsFatalFrameError(err error) bool {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.IsFatal()
	}
	return false
}

// IsTooLarge returns true if the error is an oversized frame.
func IsTooLarge(err error) bool {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.Kind == FrameErrorTooLarge
	}
	return false
}

// FrameDecoder decodes length-prefixed msgpack frames from a stream.
type FrameDecoder struct {
	reader io.Reader
}

// NewFrameDecoder creates a new frame decoder.
func NewFrameDecoder(r io.Reader) *FrameDecoder {
	return &FrameDecoder{reader: r}
}

// ReadFrame reads a single frame from the stream.
// Returns the raw payload bytes (msgpack-encoded).
//
// Errors:
//   - io.EOF: stream ended cleanly (no more frames)
//   - *FrameError with Kind=FrameErrorPartial: incomplete frame (fatal)
//   - *FrameError with Kind=FrameErrorTooLarge: frame exceeds limit (fatal)
func (d *FrameDecoder) ReadFrame() ([]byte, error) {
	var lengthBuf [LengthPrefixSize]byte
	_, err := io.ReadFull(d.reader, lengthBuf[:])
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read length prefix",
			Err:  err,
		}
	}

	payloadSize := binary.BigEndian.Uint32(lengthBuf[:])

	if payloadSize > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", payloadSize, MaxPayloadSize),
		}
	}

	payload := make([]byte, payloadSize)
	_, err = io.ReadFull(d.reader, payload)
	if err != nil {
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read payload",
			Err:  err,
		}
	}

	return payload, nil
}

// FrameEncoder writes length-prefixed msgpack frames to a stream.
// Safe for concurrent use; each frame is written atomically.
type FrameEncoder struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewFrameEncoder creates a new frame encoder.
func NewFrameEncoder(w io.Writer) *FrameEncoder {
	return &FrameEncoder{writer: w}
}

// WriteFrame encodes v with msgpack and writes it as one frame.
// Nothing is written if the encoded body exceeds MaxPayloadSize.
func (e *FrameEncoder) WriteFrame(v any) (int, error) {
	body, err := EncodeFrame(v)
	if err != nil {
		return 0, err
	}

	buf := make([]byte, LengthPrefixSize+len(body))
	binary.BigEndian.PutUint32(buf[:LengthPrefixSize], uint32(len(body)))
	copy(buf[LengthPrefixSize:], body)

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.writer.Write(buf)
}

// EncodeFrame encodes a frame body, enforcing MaxPayloadSize.
func EncodeFrame(v any) ([]byte, error) {
	body, err := msgpack.Marshal(v)
	if err != nil {
		return nil, &FrameError{
			Kind: FrameErrorEncode,
			Msg:  "failed to encode frame",
			Err:  err,
		}
	}
	if len(body) > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", len(body), MaxPayloadSize),
		}
	}
	return body, nil
}

// frameTypeHeader is used to peek at the type field without full decode.
type frameTypeHeader struct {
	Type string `msgpack:"type"`
}

// DecodeFrame decodes a payload into *types.IndexedFrame, *types.BatchFrame
// or *types.AbortFrame, discriminating on the type field.
func DecodeFrame(payload []byte) (any, error) {
	var header frameTypeHeader
	if err := msgpack.Unmarshal(payload, &header); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode frame type",
			Err:  err,
		}
	}

	switch header.Type {
	case types.IndexedFrameType:
		return decodeAs[types.IndexedFrame](payload, "indexed frame")
	case types.BatchFrameType:
		return decodeAs[types.BatchFrame](payload, "batch frame")
	case types.AbortFrameType:
		return decodeAs[types.AbortFrame](payload, "abort frame")
	default:
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  fmt.Sprintf("unknown frame type %q", header.Type),
		}
	}
}

func decodeAs[T any](payload []byte, what string) (*T, error) {
	var v T
	if err := msgpack.Unmarshal(payload, &v); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode " + what,
			Err:  err,
		}
	}
	return &v, nil
}
