package session

import (
	"errors"
	"fmt"
)

// ErrorKind classifies session protocol errors.
type ErrorKind int

const (
	// ErrorMismatch indicates a frame from a different transfer (total or id disagrees).
	ErrorMismatch ErrorKind = iota
	// ErrorIndexRange indicates an index outside [0, total) or a total below 1.
	ErrorIndexRange
	// ErrorOversize indicates a fragment larger than the configured chunk size.
	ErrorOversize
	// ErrorStalled indicates the received count stopped advancing before completion.
	ErrorStalled
	// ErrorAborted indicates the peer tore the transfer down.
	ErrorAborted
)

// String returns the wire name of the kind, used in abort frames and logs.
func (k ErrorKind) String() string {
	switch k {
	case ErrorMismatch:
		return "mismatch"
	case ErrorIndexRange:
		return "index_range"
	case ErrorOversize:
		return "oversize"
	case ErrorStalled:
		return "stalled"
	case ErrorAborted:
		return "aborted"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// ParseErrorKind maps a wire name back to its kind. Unknown names map to ErrorAborted.
func ParseErrorKind(s string) ErrorKind {
	for _, k := range []ErrorKind{ErrorMismatch, ErrorIndexRange, ErrorOversize, ErrorStalled} {
		if k.String() == s {
			return k
		}
	}
	return ErrorAborted
}

// Error is a session-level protocol error. Every Error is fatal to the
// session that produced it; the session is reset before it is returned.
type Error struct {
	Kind       ErrorKind
	TransferID string
	Msg        string
}

func (e *Error) Error() string {
	if e.TransferID != "" {
		return fmt.Sprintf("transfer %s: %s: %s", e.TransferID, e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func newError(kind ErrorKind, transferID, format string, args ...any) *Error {
	return &Error{Kind: kind, TransferID: transferID, Msg: fmt.Sprintf(format, args...)}
}

// NewStalledError reports a session that stopped advancing.
func NewStalledError(transferID string, received, expected int) *Error {
	return newError(ErrorStalled, transferID, "no progress at %d/%d fragments", received, expected)
}

// NewAbortedError reports a transfer torn down by the peer.
func NewAbortedError(transferID, kind, reason string) *Error {
	return newError(ErrorAborted, transferID, "peer aborted (%s): %s", kind, reason)
}

// NewOversizeError reports a fragment exceeding the chunk size.
func NewOversizeError(transferID string, index, size, limit int) *Error {
	return newError(ErrorOversize, transferID, "fragment %d size %d exceeds chunk size %d", index, size, limit)
}

// KindOf returns the kind of a session error anywhere in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var sessErr *Error
	if errors.As(err, &sessErr) {
		return sessErr.Kind, true
	}
	return 0, false
}

func isKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// IsMismatch returns true if err is a SessionMismatch.
func IsMismatch(err error) bool { return isKind(err, ErrorMismatch) }

// IsIndexRange returns true if err is an out-of-range index or total.
func IsIndexRange(err error) bool { return isKind(err, ErrorIndexRange) }

// IsOversize returns true if err is an OversizeFrame.
func IsOversize(err error) bool { return isKind(err, ErrorOversize) }

// IsStalled returns true if err is a StalledSession.
func IsStalled(err error) bool { return isKind(err, ErrorStalled) }

// IsAborted returns true if err is a peer abort.
func IsAborted(err error) bool { return isKind(err, ErrorAborted) }
