// Package session implements the per-direction transfer session.
//
// A Session accumulates indexed frames for one in-flight transfer and
// detects completion by count, never by an explicit last marker, so any
// delivery order reassembles the same payload. Duplicate indices are
// absorbed without counting twice, as are late frames of a transfer that
// already completed.
//
// A Session is owned by exactly one goroutine; it is not safe for
// concurrent use.
package session

import (
	"time"

	"github.com/pithecene-io/haul/chunk"
	"github.com/pithecene-io/haul/types"
)

// State is the session lifecycle state.
type State int

const (
	// StateEmpty means no frame of a transfer has arrived yet.
	StateEmpty State = iota
	// StateCollecting means at least one frame arrived and the count is short.
	StateCollecting
	// StateComplete is transient: the last fragment arrived and the payload was handed off.
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateCollecting:
		return "collecting"
	case StateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Status describes what a single Receive did.
type Status int

const (
	// StatusAccepted means the fragment filled a new slot.
	StatusAccepted Status = iota
	// StatusDuplicate means the slot was already filled, or the frame
	// belongs to a retired transfer; nothing changed.
	StatusDuplicate
	// StatusComplete means the fragment completed the transfer; Payload is set.
	StatusComplete
)

// Delivery is the result of a successful Receive.
type Delivery struct {
	Status     Status
	TransferID string
	// Received and Expected are the counts after this frame.
	Received int
	Expected int
	// Payload is the reassembled buffer, set only when Status == StatusComplete.
	Payload []byte
}

// Session tracks one in-flight transfer direction.
type Session struct {
	maxFragment int

	state         State
	transferID    string
	expectedTotal int
	slots         [][]byte
	filled        []bool
	received      int
	receivedBytes int
	duplicates    int
	lastProgress  time.Time

	retired []string

	now func() time.Time
}

// retiredLimit bounds how many completed transfer ids a Session remembers.
const retiredLimit = 16

// New creates an empty session that rejects fragments above maxFragment bytes.
// maxFragment <= 0 disables the bound.
func New(maxFragment int) *Session {
	return &Session{maxFragment: maxFragment, now: time.Now}
}

// Receive applies one indexed frame.
//
// Returns a *Error (and resets the session) if:
//   - the first frame declares total < 1
//   - total or transfer id disagrees with the established transfer
//   - index lies outside [0, total)
//   - the fragment exceeds the configured bound
func (s *Session) Receive(frame *types.IndexedFrame) (Delivery, error) {
	if frame.TransferID != s.transferID && s.Retired(frame.TransferID) {
		return Delivery{
			Status:     StatusDuplicate,
			TransferID: frame.TransferID,
			Received:   frame.Total,
			Expected:   frame.Total,
		}, nil
	}

	if s.state != StateCollecting {
		if frame.Total < 1 {
			return Delivery{}, newError(ErrorIndexRange, frame.TransferID, "total %d must be at least 1", frame.Total)
		}
		s.begin(frame.TransferID, frame.Total)
	}

	if frame.Total != s.expectedTotal || frame.TransferID != s.transferID {
		err := newError(ErrorMismatch, s.transferID,
			"frame (transfer %q, total %d) does not match session (total %d)",
			frame.TransferID, frame.Total, s.expectedTotal)
		s.Reset()
		return Delivery{}, err
	}

	if frame.Index < 0 || frame.Index >= s.expectedTotal {
		err := newError(ErrorIndexRange, s.transferID, "index %d outside [0, %d)", frame.Index, s.expectedTotal)
		s.Reset()
		return Delivery{}, err
	}

	if s.maxFragment > 0 && len(frame.Data) > s.maxFragment {
		err := NewOversizeError(s.transferID, frame.Index, len(frame.Data), s.maxFragment)
		s.Reset()
		return Delivery{}, err
	}

	if s.filled[frame.Index] {
		s.duplicates++
		return Delivery{
			Status:     StatusDuplicate,
			TransferID: s.transferID,
			Received:   s.received,
			Expected:   s.expectedTotal,
		}, nil
	}

	s.slots[frame.Index] = frame.Data
	s.filled[frame.Index] = true
	s.received++
	s.receivedBytes += len(frame.Data)
	s.lastProgress = s.now()

	if s.received < s.expectedTotal {
		return Delivery{
			Status:     StatusAccepted,
			TransferID: s.transferID,
			Received:   s.received,
			Expected:   s.expectedTotal,
		}, nil
	}

	s.state = StateComplete
	d := Delivery{
		Status:     StatusComplete,
		TransferID: s.transferID,
		Received:   s.received,
		Expected:   s.expectedTotal,
		Payload:    chunk.Concat(s.slots),
	}
	s.Retire(s.transferID)
	s.Reset()
	return d, nil
}

func (s *Session) begin(transferID string, total int) {
	s.state = StateCollecting
	s.transferID = transferID
	s.expectedTotal = total
	s.slots = make([][]byte, total)
	s.filled = make([]bool, total)
	s.received = 0
	s.receivedBytes = 0
	s.duplicates = 0
	s.lastProgress = s.now()
}

// Retire records transferID as finished. Later frames of a retired
// transfer are reported as duplicates and never reopen it. Only the
// most recent retiredLimit ids are kept.
func (s *Session) Retire(transferID string) {
	if transferID == "" || s.Retired(transferID) {
		return
	}
	if len(s.retired) == retiredLimit {
		copy(s.retired, s.retired[1:])
		s.retired = s.retired[:retiredLimit-1]
	}
	s.retired = append(s.retired, transferID)
}

// Retired reports whether transferID completed recently.
func (s *Session) Retired(transferID string) bool {
	for _, id := range s.retired {
		if id == transferID {
			return true
		}
	}
	return false
}

// Reset discards any partial transfer and returns to StateEmpty.
// Retired ids survive a reset.
func (s *Session) Reset() {
	s.state = StateEmpty
	s.transferID = ""
	s.expectedTotal = 0
	s.slots = nil
	s.filled = nil
	s.received = 0
	s.receivedBytes = 0
	s.duplicates = 0
	s.lastProgress = time.Time{}
}

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// TransferID returns the id of the transfer being collected, or "".
func (s *Session) TransferID() string { return s.transferID }

// Expected returns the established fragment count, or 0 when empty.
func (s *Session) Expected() int { return s.expectedTotal }

// Received returns the number of distinct fragments stored.
func (s *Session) Received() int { return s.received }

// ReceivedBytes returns the byte count of distinct fragments stored.
func (s *Session) ReceivedBytes() int { return s.receivedBytes }

// Duplicates returns the number of duplicate deliveries absorbed in this transfer.
func (s *Session) Duplicates() int { return s.duplicates }

// LastProgress returns when the received count last advanced.
// Zero when the session is empty.
func (s *Session) LastProgress() time.Time { return s.lastProgress }

// Stalled reports whether a collecting session has not advanced within timeout.
func (s *Session) Stalled(now time.Time, timeout time.Duration) bool {
	if s.state != StateCollecting || timeout <= 0 {
		return false
	}
	return now.Sub(s.lastProgress) >= timeout
}
