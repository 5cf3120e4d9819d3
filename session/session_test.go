package session

import (
	"bytes"
	"testing"
	"time"

	"github.com/pithecene-io/haul/chunk"
	"github.com/pithecene-io/haul/types"
)

// framesFor splits payload and wraps each fragment as an indexed frame.
func framesFor(t *testing.T, transferID string, payload []byte, chunkSize int) []*types.IndexedFrame {
	t.Helper()
	frags, err := chunk.Split(payload, chunkSize, nil)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	frames := make([]*types.IndexedFrame, len(frags))
	for i, f := range frags {
		frames[i] = types.NewIndexedFrame(transferID, i, len(frags), f)
	}
	return frames
}

func tenBytes() []byte {
	return []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
}

func TestSession_InOrder(t *testing.T) {
	s := New(3)
	frames := framesFor(t, "t-1", tenBytes(), 3)

	for i, f := range frames {
		d, err := s.Receive(f)
		if err != nil {
			t.Fatalf("Receive(%d) error: %v", i, err)
		}
		if i < len(frames)-1 {
			if d.Status != StatusAccepted {
				t.Errorf("frame %d status = %v, want StatusAccepted", i, d.Status)
			}
			if s.State() != StateCollecting {
				t.Errorf("frame %d state = %v, want collecting", i, s.State())
			}
			continue
		}
		if d.Status != StatusComplete {
			t.Fatalf("last frame status = %v, want StatusComplete", d.Status)
		}
		if !bytes.Equal(d.Payload, tenBytes()) {
			t.Errorf("payload = %v, want %v", d.Payload, tenBytes())
		}
	}

	if s.State() != StateEmpty {
		t.Errorf("state after completion = %v, want empty", s.State())
	}
}

func TestSession_OutOfOrder(t *testing.T) {
	s := New(3)
	frames := framesFor(t, "t-1", tenBytes(), 3)

	order := []int{2, 0, 3, 1}
	var d Delivery
	var err error
	for n, idx := range order {
		d, err = s.Receive(frames[idx])
		if err != nil {
			t.Fatalf("Receive(index %d) error: %v", idx, err)
		}
		if n < len(order)-1 && d.Status == StatusComplete {
			t.Fatalf("completed early after %d frames", n+1)
		}
	}

	if d.Status != StatusComplete {
		t.Fatalf("status = %v, want StatusComplete after 4th frame", d.Status)
	}
	if !bytes.Equal(d.Payload, tenBytes()) {
		t.Errorf("payload = %v, want %v", d.Payload, tenBytes())
	}
}

func TestSession_AllPermutations(t *testing.T) {
	payload := make([]byte, 17)
	for i := range payload {
		payload[i] = byte(i * 7)
	}
	frames := framesFor(t, "perm", payload, 4) // 5 frames

	var permute func(prefix, rest []int)
	count := 0
	permute = func(prefix, rest []int) {
		if len(rest) == 0 {
			count++
			s := New(4)
			var last Delivery
			for _, idx := range prefix {
				d, err := s.Receive(frames[idx])
				if err != nil {
					t.Fatalf("order %v: Receive error: %v", prefix, err)
				}
				last = d
			}
			if last.Status != StatusComplete || !bytes.Equal(last.Payload, payload) {
				t.Errorf("order %v: did not reassemble payload", prefix)
			}
			return
		}
		for i := range rest {
			next := append(append([]int{}, prefix...), rest[i])
			remaining := append(append([]int{}, rest[:i]...), rest[i+1:]...)
			permute(next, remaining)
		}
	}
	permute(nil, []int{0, 1, 2, 3, 4})

	if count != 120 {
		t.Errorf("checked %d permutations, want 120", count)
	}
}

func TestSession_Duplicate(t *testing.T) {
	s := New(3)
	frames := framesFor(t, "t-1", tenBytes(), 3)

	if _, err := s.Receive(frames[0]); err != nil {
		t.Fatalf("Receive error: %v", err)
	}
	if _, err := s.Receive(frames[1]); err != nil {
		t.Fatalf("Receive error: %v", err)
	}

	// Re-deliver 0 and 1 several times: count must not move.
	for range 3 {
		for _, idx := range []int{0, 1} {
			d, err := s.Receive(frames[idx])
			if err != nil {
				t.Fatalf("duplicate Receive error: %v", err)
			}
			if d.Status != StatusDuplicate {
				t.Errorf("status = %v, want StatusDuplicate", d.Status)
			}
			if s.Received() != 2 {
				t.Errorf("Received() = %d, want 2", s.Received())
			}
		}
	}
	if s.Duplicates() != 6 {
		t.Errorf("Duplicates() = %d, want 6", s.Duplicates())
	}

	if _, err := s.Receive(frames[2]); err != nil {
		t.Fatalf("Receive error: %v", err)
	}
	d, err := s.Receive(frames[3])
	if err != nil {
		t.Fatalf("Receive error: %v", err)
	}
	if d.Status != StatusComplete {
		t.Fatalf("status = %v, want StatusComplete", d.Status)
	}
	if !bytes.Equal(d.Payload, tenBytes()) {
		t.Errorf("payload corrupted by duplicates: %v", d.Payload)
	}
}

func TestSession_DuplicateWithDifferentBytesKeepsFirst(t *testing.T) {
	s := New(0)
	if _, err := s.Receive(types.NewIndexedFrame("t", 0, 2, []byte{1, 2})); err != nil {
		t.Fatalf("Receive error: %v", err)
	}
	if _, err := s.Receive(types.NewIndexedFrame("t", 0, 2, []byte{9, 9})); err != nil {
		t.Fatalf("Receive error: %v", err)
	}
	d, err := s.Receive(types.NewIndexedFrame("t", 1, 2, []byte{3}))
	if err != nil {
		t.Fatalf("Receive error: %v", err)
	}
	if !bytes.Equal(d.Payload, []byte{1, 2, 3}) {
		t.Errorf("payload = %v, want [1 2 3]", d.Payload)
	}
}

func TestSession_MismatchedTotal(t *testing.T) {
	s := New(0)
	if _, err := s.Receive(types.NewIndexedFrame("t-1", 0, 4, []byte{1})); err != nil {
		t.Fatalf("Receive error: %v", err)
	}

	_, err := s.Receive(types.NewIndexedFrame("t-1", 1, 5, []byte{2}))
	if !IsMismatch(err) {
		t.Fatalf("error = %v, want SessionMismatch", err)
	}
	if s.State() != StateEmpty {
		t.Errorf("state = %v, want empty after mismatch", s.State())
	}
	if s.Received() != 0 {
		t.Errorf("Received() = %d, want 0 after reset", s.Received())
	}
}

func TestSession_MismatchedTransferID(t *testing.T) {
	s := New(0)
	if _, err := s.Receive(types.NewIndexedFrame("t-1", 0, 2, []byte{1})); err != nil {
		t.Fatalf("Receive error: %v", err)
	}
	_, err := s.Receive(types.NewIndexedFrame("t-2", 1, 2, []byte{2}))
	if !IsMismatch(err) {
		t.Fatalf("error = %v, want SessionMismatch", err)
	}
}

func TestSession_IndexOutOfRange(t *testing.T) {
	tests := []struct {
		name  string
		index int
		total int
	}{
		{name: "negative index", index: -1, total: 3},
		{name: "index equals total", index: 3, total: 3},
		{name: "zero total", index: 0, total: 0},
		{name: "negative total", index: 0, total: -2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(0)
			_, err := s.Receive(types.NewIndexedFrame("t", tt.index, tt.total, []byte{1}))
			if !IsIndexRange(err) {
				t.Fatalf("error = %v, want index range error", err)
			}
			if s.State() != StateEmpty {
				t.Errorf("state = %v, want empty", s.State())
			}
		})
	}
}

func TestSession_Oversize(t *testing.T) {
	s := New(2)
	_, err := s.Receive(types.NewIndexedFrame("t", 0, 2, []byte{1, 2, 3}))
	if !IsOversize(err) {
		t.Fatalf("error = %v, want OversizeFrame", err)
	}
}

func TestSession_SingleEmptyFragment(t *testing.T) {
	s := New(8)
	d, err := s.Receive(types.NewIndexedFrame("empty", 0, 1, nil))
	if err != nil {
		t.Fatalf("Receive error: %v", err)
	}
	if d.Status != StatusComplete {
		t.Fatalf("status = %v, want StatusComplete", d.Status)
	}
	if len(d.Payload) != 0 {
		t.Errorf("payload length = %d, want 0", len(d.Payload))
	}
}

func TestSession_ReusableAfterCompletion(t *testing.T) {
	s := New(3)
	for _, id := range []string{"first", "second"} {
		var last Delivery
		for _, f := range framesFor(t, id, tenBytes(), 3) {
			d, err := s.Receive(f)
			if err != nil {
				t.Fatalf("%s: Receive error: %v", id, err)
			}
			last = d
		}
		if last.TransferID != id {
			t.Errorf("TransferID = %q, want %q", last.TransferID, id)
		}
		if !bytes.Equal(last.Payload, tenBytes()) {
			t.Errorf("%s: payload mismatch", id)
		}
	}
}

func TestSession_RedeliveryAfterCompletion(t *testing.T) {
	s := New(3)
	a := framesFor(t, "A", tenBytes()[:6], 3) // 2 frames
	b := framesFor(t, "B", tenBytes()[4:], 3) // 2 frames

	steps := []struct {
		frame  *types.IndexedFrame
		status Status
	}{
		{a[0], StatusAccepted},
		{a[1], StatusComplete},
		{a[0], StatusDuplicate},
		{b[0], StatusAccepted},
		{a[1], StatusDuplicate},
		{b[1], StatusComplete},
	}

	var last Delivery
	for i, step := range steps {
		d, err := s.Receive(step.frame)
		if err != nil {
			t.Fatalf("step %d: Receive error: %v", i, err)
		}
		if d.Status != step.status {
			t.Fatalf("step %d: status = %v, want %v", i, d.Status, step.status)
		}
		last = d
	}
	if last.TransferID != "B" {
		t.Errorf("TransferID = %q, want B", last.TransferID)
	}
	if !bytes.Equal(last.Payload, tenBytes()[4:]) {
		t.Errorf("payload = %v, want %v", last.Payload, tenBytes()[4:])
	}
	if s.State() != StateEmpty {
		t.Errorf("State() = %v, want empty", s.State())
	}
}

func TestSession_SingleFragmentCompletesOnce(t *testing.T) {
	s := New(0)
	frame := types.NewIndexedFrame("solo", 0, 1, []byte{7})

	d, err := s.Receive(frame)
	if err != nil {
		t.Fatalf("Receive error: %v", err)
	}
	if d.Status != StatusComplete {
		t.Fatalf("status = %v, want StatusComplete", d.Status)
	}

	for range 3 {
		d, err = s.Receive(frame)
		if err != nil {
			t.Fatalf("redelivery error: %v", err)
		}
		if d.Status != StatusDuplicate {
			t.Errorf("redelivery status = %v, want StatusDuplicate", d.Status)
		}
		if d.Payload != nil {
			t.Error("redelivery must not carry a payload")
		}
	}
	if s.State() != StateEmpty {
		t.Errorf("State() = %v, want empty", s.State())
	}
}

func TestSession_RetiredIsBounded(t *testing.T) {
	s := New(0)
	for i := range retiredLimit + 1 {
		s.Retire(string(rune('a' + i)))
	}
	if s.Retired("a") {
		t.Error("oldest id should have been forgotten")
	}
	if !s.Retired(string(rune('a' + retiredLimit))) {
		t.Error("newest id should be retired")
	}
	if len(s.retired) != retiredLimit {
		t.Errorf("len(retired) = %d, want %d", len(s.retired), retiredLimit)
	}
}

func TestSession_FailedTransferIsNotRetired(t *testing.T) {
	s := New(0)
	if _, err := s.Receive(types.NewIndexedFrame("retry", 0, 2, []byte{1})); err != nil {
		t.Fatalf("Receive error: %v", err)
	}
	s.Reset()

	d, err := s.Receive(types.NewIndexedFrame("retry", 0, 1, []byte{2}))
	if err != nil {
		t.Fatalf("Receive error: %v", err)
	}
	if d.Status != StatusComplete {
		t.Errorf("status = %v, want StatusComplete", d.Status)
	}
}

func TestSession_Stalled(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New(0)
	s.now = func() time.Time { return base }

	if s.Stalled(base.Add(time.Hour), time.Second) {
		t.Error("empty session reported stalled")
	}

	if _, err := s.Receive(types.NewIndexedFrame("t", 0, 2, []byte{1})); err != nil {
		t.Fatalf("Receive error: %v", err)
	}
	if s.Stalled(base.Add(500*time.Millisecond), time.Second) {
		t.Error("stalled before timeout elapsed")
	}
	if !s.Stalled(base.Add(time.Second), time.Second) {
		t.Error("not stalled after timeout elapsed")
	}
	if s.Stalled(base.Add(time.Hour), 0) {
		t.Error("zero timeout must disable stall detection")
	}
}

func TestAssembleBatch(t *testing.T) {
	frags, err := chunk.Split(tenBytes(), 3, nil)
	if err != nil {
		t.Fatalf("Split error: %v", err)
	}

	got, err := AssembleBatch(types.NewBatchFrame("b", frags), 3)
	if err != nil {
		t.Fatalf("AssembleBatch error: %v", err)
	}
	if !bytes.Equal(got, tenBytes()) {
		t.Errorf("payload = %v, want %v", got, tenBytes())
	}

	if _, err := AssembleBatch(types.NewBatchFrame("b", frags), 2); !IsOversize(err) {
		t.Errorf("error = %v, want OversizeFrame", err)
	}
	if _, err := AssembleBatch(types.NewBatchFrame("b", nil), 2); !IsIndexRange(err) {
		t.Errorf("error = %v, want index range error", err)
	}
}

func TestErrorKind_RoundTrip(t *testing.T) {
	for _, k := range []ErrorKind{ErrorMismatch, ErrorIndexRange, ErrorOversize, ErrorStalled} {
		if got := ParseErrorKind(k.String()); got != k {
			t.Errorf("ParseErrorKind(%q) = %v, want %v", k.String(), got, k)
		}
	}
	if got := ParseErrorKind("bogus"); got != ErrorAborted {
		t.Errorf("ParseErrorKind(bogus) = %v, want ErrorAborted", got)
	}
}
