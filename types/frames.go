// Package types defines core domain types for the haul transfer protocol.
//
//nolint:revive // types is a common Go package naming convention
package types

// Frame type discriminants. Every frame carries one in its "type" field.
const (
	// IndexedFrameType tags a single fragment with its position.
	IndexedFrameType = "indexed"
	// BatchFrameType tags a whole ordered fragment sequence in one message.
	BatchFrameType = "batch"
	// AbortFrameType tags a transfer teardown notification.
	AbortFrameType = "abort"
)

// IndexedFrame carries one fragment of a payload.
// Index is zero-based and strictly increasing in send order.
// Total is the fragment count and is identical across all frames of one transfer.
type IndexedFrame struct {
	// Type is always "indexed".
	Type string `msgpack:"type"`
	// TransferID identifies the transfer this fragment belongs to.
	TransferID string `msgpack:"transfer_id"`
	// Index is the fragment position, in [0, Total).
	Index int `msgpack:"index"`
	// Total is the number of fragments in the transfer, at least 1.
	Total int `msgpack:"total"`
	// Data is the fragment bytes.
	Data []byte `msgpack:"data"`
}

// NewIndexedFrame builds an indexed frame with the type discriminant set.
func NewIndexedFrame(transferID string, index, total int, data []byte) *IndexedFrame {
	return &IndexedFrame{
		Type:       IndexedFrameType,
		TransferID: transferID,
		Index:      index,
		Total:      total,
		Data:       data,
	}
}

// BatchFrame carries a complete ordered fragment sequence.
// Only valid on channels that move collections natively; see transport.Caps.
type BatchFrame struct {
	// Type is always "batch".
	Type string `msgpack:"type"`
	// TransferID identifies the transfer.
	TransferID string `msgpack:"transfer_id"`
	// Fragments are in payload order.
	Fragments [][]byte `msgpack:"fragments"`
}

// NewBatchFrame builds a batch frame with the type discriminant set.
func NewBatchFrame(transferID string, fragments [][]byte) *BatchFrame {
	return &BatchFrame{
		Type:       BatchFrameType,
		TransferID: transferID,
		Fragments:  fragments,
	}
}

// Size returns the sum of fragment lengths.
func (f *BatchFrame) Size() int {
	n := 0
	for _, frag := range f.Fragments {
		n += len(frag)
	}
	return n
}

// AbortFrame tells the peer to discard any partial state for a transfer.
type AbortFrame struct {
	// Type is always "abort".
	Type string `msgpack:"type"`
	// TransferID identifies the aborted transfer. Empty aborts whatever is in flight.
	TransferID string `msgpack:"transfer_id"`
	// Kind is the error kind that caused the abort (e.g. "mismatch", "stalled").
	Kind string `msgpack:"kind"`
	// Reason is a human-readable description.
	Reason string `msgpack:"reason"`
}

// NewAbortFrame builds an abort frame with the type discriminant set.
func NewAbortFrame(transferID, kind, reason string) *AbortFrame {
	return &AbortFrame{
		Type:       AbortFrameType,
		TransferID: transferID,
		Kind:       kind,
		Reason:     reason,
	}
}
