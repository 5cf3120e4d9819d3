// Package metrics provides per-transfer metrics collection.
//
// The Collector accumulates counters across the transfers of one endpoint.
// It is a leaf package with no internal dependencies.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Transfer lifecycle
	TransfersStarted   int64 `json:"transfers_started"`
	TransfersCompleted int64 `json:"transfers_completed"`
	TransfersFailed    int64 `json:"transfers_failed"`

	// Frames
	FramesSent      int64 `json:"frames_sent"`
	FramesReceived  int64 `json:"frames_received"`
	FramesDuplicate int64 `json:"frames_duplicate"`
	BytesSent       int64 `json:"bytes_sent"`
	BytesReceived   int64 `json:"bytes_received"`

	// Session errors
	Mismatches        int64 `json:"mismatches"`
	Stalls            int64 `json:"stalls"`
	OversizeRejected  int64 `json:"oversize_rejected"`
	IndexRangeErrors  int64 `json:"index_range_errors"`
	AbortsSent        int64 `json:"aborts_sent"`
	AbortsReceived    int64 `json:"aborts_received"`
	IPCDecodeErrors   int64 `json:"ipc_decode_errors"`
	WorkerLaunchFails int64 `json:"worker_launch_fails"`

	// Dimensions (informational, set at construction)
	Role      string `json:"role"`
	Framing   string `json:"framing"`
	Transport string `json:"transport"`
}

// Collector accumulates transfer metrics.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	transfersStarted   int64
	transfersCompleted int64
	transfersFailed    int64

	framesSent      int64
	framesReceived  int64
	framesDuplicate int64
	bytesSent       int64
	bytesReceived   int64

	mismatches        int64
	stalls            int64
	oversizeRejected  int64
	indexRangeErrors  int64
	abortsSent        int64
	abortsReceived    int64
	ipcDecodeErrors   int64
	workerLaunchFails int64

	role      string
	framing   string
	transport string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(role, framing, transport string) *Collector {
	return &Collector{
		role:      role,
		framing:   framing,
		transport: transport,
	}
}

func (c *Collector) add(field *int64, n int64) {
	c.mu.Lock()
	*field += n
	c.mu.Unlock()
}

// --- Transfer lifecycle ---

// IncTransferStarted records an outbound transfer start.
func (c *Collector) IncTransferStarted() {
	if c == nil {
		return
	}
	c.add(&c.transfersStarted, 1)
}

// IncTransferCompleted records a completed transfer.
func (c *Collector) IncTransferCompleted() {
	if c == nil {
		return
	}
	c.add(&c.transfersCompleted, 1)
}

// IncTransferFailed records a transfer that ended in an error.
func (c *Collector) IncTransferFailed() {
	if c == nil {
		return
	}
	c.add(&c.transfersFailed, 1)
}

// --- Frames ---

// RecordFrameSent records one frame carrying n data bytes.
func (c *Collector) RecordFrameSent(n int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.framesSent++
	c.bytesSent += int64(n)
	c.mu.Unlock()
}

// RecordFrameReceived records one accepted frame carrying n data bytes.
func (c *Collector) RecordFrameReceived(n int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.framesReceived++
	c.bytesReceived += int64(n)
	c.mu.Unlock()
}

// IncFrameDuplicate records a duplicate fragment that was absorbed.
func (c *Collector) IncFrameDuplicate() {
	if c == nil {
		return
	}
	c.add(&c.framesDuplicate, 1)
}

// --- Session errors ---

// IncMismatch records a session mismatch.
func (c *Collector) IncMismatch() {
	if c == nil {
		return
	}
	c.add(&c.mismatches, 1)
}

// IncStall records a stalled session.
func (c *Collector) IncStall() {
	if c == nil {
		return
	}
	c.add(&c.stalls, 1)
}

// IncOversize records a fragment rejected for exceeding the chunk size.
func (c *Collector) IncOversize() {
	if c == nil {
		return
	}
	c.add(&c.oversizeRejected, 1)
}

// IncIndexRange records a frame whose index or total was out of range.
func (c *Collector) IncIndexRange() {
	if c == nil {
		return
	}
	c.add(&c.indexRangeErrors, 1)
}

// IncAbortSent records an abort frame sent to the peer.
func (c *Collector) IncAbortSent() {
	if c == nil {
		return
	}
	c.add(&c.abortsSent, 1)
}

// IncAbortReceived records an abort frame received from the peer.
func (c *Collector) IncAbortReceived() {
	if c == nil {
		return
	}
	c.add(&c.abortsReceived, 1)
}

// IncIPCDecodeErrors records an IPC frame decode error.
func (c *Collector) IncIPCDecodeErrors() {
	if c == nil {
		return
	}
	c.add(&c.ipcDecodeErrors, 1)
}

// IncWorkerLaunchFailure records a worker process that failed to start.
func (c *Collector) IncWorkerLaunchFailure() {
	if c == nil {
		return
	}
	c.add(&c.workerLaunchFails, 1)
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		TransfersStarted:   c.transfersStarted,
		TransfersCompleted: c.transfersCompleted,
		TransfersFailed:    c.transfersFailed,

		FramesSent:      c.framesSent,
		FramesReceived:  c.framesReceived,
		FramesDuplicate: c.framesDuplicate,
		BytesSent:       c.bytesSent,
		BytesReceived:   c.bytesReceived,

		Mismatches:        c.mismatches,
		Stalls:            c.stalls,
		OversizeRejected:  c.oversizeRejected,
		IndexRangeErrors:  c.indexRangeErrors,
		AbortsSent:        c.abortsSent,
		AbortsReceived:    c.abortsReceived,
		IPCDecodeErrors:   c.ipcDecodeErrors,
		WorkerLaunchFails: c.workerLaunchFails,

		Role:      c.role,
		Framing:   c.framing,
		Transport: c.transport,
	}
}
