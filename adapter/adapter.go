// Package adapter defines the notification boundary for finished round trips.
//
// Adapters publish a TransferCompletedEvent to a downstream system once the
// coordinator has verified (or failed to verify) the return leg.
package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/pithecene-io/haul/types"
)

// EventTypeTransferCompleted is the event_type of every published event.
const EventTypeTransferCompleted = "transfer_completed"

// DefaultBackoff is the delay before the first retry. It doubles per attempt.
const DefaultBackoff = 500 * time.Millisecond

// TransferCompletedEvent is the payload published when a round trip ends.
type TransferCompletedEvent struct {
	EventType    string `json:"event_type"` // always "transfer_completed"
	Version      string `json:"version"`
	TransferID   string `json:"transfer_id"`
	Status       string `json:"status"` // completed, failed, mismatch
	Message      string `json:"message,omitempty"`
	Framing      string `json:"framing"`
	Transform    string `json:"transform"`
	PayloadBytes int    `json:"payload_bytes"`
	ResultBytes  int    `json:"result_bytes"`
	Fragments    int    `json:"fragments"`
	ResultSHA256 string `json:"result_sha256,omitempty"`
	StoragePath  string `json:"storage_path,omitempty"`
	DurationMs   int64  `json:"duration_ms"`
	Timestamp    string `json:"timestamp"` // RFC 3339
}

// NewTransferCompletedEvent builds an event from a stored report.
func NewTransferCompletedEvent(report *types.TransferReport, storagePath string) *TransferCompletedEvent {
	return &TransferCompletedEvent{
		EventType:    EventTypeTransferCompleted,
		Version:      types.Version,
		TransferID:   report.TransferID,
		Status:       string(report.Status),
		Message:      report.Message,
		Framing:      string(report.Framing),
		Transform:    report.Transform,
		PayloadBytes: report.PayloadBytes,
		ResultBytes:  report.ResultBytes,
		Fragments:    report.Fragments,
		ResultSHA256: report.ResultSHA256,
		StoragePath:  storagePath,
		DurationMs:   report.DurationMs,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	}
}

// Adapter publishes transfer completion events to a downstream system.
type Adapter interface {
	// Publish sends one event. Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *TransferCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}

// Retry calls fn up to 1+retries times with exponential backoff between
// attempts. It stops early when ctx is done or when permanent reports the
// error as not worth retrying.
func Retry(ctx context.Context, retries int, backoff time.Duration, fn func(context.Context) error, permanent func(error) bool) error {
	if backoff <= 0 {
		backoff = DefaultBackoff
	}

	var lastErr error
	attempts := 1 + retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context canceled: %w", err)
		}

		if i > 0 {
			delay := time.Duration(1<<uint(i-1)) * backoff
			select {
			case <-ctx.Done():
				return fmt.Errorf("context canceled during backoff: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if permanent != nil && permanent(lastErr) {
			return fmt.Errorf("non-retriable error: %w", lastErr)
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}
