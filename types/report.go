package types

// TransferStatus is the final status of a round trip.
type TransferStatus string

const (
	// TransferStatusCompleted indicates the payload came back and verified.
	TransferStatusCompleted TransferStatus = "completed"
	// TransferStatusFailed indicates a session or transport error.
	TransferStatusFailed TransferStatus = "failed"
	// TransferStatusMismatch indicates the payload came back but did not verify.
	TransferStatusMismatch TransferStatus = "mismatch"
)

// TransferReport is the durable summary of one round trip.
// Written to storage and rendered by the CLI.
type TransferReport struct {
	TransferID   string         `json:"transfer_id" yaml:"transfer_id"`
	Status       TransferStatus `json:"status" yaml:"status"`
	Message      string         `json:"message,omitempty" yaml:"message,omitempty"`
	Framing      FramingMode    `json:"framing" yaml:"framing"`
	Isolation    string         `json:"isolation" yaml:"isolation"`
	Transform    string         `json:"transform" yaml:"transform"`
	ChunkSize    int            `json:"chunk_size" yaml:"chunk_size"`
	PayloadBytes int            `json:"payload_bytes" yaml:"payload_bytes"`
	ResultBytes  int            `json:"result_bytes" yaml:"result_bytes"`
	Fragments    int            `json:"fragments" yaml:"fragments"`
	SourceSHA256 string         `json:"source_sha256" yaml:"source_sha256"`
	ResultSHA256 string         `json:"result_sha256" yaml:"result_sha256"`
	OutboundMs   int64          `json:"outbound_ms" yaml:"outbound_ms"`
	ReturnMs     int64          `json:"return_ms" yaml:"return_ms"`
	DurationMs   int64          `json:"duration_ms" yaml:"duration_ms"`
	StartedAt    string         `json:"started_at" yaml:"started_at"`
}

// TransferStats aggregates a set of transfer reports.
type TransferStats struct {
	Total         int   `json:"total" yaml:"total"`
	Completed     int   `json:"completed" yaml:"completed"`
	Failed        int   `json:"failed" yaml:"failed"`
	Mismatch      int   `json:"mismatch" yaml:"mismatch"`
	PayloadBytes  int64 `json:"payload_bytes" yaml:"payload_bytes"`
	ResultBytes   int64 `json:"result_bytes" yaml:"result_bytes"`
	Fragments     int64 `json:"fragments" yaml:"fragments"`
	AvgDurationMs int64 `json:"avg_duration_ms" yaml:"avg_duration_ms"`
	MaxDurationMs int64 `json:"max_duration_ms" yaml:"max_duration_ms"`
}

// Summarize computes stats over reports. Nil entries are skipped.
func Summarize(reports []*TransferReport) *TransferStats {
	stats := &TransferStats{}
	var totalMs int64
	for _, r := range reports {
		if r == nil {
			continue
		}
		stats.Total++
		switch r.Status {
		case TransferStatusCompleted:
			stats.Completed++
		case TransferStatusMismatch:
			stats.Mismatch++
		default:
			stats.Failed++
		}
		stats.PayloadBytes += int64(r.PayloadBytes)
		stats.ResultBytes += int64(r.ResultBytes)
		stats.Fragments += int64(r.Fragments)
		totalMs += r.DurationMs
		stats.MaxDurationMs = max(stats.MaxDurationMs, r.DurationMs)
	}
	if stats.Total > 0 {
		stats.AvgDurationMs = totalMs / int64(stats.Total)
	}
	return stats
}
