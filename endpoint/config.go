// Package endpoint implements the coordinator and worker roles of a haul
// round trip. Each endpoint owns one receive Session per inbound direction
// and shares the chunking and framing rules for its outbound leg.
package endpoint

import (
	"errors"
	"fmt"
	"time"

	"github.com/pithecene-io/haul/chunk"
	"github.com/pithecene-io/haul/ipc"
	"github.com/pithecene-io/haul/transform"
	"github.com/pithecene-io/haul/transport"
	"github.com/pithecene-io/haul/types"
)

// DefaultStallTimeout is how long a partial transfer may go without a new
// fragment before it is abandoned.
const DefaultStallTimeout = 30 * time.Second

// Config holds the per-endpoint transfer settings.
type Config struct {
	// ChunkSize bounds every fragment, in bytes.
	ChunkSize int
	// Framing selects indexed or batch framing for the outbound leg.
	Framing types.FramingMode
	// Transform is applied by the worker before the return leg. Nil means identity.
	Transform transform.Transform
	// StallTimeout abandons a partial inbound transfer. Zero disables the watchdog.
	StallTimeout time.Duration
	// Progress is called once per outbound fragment. Optional.
	Progress chunk.ProgressFunc
}

// DefaultConfig returns a Config with indexed framing, the default chunk
// size and the default stall timeout.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    ipc.DefaultChunkSize,
		Framing:      types.FramingIndexed,
		Transform:    transform.Identity(),
		StallTimeout: DefaultStallTimeout,
	}
}

// ErrBatchUnsupported is returned when batch framing is requested on a
// channel that does not carry collections natively.
var ErrBatchUnsupported = errors.New("batch framing requires a channel with native batch support")

// Validate checks the config against the channel's capabilities.
// caps.MaxMessageSize is already the largest fragment that fits under the
// transport ceiling after envelope overhead, so a chunk size equal to it is
// accepted.
func (c *Config) Validate(caps transport.Caps) error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size %d: %w", c.ChunkSize, chunk.ErrInvalidChunkSize)
	}
	if caps.MaxMessageSize > 0 && c.ChunkSize > caps.MaxMessageSize {
		return fmt.Errorf("chunk_size %d exceeds channel ceiling %d", c.ChunkSize, caps.MaxMessageSize)
	}
	switch c.Framing {
	case types.FramingIndexed:
	case types.FramingBatch:
		if !caps.NativeBatch {
			return ErrBatchUnsupported
		}
	default:
		return fmt.Errorf("invalid framing mode %q", c.Framing)
	}
	if c.StallTimeout < 0 {
		return fmt.Errorf("stall_timeout must not be negative, got %s", c.StallTimeout)
	}
	return nil
}

func (c *Config) transform() transform.Transform {
	if c.Transform == nil {
		return transform.Identity()
	}
	return c.Transform
}
