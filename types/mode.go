package types

import (
	"fmt"
	"strings"
)

// FramingMode selects how fragments are placed on the channel.
type FramingMode string

const (
	// FramingIndexed sends one message per fragment. Always safe.
	FramingIndexed FramingMode = "indexed"
	// FramingBatch sends the whole fragment sequence as one message.
	// Requires a channel that carries collections without re-flattening them.
	FramingBatch FramingMode = "batch"
)

// ParseFramingMode parses a framing mode string. Empty selects FramingIndexed.
func ParseFramingMode(s string) (FramingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(FramingIndexed):
		return FramingIndexed, nil
	case string(FramingBatch):
		return FramingBatch, nil
	default:
		return "", fmt.Errorf("invalid framing mode %q (must be indexed or batch)", s)
	}
}

// Role identifies which side of a transfer an endpoint plays.
type Role string

const (
	// RoleCoordinator owns the source payload and receives the final result.
	RoleCoordinator Role = "coordinator"
	// RoleWorker reassembles, transforms and sends the payload back.
	RoleWorker Role = "worker"
)

// Peer returns the opposite role.
func (r Role) Peer() Role {
	if r == RoleCoordinator {
		return RoleWorker
	}
	return RoleCoordinator
}
