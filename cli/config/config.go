package config

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/pithecene-io/haul/lode"
	"github.com/pithecene-io/haul/runtime"
	"github.com/pithecene-io/haul/transform"
	"github.com/pithecene-io/haul/types"
)

// Config represents a haul.yaml configuration file.
// All values are optional and act as defaults for haul run flags.
// CLI flags always override config values.
type Config struct {
	ChunkSize    ByteSize      `yaml:"chunk_size"`
	Framing      string        `yaml:"framing"`
	Transform    string        `yaml:"transform"`
	StallTimeout *Duration     `yaml:"stall_timeout,omitempty"`
	Isolation    string        `yaml:"isolation"`
	Worker       string        `yaml:"worker"`
	PayloadSize  *ByteSize     `yaml:"payload_size,omitempty"`
	Payload      string        `yaml:"payload"`
	Storage      StorageConfig `yaml:"storage"`
	Adapter      AdapterConfig `yaml:"adapter"`

	// Unresolved lists ${VAR} references that had neither a value nor a default.
	Unresolved []string `yaml:"-"`
}

// StorageConfig holds storage defaults from the config file.
type StorageConfig struct {
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// Lode converts the file settings into a lode.StorageConfig.
func (s StorageConfig) Lode() lode.StorageConfig {
	return lode.StorageConfig{
		Backend:      s.Backend,
		Path:         s.Path,
		Region:       s.Region,
		Endpoint:     s.Endpoint,
		UsePathStyle: s.S3PathStyle,
	}
}

// AdapterConfig holds adapter defaults from the config file.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Validate checks values that can be checked without a channel.
// Chunk size against the channel ceiling is checked when endpoints are built.
func (c *Config) Validate() error {
	var errs []error
	if _, err := types.ParseFramingMode(c.Framing); err != nil {
		errs = append(errs, err)
	}
	if _, err := runtime.ParseIsolation(c.Isolation); err != nil {
		errs = append(errs, err)
	}
	if _, err := transform.Lookup(c.Transform); err != nil {
		errs = append(errs, err)
	}
	if c.StallTimeout != nil && c.StallTimeout.Duration < 0 {
		errs = append(errs, fmt.Errorf("stall_timeout must not be negative, got %s", c.StallTimeout.Duration))
	}
	switch c.Adapter.Type {
	case "", "webhook", "redis":
	default:
		errs = append(errs, fmt.Errorf("unknown adapter type %q (must be webhook or redis)", c.Adapter.Type))
	}
	return errors.Join(errs...)
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// ByteSize is a byte count parsed from "8MiB", "64 MB" or a plain integer.
type ByteSize int

// UnmarshalYAML parses a human-readable byte size.
func (b *ByteSize) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := ParseByteSize(s)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// String renders the size in IEC units.
func (b ByteSize) String() string {
	return humanize.IBytes(uint64(b))
}

// ParseByteSize parses a human-readable byte size.
func ParseByteSize(s string) (ByteSize, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}
	if n > math.MaxInt {
		return 0, fmt.Errorf("byte size %q too large", s)
	}
	return ByteSize(n), nil
}
