package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_FullConfig(t *testing.T) {
	yaml := `chunk_size: 4MiB
framing: indexed
transform: invert,zstd
stall_timeout: 45s
isolation: process
worker: /usr/local/bin/haul
payload_size: 1GiB
payload: source.bin

storage:
  backend: s3
  path: my-bucket/prefix
  region: us-east-1
  endpoint: https://example.com
  s3_path_style: true

adapter:
  type: webhook
  url: https://hooks.example.com/haul
  headers:
    Authorization: Bearer token123
  timeout: 10s
  retries: 3
`
	cfg, err := Load(writeTemp(t, yaml))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ChunkSize != 4<<20 {
		t.Errorf("chunk_size = %d, want %d", cfg.ChunkSize, 4<<20)
	}
	assertEqual(t, "framing", cfg.Framing, "indexed")
	assertEqual(t, "transform", cfg.Transform, "invert,zstd")
	if cfg.StallTimeout == nil || cfg.StallTimeout.Duration != 45*time.Second {
		t.Errorf("stall_timeout = %v, want 45s", cfg.StallTimeout)
	}
	assertEqual(t, "isolation", cfg.Isolation, "process")
	assertEqual(t, "worker", cfg.Worker, "/usr/local/bin/haul")
	if cfg.PayloadSize == nil || *cfg.PayloadSize != 1<<30 {
		t.Errorf("payload_size = %v, want 1GiB", cfg.PayloadSize)
	}
	assertEqual(t, "payload", cfg.Payload, "source.bin")

	assertEqual(t, "storage.backend", cfg.Storage.Backend, "s3")
	assertEqual(t, "storage.path", cfg.Storage.Path, "my-bucket/prefix")
	assertEqual(t, "storage.region", cfg.Storage.Region, "us-east-1")
	assertEqual(t, "storage.endpoint", cfg.Storage.Endpoint, "https://example.com")
	if !cfg.Storage.S3PathStyle {
		t.Error("expected storage.s3_path_style=true")
	}
	lc := cfg.Storage.Lode()
	if lc.Backend != "s3" || !lc.UsePathStyle || lc.Path != "my-bucket/prefix" {
		t.Errorf("Lode() = %+v", lc)
	}

	assertEqual(t, "adapter.type", cfg.Adapter.Type, "webhook")
	assertEqual(t, "adapter.url", cfg.Adapter.URL, "https://hooks.example.com/haul")
	assertEqual(t, "adapter.headers.Authorization", cfg.Adapter.Headers["Authorization"], "Bearer token123")
	if cfg.Adapter.Timeout.Duration != 10*time.Second {
		t.Errorf("adapter.timeout = %v, want 10s", cfg.Adapter.Timeout.Duration)
	}
	if cfg.Adapter.Retries == nil || *cfg.Adapter.Retries != 3 {
		t.Errorf("adapter.retries = %v, want 3", cfg.Adapter.Retries)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestLoad_EmptyConfig(t *testing.T) {
	cfg, err := Load(writeTemp(t, ""))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ChunkSize != 0 || cfg.Framing != "" || cfg.StallTimeout != nil || cfg.PayloadSize != nil {
		t.Errorf("expected zero config, got %+v", cfg)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/haul.yaml")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %v, want not found", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeTemp(t, "chunk_size: [unclosed"))
	if err == nil || !strings.Contains(err.Error(), "invalid YAML") {
		t.Errorf("error = %v, want invalid YAML", err)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("HAUL_TEST_TRANSFORM", "invert")

	cfg, err := Load(writeTemp(t, "transform: ${HAUL_TEST_TRANSFORM}\nframing: ${HAUL_TEST_FRAMING:-batch}\nworker: ${HAUL_TEST_UNSET_WORKER}\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertEqual(t, "transform", cfg.Transform, "invert")
	assertEqual(t, "framing", cfg.Framing, "batch")
	assertEqual(t, "worker", cfg.Worker, "")
	if len(cfg.Unresolved) != 1 || cfg.Unresolved[0] != "HAUL_TEST_UNSET_WORKER" {
		t.Errorf("Unresolved = %v, want [HAUL_TEST_UNSET_WORKER]", cfg.Unresolved)
	}
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	_, err := Load(writeTemp(t, "chunk_size: 1KiB\nchunk_sise: 2KiB\n"))
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
	if !strings.Contains(err.Error(), "chunk_sise") {
		t.Errorf("error should name the unknown key, got %v", err)
	}
}

func TestLoad_UnknownNestedKeyRejected(t *testing.T) {
	_, err := Load(writeTemp(t, "storage:\n  backend: fs\n  bucket: nope\n"))
	if err == nil {
		t.Fatal("expected error for unknown nested key")
	}
}

func TestLoad_CommentsOnlyConfig(t *testing.T) {
	cfg, err := Load(writeTemp(t, "# just a comment\n   \n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Transform != "" {
		t.Errorf("transform = %q, want empty", cfg.Transform)
	}
}

func TestLoad_RetriesZeroDistinctFromNil(t *testing.T) {
	cfg, err := Load(writeTemp(t, "adapter:\n  type: redis\n  url: redis://localhost:6379\n  retries: 0\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Adapter.Retries == nil || *cfg.Adapter.Retries != 0 {
		t.Errorf("retries = %v, want explicit 0", cfg.Adapter.Retries)
	}

	cfg, err = Load(writeTemp(t, "adapter:\n  type: redis\n  url: redis://localhost:6379\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Adapter.Retries != nil {
		t.Errorf("retries = %v, want nil when omitted", *cfg.Adapter.Retries)
	}
}

func TestLoad_StallTimeoutZeroDistinctFromNil(t *testing.T) {
	cfg, err := Load(writeTemp(t, "stall_timeout: 0s\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.StallTimeout == nil || cfg.StallTimeout.Duration != 0 {
		t.Errorf("stall_timeout = %v, want explicit 0", cfg.StallTimeout)
	}
}

func TestLoad_RedisAdapterConfig(t *testing.T) {
	cfg, err := Load(writeTemp(t, "adapter:\n  type: redis\n  url: redis://localhost:6379/0\n  channel: transfers\n  timeout: 2s\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertEqual(t, "adapter.type", cfg.Adapter.Type, "redis")
	assertEqual(t, "adapter.channel", cfg.Adapter.Channel, "transfers")
	if cfg.Adapter.Timeout.Duration != 2*time.Second {
		t.Errorf("adapter.timeout = %v, want 2s", cfg.Adapter.Timeout.Duration)
	}
}

func TestDuration_InvalidFormat(t *testing.T) {
	_, err := Load(writeTemp(t, "stall_timeout: forever\n"))
	if err == nil || !strings.Contains(err.Error(), "invalid duration") {
		t.Errorf("error = %v, want invalid duration", err)
	}
}

func TestByteSize(t *testing.T) {
	tests := []struct {
		in      string
		want    ByteSize
		wantErr bool
	}{
		{in: "8MiB", want: 8 << 20},
		{in: "64 MB", want: 64_000_000},
		{in: "1024", want: 1024},
		{in: "1kib", want: 1024},
		{in: "lots", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseByteSize(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseByteSize(%q) expected error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseByteSize(%q) failed: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseByteSize(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestByteSize_PlainIntegerInYAML(t *testing.T) {
	cfg, err := Load(writeTemp(t, "chunk_size: 65536\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ChunkSize != 65536 {
		t.Errorf("chunk_size = %d, want 65536", cfg.ChunkSize)
	}
	if cfg.ChunkSize.String() != "64 KiB" {
		t.Errorf("String() = %q, want 64 KiB", cfg.ChunkSize.String())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "empty", cfg: Config{}},
		{name: "bad framing", cfg: Config{Framing: "stream"}, wantErr: "framing"},
		{name: "bad isolation", cfg: Config{Isolation: "thread"}, wantErr: "isolation"},
		{name: "bad transform", cfg: Config{Transform: "rot13"}, wantErr: "rot13"},
		{name: "negative stall", cfg: Config{StallTimeout: &Duration{Duration: -time.Second}}, wantErr: "stall_timeout"},
		{name: "bad adapter", cfg: Config{Adapter: AdapterConfig{Type: "kafka"}}, wantErr: "kafka"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "haul.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func assertEqual(t *testing.T, field, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("%s = %q, want %q", field, got, want)
	}
}
