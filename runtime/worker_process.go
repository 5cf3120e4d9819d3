package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/pithecene-io/haul/endpoint"
	"github.com/pithecene-io/haul/transform"
	"github.com/pithecene-io/haul/types"
)

// EnvEndpointID names the environment variable carrying the worker's
// endpoint id into the child process.
const EnvEndpointID = "HAUL_ENDPOINT_ID"

// maxStderrCapture bounds the worker stderr kept for diagnostics.
const maxStderrCapture = 64 * 1024

// WorkerConfig configures a worker launch.
type WorkerConfig struct {
	// BinaryPath is the haul binary to run as "haul worker".
	BinaryPath string
	// EndpointID is passed to the worker via EnvEndpointID.
	EndpointID string
	// ChunkSize bounds return-leg fragments.
	ChunkSize int
	// Framing is the worker's outbound framing.
	Framing types.FramingMode
	// Transform is the transform name, as accepted by transform.Lookup.
	Transform string
	// StallTimeout abandons partial inbound transfers.
	StallTimeout time.Duration
	// Env holds extra KEY=VALUE entries for the child environment.
	Env []string
}

// Args returns the command-line arguments for the worker subcommand.
func (c *WorkerConfig) Args() []string {
	args := []string{
		"worker",
		"--chunk-size", strconv.Itoa(c.ChunkSize),
		"--stall-timeout", c.StallTimeout.String(),
	}
	if c.Framing != "" {
		args = append(args, "--framing", string(c.Framing))
	}
	if c.Transform != "" {
		args = append(args, "--transform", c.Transform)
	}
	return args
}

// EndpointConfig resolves the worker's endpoint settings.
func (c *WorkerConfig) EndpointConfig() (endpoint.Config, error) {
	tr, err := transform.Lookup(c.Transform)
	if err != nil {
		return endpoint.Config{}, err
	}
	framing, err := types.ParseFramingMode(string(c.Framing))
	if err != nil {
		return endpoint.Config{}, err
	}
	return endpoint.Config{
		ChunkSize:    c.ChunkSize,
		Framing:      framing,
		Transform:    tr,
		StallTimeout: c.StallTimeout,
	}, nil
}

// WorkerExit describes how a worker process ended.
type WorkerExit struct {
	// ExitCode is the process exit code.
	ExitCode int
	// Stderr is the captured stderr output, truncated to the last 64 KiB.
	Stderr []byte
}

// Launcher abstracts worker lifecycle for testing.
type Launcher interface {
	Start(ctx context.Context) error
	Stdin() io.WriteCloser
	Stdout() io.ReadCloser
	Wait() (*WorkerExit, error)
	Kill() error
}

// WorkerFactory creates a Launcher. Used for test injection.
type WorkerFactory func(cfg *WorkerConfig) Launcher

// WorkerProcess runs "haul worker" as a child process. Stdin carries
// outbound frames, stdout carries the return leg and stderr is captured.
type WorkerProcess struct {
	config *WorkerConfig
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr *tailBuffer
}

// NewWorkerProcess creates a new worker process manager.
func NewWorkerProcess(cfg *WorkerConfig) *WorkerProcess {
	return &WorkerProcess{
		config: cfg,
		stderr: &tailBuffer{limit: maxStderrCapture},
	}
}

// Start launches the worker.
func (p *WorkerProcess) Start(ctx context.Context) error {
	if p.config.BinaryPath == "" {
		return errors.New("worker binary path is required")
	}
	p.cmd = exec.CommandContext(ctx, p.config.BinaryPath, p.config.Args()...)

	env := os.Environ()
	if p.config.EndpointID != "" {
		env = append(env, EnvEndpointID+"="+p.config.EndpointID)
	}
	env = append(env, p.config.Env...)
	p.cmd.Env = deduplicateEnv(env)
	p.cmd.Stderr = p.stderr

	stdin, err := p.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	p.stdin = stdin

	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	p.stdout = stdout

	if err := p.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}
	return nil
}

// Stdin returns the writer feeding the worker's inbound leg.
func (p *WorkerProcess) Stdin() io.WriteCloser { return p.stdin }

// Stdout returns the reader for the worker's return leg.
func (p *WorkerProcess) Stdout() io.ReadCloser { return p.stdout }

// Wait waits for the worker to exit. Must be called after Start and after
// the caller has finished reading Stdout.
func (p *WorkerProcess) Wait() (*WorkerExit, error) {
	if p.cmd == nil {
		return nil, errors.New("worker not started")
	}

	err := p.cmd.Wait()
	result := &WorkerExit{Stderr: p.stderr.Bytes()}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("worker wait failed: %w", err)
		}
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			result.ExitCode = status.ExitStatus()
		} else {
			result.ExitCode = -1
		}
	}
	return result, nil
}

// Kill terminates the worker process.
func (p *WorkerProcess) Kill() error {
	if p.cmd != nil && p.cmd.Process != nil {
		return p.cmd.Process.Kill()
	}
	return nil
}

// deduplicateEnv keeps the last occurrence of each env var key, so
// appended entries win over inherited ones.
func deduplicateEnv(env []string) []string {
	seen := make(map[string]int, len(env))
	for i, entry := range env {
		key, _, _ := strings.Cut(entry, "=")
		seen[key] = i
	}
	result := make([]string, 0, len(seen))
	for i, entry := range env {
		key, _, _ := strings.Cut(entry, "=")
		if seen[key] == i {
			result = append(result, entry)
		}
	}
	return result
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, _ := b.buf.Write(p)
	if over := b.buf.Len() - b.limit; over > 0 {
		b.buf.Next(over)
	}
	return n, nil
}

// Bytes returns a copy of the retained output.
func (b *tailBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Clone(b.buf.Bytes())
}

var _ Launcher = (*WorkerProcess)(nil)
