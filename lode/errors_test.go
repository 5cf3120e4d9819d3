package lode

import (
	"context"
	"errors"
	"testing"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name     string
		errMsg   string
		wantKind error
	}{
		{"context deadline exceeded", "context deadline exceeded", ErrTimeout},
		{"operation timed out", "operation timed out", ErrTimeout},
		{"AccessDenied response", "AccessDenied: you do not have access", ErrAccessDenied},
		{"HTTP 403", "received status 403", ErrAccessDenied},
		{"permission denied", "open /data/payloads/x: permission denied", ErrPermissionDenied},
		{"EACCES errno", "open /tmp/file: EACCES", ErrPermissionDenied},
		{"ENOENT", "open /missing: no such file or directory", ErrNotFound},
		{"NoSuchKey", "api error NoSuchKey: The specified key does not exist.", ErrNotFound},
		{"disk full", "write /data: no space left on device", ErrDiskFull},
		{"SlowDown", "api error SlowDown: Please reduce your request rate", ErrThrottled},
		{"missing credentials", "failed to retrieve credentials", ErrAuth},
		{"expired token", "ExpiredToken: the security token has expired", ErrAuth},
		{"connection refused", "dial tcp 127.0.0.1:9000: connect: connection refused", ErrNetwork},
		{"unclassified", "something odd happened", ErrUnclassified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyError(errors.New(tt.errMsg))
			if !errors.Is(got, tt.wantKind) {
				t.Errorf("classifyError(%q) = %v, want %v", tt.errMsg, got, tt.wantKind)
			}
		})
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "boom" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyError_TimeoutInterface(t *testing.T) {
	if got := classifyError(timeoutErr{}); !errors.Is(got, ErrTimeout) {
		t.Errorf("classifyError(timeout) = %v, want ErrTimeout", got)
	}
}

func TestStorageError_Chain(t *testing.T) {
	underlying := context.DeadlineExceeded
	err := WrapWriteError(underlying, "payloads/x")

	var storageErr *StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected *StorageError, got %T", err)
	}
	if storageErr.Op != "write" || storageErr.Path != "payloads/x" {
		t.Errorf("Op/Path = %s/%s, want write/payloads/x", storageErr.Op, storageErr.Path)
	}
	if !errors.Is(err, ErrTimeout) {
		t.Error("errors.Is(err, ErrTimeout) = false")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("underlying error should stay in the chain")
	}
}

func TestWrap_NilAndAlreadyWrapped(t *testing.T) {
	if WrapReadError(nil, "p") != nil {
		t.Error("WrapReadError(nil) should be nil")
	}
	first := WrapReadError(errors.New("not found"), "p")
	second := WrapWriteError(first, "q")
	if second != first {
		t.Error("already classified errors should pass through unchanged")
	}
}
