// Package lode persists haul payloads and transfer reports through Lode.
//
// Storage failures are classified into sentinel kinds so callers can use
// errors.Is rather than matching on backend-specific messages.
package lode

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for storage failure classification.
var (
	// ErrPermissionDenied indicates a permission/access failure (EACCES, 403).
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound indicates the target path/resource does not exist (ENOENT, 404).
	ErrNotFound = errors.New("not found")

	// ErrDiskFull indicates storage is out of space (ENOSPC).
	ErrDiskFull = errors.New("no space left on device")

	// ErrTimeout indicates an operation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrThrottled indicates rate limiting (429, SlowDown).
	ErrThrottled = errors.New("rate limited")

	// ErrAuth indicates authentication failure (no credentials, expired token).
	ErrAuth = errors.New("authentication failed")

	// ErrAccessDenied indicates authorization failure (valid creds but no permission).
	ErrAccessDenied = errors.New("access denied")

	// ErrNetwork indicates a network-level failure (connection refused, DNS).
	ErrNetwork = errors.New("network error")

	// ErrUnclassified is the kind of any failure not matched above.
	ErrUnclassified = errors.New("storage error")
)

// StorageError wraps an underlying error with storage classification.
type StorageError struct {
	// Kind is the sentinel error for classification (e.g., ErrNotFound).
	Kind error
	// Op is the operation that failed ("put", "get", "write", "read", "init").
	Op string
	// Path is the storage path involved, if any.
	Path string
	// Err is the underlying error.
	Err error
}

func (e *StorageError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As chain traversal.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target sentinel.
func (e *StorageError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// NewStorageError creates a classified storage error.
func NewStorageError(kind error, op, path string, err error) *StorageError {
	return &StorageError{Kind: kind, Op: op, Path: path, Err: err}
}

// wrap classifies err for op on path. Returns nil if err is nil.
func wrap(err error, op, path string) error {
	if err == nil {
		return nil
	}
	var already *StorageError
	if errors.As(err, &already) {
		return err
	}
	return NewStorageError(classifyError(err), op, path, err)
}

// WrapWriteError classifies and wraps a write operation error.
func WrapWriteError(err error, path string) error { return wrap(err, "write", path) }

// WrapReadError classifies and wraps a read operation error.
func WrapReadError(err error, path string) error { return wrap(err, "read", path) }

// WrapInitError classifies and wraps a backend initialization error.
func WrapInitError(err error, backend string) error { return wrap(err, "init", backend) }

type pattern struct {
	kind   error
	substr []string
}

// Order matters: access denied is checked before the broader permission
// pattern, and timeouts before network errors.
var patterns = []pattern{
	{ErrAccessDenied, []string{"accessdenied", "forbidden", "403"}},
	{ErrPermissionDenied, []string{"permission denied", "eacces"}},
	{ErrNotFound, []string{"no such file", "does not exist", "not found", "enoent", "404", "nosuchkey", "nosuchbucket"}},
	{ErrDiskFull, []string{"no space left", "disk full", "enospc", "quota exceeded"}},
	{ErrTimeout, []string{"timeout", "timed out", "deadline exceeded"}},
	{ErrThrottled, []string{"slowdown", "rate exceeded", "throttl", "429", "toomanyrequests"}},
	{ErrAuth, []string{"nocredentialproviders", "credentials", "invalidaccesskeyid",
		"signaturedoesnotmatch", "expiredtoken", "401", "unauthorized"}},
	{ErrNetwork, []string{"connection refused", "no route to host", "network unreachable", "dns", "dial tcp"}},
}

// classifyError determines the sentinel kind for err.
func classifyError(err error) error {
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return ErrTimeout
	}

	msg := strings.ToLower(err.Error())
	for _, p := range patterns {
		for _, s := range p.substr {
			if strings.Contains(msg, s) {
				return p.kind
			}
		}
	}
	return ErrUnclassified
}
