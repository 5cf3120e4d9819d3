package runtime

import (
	"errors"

	"github.com/pithecene-io/haul/types"
)

// Exit codes for the run command.
const (
	ExitCodeCompleted   = 0 // payload came back and verified
	ExitCodeFailed      = 1 // transfer or session error
	ExitCodeMismatch    = 2 // payload came back but did not verify
	ExitCodeConfigError = 3 // invalid configuration
)

// ConfigError reports a configuration problem found before any frame
// was sent.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return "invalid configuration: " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsConfigError reports whether err is or wraps a ConfigError.
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}

// ExitCodeForStatus maps a transfer status to a process exit code.
func ExitCodeForStatus(status types.TransferStatus) int {
	switch status {
	case types.TransferStatusCompleted:
		return ExitCodeCompleted
	case types.TransferStatusMismatch:
		return ExitCodeMismatch
	default:
		return ExitCodeFailed
	}
}

// ExitCodeForError maps an error returned by RoundTrip to an exit code.
func ExitCodeForError(err error) int {
	switch {
	case err == nil:
		return ExitCodeCompleted
	case IsConfigError(err):
		return ExitCodeConfigError
	default:
		return ExitCodeFailed
	}
}
