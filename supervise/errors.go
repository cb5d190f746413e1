package supervise

import (
	"errors"
	"fmt"
)

// Errors returned by supervise operations
var (
	// ErrNotSupervised indicates the unit directory lacks a supervise subdirectory
	ErrNotSupervised = errors.New("supervise: supervise dir missing")

	// ErrControlNotReady indicates the control socket/FIFO is not accepting connections
	ErrControlNotReady = errors.New("supervise: control not accepting connections")

	// ErrUnsupported indicates the backend has no such control command
	ErrUnsupported = errors.New("supervise: operation not supported by backend")

	// ErrDecode indicates the status file could not be decoded
	ErrDecode = errors.New("supervise: status decode")

	// ErrUnknownUnit indicates a unit name has no declaration
	ErrUnknownUnit = errors.New("supervise: unknown unit")

	// ErrInvalidUnit indicates a unit declaration is incomplete
	ErrInvalidUnit = errors.New("supervise: invalid unit")

	// ErrFrameworkState indicates a framework call out of lifecycle order
	ErrFrameworkState = errors.New("supervise: framework in wrong state")

	// ErrFrameworkNotFound indicates discovery offered no framework factory
	ErrFrameworkNotFound = errors.New("supervise: no framework factory found")

	// ErrNotConfigured indicates Start before a successful Configure
	ErrNotConfigured = errors.New("supervise: not configured")

	// ErrNoScanner indicates the scanner binary could not be found
	ErrNoScanner = errors.New("supervise: scanner not found")
)

// OpError represents a failed supervise operation on a path
type OpError struct {
	// Op is the operation that failed
	Op Operation
	// Path is the file path involved in the operation
	Path string
	// Err is the underlying error
	Err error
}

// Error returns a formatted error message
func (e *OpError) Error() string {
	return fmt.Sprintf("supervise %s %q: %v", e.Op.String(), e.Path, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *OpError) Unwrap() error {
	return e.Err
}
