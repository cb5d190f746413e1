package subsys

import (
	"errors"
	"fmt"
)

// Common errors returned by subsys operations
var (
	// ErrNameNotBound indicates no service is bound under the looked-up name
	ErrNameNotBound = errors.New("subsys: name not bound")

	// ErrNameBound indicates a name is already bound in a Directory
	ErrNameBound = errors.New("subsys: name already bound")

	// ErrTypeMismatch indicates the bound service has an unexpected type
	ErrTypeMismatch = errors.New("subsys: service type mismatch")

	// ErrResourceLoad indicates a bundled configuration resource could not be loaded
	ErrResourceLoad = errors.New("subsys: resource load")

	// ErrDuplicateName indicates a subsystem name is already registered
	ErrDuplicateName = errors.New("subsys: duplicate subsystem name")

	// ErrDuplicateID indicates a subsystem ID is already registered
	ErrDuplicateID = errors.New("subsys: duplicate subsystem id")

	// ErrHostStarted indicates the host no longer accepts registrations
	ErrHostStarted = errors.New("subsys: host already started")

	// ErrNotStarted indicates a subsystem is not in the started state
	ErrNotStarted = errors.New("subsys: not started")
)

// OpError represents a failed lifecycle phase of one subsystem
type OpError struct {
	// Op is the phase that failed
	Op Phase
	// Subsystem is the name of the subsystem
	Subsystem string
	// Err is the underlying error, usually a *ResultError
	Err error
}

// Error returns a formatted error message
func (e *OpError) Error() string {
	return fmt.Sprintf("subsys %s %q: %v", e.Op.String(), e.Subsystem, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *OpError) Unwrap() error {
	return e.Err
}

// NamingError is returned by name server lookups
type NamingError struct {
	// Name is the looked-up service name
	Name string
	// Err is ErrNameNotBound, ErrTypeMismatch or a backend error
	Err error
}

// Error returns a formatted error message
func (e *NamingError) Error() string {
	return fmt.Sprintf("subsys lookup %q: %v", e.Name, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *NamingError) Unwrap() error {
	return e.Err
}

// PreconditionError signals a caller bug. It is raised with panic, never
// returned inside a Result.
type PreconditionError struct {
	// Subsystem is the name of the subsystem that detected the violation
	Subsystem string
	// Reason describes the violated precondition
	Reason string
}

// Error returns a formatted error message
func (e *PreconditionError) Error() string {
	if e.Subsystem == "" {
		return "subsys: precondition violated: " + e.Reason
	}
	return fmt.Sprintf("subsys %q: precondition violated: %s", e.Subsystem, e.Reason)
}

// MultiError aggregates multiple errors from bulk operations
type MultiError struct {
	// Errors contains all accumulated errors
	Errors []error
}

// Error returns a summary of the accumulated errors
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors occurred", len(m.Errors))
}

// Add appends an error to the collection if it's not nil
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// Unwrap exposes the collected errors to errors.Is and errors.As
func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// Err returns nil if no errors occurred, otherwise returns the MultiError itself
func (m *MultiError) Err() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}
