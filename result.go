package subsys

import (
	"errors"
	"fmt"
)

// Status is the coarse outcome of a lifecycle operation
type Status int

const (
	// StatusOK indicates the operation succeeded
	StatusOK Status = iota
	// StatusNotOK indicates the operation failed; Code and MessageKey say why
	StatusNotOK
)

// Status string constants
const (
	statusOKStr    = "OK"
	statusNotOKStr = "NOT_OK"
)

// String returns the string representation of a Status
func (s Status) String() string {
	if s == StatusOK {
		return statusOKStr
	}
	return statusNotOKStr
}

// ErrNotOK matches any error produced from a NOT_OK Result
var ErrNotOK = errors.New("subsys: not ok")

// Result is the value every lifecycle operation returns instead of an error.
// A failed Result carries a short machine code and a longer message key
// suitable for looking up human-readable text.
type Result struct {
	status     Status
	code       string
	messageKey string
}

// OK returns the success Result
func OK() Result {
	return Result{status: StatusOK}
}

// NotOK returns a failed Result with the given error code and message key
func NotOK(code, messageKey string) Result {
	return Result{status: StatusNotOK, code: code, messageKey: messageKey}
}

// Status returns the outcome
func (r Result) Status() Status {
	return r.status
}

// IsOK reports whether the operation succeeded
func (r Result) IsOK() bool {
	return r.status == StatusOK
}

// IsNotOK reports whether the operation failed
func (r Result) IsNotOK() bool {
	return r.status == StatusNotOK
}

// Code returns the short error code, empty for OK
func (r Result) Code() string {
	return r.code
}

// MessageKey returns the message lookup key, empty for OK
func (r Result) MessageKey() string {
	return r.messageKey
}

// String returns a compact form such as "NOT_OK[code/key]"
func (r Result) String() string {
	if r.IsOK() {
		return statusOKStr
	}
	return fmt.Sprintf("%s[%s/%s]", statusNotOKStr, r.code, r.messageKey)
}

// Err converts the Result into an error for callers that propagate errors.
// It returns nil for OK.
func (r Result) Err() error {
	if r.IsOK() {
		return nil
	}
	return &ResultError{Code: r.code, MessageKey: r.messageKey}
}

// ResultError is the error form of a NOT_OK Result
type ResultError struct {
	// Code is the short error code
	Code string
	// MessageKey is the longer message lookup key
	MessageKey string
}

// Error returns a formatted error message
func (e *ResultError) Error() string {
	if e.Code == "" && e.MessageKey == "" {
		return statusNotOKStr
	}
	return fmt.Sprintf("%s (%s)", e.Code, e.MessageKey)
}

// Is makes every ResultError match ErrNotOK
func (e *ResultError) Is(target error) bool {
	return target == ErrNotOK
}
