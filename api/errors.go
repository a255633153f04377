// File: api/errors.go
// Author: momentics <momentics@gmail.com>
//
// Common error taxonomy for hioload-aio. Setup and registration failures
// surface as these errors; steady-state I/O failures fold into
// Result.Status instead.

package api

import "fmt"

// Sentinel errors used across the library.
var (
	// ErrNotInitialized is returned when a poller or socket is created
	// before Initialize succeeded or after Cleanup ran.
	ErrNotInitialized = fmt.Errorf("subsystem not initialized")

	// ErrUnexpected reports an inconsistent internal state, such as a
	// double Initialize or a Cleanup without a prior Initialize.
	ErrUnexpected = fmt.Errorf("unexpected internal state")

	// ErrInvalidHandle reports a handle that does not identify a live
	// kernel resource.
	ErrInvalidHandle = fmt.Errorf("invalid handle")

	// ErrInvalidEvents reports a malformed event output buffer.
	ErrInvalidEvents = fmt.Errorf("invalid events buffer")

	// ErrInvalidValue reports registration data colliding with the
	// poller's reserved sentinel, or an unusable flag combination.
	ErrInvalidValue = fmt.Errorf("invalid value")

	// ErrAlreadyExists reports a duplicate registration for a handle.
	ErrAlreadyExists = fmt.Errorf("resource already exists")

	// ErrNotFound reports an operation on a handle that was never
	// registered.
	ErrNotFound = fmt.Errorf("resource not found")

	// ErrOutOfResources reports exhausted kernel tracking state.
	ErrOutOfResources = fmt.Errorf("resource exhausted")

	// ErrPipeBusy reports a second concurrent operation on the same
	// socket pipe; the pipe locks are single-permit and non-reentrant.
	ErrPipeBusy = fmt.Errorf("pipe already in use")

	// ErrNotSupported is returned by stub backends on platforms without
	// an implementation.
	ErrNotSupported = fmt.Errorf("operation not supported")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeNotInitialized
	ErrCodeUnexpected
	ErrCodeInvalidHandle
	ErrCodeInvalidEvents
	ErrCodeInvalidValue
	ErrCodeAlreadyExists
	ErrCodeNotFound
	ErrCodeResourceExhausted
	ErrCodePipeBusy
	ErrCodeNotSupported
	ErrCodeInternal
)

// Error represents a structured error with code and context. Setup and
// registration paths return it wrapped around the OS-level cause so callers
// can attach handle or address context while errors.Is still reaches the
// underlying errno.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error // underlying cause, nil when the condition is self-contained
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap exposes the cause to errors.Is / errors.As chains.
func (e *Error) Unwrap() error { return e.Err }

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// Wrap creates a structured error around an underlying cause.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     cause,
		Context: make(map[string]any),
	}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}
