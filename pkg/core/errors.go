package core

import (
	"fmt"
)

// Error represents a session engine error.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    string    `json:"code,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorType categorizes errors by how the engine recovers from them.
type ErrorType string

const (
	// ErrPermission covers device access denials (microphone). The session
	// degrades to text-only input; nothing else is torn down.
	ErrPermission ErrorType = "permission_error"

	// ErrTransport covers channel open failures and mid-session socket
	// errors. Surfaced to the host and followed by full teardown.
	ErrTransport ErrorType = "transport_error"

	// ErrDecode covers malformed inbound audio or protocol frames. The
	// frame is dropped and the session continues.
	ErrDecode ErrorType = "decode_error"

	// ErrGrading covers network or schema failures of the grading call.
	// The assessment tick is skipped; the next tick retries.
	ErrGrading ErrorType = "grading_error"

	// ErrInvalidRequest covers caller mistakes (bad config, nil args).
	ErrInvalidRequest ErrorType = "invalid_request_error"
)

// NewPermissionError creates a permission error.
func NewPermissionError(message string) *Error {
	return &Error{
		Type:    ErrPermission,
		Message: message,
	}
}

// NewTransportError wraps a connection-level failure.
func NewTransportError(message string, cause error) *Error {
	return &Error{
		Type:    ErrTransport,
		Message: message,
		Cause:   cause,
	}
}

// NewDecodeError creates a decode error for a dropped frame.
func NewDecodeError(message string) *Error {
	return &Error{
		Type:    ErrDecode,
		Message: message,
	}
}

// NewGradingError wraps a failed grading call.
func NewGradingError(message string, cause error) *Error {
	return &Error{
		Type:    ErrGrading,
		Message: message,
		Cause:   cause,
	}
}

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(message string) *Error {
	return &Error{
		Type:    ErrInvalidRequest,
		Message: message,
	}
}

// IsRetryable returns true if the operation may succeed on a later tick.
func (e *Error) IsRetryable() bool {
	switch e.Type {
	case ErrGrading, ErrDecode:
		return true
	default:
		return false
	}
}

// UserVisible reports whether the error should surface in the host UI.
// Decode and grading failures are recovered locally and stay internal.
func (e *Error) UserVisible() bool {
	switch e.Type {
	case ErrTransport, ErrPermission:
		return true
	default:
		return false
	}
}

// Unwrap returns the underlying error for error wrapping.
func (e *Error) Unwrap() error {
	return e.Cause
}
