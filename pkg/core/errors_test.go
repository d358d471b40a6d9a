package core

import (
	"errors"
	"testing"
)

func TestError_Error(t *testing.T) {
	err := &Error{
		Type:    ErrInvalidRequest,
		Message: "phase list must not be empty",
	}

	expected := "invalid_request_error: phase list must not be empty"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestError_WithCode(t *testing.T) {
	err := &Error{
		Type:    ErrTransport,
		Message: "websocket dial failed",
		Code:    "dial_failed",
	}

	expected := "transport_error: websocket dial failed (code: dial_failed)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewTransportError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewTransportError("channel open failed", cause)

	if err.Type != ErrTransport {
		t.Errorf("Type = %v, want %v", err.Type, ErrTransport)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
}

func TestNewPermissionError(t *testing.T) {
	err := NewPermissionError("microphone access denied")
	if err.Type != ErrPermission {
		t.Errorf("Type = %v, want %v", err.Type, ErrPermission)
	}
	if err.Message != "microphone access denied" {
		t.Errorf("Message = %q, want %q", err.Message, "microphone access denied")
	}
}

func TestError_IsRetryable(t *testing.T) {
	tests := []struct {
		errType ErrorType
		want    bool
	}{
		{ErrGrading, true},
		{ErrDecode, true},
		{ErrTransport, false},
		{ErrPermission, false},
		{ErrInvalidRequest, false},
	}

	for _, tt := range tests {
		err := &Error{Type: tt.errType}
		if got := err.IsRetryable(); got != tt.want {
			t.Errorf("IsRetryable() for %v = %v, want %v", tt.errType, got, tt.want)
		}
	}
}

func TestError_UserVisible(t *testing.T) {
	tests := []struct {
		errType ErrorType
		want    bool
	}{
		{ErrTransport, true},
		{ErrPermission, true},
		{ErrGrading, false},
		{ErrDecode, false},
	}

	for _, tt := range tests {
		err := &Error{Type: tt.errType}
		if got := err.UserVisible(); got != tt.want {
			t.Errorf("UserVisible() for %v = %v, want %v", tt.errType, got, tt.want)
		}
	}
}
