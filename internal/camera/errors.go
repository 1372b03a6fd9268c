package camera

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
)

// Code classifies a capture failure. The set is closed: everything
// the scheduler or the health tracker sees is one of these.
type Code string

const (
	CodeTimeout        Code = "timeout"
	CodeUnreachable    Code = "unreachable"
	CodeAuthFailed     Code = "auth_failed"
	CodeHTTPError      Code = "http_error"
	CodeInvalidContent Code = "invalid_content"
	CodeNoURL          Code = "no_url"

	// CodeStorageFailed is produced by the scheduler when the store
	// rejects a write; it shares the camera taxonomy so health
	// accounting and events treat it like any capture failure.
	CodeStorageFailed Code = "storage_failed"
)

// Error is a classified camera failure
type Error struct {
	Code       Code
	Message    string
	StatusCode int // HTTP status for http_error/auth_failed, else 0
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("camera %s: %s (status %d)", e.Code, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("camera %s: %s", e.Code, e.Message)
}

// NewError builds a classified camera error
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// AsError extracts the classified error, or wraps an unclassified
// one as unreachable so callers always see a Code.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var camErr *Error
	if errors.As(err, &camErr) {
		return camErr
	}
	return classifyTransport(err)
}

// classifyTransport maps transport-level failures onto the closed
// code set: deadline and net timeouts become timeout, everything
// else connection-level becomes unreachable.
func classifyTransport(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return &Error{Code: CodeTimeout, Message: "request timed out"}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Code: CodeTimeout, Message: "request timed out"}
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return &Error{Code: CodeUnreachable, Message: "connection refused"}
	}
	return &Error{Code: CodeUnreachable, Message: err.Error()}
}
