// Package apperr defines the error type returned across the service and the
// codes the HTTP layer renders for it.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes rendered in API responses
const (
	CodeNotFound           = "ERR_NOT_FOUND"
	CodeInvalidInput       = "ERR_INVALID_INPUT"
	CodeInvalidBody        = "ERR_INVALID_BODY"
	CodeUnauthorized       = "ERR_UNAUTHORIZED"
	CodeForbidden          = "ERR_FORBIDDEN"
	CodeNoFile             = "ERR_NO_FILE"
	CodeFileTooLarge       = "ERR_FILE_TOO_LARGE"
	CodeInvalidFormat      = "ERR_INVALID_FORMAT"
	CodeTranscriptRequired = "ERR_TRANSCRIPT_REQUIRED"
	CodeUpstream           = "ERR_UPSTREAM"
	CodeNotConfigured      = "ERR_NOT_CONFIGURED"
	CodeRateLimited        = "ERR_RATE_LIMITED"
	CodeQueueFull          = "ERR_QUEUE_FULL"
	CodeDownloadFailed     = "ERR_DOWNLOAD_FAILED"
	CodeInternal           = "ERR_INTERNAL"
)

// Error is an application error carrying an HTTP status and a stable code.
type Error struct {
	Code    string
	Message string
	Status  int
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// WithCause attaches the underlying error and returns the receiver.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// New creates an Error.
func New(code, message string, status int) *Error {
	return &Error{Code: code, Message: message, Status: status}
}

// NotFound reports a missing resource.
func NotFound(resource string) *Error {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// InvalidInput reports a bad request.
func InvalidInput(message string) *Error {
	return New(CodeInvalidInput, message, http.StatusBadRequest)
}

// Unauthorized reports a missing or invalid session.
func Unauthorized(message string) *Error {
	return New(CodeUnauthorized, message, http.StatusUnauthorized)
}

// Forbidden reports an operation the caller may not perform.
func Forbidden(message string) *Error {
	return New(CodeForbidden, message, http.StatusForbidden)
}

// Upstream reports a failed call to an external service.
func Upstream(service string, cause error) *Error {
	return New(CodeUpstream, fmt.Sprintf("%s request failed", service), http.StatusBadGateway).WithCause(cause)
}

// NotConfigured reports an integration that has no credentials.
func NotConfigured(service string) *Error {
	return New(CodeNotConfigured, fmt.Sprintf("%s is not configured", service), http.StatusServiceUnavailable)
}

// Internal wraps an unexpected failure.
func Internal(cause error) *Error {
	return New(CodeInternal, "internal server error", http.StatusInternalServerError).WithCause(cause)
}

// From returns err as an *Error, wrapping anything else as internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Internal(err)
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Code == code
}
