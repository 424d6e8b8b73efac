package channels

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode classifies a transport failure for logging, metrics and retry
// decisions.
type ErrorCode string

const (
	// ErrCodeConnection indicates network or gateway connection failures
	ErrCodeConnection ErrorCode = "CONNECTION_ERROR"

	// ErrCodeAuthentication indicates a rejected or missing credential
	ErrCodeAuthentication ErrorCode = "AUTH_ERROR"

	// ErrCodeRateLimit indicates the platform throttled the request
	ErrCodeRateLimit ErrorCode = "RATE_LIMIT_ERROR"

	// ErrCodeInvalidInput indicates a malformed request (missing ids, empty content)
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// ErrCodeNotFound indicates the message, user or member does not exist
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeForbidden indicates the bot lacks the permission for the operation
	ErrCodeForbidden ErrorCode = "FORBIDDEN"

	// ErrCodeTimeout indicates the request or a rate limit wait timed out
	ErrCodeTimeout ErrorCode = "TIMEOUT_ERROR"

	// ErrCodeInternal indicates an unexpected failure
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"

	// ErrCodeUnavailable indicates the session is not connected
	ErrCodeUnavailable ErrorCode = "SERVICE_UNAVAILABLE"

	// ErrCodeConfig indicates invalid adapter configuration
	ErrCodeConfig ErrorCode = "CONFIG_ERROR"
)

// Error is a transport error carrying a code, the failed operation and the
// underlying cause.
type Error struct {
	// Code categorizes the failure
	Code ErrorCode

	// Op is the transport operation that failed ("react", "reply", ...)
	Op string

	// Message is a human-readable description
	Message string

	// Err is the underlying error
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", e.Code)
	if e.Op != "" {
		fmt.Fprintf(&b, " %s:", e.Op)
	}
	b.WriteString(" ")
	b.WriteString(e.Message)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying error, allowing errors.Is and errors.As to work.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// WithOp records the transport operation on the error.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// IsRetryable returns true if the error represents a transient failure.
func (e *Error) IsRetryable() bool {
	switch e.Code {
	case ErrCodeRateLimit, ErrCodeTimeout, ErrCodeUnavailable, ErrCodeConnection:
		return true
	default:
		return false
	}
}

// ErrConnection creates a connection error.
func ErrConnection(message string, err error) *Error {
	return NewError(ErrCodeConnection, message, err)
}

// ErrAuthentication creates an authentication error.
func ErrAuthentication(message string, err error) *Error {
	return NewError(ErrCodeAuthentication, message, err)
}

// ErrRateLimit creates a rate limit error.
func ErrRateLimit(message string, err error) *Error {
	return NewError(ErrCodeRateLimit, message, err)
}

// ErrInvalidInput creates an invalid input error.
func ErrInvalidInput(message string, err error) *Error {
	return NewError(ErrCodeInvalidInput, message, err)
}

// ErrNotFound creates a not found error.
func ErrNotFound(message string, err error) *Error {
	return NewError(ErrCodeNotFound, message, err)
}

// ErrForbidden creates a missing-permission error.
func ErrForbidden(message string, err error) *Error {
	return NewError(ErrCodeForbidden, message, err)
}

// ErrTimeout creates a timeout error.
func ErrTimeout(message string, err error) *Error {
	return NewError(ErrCodeTimeout, message, err)
}

// ErrInternal creates an internal error.
func ErrInternal(message string, err error) *Error {
	return NewError(ErrCodeInternal, message, err)
}

// ErrUnavailable creates a service unavailable error.
func ErrUnavailable(message string, err error) *Error {
	return NewError(ErrCodeUnavailable, message, err)
}

// ErrConfig creates a configuration error.
func ErrConfig(message string, err error) *Error {
	return NewError(ErrCodeConfig, message, err)
}

// GetErrorCode extracts the ErrorCode from err, or ErrCodeInternal when err
// is not a transport Error.
func GetErrorCode(err error) ErrorCode {
	var chErr *Error
	if errors.As(err, &chErr) {
		return chErr.Code
	}
	return ErrCodeInternal
}

// IsNotFound reports whether err is a transport not-found error.
func IsNotFound(err error) bool {
	return err != nil && GetErrorCode(err) == ErrCodeNotFound
}

// IsRetryable returns true if err is a retryable transport Error.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var chErr *Error
	if errors.As(err, &chErr) {
		return chErr.IsRetryable()
	}
	return false
}
