package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates that the requested page, database or result set is empty or missing
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates that no API key is configured for the requested workspace
	ErrUnauthorized = errors.New("unauthorized")

	// ErrBadRequest indicates that a required request parameter is missing or invalid
	ErrBadRequest = errors.New("bad request")

	// ErrUpstream indicates that the remote content API returned an error
	ErrUpstream = errors.New("upstream request failed")

	// ErrRateLimited indicates that the remote content API answered 429
	ErrRateLimited = errors.New("rate limited by upstream")

	// ErrCircuitOpen indicates that the gateway refused an operation after repeated failures
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrMalformedProperty indicates that a property value does not match its declared type
	ErrMalformedProperty = errors.New("malformed property")

	// ErrMalformedResponse indicates that an upstream payload could not be decoded
	ErrMalformedResponse = errors.New("malformed response")
)

// Error codes used by Error.Code.
const (
	CodeNotFound     = "NOT_FOUND"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeBadRequest   = "BAD_REQUEST"
	CodeUpstream     = "UPSTREAM_ERROR"
	CodeRateLimited  = "RATE_LIMITED"
	CodeInternal     = "INTERNAL"
)

// Error represents a structured service error
type Error struct {
	// Code is a machine-readable error code
	Code string

	// Message is a human-readable error message, safe to return to callers
	Message string

	// Err is the underlying error, if any
	Err error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new service error
func NewError(code, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NotFound returns a NOT_FOUND error wrapping ErrNotFound
func NotFound(message string) *Error {
	return NewError(CodeNotFound, message, ErrNotFound)
}

// Unauthorized returns an UNAUTHORIZED error wrapping ErrUnauthorized
func Unauthorized(message string) *Error {
	return NewError(CodeUnauthorized, message, ErrUnauthorized)
}

// BadRequest returns a BAD_REQUEST error wrapping ErrBadRequest
func BadRequest(message string) *Error {
	return NewError(CodeBadRequest, message, ErrBadRequest)
}

// Upstream wraps a remote API failure. The cause is joined with ErrUpstream
// so both errors.Is(err, ErrUpstream) and errors.Is(err, cause) hold.
func Upstream(message string, cause error) *Error {
	if cause == nil {
		return NewError(CodeUpstream, message, ErrUpstream)
	}
	return NewError(CodeUpstream, message, errors.Join(ErrUpstream, cause))
}

// Message returns the caller-safe message of a service error, or fallback
// when err is not a *Error.
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnauthorized checks if an error is an unauthorized error
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsBadRequest checks if an error is a bad request error
func IsBadRequest(err error) bool {
	return errors.Is(err, ErrBadRequest)
}

// IsRateLimited checks if an error is an upstream 429
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}
