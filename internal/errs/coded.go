package errs

import (
	"errors"
	"net/http"
)

// Error is a flow failure that carries everything the HTTP layer needs:
// status, machine-readable code and a client-safe message. Cause is logged
// server-side only.
type Error struct {
	Status  int
	Code    string
	Message string

	// ConflictField names the conflicting column for USER_EXISTS.
	ConflictField string
	// Details is an optional structured hint (e.g. password validation).
	Details any

	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Code + ": " + e.Cause.Error()
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// BadRequest builds a 400 validation failure.
func BadRequest(code, msg string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: code, Message: msg}
}

// Unauthorized builds a 401 authentication failure.
func Unauthorized(code, msg string) *Error {
	return &Error{Status: http.StatusUnauthorized, Code: code, Message: msg}
}

// NotFound builds a 404.
func NotFound(code, msg string) *Error {
	return &Error{Status: http.StatusNotFound, Code: code, Message: msg}
}

// Conflict builds a 409 for duplicate accounts.
func Conflict(code, msg, field string) *Error {
	return &Error{Status: http.StatusConflict, Code: code, Message: msg, ConflictField: field}
}

// TooManyRequests builds a 429.
func TooManyRequests(code, msg string) *Error {
	return &Error{Status: http.StatusTooManyRequests, Code: code, Message: msg}
}

// Internal wraps an unexpected failure; msg must already be sanitized.
func Internal(code, msg string, cause error) *Error {
	return &Error{Status: http.StatusInternalServerError, Code: code, Message: msg, Cause: cause}
}

// As extracts *Error from err.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
