package booking

import (
	"errors"
	"fmt"
	"time"
)

// Code classifies a booking failure so callers can react without
// string-matching messages.
type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeForbidden       Code = "FORBIDDEN"
	CodeConflict        Code = "CONFLICT"
	CodeInvalidState    Code = "INVALID_STATE"
)

// Error is the typed failure returned by the booking service. Conflict
// errors carry the timestamp of the offending slot so the client can
// re-render availability around it.
type Error struct {
	Code    Code       `json:"code"`
	Message string     `json:"message"`
	At      *time.Time `json:"at,omitempty"`
}

func (e *Error) Error() string {
	if e.At != nil {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.At.Format(time.RFC3339))
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Invalid returns an InvalidArgument error.
func Invalid(format string, args ...interface{}) *Error {
	return &Error{Code: CodeInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// NotFound returns a NotFound error.
func NotFound(format string, args ...interface{}) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Forbidden returns a Forbidden error.
func Forbidden(format string, args ...interface{}) *Error {
	return &Error{Code: CodeForbidden, Message: fmt.Sprintf(format, args...)}
}

// Conflict returns a Conflict error naming the offending slot time.
func Conflict(at time.Time, format string, args ...interface{}) *Error {
	return &Error{Code: CodeConflict, Message: fmt.Sprintf(format, args...), At: &at}
}

// InvalidState returns an InvalidState error.
func InvalidState(format string, args ...interface{}) *Error {
	return &Error{Code: CodeInvalidState, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the Code from err, or empty when err is not a
// booking Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
