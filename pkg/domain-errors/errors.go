// Package domainerrors defines the error taxonomy shared by the composite
// gateway. Services return these errors and the transport layer maps the code
// to a status without knowing which collaborator produced it.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies the kind of failure.
type Code string

const (
	// CodeNotFound is terminal: the id is unknown to the owning collaborator.
	CodeNotFound Code = "not_found"
	// CodeInvalidInput is terminal and never retried.
	CodeInvalidInput Code = "invalid_input"
	// CodeUnavailable is transient: network failure, timeout or unexpected status.
	CodeUnavailable Code = "unavailable"
	// CodeDispatchRejected means a write event was never handed to the transport
	// because the publish queue was full.
	CodeDispatchRejected Code = "dispatch_rejected"
	// CodeBadRequest covers malformed requests rejected before any domain logic runs.
	CodeBadRequest Code = "bad_request"
	CodeInternal   Code = "internal_error"
)

// Error is a domain error carrying a code and a client-safe message.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a domain error with the given code and message.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Newf builds a domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf returns the code of the first domain error in the chain, or
// CodeInternal when err carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

// IsTransient reports whether err is worth retrying. Only unavailability is.
func IsTransient(err error) bool {
	return HasCode(err, CodeUnavailable)
}

// MessageOf returns the client-safe message of a domain error, or a generic
// message for anything else.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}
