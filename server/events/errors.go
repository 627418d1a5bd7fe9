package events

import (
	"fmt"

	"github.com/cyp0633/calrest/server/validation"
)

// ErrorType classifies a service failure for the transport layer.
type ErrorType string

const (
	ErrNotFound   ErrorType = "not_found"
	ErrForbidden  ErrorType = "forbidden"
	ErrBadRequest ErrorType = "bad_request"
)

// Error is a service failure whose Message is safe to show to clients.
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func notFound(what string) *Error {
	return &Error{Type: ErrNotFound, Message: what + " not found"}
}

func forbidden(msg string) *Error {
	return &Error{Type: ErrForbidden, Message: msg}
}

func badRequest(msg string) *Error {
	return &Error{Type: ErrBadRequest, Message: msg}
}

// ValidationError carries the field report of a rejected form.
type ValidationError struct {
	Errors *validation.Errors
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %v", e.Errors.Failed())
}

// Envelope renders the 400 body.
func (e *ValidationError) Envelope() validation.Envelope {
	return validation.NewEnvelope(e.Errors)
}
