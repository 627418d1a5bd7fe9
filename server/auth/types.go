package auth

import (
	"context"
	"errors"
	"fmt"
)

// Principal is the account a request acts for. Event and calendar access
// checks compare owners against UserID.
type Principal struct {
	UserID   int64
	Username string
}

// Credentials carries the username and password of a Basic header.
type Credentials struct {
	Username string
	Password string
}

// ErrorType classifies authentication failures.
type ErrorType string

const (
	// ErrMalformedHeader means the Authorization header could not be parsed.
	ErrMalformedHeader ErrorType = "malformed_header"
	// ErrInvalidCredentials means the username or password did not match.
	ErrInvalidCredentials ErrorType = "invalid_credentials"
)

// Error is returned by the middleware parser and by Authenticator
// implementations.
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

// IsType reports whether err is an *Error of type t.
func IsType(err error, t ErrorType) bool {
	var aerr *Error
	return errors.As(err, &aerr) && aerr.Type == t
}

// Authenticator resolves credentials to a principal.
type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials) (*Principal, error)
}
