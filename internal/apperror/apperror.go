// Package apperror defines the error taxonomy shared by services,
// middleware and handlers.  Every failure that crosses a layer boundary is
// an *Error carrying a Kind; the response package maps the Kind to an HTTP
// status and an envelope error code.
package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAlreadyExists
	KindInvalidCredentials
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAlreadyExists:
		return "already_exists"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is a classified failure.  Message is safe to show to clients; Err
// is the underlying cause and is only ever logged.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error without an underlying cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap builds an *Error around cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

// Validation, AlreadyExists and the helpers below are shorthands used at
// call sites that have no cause to attach.
func Validation(msg string) *Error    { return New(KindValidation, msg) }
func AlreadyExists(msg string) *Error { return New(KindAlreadyExists, msg) }
func Unauthorized(msg string) *Error  { return New(KindUnauthorized, msg) }
func Forbidden(msg string) *Error     { return New(KindForbidden, msg) }
func NotFound(msg string) *Error      { return New(KindNotFound, msg) }
func Conflict(msg string) *Error      { return New(KindConflict, msg) }

// InvalidCredentials is returned by login for both an unknown username and
// a wrong password so the message cannot be used to enumerate accounts.
func InvalidCredentials() *Error {
	return New(KindInvalidCredentials, "invalid username or password")
}

// Internal wraps an unexpected failure.  The client-facing message is fixed.
func Internal(cause error) *Error {
	return Wrap(KindInternal, "internal server error", cause)
}

// KindOf reports the Kind of err.  Errors that are not *Error are Internal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == kind
}
