// Package apperr defines the typed failures returned by the chat core.
// Callers branch on Kind, never on the message text.
package apperr

import (
	"errors"
	"net/http"
)

// Kind is a stable, machine-readable failure name.
type Kind string

const (
	DuplicateAccount Kind = "DuplicateAccount"
	MissingField     Kind = "MissingField"
	WeakPassword     Kind = "WeakPassword"
	UnknownAccount   Kind = "UnknownAccount"
	BadCredential    Kind = "BadCredential"
	MissingToken     Kind = "MissingToken"
	TokenInvalid     Kind = "TokenInvalid"
	TokenExpired     Kind = "TokenExpired"
	UnknownPrincipal Kind = "UnknownPrincipal"
	MissingAuthor    Kind = "MissingAuthor"
	EmptyText        Kind = "EmptyText"
	IdentityMismatch Kind = "IdentityMismatch"
	TooManyRequests  Kind = "TooManyRequests"

	// Internal covers storage and signing failures.
	Internal Kind = "Internal"
)

// Class separates caller mistakes from infrastructure failures.
type Class string

const (
	ClientError Class = "ClientError"
	ServerError Class = "ServerError"
)

// Class reports which side of the taxonomy k belongs to.
func (k Kind) Class() Class {
	if k == Internal || k == "" {
		return ServerError
	}
	return ClientError
}

// HTTPStatus maps a kind onto the status the transport layer should use.
func (k Kind) HTTPStatus() int {
	switch k {
	case DuplicateAccount:
		return http.StatusConflict
	case MissingField, WeakPassword, MissingAuthor, EmptyText:
		return http.StatusBadRequest
	case UnknownAccount:
		return http.StatusNotFound
	case BadCredential, MissingToken, TokenInvalid, TokenExpired, UnknownPrincipal:
		return http.StatusUnauthorized
	case IdentityMismatch:
		return http.StatusForbidden
	case TooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is the domain error type.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error with the same kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an error of the given kind around an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the kind from err. Errors that are not *Error are Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// PublicMessage is the text safe to show a caller. Infrastructure details stay in the logs.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind.Class() == ClientError {
		return e.Message
	}
	return "internal server error"
}
