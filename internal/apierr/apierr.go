// Package apierr defines the error taxonomy shared by every HTTP handler so
// that authentication, ingestion, query, and command-plane failures all
// surface the same {error_kind, message} envelope.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies a class of API error.
type Kind string

const (
	Unauthenticated Kind = "unauthenticated"
	Forbidden       Kind = "forbidden"
	BadRequest      Kind = "bad_request"
	KindMismatch    Kind = "kind_mismatch"
	AlreadyExists   Kind = "already_registered"
	UnknownCommand  Kind = "unknown_command"
	Conflict        Kind = "conflict"
	NotFound        Kind = "not_found"
	TryAgainLater   Kind = "try_again_later"
	Internal        Kind = "internal"
)

// statusByKind maps each Kind to its HTTP status code.
var statusByKind = map[Kind]int{
	Unauthenticated: http.StatusUnauthorized,
	Forbidden:       http.StatusForbidden,
	BadRequest:      http.StatusBadRequest,
	KindMismatch:    http.StatusOK, // per-sample, batch still returns 200
	AlreadyExists:   http.StatusConflict,
	UnknownCommand:  http.StatusOK, // reported via command result, not HTTP
	Conflict:        http.StatusConflict,
	NotFound:        http.StatusNotFound,
	TryAgainLater:   http.StatusServiceUnavailable,
	Internal:        http.StatusInternalServerError,
}

// Error is a typed API error carrying a Kind, an operator-safe message, and
// an optional wrapped cause (never rendered to the client).
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Status returns the HTTP status code for this error's Kind.
func (e *Error) Status() int {
	if s, ok := statusByKind[e.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// New builds an Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error around an underlying cause. Error() includes the
// cause; the HTTP response carries only Kind and Message.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// As extracts an *Error from err, if present.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// StatusFor returns the appropriate HTTP status for any error: the Error's
// own Status() if it is one, else 500.
func StatusFor(err error) int {
	if e, ok := As(err); ok {
		return e.Status()
	}
	return http.StatusInternalServerError
}
