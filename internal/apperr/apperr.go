// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package apperr defines the operational error taxonomy of the accounts API
// and the single responder that turns errors into JSON responses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	pkgerrors "github.com/pkg/errors"
)

// Kind classifies an operational error.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindForbidden
	KindNotFound
	KindTooManyRequests
	KindNotImplemented
	KindUnavailable
)

// String returns the kind name used in logs.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindTooManyRequests:
		return "too_many_requests"
	case KindNotImplemented:
		return "not_implemented"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	case KindNotImplemented:
		return http.StatusNotImplemented
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// InternalMessage is the message clients see for unexpected failures in production.
const InternalMessage = "Something went very wrong!"

// Error is an error with an HTTP status and a client-safe message.
type Error struct {
	Kind    Kind
	Message string
	// Err is the underlying cause, if any. It is only exposed outside production.
	Err error

	stack error
}

func newError(kind Kind, msg string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Message: msg,
		Err:     cause,
		stack:   pkgerrors.New(msg),
	}
}

// Error implements error.
func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Status returns the HTTP status code.
func (e *Error) Status() int {
	return e.Kind.Status()
}

// Operational reports whether the error was raised deliberately and its
// message is safe to show to clients.
func (e *Error) Operational() bool {
	return e.Kind != KindInternal
}

// Stack returns the stack trace captured where the error was constructed.
func (e *Error) Stack() string {
	type stackTracer interface {
		StackTrace() pkgerrors.StackTrace
	}
	if st, ok := e.stack.(stackTracer); ok {
		return fmt.Sprintf("%+v", st.StackTrace())
	}
	return ""
}

// Validation reports malformed or inconsistent input (400).
func Validation(msg string) *Error {
	return newError(KindValidation, msg, nil)
}

// Authentication reports bad credentials or an invalid, expired or stale token (401).
func Authentication(msg string) *Error {
	return newError(KindAuthentication, msg, nil)
}

// AuthenticationWrap is Authentication with a cause attached.
func AuthenticationWrap(msg string, cause error) *Error {
	return newError(KindAuthentication, msg, cause)
}

// Forbidden reports an authenticated user lacking the required role (403).
func Forbidden(msg string) *Error {
	return newError(KindForbidden, msg, nil)
}

// NotFound reports an absent resource (404).
func NotFound(msg string) *Error {
	return newError(KindNotFound, msg, nil)
}

// TooManyRequests reports throttled or locked-out callers (429).
func TooManyRequests(msg string) *Error {
	return newError(KindTooManyRequests, msg, nil)
}

// NotImplemented reports a route that exists but has no behavior yet (501).
func NotImplemented(msg string) *Error {
	return newError(KindNotImplemented, msg, nil)
}

// Unavailable reports a request that could not be served in time (503).
func Unavailable(msg string) *Error {
	return newError(KindUnavailable, msg, nil)
}

// Internal wraps an unexpected failure (500).
func Internal(cause error) *Error {
	return newError(KindInternal, InternalMessage, cause)
}

// Wrap attaches a cause to a new error of the given kind.
func Wrap(kind Kind, msg string, cause error) *Error {
	return newError(kind, msg, cause)
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// StatusOf returns the HTTP status an error maps to; unknown errors map to 500.
func StatusOf(err error) int {
	if e, ok := As(err); ok {
		return e.Status()
	}
	return http.StatusInternalServerError
}

// IsKind reports whether err carries an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}
