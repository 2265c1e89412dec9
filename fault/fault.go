/*
DESCRIPTION
  Error kinds shared by the ranger services and their HTTP mapping.

LICENSE
  Copyright (C) 2026 the Australian Ocean Lab (AusOcean)

  This is free software: you can redistribute it and/or modify it
  under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.

  It is distributed in the hope that it will be useful,
  but WITHOUT ANY WARRANTY; without even the implied warranty of
  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
  GNU General Public License for more details.

  You should have received a copy of the GNU General Public License
  in gpl.txt. If not, see http://www.gnu.org/licenses/.
*/

// Package fault provides the error taxonomy used across ranger. Every
// error returned to a client carries a Kind, which determines the HTTP
// status code, and an optional cause, which is only ever shown to
// clients when running outside production.
package fault

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// Kind classifies an error.
type Kind string

const (
	Unauthorized       Kind = "Unauthorized"
	Forbidden          Kind = "Forbidden"
	BadRequest         Kind = "BadRequest"
	NotFound           Kind = "NotFound"
	ServiceUnavailable Kind = "ServiceUnavailable"
	UpstreamFailure    Kind = "UpstreamFailure"
	TooManyRequests    Kind = "TooManyRequests"
	Internal           Kind = "Internal"
)

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case BadRequest:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case ServiceUnavailable:
		return http.StatusServiceUnavailable
	case UpstreamFailure:
		return http.StatusBadGateway
	case TooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is an error with a kind and a client-safe message.
type Error struct {
	Kind Kind   // Error classification.
	Msg  string // Message safe to return to clients.
	Err  error  // Underlying cause (optional).
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Detail returns the cause formatted with its stack trace, if any.
func (e *Error) Detail() string {
	if e.Err == nil {
		return ""
	}
	return fmt.Sprintf("%+v", e.Err)
}

// New returns an error of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap returns an error of the given kind wrapping cause. The cause is
// annotated with a stack trace if it does not already carry one.
func Wrap(cause error, kind Kind, format string, args ...interface{}) *Error {
	if cause != nil {
		if _, ok := cause.(interface{ StackTrace() errors.StackTrace }); !ok {
			cause = errors.WithStack(cause)
		}
	}
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: cause}
}

// KindOf returns the kind of err, or Internal for errors that are not
// a *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
