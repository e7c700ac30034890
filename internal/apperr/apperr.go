// Package apperr defines the closed set of error variants the auth core can
// surface to HTTP callers. Services return these instead of ad-hoc errors so
// handlers can map them to a status code without string matching.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies an error variant independent of its message.
type Code string

const (
	CodeValidation        Code = "validation"
	CodeNotFoundOrExpired Code = "not_found_or_expired"
	CodeTooManyAttempts   Code = "too_many_attempts"
	CodeRateLimited       Code = "rate_limited"
	CodeUnauthorized      Code = "unauthorized"
	CodeForbidden         Code = "forbidden"
	CodeInternal          Code = "internal"
)

// Error carries an HTTP status and a message that is safe to show to the
// client for 4xx codes. 5xx messages are collapsed by the handler layer in
// production.
type Error struct {
	Code    Code
	Status  int
	Message string
	Err     error // wrapped cause, never serialized
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match two *Error values by code, so sentinel-style
// comparisons like errors.Is(err, apperr.RateLimited("")) work.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Status: http.StatusBadRequest, Message: msg}
}

func NotFoundOrExpired(msg string) *Error {
	return &Error{Code: CodeNotFoundOrExpired, Status: http.StatusBadRequest, Message: msg}
}

func TooManyAttempts(msg string) *Error {
	return &Error{Code: CodeTooManyAttempts, Status: http.StatusBadRequest, Message: msg}
}

func RateLimited(msg string) *Error {
	return &Error{Code: CodeRateLimited, Status: http.StatusTooManyRequests, Message: msg}
}

func Unauthorized(msg string) *Error {
	return &Error{Code: CodeUnauthorized, Status: http.StatusUnauthorized, Message: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Code: CodeForbidden, Status: http.StatusForbidden, Message: msg}
}

// Internal wraps an unexpected failure. The message is logged, not shown.
func Internal(err error) *Error {
	return &Error{Code: CodeInternal, Status: http.StatusInternalServerError, Message: "Internal server error", Err: err}
}

// From extracts an *Error from err, wrapping unknown errors as Internal.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}
