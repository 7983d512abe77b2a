package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes shared across services and handlers.
const (
	CodeNotFound        = "not_found"
	CodeInvalidInput    = "invalid_input"
	CodeInvalidCriteria = "invalid_criteria"
	CodeConflict        = "conflict"
	CodeUnauthorized    = "unauthorized"
	CodeRateLimited     = "rate_limited"
	CodeUpstreamFailure = "upstream_failure"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func NotFound(err error) *Error {
	return New(http.StatusNotFound, CodeNotFound, err)
}

func InvalidInput(err error) *Error {
	return New(http.StatusBadRequest, CodeInvalidInput, err)
}

func InvalidCriteria(err error) *Error {
	return New(http.StatusBadRequest, CodeInvalidCriteria, err)
}

func Conflict(err error) *Error {
	return New(http.StatusConflict, CodeConflict, err)
}

func Unauthorized(err error) *Error {
	return New(http.StatusUnauthorized, CodeUnauthorized, err)
}

func RateLimited(err error) *Error {
	return New(http.StatusTooManyRequests, CodeRateLimited, err)
}

func Upstream(err error) *Error {
	return New(http.StatusBadGateway, CodeUpstreamFailure, err)
}

// From maps any error to an *Error, defaulting to an internal error so
// handlers never leak an unclassified failure as a 200 or a panic.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return New(http.StatusInternalServerError, "internal", err)
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}
