// Package apperr carries application error codes from the store and service
// layers up to the HTTP surface.
package apperr

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeNotFound     Code = "NOT_FOUND"
	CodeBusinessRule Code = "BUSINESS_RULE_VIOLATION"
	CodeConflict     Code = "CONFLICT"
	CodeInternal     Code = "INTERNAL_ERROR"
)

var statusByCode = map[Code]int{
	CodeValidation:   http.StatusBadRequest,
	CodeNotFound:     http.StatusNotFound,
	CodeBusinessRule: http.StatusBadRequest,
	CodeConflict:     http.StatusConflict,
	CodeInternal:     http.StatusInternalServerError,
}

// HTTPStatus maps a code to its response status
func HTTPStatus(code Code) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Error is an error with a code, a public message and optional details
type Error struct {
	code    Code
	message string
	details map[string]any
	cause   error
}

// New creates an error with a public message
func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Newf creates an error with a formatted public message
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches a code and a public message to err
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

// NotFound builds the error returned for unknown ids
func NotFound(resource string, id int64) *Error {
	return Newf(CodeNotFound, "%s not found: %d", resource, id)
}

// Code returns the error code, CodeInternal for a nil error
func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

// Message returns the message shown to clients
func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// Details returns the extra response fields
func (e *Error) Details() map[string]any {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetails attaches extra fields rendered next to the message
func (e *Error) WithDetails(details map[string]any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As extracts an *Error from err's chain
func As(err error) (*Error, bool) {
	var target *Error
	if stdErrors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// CodeOf returns the code of err, CodeInternal for foreign errors
func CodeOf(err error) Code {
	if e, ok := As(err); ok {
		return e.Code()
	}
	return CodeInternal
}

// Is reports whether err carries the given code
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
