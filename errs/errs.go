package errs

import (
	"errors"
	"fmt"
	"net/http"
)

/* Typed domain errors carried from handlers up to the gateway
 * The gateway is the only place that converts a Code into an HTTP status
 */

// Code identifies a class of failure across the gateway
type Code string

const (
	CodeValidation             Code = "VALIDATION_ERROR"
	CodeInvalidRequest         Code = "INVALID_REQUEST"
	CodeNotFound               Code = "NOT_FOUND"
	CodeForbidden              Code = "FORBIDDEN"
	CodeRateLimitExceeded      Code = "RATE_LIMIT_EXCEEDED"
	CodeInvalidStateTransition Code = "INVALID_STATE_TRANSITION"
	CodeInternal               Code = "INTERNAL_ERROR"
)

// statusTable maps error codes to HTTP statuses
var statusTable = map[Code]int{
	CodeValidation:             http.StatusBadRequest,
	CodeInvalidRequest:         http.StatusBadRequest,
	CodeNotFound:               http.StatusNotFound,
	CodeForbidden:              http.StatusForbidden,
	CodeRateLimitExceeded:      http.StatusTooManyRequests,
	CodeInvalidStateTransition: http.StatusConflict,
	CodeInternal:               http.StatusInternalServerError,
}

// HTTPStatus returns the HTTP status for a code, 500 for anything unknown
func (c Code) HTTPStatus() int {
	if status, ok := statusTable[c]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Error is a domain error with a machine-readable code and optional details
type Error struct {
	Code    Code
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New creates a typed error
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a typed error with a formatted message
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithDetails attaches structured details for the response body
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// AsError unwraps a typed error from an error chain.
// Returns nil when the chain carries no *Error.
func AsError(err error) *Error {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// IsCode reports whether err carries the given code
func IsCode(err error, code Code) bool {
	if domainErr := AsError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}
