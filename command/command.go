package command

import (
	"context"
	"encoding/json"

	"github.com/taskhub/webhook-gateway/errs"
)

/* Handlers receive the command name, the raw data payload, and the
 * request context, and return a discriminated Result. The gateway turns
 * Error results into typed errors so one error path serves both
 * expected and unexpected failures.
 */

// RequestContext carries caller identity and request bookkeeping to handlers
type RequestContext struct {
	RequestID   string
	Source      string
	APIKeyName  string
	WorkspaceID string
}

// Result is the discriminated outcome of a handler
type Result struct {
	OK      bool
	Data    any
	Code    errs.Code
	Message string
	Details map[string]any
}

// Success builds a successful result carrying the handler payload
func Success(data any) Result {
	return Result{OK: true, Data: data}
}

// Failure builds an error result with a code and message
func Failure(code errs.Code, message string) Result {
	return Result{OK: false, Code: code, Message: message}
}

// FailureWithDetails builds an error result with structured details
func FailureWithDetails(code errs.Code, message string, details map[string]any) Result {
	return Result{OK: false, Code: code, Message: message, Details: details}
}

// Err converts an error result into a typed error, nil for success results
func (r Result) Err() error {
	if r.OK {
		return nil
	}
	e := errs.New(r.Code, r.Message)
	if r.Details != nil {
		e = e.WithDetails(r.Details)
	}
	return e
}

// Handler processes one command
type Handler func(ctx context.Context, cmd string, data json.RawMessage, reqCtx *RequestContext) Result
