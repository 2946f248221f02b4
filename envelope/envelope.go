package envelope

import (
	"encoding/json"
	"time"
)

/* Envelope is the structured wrapper around every inbound request.
 * Uses value semantics as it represents data, not behavior
 */

// Envelope is a parsed inbound command request
type Envelope struct {
	// Command names the operation, format v{major}/{category}/{action}
	Command string `json:"command"`

	// Data is the command payload, passed through to the handler untouched
	Data json.RawMessage `json:"data"`

	// Meta carries request bookkeeping
	Meta Meta `json:"meta"`
}

// Meta identifies a request for audit and deduplication
type Meta struct {
	RequestID      string `json:"requestId"`
	Timestamp      string `json:"timestamp"`
	Source         string `json:"source"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

// ParsedTimestamp returns the meta timestamp as a time.Time.
// Validate must have accepted the envelope first.
func (e Envelope) ParsedTimestamp() time.Time {
	ts, _ := time.Parse(time.RFC3339, e.Meta.Timestamp)
	return ts
}

// Response is the wrapper around every outbound reply
type Response struct {
	Success bool            `json:"success"`
	Data    any             `json:"data,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
	Meta    ResponseMeta    `json:"meta"`
}

// ResponseError is the error half of a failed response
type ResponseError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ResponseMeta echoes the request id alongside the reply time
type ResponseMeta struct {
	RequestID string `json:"requestId"`
	Timestamp string `json:"timestamp"`
}

// NewSuccessResponse wraps a handler payload in the response envelope
func NewSuccessResponse(requestID string, data any, now time.Time) Response {
	return Response{
		Success: true,
		Data:    data,
		Meta: ResponseMeta{
			RequestID: requestID,
			Timestamp: now.UTC().Format(time.RFC3339),
		},
	}
}

// NewErrorResponse wraps an error code and message in the response envelope
func NewErrorResponse(requestID, code, message string, details map[string]any, now time.Time) Response {
	return Response{
		Success: false,
		Error: &ResponseError{
			Code:    code,
			Message: message,
			Details: details,
		},
		Meta: ResponseMeta{
			RequestID: requestID,
			Timestamp: now.UTC().Format(time.RFC3339),
		},
	}
}
