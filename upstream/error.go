// Package upstream classifies failures of calls to the evaluation service and
// turns raw HTTP responses into typed results.
//
// Two failure classes exist and are never conflated:
//
//   - Transport failures: no response was obtained (connection refused, DNS,
//     timeout, cancelled context). StatusCode and Code are zero.
//   - Structured upstream errors: the service responded, but with a
//     non-success status or a body that does not decode as the expected shape.
//
// Both are reported as *Error; inspect the fields (or IsTransport) to branch.
package upstream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const defaultTransportMessage = "transport failure"

// Error is the single error type returned by every client operation.
type Error struct {
	StatusCode int               `json:"-"`                 // HTTP status, 0 when no response was obtained
	Code       int               `json:"code"`              // service status code from the error body, if any
	Message    string            `json:"message"`           // Human-readable description
	Details    []json.RawMessage `json:"details,omitempty"` // Opaque structured details from the error body
	Err        error             `json:"-"`                 // Underlying cause for transport and decode failures
}

// errorBody is the shape the service uses for error responses.
type errorBody struct {
	Code    *int              `json:"code"`
	Message string            `json:"message"`
	Details []json.RawMessage `json:"details"`
}

// NewTransportError wraps a failure to complete the HTTP exchange.
func NewTransportError(err error) *Error {
	msg := defaultTransportMessage
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return &Error{Message: msg, Err: err}
}

// NewStatusError builds an error from a non-success response.
// The body is decoded as a service error payload when possible; otherwise
// its trimmed text (or the status text) becomes the message.
func NewStatusError(statusCode int, body []byte) *Error {
	e := &Error{StatusCode: statusCode}

	var payload errorBody
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&payload); err == nil && (payload.Code != nil || payload.Message != "") {
		if payload.Code != nil {
			e.Code = *payload.Code
		}
		e.Message = payload.Message
		e.Details = payload.Details
	} else {
		e.Message = strings.TrimSpace(string(body))
	}

	if e.Message == "" {
		e.Message = http.StatusText(statusCode)
	}
	return e
}

// NewDecodeError reports a success status whose body could not be decoded.
func NewDecodeError(statusCode int, err error) *Error {
	return &Error{
		StatusCode: statusCode,
		Message:    fmt.Sprintf("decode response: %v", err),
		Err:        err,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.IsTransport() {
		return "upstream: " + e.Message
	}
	return fmt.Sprintf("upstream: status %d (code %d): %s", e.StatusCode, e.Code, e.Message)
}

// Unwrap exposes the transport or decode cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsTransport reports whether no response was obtained.
func (e *Error) IsTransport() bool {
	return e.StatusCode == 0
}

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.IsTransport()
	}
	return false
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.StatusCode
	}
	return 0
}
