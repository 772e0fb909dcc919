package testutil

import (
	"encoding/json"
	"net/http"
)

// Status codes used by the evaluation service in error bodies.
const (
	CodeInvalidArgument = 3
	CodeNotFound        = 5
	CodeInternal        = 13
	CodeUnauthenticated = 16
)

// ErrorBody is the service's error response shape.
type ErrorBody struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Details []json.RawMessage `json:"details"`
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status, code int, message string) {
	writeJSON(w, status, ErrorBody{Code: code, Message: message, Details: []json.RawMessage{}})
}

// InvalidArgumentError writes a 400 with the invalid-argument code.
func InvalidArgumentError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, CodeInvalidArgument, message)
}

// NotFoundError writes a 404 with the not-found code.
func NotFoundError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, CodeNotFound, message)
}

// UnauthenticatedError writes a 401 with the unauthenticated code.
func UnauthenticatedError(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, CodeUnauthenticated, "request was not authenticated")
}
