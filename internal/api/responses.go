package api

import (
	"encoding/json"
	"net/http"
)

// Machine-readable error codes carried in ErrorResponse.Code.
const (
	ErrInvalidBody = "invalid_body"
	ErrRateLimited = "rate_limited"
	ErrUpstream    = "upstream_error"
	ErrNotFound    = "not_found"
	ErrInvalidKey  = "invalid_key"
	ErrStorage     = "storage_error"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// WriteErrorWithCode writes a JSON error response with a machine-readable code.
func WriteErrorWithCode(w http.ResponseWriter, status int, code, msg string) {
	WriteJSON(w, status, ErrorResponse{Error: msg, Code: code})
}
