package handlers

import (
	"encoding/json"
	"net/http"
)

// errorResponse is the uniform error body: a machine-readable code plus
// a human-readable message.
type errorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	Code       string `json:"code,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, title, message string) {
	writeJSON(w, status, errorResponse{
		Error:   title,
		Message: message,
		Code:    code,
	})
}
