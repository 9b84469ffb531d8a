package server

import (
	"encoding/json"
	"net/http"
)

type errorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message,omitempty"`
	Details []string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error envelope. Internal errors carry no message.
func writeError(w http.ResponseWriter, status int, code, message string, details []string) {
	writeJSON(w, status, errorResponse{
		Error:   code,
		Message: message,
		Details: details,
	})
}
