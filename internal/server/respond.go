package server

import (
	"encoding/json"
	"net/http"
)

// errorResponse mirrors the error body shape for all endpoints
type errorResponse struct {
	Detail    string `json:"detail"`
	ErrorType string `json:"error_type,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
