package handlers

import (
	"encoding/json"
	"net/http"
)

// MessageResponse is the generic message envelope.
type MessageResponse struct {
	Message string `json:"message"`
}

// respondJSON writes a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, statusCode, MessageResponse{Message: message})
}
