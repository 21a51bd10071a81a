package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"match-chat-backend/internal/apperr"

	"github.com/rs/zerolog/log"
)

const maxJSONBody = 1 << 20

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}

// respondJSON sends body as JSON with the given status
func respondJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

// respondServiceError maps a service error to a status code. Unexpected
// errors are logged and hidden from the client.
func respondServiceError(w http.ResponseWriter, err error, msg string) {
	var verr *apperr.ValidationError
	switch {
	case errors.As(err, &verr):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: verr.Error(), Field: verr.Field})
	case errors.Is(err, apperr.ErrValidation):
		respondError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, apperr.ErrInvalidCredentials):
		respondError(w, "invalid email or password", http.StatusUnauthorized)
	case errors.Is(err, apperr.ErrUnauthorized):
		respondError(w, "unauthorized", http.StatusUnauthorized)
	case errors.Is(err, apperr.ErrNotFound):
		respondError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, apperr.ErrConflict):
		respondError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, apperr.ErrUnsupported):
		respondError(w, err.Error(), http.StatusNotImplemented)
	default:
		log.Error().Err(err).Msg(msg)
		respondError(w, msg, http.StatusInternalServerError)
	}
}

// decodeJSON reads a JSON request body into dst
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}
