package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/kommander-bridge/internal/bridges/kommander"
	"github.com/nerrad567/kommander-bridge/internal/store"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeInternal    = "internal_error"
	ErrCodeValidation  = "validation_error"
	ErrCodeUnavailable = "unavailable"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // best-effort write; the client may be gone
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{Status: status, Code: code, Message: message})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func writeUnavailable(w http.ResponseWriter, message string) {
	writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeBridgeError maps bridge sentinels onto HTTP statuses.
func writeBridgeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, kommander.ErrUnknownAction),
		errors.Is(err, kommander.ErrUnknownFeedback),
		errors.Is(err, kommander.ErrSubscriptionNotFound):
		writeNotFound(w, err.Error())
	case errors.Is(err, kommander.ErrInvalidParameter),
		errors.Is(err, kommander.ErrInvalidVariableName),
		errors.Is(err, kommander.ErrInvalidAddress),
		errors.Is(err, store.ErrInvalidFacet):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, kommander.ErrManagerStopped):
		writeUnavailable(w, err.Error())
	default:
		writeInternalError(w, err.Error())
	}
}
