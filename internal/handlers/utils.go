package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/quickcart/apiserver/internal/services"
)

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse is a simple acknowledgement payload.
type MessageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeServiceError maps the service error taxonomy onto HTTP. Store and
// other unexpected failures are reported with the generic fallback message.
func writeServiceError(w http.ResponseWriter, err error, fallback string) {
	var validation *services.ValidationError
	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, validation.Message)
	case errors.Is(err, services.ErrValidation):
		writeError(w, http.StatusBadRequest, "invalid request")
	case errors.Is(err, services.ErrConflict):
		writeError(w, http.StatusConflict, services.ErrConflict.Error())
	case errors.Is(err, services.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, services.ErrUnauthorized.Error())
	case errors.Is(err, services.ErrForbidden):
		writeError(w, http.StatusForbidden, "access denied")
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBytes))
	return dec.Decode(dst)
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
