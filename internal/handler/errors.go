package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/bosstrack/fieldtrack/internal/domain"
)

// errorResponse is the JSON error envelope every endpoint uses.
type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the standard error envelope.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: errorDetail{Code: code, Message: message}})
}

// writeDomainError maps a domain sentinel to its HTTP representation.
// Unknown errors become an opaque 500 so internals never leak to clients.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, "validation_error", unwrapMessage(err))
	case errors.Is(err, domain.ErrNotConsented):
		writeError(w, http.StatusForbidden, "not_consented", "valid consent required to start tracking")
	case errors.Is(err, domain.ErrAlreadyTracking):
		writeError(w, http.StatusConflict, "already_tracking", "a trip is already being tracked")
	case errors.Is(err, domain.ErrTrackingStartFailed):
		writeError(w, http.StatusBadGateway, "tracking_start_failed", unwrapMessage(err))
	case errors.Is(err, domain.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "unauthenticated", "unknown driver")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "resource not found")
	default:
		s.log.Error("unhandled error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// unwrapMessage extracts the human-readable part from a wrapped sentinel
// error, e.g. "consent.Service.RegisterWithConsent: validation error: driver
// name is required" becomes "driver name is required".
func unwrapMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, marker := range []string{"validation error: ", "tracking start failed: "} {
		if i := strings.LastIndex(msg, marker); i >= 0 {
			return msg[i+len(marker):]
		}
	}
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		return msg[i+2:]
	}
	return msg
}
