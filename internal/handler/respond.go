// Package handler exposes the HTTP API. Handlers decode, call the service
// and encode; every rule that can reject a request lives in the service.
package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/mealtime/api/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

// writeServiceError maps service errors onto HTTP statuses: unknown ids to
// 404, bad input to 400, rule rejections to 409, the rest to 500.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrPositionNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case service.IsValidationError(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrIllegalTransition),
		errors.Is(err, service.ErrOrderNotEditable),
		errors.Is(err, service.ErrOrderFull),
		errors.Is(err, service.ErrPositionImmutable),
		errors.Is(err, service.ErrPositionNotRemovable):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
