// Package shared holds the JSON response helpers every feature handler
// uses, including the mapping from the error taxonomy to HTTP status
// codes.
package shared

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dalemusser/studytrack/internal/domain/apperr"
	"go.uber.org/zap"
)

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes an error as {"error": "..."} with the status the error
// category maps to:
//
//	Validation   → 400
//	NotFound     → 404
//	InvalidState → 409
//	Forbidden    → 403
//	anything else → 502 with a generic message, detail logged
func Error(w http.ResponseWriter, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		JSON(w, http.StatusBadRequest, errBody(err))
	case errors.Is(err, apperr.ErrNotFound):
		JSON(w, http.StatusNotFound, errBody(err))
	case errors.Is(err, apperr.ErrInvalidState):
		JSON(w, http.StatusConflict, errBody(err))
	case errors.Is(err, apperr.ErrForbidden):
		JSON(w, http.StatusForbidden, errBody(err))
	default:
		log.Error("request failed", zap.Error(err))
		JSON(w, http.StatusBadGateway, map[string]string{"error": "storage unavailable"})
	}
}

// errBody strips the sentinel prefix so users see the specific message,
// not the category label.
func errBody(err error) map[string]string {
	msg := err.Error()
	if i := strings.Index(msg, ": "); i >= 0 {
		msg = msg[i+2:]
	}
	return map[string]string{"error": msg}
}

// Decode reads a JSON request body into v.
func Decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Validation("invalid request body")
	}
	return nil
}
