package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aquilhq/actionlog/pkg/models"
)

// ErrorBody is the uniform error reply: a stable machine-readable kind
// plus a human message.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// If encoding fails, attempt to write a basic error
		// This is a last resort and may not succeed
		http.Error(w, `{"error":"internal","message":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error maps a domain error onto its HTTP status and kind. The mapping
// lives here and nowhere else.
func Error(w http.ResponseWriter, err error) {
	status, kind := classify(err)
	JSON(w, status, ErrorBody{Error: kind, Message: err.Error()})
}

// BadRequest writes a 400 with a literal message.
func BadRequest(w http.ResponseWriter, message string) {
	JSON(w, http.StatusBadRequest, ErrorBody{Error: "bad_request", Message: message})
}

// NotFound writes a 404 with a literal message.
func NotFound(w http.ResponseWriter, message string) {
	JSON(w, http.StatusNotFound, ErrorBody{Error: "not_found", Message: message})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, models.ErrRecordNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, models.ErrSizeExceeded):
		return http.StatusRequestEntityTooLarge, "size_exceeded"
	case errors.Is(err, models.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, models.ErrRelDurability):
		return http.StatusInternalServerError, "rel_durability_failure"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
