package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"modgate/internal/models"
	"modgate/internal/moderation"

	"github.com/rs/zerolog/log"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Status  string    `json:"status"`
	Message string    `json:"message"`
	Until   time.Time `json:"until,omitzero"`
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, message string, status int) {
	writeErrorBody(w, ErrorResponse{Status: "error", Message: message}, status)
}

func writeErrorBody(w http.ResponseWriter, body ErrorResponse, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// statusFor maps a moderation or content error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, moderation.ErrAlreadyReported),
		errors.Is(err, moderation.ErrDuplicateTag),
		errors.Is(err, moderation.ErrAlreadySuspended),
		errors.Is(err, moderation.ErrHasDependents):
		return http.StatusConflict
	case errors.Is(err, moderation.ErrNotFound),
		errors.Is(err, moderation.ErrNotSuspended),
		errors.Is(err, moderation.ErrTargetNotFound):
		return http.StatusNotFound
	case errors.Is(err, moderation.ErrUserSuspended),
		errors.Is(err, moderation.ErrNotVerified),
		errors.Is(err, moderation.ErrNotAuthor):
		return http.StatusForbidden
	case errors.Is(err, moderation.ErrInvalidTag),
		errors.Is(err, moderation.ErrSelfReport),
		errors.Is(err, moderation.ErrInvalidDuration),
		errors.Is(err, models.ErrBodyRequired),
		errors.Is(err, models.ErrBodyTooLong),
		errors.Is(err, models.ErrInvalidKind):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeModerationError maps err to a status and writes it. Internal errors
// are logged and hidden from the caller.
func writeModerationError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := ErrorResponse{Status: "error", Message: err.Error()}

	var suspended *moderation.SuspendedError
	if errors.As(err, &suspended) {
		body.Until = suspended.Until.UTC()
	}

	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("Request failed")
		body.Message = "Internal server error"
	}
	writeErrorBody(w, body, status)
}
