package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"modgate/internal/database"
	"modgate/internal/livequeue"
	"modgate/internal/middleware"
	"modgate/internal/moderation"

	"github.com/rs/zerolog/log"
)

// Config holds handler configuration options
type Config struct {
	// InternalToken authorises service-to-service hooks such as account
	// creation. Empty disables those hooks.
	InternalToken string
}

// Handler contains all HTTP handler methods and their dependencies.
// Dependencies are injected via the constructor for better testability.
type Handler struct {
	coord   *moderation.Coordinator
	content database.ContentStore
	hub     *livequeue.Hub
	config  Config
}

// NewHandler creates a new Handler with all required dependencies.
// hub may be nil, which disables the live queue.
func NewHandler(coord *moderation.Coordinator, content database.ContentStore, hub *livequeue.Hub, config Config) *Handler {
	return &Handler{
		coord:   coord,
		content: content,
		hub:     hub,
		config:  config,
	}
}

// isJSONRequest checks if the request Content-Type is JSON
func isJSONRequest(r *http.Request) bool {
	contentType := r.Header.Get("Content-Type")
	return strings.Contains(contentType, "application/json")
}

// decodeRequest decodes either JSON or form data into target. parseForm is
// called after ParseForm when the request is form-encoded.
func decodeRequest(r *http.Request, target any, parseForm func() error) error {
	if isJSONRequest(r) {
		return json.NewDecoder(r.Body).Decode(target)
	}
	if err := r.ParseForm(); err != nil {
		return err
	}
	return parseForm()
}

// writeJSON encodes and writes a JSON response
func writeJSON(w http.ResponseWriter, status int, v any, entityName string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode " + entityName + " response")
	}
}

// requireUser returns the caller's id or writes a 401.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		writeError(w, "Authentication required", http.StatusUnauthorized)
		return "", false
	}
	return userID, true
}

// requireReviewer returns the caller's id if they hold the reviewer capability.
func (h *Handler) requireReviewer(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := requireUser(w, r)
	if !ok {
		return "", false
	}
	if !h.coord.IsVerified(userID) {
		log.Warn().Str("user", userID).Str("path", r.URL.Path).Msg("Denied: not a verified reviewer")
		writeError(w, moderation.ErrNotVerified.Error(), http.StatusForbidden)
		return "", false
	}
	return userID, true
}

// pathValue returns a trimmed path parameter or writes a 400 when it is empty.
func pathValue(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	v := strings.TrimSpace(r.PathValue(name))
	if v == "" {
		writeError(w, name+" is required", http.StatusBadRequest)
		return "", false
	}
	return v, true
}

// HandleHealth reports liveness.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, "health")
}
