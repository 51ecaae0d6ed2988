package handlers

import (
	"crypto/subtle"
	"net/http"
	"time"

	"modgate/internal/moderation"
)

// InternalTokenHeader authenticates service-to-service hooks.
const InternalTokenHeader = "X-Internal-Token"

// imposeRequest is the body of POST /api/timeouts/{user}
type imposeRequest struct {
	Duration string `json:"duration"`
	Reason   string `json:"reason,omitempty"`
}

// TimeoutResponse reports a user's suspension state.
type TimeoutResponse struct {
	UserID    string              `json:"user_id"`
	Suspended bool                `json:"suspended"`
	Timeout   *moderation.Timeout `json:"timeout,omitempty"`
}

// HandleImposeTimeout handles POST /api/timeouts/{user}
func (h *Handler) HandleImposeTimeout(w http.ResponseWriter, r *http.Request) {
	reviewerID, ok := h.requireReviewer(w, r)
	if !ok {
		return
	}
	userID, ok := pathValue(w, r, "user")
	if !ok {
		return
	}

	var req imposeRequest
	err := decodeRequest(r, &req, func() error {
		req.Duration = r.FormValue("duration")
		req.Reason = r.FormValue("reason")
		return nil
	})
	if err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	d, err := time.ParseDuration(req.Duration)
	if err != nil {
		writeError(w, "duration must be a Go duration such as 90m or 24h", http.StatusBadRequest)
		return
	}

	t, err := h.coord.ImposeTimeout(r.Context(), reviewerID, userID, d, req.Reason)
	if err != nil {
		writeModerationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, TimeoutResponse{UserID: userID, Suspended: true, Timeout: t}, "timeout")
}

// HandleReleaseTimeout handles DELETE /api/timeouts/{user}
func (h *Handler) HandleReleaseTimeout(w http.ResponseWriter, r *http.Request) {
	reviewerID, ok := h.requireReviewer(w, r)
	if !ok {
		return
	}
	userID, ok := pathValue(w, r, "user")
	if !ok {
		return
	}

	if err := h.coord.ReleaseTimeout(r.Context(), reviewerID, userID); err != nil {
		writeModerationError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleTimeoutStatus handles GET /api/timeouts/{user}. Users may see their
// own status; reviewers may see anyone's.
func (h *Handler) HandleTimeoutStatus(w http.ResponseWriter, r *http.Request) {
	callerID, ok := requireUser(w, r)
	if !ok {
		return
	}
	userID, ok := pathValue(w, r, "user")
	if !ok {
		return
	}
	if callerID != userID && !h.coord.IsVerified(callerID) {
		writeError(w, moderation.ErrNotVerified.Error(), http.StatusForbidden)
		return
	}

	t, err := h.coord.TimeoutStatus(r.Context(), userID)
	if err != nil {
		writeModerationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TimeoutResponse{UserID: userID, Suspended: t != nil, Timeout: t}, "timeout")
}

// HandleAccountCreated handles POST /api/accounts/{user}, called by the
// account service when a user signs up.
func (h *Handler) HandleAccountCreated(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(InternalTokenHeader)
	if h.config.InternalToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(h.config.InternalToken)) != 1 {
		writeError(w, "missing or invalid internal token", http.StatusUnauthorized)
		return
	}
	userID, ok := pathValue(w, r, "user")
	if !ok {
		return
	}

	t, err := h.coord.OnAccountCreated(r.Context(), userID)
	if err != nil {
		writeModerationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, TimeoutResponse{UserID: userID, Suspended: t != nil, Timeout: t}, "account")
}
