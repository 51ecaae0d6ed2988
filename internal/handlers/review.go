package handlers

import (
	"net/http"
	"strconv"

	"modgate/internal/metrics"
	"modgate/internal/moderation"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog/log"
)

// DefaultAuditLimit is the number of audit entries returned when no limit is given.
const DefaultAuditLimit = 50

// ResolutionResponse is returned after a reviewer resolves a case.
type ResolutionResponse struct {
	Status   string `json:"status"`
	TargetID string `json:"target_id"`
}

// checkKind writes a 404 unless targetID is content of the given kind. The
// approve and reject routes are per kind.
func (h *Handler) checkKind(w http.ResponseWriter, r *http.Request, targetID, kind string) bool {
	got, err := h.content.KindOf(r.Context(), targetID)
	if err != nil {
		writeModerationError(w, r, err)
		return false
	}
	if got != kind {
		writeError(w, "no "+kind+" with id "+targetID, http.StatusNotFound)
		return false
	}
	return true
}

// HandleApprove returns the handler for DELETE /api/{kind}/approve/{id}
func (h *Handler) HandleApprove(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reviewerID, ok := h.requireReviewer(w, r)
		if !ok {
			return
		}
		targetID, ok := pathValue(w, r, "id")
		if !ok || !h.checkKind(w, r, targetID, kind) {
			return
		}

		if err := h.coord.Approve(r.Context(), reviewerID, targetID); err != nil {
			writeModerationError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ResolutionResponse{Status: "approved", TargetID: targetID}, "approve")
	}
}

// HandleReject returns the handler for DELETE /api/{kind}/reject/{id}
func (h *Handler) HandleReject(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reviewerID, ok := h.requireReviewer(w, r)
		if !ok {
			return
		}
		targetID, ok := pathValue(w, r, "id")
		if !ok || !h.checkKind(w, r, targetID, kind) {
			return
		}

		if err := h.coord.Reject(r.Context(), reviewerID, targetID); err != nil {
			writeModerationError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ResolutionResponse{Status: "rejected", TargetID: targetID}, "reject")
	}
}

// HandleAuditLog handles GET /api/audit?limit=N
func (h *Handler) HandleAuditLog(w http.ResponseWriter, r *http.Request) {
	reviewerID, ok := h.requireReviewer(w, r)
	if !ok {
		return
	}

	limit := DefaultAuditLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := h.coord.AuditLog(r.Context(), reviewerID, limit)
	if err != nil {
		writeModerationError(w, r, err)
		return
	}
	if entries == nil {
		entries = []moderation.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, entries, "audit log")
}

// Stats is the reviewer dashboard summary.
type Stats struct {
	PendingByTag   map[string]int `json:"pending_by_tag"`
	ActiveTimeouts int            `json:"active_timeouts"`
	ContentByKind  map[string]int `json:"content_by_kind"`
	LiveClients    int            `json:"live_clients"`
}

// HandleStats handles GET /api/stats
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireReviewer(w, r); !ok {
		return
	}
	ctx := r.Context()

	var stats Stats
	var err error
	if stats.PendingByTag, err = h.coord.PendingByTag(ctx); err != nil {
		writeModerationError(w, r, err)
		return
	}
	active, err := h.coord.ActiveTimeouts(ctx)
	if err != nil {
		writeModerationError(w, r, err)
		return
	}
	stats.ActiveTimeouts = len(active)
	if stats.ContentByKind, err = h.content.CountByKind(ctx); err != nil {
		writeModerationError(w, r, err)
		return
	}

	// Read live client count from the Prometheus gauge
	stats.LiveClients = int(getGaugeValue(metrics.LiveQueueClients))

	writeJSON(w, http.StatusOK, stats, "stats")
}

// getGaugeValue reads the current value of a prometheus.Gauge.
func getGaugeValue(g prometheus.Gauge) float64 {
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		return 0
	}
	if m.Gauge != nil {
		return m.GetGauge().GetValue()
	}
	return 0
}

// HandleQueue handles GET /api/ws/queue. Verified reviewers receive
// moderation events as they happen.
func (h *Handler) HandleQueue(w http.ResponseWriter, r *http.Request) {
	reviewerID, ok := h.requireReviewer(w, r)
	if !ok {
		return
	}
	if h.hub == nil {
		writeError(w, "live queue is disabled", http.StatusServiceUnavailable)
		return
	}
	log.Debug().Str("reviewer", reviewerID).Msg("live queue subscription")
	h.hub.Serve(w, r, reviewerID)
}
