package handlers

import (
	"net/http"

	"modgate/internal/models"
	"modgate/internal/moderation"

	"github.com/rs/zerolog/log"
)

// ReportResponse is returned after a report is filed.
type ReportResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Count   int    `json:"count"`
	Pending bool   `json:"pending"`
}

// PendingResponse lists the targets under a tag that await review.
type PendingResponse struct {
	Tag   string   `json:"tag"`
	Count int      `json:"count"`
	IDs   []string `json:"ids"`
}

// HandleReport handles POST /api/report/{id}
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	targetID, ok := pathValue(w, r, "id")
	if !ok {
		return
	}

	res, err := h.coord.ReportTarget(r.Context(), userID, targetID)
	if err != nil {
		writeModerationError(w, r, err)
		return
	}

	log.Info().
		Str("report_id", res.Report.ID).
		Str("target", targetID).
		Str("reporter", userID).
		Int("count", res.Count).
		Msg("moderation: report created")

	writeJSON(w, http.StatusCreated, ReportResponse{
		ID:      res.Report.ID,
		Status:  "received",
		Count:   res.Count,
		Pending: res.Pending,
	}, "report")
}

// HandleWithdrawReport handles DELETE /api/report/{id}
func (h *Handler) HandleWithdrawReport(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	targetID, ok := pathValue(w, r, "id")
	if !ok {
		return
	}

	if err := h.coord.WithdrawReport(r.Context(), userID, targetID); err != nil {
		writeModerationError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandlePendingCount handles GET /api/count/report/{tag}
func (h *Handler) HandlePendingCount(w http.ResponseWriter, r *http.Request) {
	tag, ok := pathValue(w, r, "tag")
	if !ok {
		return
	}

	ids, err := h.coord.ListPending(r.Context(), tag)
	if err != nil {
		writeModerationError(w, r, err)
		return
	}
	norm, _ := moderation.NormalizeTag(tag)
	writeJSON(w, http.StatusOK, PendingResponse{Tag: norm, Count: len(ids), IDs: ids}, "pending")
}

// HandleBlocked handles GET /api/blocked/{kinds}/{tag}
func (h *Handler) HandleBlocked(w http.ResponseWriter, r *http.Request) {
	kind, err := models.KindFromPlural(r.PathValue("kinds"))
	if err != nil {
		writeError(w, err.Error(), http.StatusNotFound)
		return
	}
	tag, ok := pathValue(w, r, "tag")
	if !ok {
		return
	}

	ids, err := h.coord.ListBlocked(r.Context(), kind, tag)
	if err != nil {
		writeModerationError(w, r, err)
		return
	}
	norm, _ := moderation.NormalizeTag(tag)
	writeJSON(w, http.StatusOK, PendingResponse{Tag: norm, Count: len(ids), IDs: ids}, "blocked")
}

// HandleCase handles GET /api/cases/{id}. Reporter identities are only shown
// to reviewers.
func (h *Handler) HandleCase(w http.ResponseWriter, r *http.Request) {
	targetID, ok := pathValue(w, r, "id")
	if !ok {
		return
	}

	c, err := h.coord.Case(r.Context(), targetID)
	if err != nil {
		writeModerationError(w, r, err)
		return
	}
	if !h.coord.IsVerified(viewerID(r)) {
		c.Reports = nil
	}
	writeJSON(w, http.StatusOK, c, "case")
}
