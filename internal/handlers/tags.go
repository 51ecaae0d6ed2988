package handlers

import (
	"net/http"
)

// TagsResponse lists the tags on a target.
type TagsResponse struct {
	TargetID string   `json:"target_id"`
	Tags     []string `json:"tags"`
}

// HandleAttachTag handles POST /api/tags/{tag}/{id}
func (h *Handler) HandleAttachTag(w http.ResponseWriter, r *http.Request) {
	h.changeTag(w, r, true)
}

// HandleDetachTag handles DELETE /api/tags/{tag}/{id}
func (h *Handler) HandleDetachTag(w http.ResponseWriter, r *http.Request) {
	h.changeTag(w, r, false)
}

func (h *Handler) changeTag(w http.ResponseWriter, r *http.Request, attach bool) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	tag, ok := pathValue(w, r, "tag")
	if !ok {
		return
	}
	targetID, ok := pathValue(w, r, "id")
	if !ok {
		return
	}

	var err error
	status := http.StatusOK
	if attach {
		err = h.coord.AttachTag(r.Context(), userID, tag, targetID)
		status = http.StatusCreated
	} else {
		err = h.coord.DetachTag(r.Context(), userID, tag, targetID)
	}
	if err != nil {
		writeModerationError(w, r, err)
		return
	}
	h.writeTags(w, r, targetID, status)
}

// HandleTagsOf handles GET /api/tags/{id}
func (h *Handler) HandleTagsOf(w http.ResponseWriter, r *http.Request) {
	targetID, ok := pathValue(w, r, "id")
	if !ok {
		return
	}
	h.writeTags(w, r, targetID, http.StatusOK)
}

func (h *Handler) writeTags(w http.ResponseWriter, r *http.Request, targetID string, status int) {
	tags, err := h.coord.TagsOf(r.Context(), targetID)
	if err != nil {
		writeModerationError(w, r, err)
		return
	}
	if tags == nil {
		tags = []string{}
	}
	writeJSON(w, status, TagsResponse{TargetID: targetID, Tags: tags}, "tags")
}
