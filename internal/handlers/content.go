package handlers

import (
	"context"
	"net/http"

	"modgate/internal/middleware"
	"modgate/internal/models"
	"modgate/internal/moderation"

	"github.com/rs/zerolog/log"
)

// ContentResponse is a content item as seen by the viewer. The body of a
// blocked item is withheld from everyone except its author and reviewers.
type ContentResponse struct {
	*models.Item
	Tags    []string `json:"tags"`
	Blocked bool     `json:"blocked"`
}

func viewerID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

// bodyRequest covers every request that carries only a body.
type bodyRequest struct {
	Body string `json:"body"`
}

func decodeBody(r *http.Request) (string, error) {
	var req bodyRequest
	err := decodeRequest(r, &req, func() error {
		req.Body = r.FormValue("body")
		return nil
	})
	return req.Body, err
}

// HandleCreatePost handles POST /api/posts
func (h *Handler) HandleCreatePost(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := h.coord.Guard(r.Context(), userID, "post"); err != nil {
		writeModerationError(w, r, err)
		return
	}

	body, err := decodeBody(r)
	if err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req := models.CreatePostRequest{Body: body}
	if err := req.Validate(); err != nil {
		writeModerationError(w, r, err)
		return
	}

	item := &models.Item{Kind: models.KindPost, AuthorID: userID, Body: req.Body}
	if err := h.content.Create(r.Context(), item); err != nil {
		writeModerationError(w, r, err)
		return
	}
	log.Info().Str("id", item.ID).Str("author", userID).Msg("Post created")
	writeJSON(w, http.StatusCreated, item, "post")
}

// HandleUpdatePost handles PATCH /api/posts/{id}
func (h *Handler) HandleUpdatePost(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathValue(w, r, "id")
	if !ok {
		return
	}
	ctx := r.Context()
	if err := h.coord.Guard(ctx, userID, "update_post"); err != nil {
		writeModerationError(w, r, err)
		return
	}

	item, err := h.content.Get(ctx, id)
	if err != nil {
		writeModerationError(w, r, err)
		return
	}
	if item.Kind != models.KindPost {
		writeError(w, "no post with id "+id, http.StatusNotFound)
		return
	}
	if item.AuthorID != userID {
		writeModerationError(w, r, moderation.ErrNotAuthor)
		return
	}

	body, err := decodeBody(r)
	if err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req := models.UpdatePostRequest{Body: body}
	if err := req.Validate(); err != nil {
		writeModerationError(w, r, err)
		return
	}
	if err := h.content.UpdateBody(ctx, id, req.Body); err != nil {
		writeModerationError(w, r, err)
		return
	}

	item, err = h.content.Get(ctx, id)
	if err != nil {
		writeModerationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item, "post")
}

// HandleDeleteContent returns the handler that lets an author delete their
// own content of the given kind.
func (h *Handler) HandleDeleteContent(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		id, ok := pathValue(w, r, "id")
		if !ok || !h.checkKind(w, r, id, kind) {
			return
		}

		if err := h.coord.RemoveContent(r.Context(), userID, id); err != nil {
			writeModerationError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleCreateChild returns the handler for POST /api/comments/{id} and
// POST /api/edits/{id}, where id is the parent post.
func (h *Handler) HandleCreateChild(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		parentID, ok := pathValue(w, r, "id")
		if !ok {
			return
		}

		body, err := decodeBody(r)
		if err != nil {
			writeError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		req := models.CreateChildRequest{Body: body}
		if err := req.Validate(); err != nil {
			writeModerationError(w, r, err)
			return
		}

		item := &models.Item{Kind: kind, AuthorID: userID, ParentID: parentID, Body: req.Body}
		err = h.coord.AddDependent(r.Context(), userID, kind, parentID, func(ctx context.Context) error {
			return h.content.Create(ctx, item)
		})
		if err != nil {
			writeModerationError(w, r, err)
			return
		}
		log.Info().Str("id", item.ID).Str("kind", kind).Str("parent", parentID).Str("author", userID).Msg("Content created")
		writeJSON(w, http.StatusCreated, item, kind)
	}
}

// HandleGetContent handles GET /api/content/{id}
func (h *Handler) HandleGetContent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathValue(w, r, "id")
	if !ok {
		return
	}
	ctx := r.Context()

	item, err := h.content.Get(ctx, id)
	if err != nil {
		writeModerationError(w, r, err)
		return
	}
	c, err := h.coord.Case(ctx, id)
	if err != nil {
		writeModerationError(w, r, err)
		return
	}

	viewer := viewerID(r)
	if c.Pending && viewer != item.AuthorID && !h.coord.IsVerified(viewer) {
		item.Body = ""
	}
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	writeJSON(w, http.StatusOK, ContentResponse{Item: item, Tags: tags, Blocked: c.Pending}, "content")
}
