package models

import (
	"errors"
	"time"
)

// Content kinds
const (
	KindPost    = "post"
	KindComment = "comment"
	KindEdit    = "edit"
)

// Field length limits
const (
	MaxBodyLength = 10000
)

var (
	ErrBodyRequired = errors.New("body is required")
	ErrBodyTooLong  = errors.New("body is too long")
	ErrInvalidKind  = errors.New("invalid content kind")
)

// Item is a post, comment or community edit. Comments and edits hang off a
// post through ParentID.
type Item struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Kind      string    `json:"kind" gorm:"type:varchar(16);index:idx_content_kind"`
	AuthorID  string    `json:"author_id" gorm:"index:idx_content_author"`
	ParentID  string    `json:"parent_id,omitempty" gorm:"index:idx_content_parent"`
	Body      string    `json:"body,omitempty" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Item) TableName() string { return "content_items" }

// ValidKind reports whether kind names a content kind.
func ValidKind(kind string) bool {
	switch kind {
	case KindPost, KindComment, KindEdit:
		return true
	}
	return false
}

// KindFromPlural maps a route segment like "posts" to its kind.
func KindFromPlural(plural string) (string, error) {
	switch plural {
	case "posts":
		return KindPost, nil
	case "comments":
		return KindComment, nil
	case "edits":
		return KindEdit, nil
	}
	return "", ErrInvalidKind
}

// CreatePostRequest is the body of POST /api/posts.
type CreatePostRequest struct {
	Body string `json:"body"`
}

func (r *CreatePostRequest) Validate() error {
	return validateBody(r.Body)
}

// CreateChildRequest is the body for new comments and edits.
type CreateChildRequest struct {
	Body string `json:"body"`
}

func (r *CreateChildRequest) Validate() error {
	return validateBody(r.Body)
}

// UpdatePostRequest is the body of PATCH /api/posts/{id}.
type UpdatePostRequest struct {
	Body string `json:"body"`
}

func (r *UpdatePostRequest) Validate() error {
	return validateBody(r.Body)
}

func validateBody(body string) error {
	if body == "" {
		return ErrBodyRequired
	}
	if len(body) > MaxBodyLength {
		return ErrBodyTooLong
	}
	return nil
}
