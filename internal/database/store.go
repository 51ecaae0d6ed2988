package database

import (
	"context"

	"modgate/internal/models"
	"modgate/internal/moderation"
)

// ContentStore defines the content operations used by the HTTP layer.
// It extends the narrower contract the moderation coordinator depends on.
// All methods accept a context.Context as the first parameter to support
// cancellation, timeouts, and request-scoped values.
type ContentStore interface {
	moderation.ContentStore

	Create(ctx context.Context, item *models.Item) error
	Get(ctx context.Context, id string) (*models.Item, error)
	UpdateBody(ctx context.Context, id, body string) error
	Children(ctx context.Context, parentID string) ([]models.Item, error)
	CountByKind(ctx context.Context) (map[string]int, error)
}
