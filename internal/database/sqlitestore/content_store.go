package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"modgate/internal/database"
	"modgate/internal/models"
	"modgate/internal/moderation"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ContentStore keeps posts, comments and edits. It implements
// moderation.ContentStore on top of gorm, sharing the moderation database.
type ContentStore struct {
	db *gorm.DB
}

var _ database.ContentStore = (*ContentStore)(nil)

// NewContentStore wraps an open database connection and migrates the content table.
func NewContentStore(ctx context.Context, conn *sql.DB) (*ContentStore, error) {
	db, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: "sqlite", Conn: conn}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm: %w", err)
	}
	if err := db.WithContext(ctx).AutoMigrate(&models.Item{}); err != nil {
		return nil, fmt.Errorf("migrate content: %w", err)
	}
	return &ContentStore{db: db}, nil
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", moderation.ErrTargetNotFound, id)
}

// Create stores a new item and assigns its ID. Comments and edits must point
// at an existing post.
func (s *ContentStore) Create(ctx context.Context, item *models.Item) error {
	if !models.ValidKind(item.Kind) {
		return models.ErrInvalidKind
	}
	if item.ID == "" {
		item.ID = uuid.New().String()
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if item.Kind != models.KindPost {
			var parent models.Item
			err := tx.Select("id", "kind").Where("id = ?", item.ParentID).Take(&parent).Error
			if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && parent.Kind != models.KindPost) {
				return notFound(item.ParentID)
			}
			if err != nil {
				return err
			}
		} else {
			item.ParentID = ""
		}
		return tx.Create(item).Error
	})
}

// Get loads an item by ID.
func (s *ContentStore) Get(ctx context.Context, id string) (*models.Item, error) {
	var item models.Item
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateBody replaces the body of an item.
func (s *ContentStore) UpdateBody(ctx context.Context, id, body string) error {
	res := s.db.WithContext(ctx).Model(&models.Item{}).Where("id = ?", id).Update("body", body)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound(id)
	}
	return nil
}

// Exists reports whether the item is stored.
func (s *ContentStore) Exists(ctx context.Context, id string) (bool, error) {
	var cnt int64
	if err := s.db.WithContext(ctx).Model(&models.Item{}).Where("id = ?", id).Count(&cnt).Error; err != nil {
		return false, err
	}
	return cnt > 0, nil
}

// Delete removes the item and everything that hangs off it.
func (s *ContentStore) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&models.Item{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return notFound(id)
		}
		return tx.Where("parent_id = ?", id).Delete(&models.Item{}).Error
	})
}

// AuthorOf returns the author of the item.
func (s *ContentStore) AuthorOf(ctx context.Context, id string) (string, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return item.AuthorID, nil
}

// KindOf returns the kind of the item.
func (s *ContentStore) KindOf(ctx context.Context, id string) (string, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return item.Kind, nil
}

// HasDependents reports whether any comment or edit points at the item.
func (s *ContentStore) HasDependents(ctx context.Context, id string) (bool, error) {
	var cnt int64
	if err := s.db.WithContext(ctx).Model(&models.Item{}).Where("parent_id = ?", id).Count(&cnt).Error; err != nil {
		return false, err
	}
	return cnt > 0, nil
}

// Dependents returns the ids of the comments and edits of a post.
func (s *ContentStore) Dependents(ctx context.Context, id string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.Item{}).Where("parent_id = ?", id).Order("created_at").Pluck("id", &ids).Error
	return ids, err
}

// Children lists the comments and edits of a post, oldest first.
func (s *ContentStore) Children(ctx context.Context, parentID string) ([]models.Item, error) {
	var items []models.Item
	err := s.db.WithContext(ctx).Where("parent_id = ?", parentID).Order("created_at").Find(&items).Error
	return items, err
}

// CountByKind returns how many items of each kind are stored.
func (s *ContentStore) CountByKind(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Kind  string
		Count int
	}
	err := s.db.WithContext(ctx).Model(&models.Item{}).
		Select("kind, COUNT(*) AS count").
		Group("kind").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.Kind] = r.Count
	}
	return out, nil
}
