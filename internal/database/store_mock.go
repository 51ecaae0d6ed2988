package database

import (
	"context"

	"modgate/internal/models"
)

// MockContentStore is a mock implementation of the ContentStore interface for
// testing. Function fields override single methods; any method without one
// is forwarded to Base, or returns zero values when Base is nil.
type MockContentStore struct {
	Base ContentStore

	ExistsFunc        func(ctx context.Context, id string) (bool, error)
	DeleteFunc        func(ctx context.Context, id string) error
	AuthorOfFunc      func(ctx context.Context, id string) (string, error)
	KindOfFunc        func(ctx context.Context, id string) (string, error)
	HasDependentsFunc func(ctx context.Context, id string) (bool, error)
	DependentsFunc    func(ctx context.Context, id string) ([]string, error)

	CreateFunc      func(ctx context.Context, item *models.Item) error
	GetFunc         func(ctx context.Context, id string) (*models.Item, error)
	UpdateBodyFunc  func(ctx context.Context, id, body string) error
	ChildrenFunc    func(ctx context.Context, parentID string) ([]models.Item, error)
	CountByKindFunc func(ctx context.Context) (map[string]int, error)
}

var _ ContentStore = (*MockContentStore)(nil)

// Exists calls the mock function or forwards to Base
func (m *MockContentStore) Exists(ctx context.Context, id string) (bool, error) {
	if m.ExistsFunc != nil {
		return m.ExistsFunc(ctx, id)
	}
	if m.Base != nil {
		return m.Base.Exists(ctx, id)
	}
	return false, nil
}

// Delete calls the mock function or forwards to Base
func (m *MockContentStore) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	if m.Base != nil {
		return m.Base.Delete(ctx, id)
	}
	return nil
}

// AuthorOf calls the mock function or forwards to Base
func (m *MockContentStore) AuthorOf(ctx context.Context, id string) (string, error) {
	if m.AuthorOfFunc != nil {
		return m.AuthorOfFunc(ctx, id)
	}
	if m.Base != nil {
		return m.Base.AuthorOf(ctx, id)
	}
	return "", nil
}

// KindOf calls the mock function or forwards to Base
func (m *MockContentStore) KindOf(ctx context.Context, id string) (string, error) {
	if m.KindOfFunc != nil {
		return m.KindOfFunc(ctx, id)
	}
	if m.Base != nil {
		return m.Base.KindOf(ctx, id)
	}
	return "", nil
}

// HasDependents calls the mock function or forwards to Base
func (m *MockContentStore) HasDependents(ctx context.Context, id string) (bool, error) {
	if m.HasDependentsFunc != nil {
		return m.HasDependentsFunc(ctx, id)
	}
	if m.Base != nil {
		return m.Base.HasDependents(ctx, id)
	}
	return false, nil
}

// Dependents calls the mock function or forwards to Base
func (m *MockContentStore) Dependents(ctx context.Context, id string) ([]string, error) {
	if m.DependentsFunc != nil {
		return m.DependentsFunc(ctx, id)
	}
	if m.Base != nil {
		return m.Base.Dependents(ctx, id)
	}
	return nil, nil
}

// Create calls the mock function or forwards to Base
func (m *MockContentStore) Create(ctx context.Context, item *models.Item) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, item)
	}
	if m.Base != nil {
		return m.Base.Create(ctx, item)
	}
	return nil
}

// Get calls the mock function or forwards to Base
func (m *MockContentStore) Get(ctx context.Context, id string) (*models.Item, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	if m.Base != nil {
		return m.Base.Get(ctx, id)
	}
	return nil, nil
}

// UpdateBody calls the mock function or forwards to Base
func (m *MockContentStore) UpdateBody(ctx context.Context, id, body string) error {
	if m.UpdateBodyFunc != nil {
		return m.UpdateBodyFunc(ctx, id, body)
	}
	if m.Base != nil {
		return m.Base.UpdateBody(ctx, id, body)
	}
	return nil
}

// Children calls the mock function or forwards to Base
func (m *MockContentStore) Children(ctx context.Context, parentID string) ([]models.Item, error) {
	if m.ChildrenFunc != nil {
		return m.ChildrenFunc(ctx, parentID)
	}
	if m.Base != nil {
		return m.Base.Children(ctx, parentID)
	}
	return nil, nil
}

// CountByKind calls the mock function or forwards to Base
func (m *MockContentStore) CountByKind(ctx context.Context) (map[string]int, error) {
	if m.CountByKindFunc != nil {
		return m.CountByKindFunc(ctx)
	}
	if m.Base != nil {
		return m.Base.CountByKind(ctx)
	}
	return nil, nil
}
