package sqlitestore

import (
	"context"
	"testing"

	"modgate/internal/models"
	"modgate/internal/moderation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupContentStore(t *testing.T) *ContentStore {
	t.Helper()
	store, err := NewContentStore(context.Background(), openTestDB(t))
	require.NoError(t, err)
	return store
}

func TestContentStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := setupContentStore(t)

	post := &models.Item{Kind: models.KindPost, AuthorID: "alice", Body: "hello"}
	require.NoError(t, store.Create(ctx, post))
	assert.NotEmpty(t, post.ID)

	got, err := store.Get(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.AuthorID)
	assert.Equal(t, "hello", got.Body)
	assert.Equal(t, models.KindPost, got.Kind)

	t.Run("missing item", func(t *testing.T) {
		_, err := store.Get(ctx, "nope")
		assert.ErrorIs(t, err, moderation.ErrTargetNotFound)

		_, err = store.AuthorOf(ctx, "nope")
		assert.ErrorIs(t, err, moderation.ErrTargetNotFound)

		ok, err := store.Exists(ctx, "nope")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("invalid kind", func(t *testing.T) {
		err := store.Create(ctx, &models.Item{Kind: "video", AuthorID: "alice"})
		assert.ErrorIs(t, err, models.ErrInvalidKind)
	})
}

func TestContentStore_Children(t *testing.T) {
	ctx := context.Background()
	store := setupContentStore(t)

	post := &models.Item{Kind: models.KindPost, AuthorID: "alice", Body: "hello"}
	require.NoError(t, store.Create(ctx, post))

	has, err := store.HasDependents(ctx, post.ID)
	require.NoError(t, err)
	assert.False(t, has)

	comment := &models.Item{Kind: models.KindComment, AuthorID: "bob", ParentID: post.ID, Body: "hi"}
	require.NoError(t, store.Create(ctx, comment))
	edit := &models.Item{Kind: models.KindEdit, AuthorID: "carol", ParentID: post.ID, Body: "hello!"}
	require.NoError(t, store.Create(ctx, edit))

	has, err = store.HasDependents(ctx, post.ID)
	require.NoError(t, err)
	assert.True(t, has)

	children, err := store.Children(ctx, post.ID)
	require.NoError(t, err)
	assert.Len(t, children, 2)

	deps, err := store.Dependents(ctx, post.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{comment.ID, edit.ID}, deps)

	deps, err = store.Dependents(ctx, comment.ID)
	require.NoError(t, err)
	assert.Empty(t, deps)

	kind, err := store.KindOf(ctx, comment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.KindComment, kind)

	t.Run("parent must be an existing post", func(t *testing.T) {
		err := store.Create(ctx, &models.Item{Kind: models.KindComment, AuthorID: "bob", ParentID: "nope", Body: "x"})
		assert.ErrorIs(t, err, moderation.ErrTargetNotFound)

		err = store.Create(ctx, &models.Item{Kind: models.KindComment, AuthorID: "bob", ParentID: comment.ID, Body: "x"})
		assert.ErrorIs(t, err, moderation.ErrTargetNotFound)
	})

	counts, err := store.CountByKind(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"post": 1, "comment": 1, "edit": 1}, counts)

	t.Run("delete cascades", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, post.ID))

		for _, id := range []string{post.ID, comment.ID, edit.ID} {
			ok, err := store.Exists(ctx, id)
			require.NoError(t, err)
			assert.False(t, ok)
		}

		assert.ErrorIs(t, store.Delete(ctx, post.ID), moderation.ErrTargetNotFound)
	})
}

func TestContentStore_UpdateBody(t *testing.T) {
	ctx := context.Background()
	store := setupContentStore(t)

	post := &models.Item{Kind: models.KindPost, AuthorID: "alice", Body: "v1"}
	require.NoError(t, store.Create(ctx, post))

	require.NoError(t, store.UpdateBody(ctx, post.ID, "v2"))
	got, err := store.Get(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Body)

	assert.ErrorIs(t, store.UpdateBody(ctx, "nope", "x"), moderation.ErrTargetNotFound)
}

func TestContentStore_SharesDatabaseWithModeration(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	content, err := NewContentStore(ctx, db)
	require.NoError(t, err)
	mod := NewModerationStore(db)

	post := &models.Item{Kind: models.KindPost, AuthorID: "alice", Body: "hello"}
	require.NoError(t, content.Create(ctx, post))
	_, err = mod.CreateReport(ctx, moderation.Report{ID: "r1", ReporterID: "bob", TargetID: post.ID})
	require.NoError(t, err)

	n, err := mod.CountReports(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
