package boltstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"modgate/internal/moderation"
	"modgate/internal/moderation/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

func TestOpen_AppliesDefaults(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "mod.db")

	store, err := Open(Options{Path: dbPath})
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, dbPath, store.DB().Path())
	info, err := os.Stat(dbPath)
	require.NoError(t, err)
	assert.Equal(t, DefaultOptions().FileMode, info.Mode().Perm())
}

func setupTestModerationStore(t *testing.T) *ModerationStore {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := Open(Options{Path: dbPath})
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store.ModerationStore()
}

func TestModerationStoreContract(t *testing.T) {
	storetest.RunAll(t, func(t *testing.T) moderation.Store {
		return setupTestModerationStore(t)
	})
}

func TestOpen_CreatesBucketsAndDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "modgate.db")

	store, err := Open(Options{Path: dbPath})
	require.NoError(t, err)
	defer store.Close()

	err = store.DB().View(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{BucketReports, BucketTimeouts, BucketTagsByTarget, BucketTargetsByTag, BucketAuditLog} {
			assert.NotNil(t, tx.Bucket(name), "bucket %s", name)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := Open(Options{Path: dbPath})
	require.NoError(t, err)
	_, err = store.ModerationStore().CreateReport(ctx, moderation.Report{
		ID: "r1", ReporterID: "alice", TargetID: "post-1", CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = Open(Options{Path: dbPath})
	require.NoError(t, err)
	defer store.Close()

	count, err := store.ModerationStore().CountReports(ctx, "post-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestListTags_SkipsTargetsOfSameTag(t *testing.T) {
	ctx := context.Background()
	store := setupTestModerationStore(t)

	for _, target := range []string{"a", "b", "c"} {
		require.NoError(t, store.AddTag(ctx, moderation.Tag{Tag: "spam", TargetID: target}))
	}
	require.NoError(t, store.AddTag(ctx, moderation.Tag{Tag: "spam-bot", TargetID: "a"}))
	require.NoError(t, store.AddTag(ctx, moderation.Tag{Tag: "art", TargetID: "a"}))

	tags, err := store.ListTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"art", "spam", "spam-bot"}, tags)
}
