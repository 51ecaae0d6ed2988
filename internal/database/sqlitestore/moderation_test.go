package sqlitestore

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"modgate/internal/moderation"
	"modgate/internal/moderation/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestModerationStoreContract(t *testing.T) {
	storetest.RunAll(t, func(t *testing.T) moderation.Store {
		return NewModerationStore(openTestDB(t))
	})
}

func TestApplySchema_Idempotent(t *testing.T) {
	db := openTestDB(t)
	assert.NoError(t, ApplySchema(context.Background(), db))
}

func TestTimeFormat_SortsLexically(t *testing.T) {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	times := []time.Time{
		base,
		base.Add(100 * time.Millisecond),
		base.Add(time.Second),
		base.Add(time.Second + time.Nanosecond),
	}
	for i := 1; i < len(times); i++ {
		assert.Less(t, formatTime(times[i-1]), formatTime(times[i]))
	}

	local := base.In(time.FixedZone("X", 3600))
	assert.True(t, parseTime(formatTime(local)).Equal(base))
}

func TestDeleteExpiredTimeout_Boundary(t *testing.T) {
	ctx := context.Background()
	store := NewModerationStore(openTestDB(t))
	expires := time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC)

	_, err := store.PutTimeout(ctx, moderation.Timeout{
		UserID: "alice", ExpiresAt: expires, CreatedAt: expires.Add(-time.Minute),
	}, expires.Add(-time.Minute))
	require.NoError(t, err)

	deleted, err := store.DeleteExpiredTimeout(ctx, "alice", expires.Add(-time.Nanosecond))
	require.NoError(t, err)
	assert.False(t, deleted)

	// Active means now < expiresAt, so the deadline itself is expired
	deleted, err = store.DeleteExpiredTimeout(ctx, "alice", expires)
	require.NoError(t, err)
	assert.True(t, deleted)
}
