// Package storetest holds behaviour tests shared by every moderation store
// backend. Each backend's own test file calls the Run functions with a
// constructor returning a fresh, empty store.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"modgate/internal/moderation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// RunAll runs every contract test against a full moderation.Store.
func RunAll(t *testing.T, newStore func(t *testing.T) moderation.Store) {
	t.Run("reports", func(t *testing.T) { RunReportStore(t, func(t *testing.T) moderation.ReportStore { return newStore(t) }) })
	t.Run("timeouts", func(t *testing.T) { RunTimeoutStore(t, func(t *testing.T) moderation.TimeoutStore { return newStore(t) }) })
	t.Run("tags", func(t *testing.T) { RunTagStore(t, func(t *testing.T) moderation.TagStore { return newStore(t) }) })
	t.Run("audit", func(t *testing.T) { RunAuditLog(t, func(t *testing.T) moderation.AuditLog { return newStore(t) }) })
}

func report(reporter, target string) moderation.Report {
	return moderation.Report{
		ID:         moderation.NewTID(),
		ReporterID: reporter,
		TargetID:   target,
		CreatedAt:  base,
	}
}

// RunReportStore exercises a moderation.ReportStore.
func RunReportStore(t *testing.T, newStore func(t *testing.T) moderation.ReportStore) {
	ctx := context.Background()

	t.Run("create counts distinct reporters", func(t *testing.T) {
		store := newStore(t)

		n, err := store.CreateReport(ctx, report("alice", "post-1"))
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = store.CreateReport(ctx, report("bob", "post-1"))
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = store.CreateReport(ctx, report("alice", "post-2"))
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		count, err := store.CountReports(ctx, "post-1")
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("duplicate pair is rejected", func(t *testing.T) {
		store := newStore(t)

		_, err := store.CreateReport(ctx, report("alice", "post-1"))
		require.NoError(t, err)

		_, err = store.CreateReport(ctx, report("alice", "post-1"))
		assert.ErrorIs(t, err, moderation.ErrAlreadyReported)

		count, err := store.CountReports(ctx, "post-1")
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("count of unknown target is zero", func(t *testing.T) {
		store := newStore(t)
		count, err := store.CountReports(ctx, "nothing")
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("delete", func(t *testing.T) {
		store := newStore(t)

		_, err := store.CreateReport(ctx, report("alice", "post-1"))
		require.NoError(t, err)

		require.NoError(t, store.DeleteReport(ctx, "alice", "post-1"))
		assert.ErrorIs(t, store.DeleteReport(ctx, "alice", "post-1"), moderation.ErrNotFound)

		_, err = store.CreateReport(ctx, report("alice", "post-1"))
		assert.NoError(t, err)
	})

	t.Run("list and delete for target", func(t *testing.T) {
		store := newStore(t)

		for _, r := range []string{"alice", "bob", "carol"} {
			_, err := store.CreateReport(ctx, report(r, "post-1"))
			require.NoError(t, err)
		}
		_, err := store.CreateReport(ctx, report("alice", "post-10"))
		require.NoError(t, err)

		listed, err := store.ListReports(ctx, "post-1")
		require.NoError(t, err)
		assert.Len(t, listed, 3)

		removed, err := store.DeleteReportsForTarget(ctx, "post-1")
		require.NoError(t, err)
		assert.Len(t, removed, 3)

		count, err := store.CountReports(ctx, "post-1")
		require.NoError(t, err)
		assert.Equal(t, 0, count)

		// A target whose ID shares a prefix is untouched
		count, err = store.CountReports(ctx, "post-10")
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		removed, err = store.DeleteReportsForTarget(ctx, "post-1")
		require.NoError(t, err)
		assert.Empty(t, removed)
	})

	t.Run("concurrent duplicate creates admit one", func(t *testing.T) {
		store := newStore(t)

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			success int
		)
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := store.CreateReport(ctx, report("alice", "post-1")); err == nil {
					mu.Lock()
					success++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, success)
	})
}

func timeout(user string, expires time.Time) moderation.Timeout {
	return moderation.Timeout{
		UserID:    user,
		ExpiresAt: expires,
		Reason:    "test",
		ImposedBy: "vera",
		CreatedAt: base,
	}
}

// RunTimeoutStore exercises a moderation.TimeoutStore.
func RunTimeoutStore(t *testing.T, newStore func(t *testing.T) moderation.TimeoutStore) {
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		store := newStore(t)
		got, err := store.GetTimeout(ctx, "alice")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("put and get", func(t *testing.T) {
		store := newStore(t)

		prev, err := store.PutTimeout(ctx, timeout("alice", base.Add(time.Hour)), base)
		require.NoError(t, err)
		assert.Nil(t, prev)

		got, err := store.GetTimeout(ctx, "alice")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, got.ExpiresAt.Equal(base.Add(time.Hour)))
		assert.Equal(t, "test", got.Reason)
		assert.Equal(t, "vera", got.ImposedBy)
	})

	t.Run("put over active record fails", func(t *testing.T) {
		store := newStore(t)

		_, err := store.PutTimeout(ctx, timeout("alice", base.Add(time.Hour)), base)
		require.NoError(t, err)

		existing, err := store.PutTimeout(ctx, timeout("alice", base.Add(2*time.Hour)), base.Add(time.Minute))
		assert.ErrorIs(t, err, moderation.ErrAlreadySuspended)
		require.NotNil(t, existing)
		assert.True(t, existing.ExpiresAt.Equal(base.Add(time.Hour)))
	})

	t.Run("put over stale record replaces it", func(t *testing.T) {
		store := newStore(t)

		_, err := store.PutTimeout(ctx, timeout("alice", base.Add(time.Minute)), base)
		require.NoError(t, err)

		later := base.Add(time.Hour)
		prev, err := store.PutTimeout(ctx, timeout("alice", later.Add(time.Minute)), later)
		require.NoError(t, err)
		require.NotNil(t, prev)
		assert.True(t, prev.ExpiresAt.Equal(base.Add(time.Minute)))

		got, err := store.GetTimeout(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, got.ExpiresAt.Equal(later.Add(time.Minute)))
	})

	t.Run("replace returns previous", func(t *testing.T) {
		store := newStore(t)

		prev, err := store.ReplaceTimeout(ctx, timeout("alice", base.Add(time.Hour)))
		require.NoError(t, err)
		assert.Nil(t, prev)

		prev, err = store.ReplaceTimeout(ctx, timeout("alice", base.Add(3*time.Hour)))
		require.NoError(t, err)
		require.NotNil(t, prev)
		assert.True(t, prev.ExpiresAt.Equal(base.Add(time.Hour)))
	})

	t.Run("delete", func(t *testing.T) {
		store := newStore(t)

		assert.ErrorIs(t, store.DeleteTimeout(ctx, "alice"), moderation.ErrNotFound)

		_, err := store.PutTimeout(ctx, timeout("alice", base.Add(time.Hour)), base)
		require.NoError(t, err)
		require.NoError(t, store.DeleteTimeout(ctx, "alice"))

		got, err := store.GetTimeout(ctx, "alice")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("delete expired keeps active record", func(t *testing.T) {
		store := newStore(t)

		_, err := store.PutTimeout(ctx, timeout("alice", base.Add(time.Hour)), base)
		require.NoError(t, err)

		deleted, err := store.DeleteExpiredTimeout(ctx, "alice", base.Add(time.Minute))
		require.NoError(t, err)
		assert.False(t, deleted)

		deleted, err = store.DeleteExpiredTimeout(ctx, "alice", base.Add(time.Hour))
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = store.DeleteExpiredTimeout(ctx, "alice", base.Add(time.Hour))
		require.NoError(t, err)
		assert.False(t, deleted)
	})

	t.Run("list", func(t *testing.T) {
		store := newStore(t)

		for i, u := range []string{"alice", "bob"} {
			_, err := store.PutTimeout(ctx, timeout(u, base.Add(time.Duration(i+1)*time.Hour)), base)
			require.NoError(t, err)
		}

		all, err := store.ListTimeouts(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("concurrent puts admit one", func(t *testing.T) {
		store := newStore(t)

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			success int
		)
		for i := range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.PutTimeout(ctx, timeout("alice", base.Add(time.Duration(i+1)*time.Minute)), base)
				if err == nil {
					mu.Lock()
					success++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, success)
	})
}

func tag(name, target string) moderation.Tag {
	return moderation.Tag{Tag: name, TargetID: target, CreatedAt: base}
}

// RunTagStore exercises a moderation.TagStore.
func RunTagStore(t *testing.T, newStore func(t *testing.T) moderation.TagStore) {
	ctx := context.Background()

	t.Run("add and query both ways", func(t *testing.T) {
		store := newStore(t)

		require.NoError(t, store.AddTag(ctx, tag("spam", "post-1")))
		require.NoError(t, store.AddTag(ctx, tag("nsfw", "post-1")))
		require.NoError(t, store.AddTag(ctx, tag("spam", "post-2")))

		tags, err := store.TagsForTarget(ctx, "post-1")
		require.NoError(t, err)
		var names []string
		for _, tg := range tags {
			names = append(names, tg.Tag)
		}
		assert.ElementsMatch(t, []string{"spam", "nsfw"}, names)

		targets, err := store.TargetsWithTag(ctx, "spam")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"post-1", "post-2"}, targets)

		all, err := store.ListTags(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"nsfw", "spam"}, all)
	})

	t.Run("duplicate pair is rejected", func(t *testing.T) {
		store := newStore(t)

		require.NoError(t, store.AddTag(ctx, tag("spam", "post-1")))
		assert.ErrorIs(t, store.AddTag(ctx, tag("spam", "post-1")), moderation.ErrDuplicateTag)
	})

	t.Run("remove", func(t *testing.T) {
		store := newStore(t)

		assert.ErrorIs(t, store.RemoveTag(ctx, "spam", "post-1"), moderation.ErrNotFound)

		require.NoError(t, store.AddTag(ctx, tag("spam", "post-1")))
		require.NoError(t, store.RemoveTag(ctx, "spam", "post-1"))

		targets, err := store.TargetsWithTag(ctx, "spam")
		require.NoError(t, err)
		assert.Empty(t, targets)

		require.NoError(t, store.AddTag(ctx, tag("spam", "post-1")))
	})

	t.Run("remove all for target", func(t *testing.T) {
		store := newStore(t)

		require.NoError(t, store.AddTag(ctx, tag("spam", "post-1")))
		require.NoError(t, store.AddTag(ctx, tag("nsfw", "post-1")))
		require.NoError(t, store.AddTag(ctx, tag("spam", "post-10")))

		removed, err := store.RemoveTagsForTarget(ctx, "post-1")
		require.NoError(t, err)
		assert.Len(t, removed, 2)

		tags, err := store.TagsForTarget(ctx, "post-1")
		require.NoError(t, err)
		assert.Empty(t, tags)

		targets, err := store.TargetsWithTag(ctx, "spam")
		require.NoError(t, err)
		assert.Equal(t, []string{"post-10"}, targets)

		removed, err = store.RemoveTagsForTarget(ctx, "post-1")
		require.NoError(t, err)
		assert.Empty(t, removed)
	})
}

// RunAuditLog exercises a moderation.AuditLog.
func RunAuditLog(t *testing.T, newStore func(t *testing.T) moderation.AuditLog) {
	ctx := context.Background()

	t.Run("newest first with limit", func(t *testing.T) {
		store := newStore(t)

		for i := range 5 {
			require.NoError(t, store.LogAction(ctx, moderation.AuditEntry{
				ID:        fmt.Sprintf("entry-%d", i),
				Action:    moderation.AuditActionApprove,
				ActorID:   "vera",
				TargetID:  fmt.Sprintf("post-%d", i),
				Details:   map[string]string{"n": fmt.Sprint(i)},
				Timestamp: base.Add(time.Duration(i) * time.Second),
			}))
		}

		entries, err := store.ListAuditLog(ctx, 3)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, "entry-4", entries[0].ID)
		assert.Equal(t, "entry-3", entries[1].ID)
		assert.Equal(t, "entry-2", entries[2].ID)
		assert.Equal(t, "4", entries[0].Details["n"])
		assert.Equal(t, moderation.AuditActionApprove, entries[0].Action)
	})

	t.Run("empty", func(t *testing.T) {
		store := newStore(t)
		entries, err := store.ListAuditLog(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}
