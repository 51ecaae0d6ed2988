package moderation_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"modgate/internal/database"
	"modgate/internal/database/boltstore"
	"modgate/internal/database/sqlitestore"
	"modgate/internal/models"
	"modgate/internal/moderation"

	"github.com/stretchr/testify/require"
)

const reviewer = "vera"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recorder struct {
	mu     sync.Mutex
	events []moderation.Event
}

func (r *recorder) Publish(ev moderation.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) types() []moderation.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]moderation.EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func newBoltStore(t *testing.T) *boltstore.ModerationStore {
	t.Helper()
	store, err := boltstore.Open(boltstore.Options{Path: filepath.Join(t.TempDir(), "mod.db")})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store.ModerationStore()
}

type fixture struct {
	ctx     context.Context
	clock   *fakeClock
	store   *boltstore.ModerationStore
	content *database.MockContentStore
	events  *recorder
	coord   *moderation.Coordinator
}

func newFixture(t *testing.T, threshold int) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := sqlitestore.Open(ctx, filepath.Join(t.TempDir(), "content.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	content, err := sqlitestore.NewContentStore(ctx, db)
	require.NoError(t, err)

	f := &fixture{
		ctx:     ctx,
		clock:   newFakeClock(),
		store:   newBoltStore(t),
		content: &database.MockContentStore{Base: content},
		events:  &recorder{},
	}
	policy := moderation.Policy{
		ReportThreshold:    threshold,
		RejectSuspension:   24 * time.Hour,
		NewAccountCooldown: time.Minute,
	}
	f.coord = moderation.NewCoordinator(f.store, f.content, moderation.NewStaticRegistry(reviewer), policy,
		moderation.WithClock(f.clock.Now),
		moderation.WithNotifier(f.events),
	)
	return f
}

func (f *fixture) post(t *testing.T, author string) string {
	t.Helper()
	item := &models.Item{Kind: models.KindPost, AuthorID: author, Body: "post by " + author}
	require.NoError(t, f.content.Create(f.ctx, item))
	return item.ID
}

func (f *fixture) child(t *testing.T, kind, author, parent string) string {
	t.Helper()
	item := &models.Item{Kind: kind, AuthorID: author, ParentID: parent, Body: kind + " by " + author}
	require.NoError(t, f.content.Create(f.ctx, item))
	return item.ID
}

func (f *fixture) report(t *testing.T, target string, reporters ...string) {
	t.Helper()
	for _, r := range reporters {
		_, err := f.coord.ReportTarget(f.ctx, r, target)
		require.NoError(t, err)
	}
}
