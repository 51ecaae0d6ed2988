package moderation_test

import (
	"context"
	"testing"
	"time"

	"modgate/internal/moderation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_LazyExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newBoltStore(t)
	guard := moderation.NewGuard(store, clock.Now)

	_, err := guard.Impose(ctx, "alice", 60*time.Second, "test", reviewer)
	require.NoError(t, err)

	suspended, err := guard.IsSuspended(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, suspended)

	_, err = guard.Impose(ctx, "alice", time.Hour, "again", reviewer)
	assert.ErrorIs(t, err, moderation.ErrAlreadySuspended)

	clock.Advance(61 * time.Second)

	// The stale row is still stored until something touches it
	raw, err := store.GetTimeout(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, raw)

	suspended, err = guard.IsSuspended(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, suspended)

	raw, err = store.GetTimeout(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, raw, "expired record is reaped on touch")

	_, err = guard.Impose(ctx, "alice", 30*time.Second, "fresh", reviewer)
	assert.NoError(t, err)
}

func TestGuard_ExpiryBoundary(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	guard := moderation.NewGuard(newBoltStore(t), clock.Now)

	_, err := guard.Impose(ctx, "alice", time.Minute, "", reviewer)
	require.NoError(t, err)

	clock.Advance(time.Minute - time.Nanosecond)
	suspended, err := guard.IsSuspended(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, suspended)

	clock.Advance(time.Nanosecond)
	suspended, err = guard.IsSuspended(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, suspended, "active only while now < expiresAt")
}

func TestGuard_Guard(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	guard := moderation.NewGuard(newBoltStore(t), clock.Now)

	assert.NoError(t, guard.Guard(ctx, "alice"))

	imposed, err := guard.Impose(ctx, "alice", time.Hour, "", reviewer)
	require.NoError(t, err)

	err = guard.Guard(ctx, "alice")
	require.ErrorIs(t, err, moderation.ErrUserSuspended)
	var suspended *moderation.SuspendedError
	require.ErrorAs(t, err, &suspended)
	assert.Equal(t, "alice", suspended.UserID)
	assert.True(t, suspended.Until.Equal(imposed.ExpiresAt))

	clock.Advance(time.Hour)
	assert.NoError(t, guard.Guard(ctx, "alice"))
}

func TestGuard_Release(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	guard := moderation.NewGuard(newBoltStore(t), clock.Now)

	assert.ErrorIs(t, guard.Release(ctx, "alice"), moderation.ErrNotSuspended)

	_, err := guard.Impose(ctx, "alice", time.Hour, "", reviewer)
	require.NoError(t, err)
	require.NoError(t, guard.Release(ctx, "alice"))
	assert.NoError(t, guard.Guard(ctx, "alice"))

	t.Run("release works on an expired record", func(t *testing.T) {
		_, err := guard.Impose(ctx, "bob", time.Second, "", reviewer)
		require.NoError(t, err)
		clock.Advance(time.Minute)
		assert.NoError(t, guard.Release(ctx, "bob"))
	})
}

func TestGuard_EscalateAndRestore(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newBoltStore(t)
	guard := moderation.NewGuard(store, clock.Now)

	t.Run("free user", func(t *testing.T) {
		prev, err := guard.Escalate(ctx, "alice", time.Hour, moderation.ReasonRejected, reviewer)
		require.NoError(t, err)
		assert.Nil(t, prev)

		status, err := guard.Status(ctx, "alice")
		require.NoError(t, err)
		require.NotNil(t, status)
		assert.True(t, status.ExpiresAt.Equal(clock.Now().Add(time.Hour)))

		require.NoError(t, guard.Restore(ctx, "alice", prev))
		status, err = guard.Status(ctx, "alice")
		require.NoError(t, err)
		assert.Nil(t, status)
	})

	t.Run("shorter suspension is extended", func(t *testing.T) {
		short, err := guard.Impose(ctx, "bob", time.Minute, "cooldown", moderation.SystemActor)
		require.NoError(t, err)

		prev, err := guard.Escalate(ctx, "bob", time.Hour, moderation.ReasonRejected, reviewer)
		require.NoError(t, err)
		require.NotNil(t, prev)
		assert.True(t, prev.ExpiresAt.Equal(short.ExpiresAt))

		status, err := guard.Status(ctx, "bob")
		require.NoError(t, err)
		assert.True(t, status.ExpiresAt.Equal(clock.Now().Add(time.Hour)))

		require.NoError(t, guard.Restore(ctx, "bob", prev))
		status, err = guard.Status(ctx, "bob")
		require.NoError(t, err)
		assert.True(t, status.ExpiresAt.Equal(short.ExpiresAt))
		assert.Equal(t, "cooldown", status.Reason)
	})

	t.Run("longer suspension is kept", func(t *testing.T) {
		long, err := guard.Impose(ctx, "carol", 48*time.Hour, "manual", reviewer)
		require.NoError(t, err)

		_, err = guard.Escalate(ctx, "carol", time.Hour, moderation.ReasonRejected, reviewer)
		require.NoError(t, err)

		status, err := guard.Status(ctx, "carol")
		require.NoError(t, err)
		assert.True(t, status.ExpiresAt.Equal(long.ExpiresAt))
	})
}

func TestGuard_Active(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	guard := moderation.NewGuard(newBoltStore(t), clock.Now)

	_, err := guard.Impose(ctx, "alice", time.Minute, "", reviewer)
	require.NoError(t, err)
	_, err = guard.Impose(ctx, "bob", time.Hour, "", reviewer)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)

	active, err := guard.Active(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "bob", active[0].UserID)
}
