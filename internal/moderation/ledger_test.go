package moderation_test

import (
	"context"
	"testing"

	"modgate/internal/moderation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_SubmitWithdraw(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	ledger := moderation.NewLedger(newBoltStore(t), clock.Now)

	report, count, err := ledger.Submit(ctx, "alice", "post-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.NotEmpty(t, report.ID)
	assert.Equal(t, "alice", report.ReporterID)
	assert.Equal(t, "post-1", report.TargetID)
	assert.True(t, report.CreatedAt.Equal(clock.Now()))

	_, _, err = ledger.Submit(ctx, "alice", "post-1")
	assert.ErrorIs(t, err, moderation.ErrAlreadyReported)

	require.NoError(t, ledger.Withdraw(ctx, "alice", "post-1"))
	assert.ErrorIs(t, ledger.Withdraw(ctx, "alice", "post-1"), moderation.ErrNotFound)

	_, count, err = ledger.Submit(ctx, "alice", "post-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestLedger_CountForDistinctReporters(t *testing.T) {
	ctx := context.Background()
	ledger := moderation.NewLedger(newBoltStore(t), nil)

	count, err := ledger.CountFor(ctx, "post-1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	for i, r := range []string{"alice", "bob", "carol"} {
		_, n, err := ledger.Submit(ctx, r, "post-1")
		require.NoError(t, err)
		assert.Equal(t, i+1, n)
	}
	// A repeated reporter does not move the count
	_, _, err = ledger.Submit(ctx, "bob", "post-1")
	require.ErrorIs(t, err, moderation.ErrAlreadyReported)

	count, err = ledger.CountFor(ctx, "post-1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	reports, err := ledger.ReportsFor(ctx, "post-1")
	require.NoError(t, err)
	assert.Len(t, reports, 3)
}

func TestLedger_ClearAllIsIdempotent(t *testing.T) {
	ctx := context.Background()
	ledger := moderation.NewLedger(newBoltStore(t), nil)

	for _, r := range []string{"alice", "bob"} {
		_, _, err := ledger.Submit(ctx, r, "post-1")
		require.NoError(t, err)
	}

	removed, err := ledger.ClearAll(ctx, "post-1")
	require.NoError(t, err)
	assert.Len(t, removed, 2)

	removed, err = ledger.ClearAll(ctx, "post-1")
	require.NoError(t, err)
	assert.Empty(t, removed)

	count, err := ledger.CountFor(ctx, "post-1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestNewTID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		id := moderation.NewTID()
		assert.Len(t, id, 13)
		assert.False(t, seen[id])
		seen[id] = true
	}
}
