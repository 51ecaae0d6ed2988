package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		// Exact routes (no normalization needed)
		{"/", "/"},
		{"/metrics", "/metrics"},
		{"/healthz", "/healthz"},
		{"/api/audit", "/api/audit"},
		{"/api/posts", "/api/posts"},
		{"/api/ws/queue", "/api/ws/queue"},

		// Single id routes
		{"/api/report/3jzfcijpj2z2a", "/api/report/:id"},
		{"/api/cases/3jzfcijpj2z2a", "/api/cases/:id"},
		{"/api/content/abc", "/api/content/:id"},
		{"/api/posts/abc", "/api/posts/:id"},
		{"/api/comments/abc", "/api/comments/:id"},
		{"/api/edits/abc", "/api/edits/:id"},
		{"/api/accounts/alice", "/api/accounts/:id"},
		{"/api/timeouts/alice", "/api/timeouts/:user"},

		// Queues
		{"/api/count/report/spam", "/api/count/report/:tag"},
		{"/api/blocked/posts/spam", "/api/blocked/posts/:tag"},
		{"/api/blocked/comments/spam", "/api/blocked/comments/:tag"},

		// Tags
		{"/api/tags/abc", "/api/tags/:id"},
		{"/api/tags/spam/abc", "/api/tags/:tag/:id"},

		// Resolution
		{"/api/post/approve/abc", "/api/post/approve/:id"},
		{"/api/comment/reject/abc", "/api/comment/reject/:id"},
		{"/api/edit/approve/abc", "/api/edit/approve/:id"},
		{"/api/post/other/abc", "/api/post/other/abc"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizePath(tt.input))
		})
	}
}

func TestCollect(t *testing.T) {
	ctx := context.Background()

	t.Run("sets gauges from source", func(t *testing.T) {
		collect(ctx, StatsSource{
			ActiveTimeoutCount: func(context.Context) (int, error) { return 4, nil },
			PendingByTag: func(context.Context) (map[string]int, error) {
				return map[string]int{"spam": 2, "nsfw": 1}, nil
			},
			ContentByKind: func(context.Context) (map[string]int, error) {
				return map[string]int{"post": 7}, nil
			},
		})

		assert.Equal(t, float64(4), testutil.ToFloat64(ActiveTimeouts))
		assert.Equal(t, float64(2), testutil.ToFloat64(PendingCasesByTag.WithLabelValues("spam")))
		assert.Equal(t, float64(1), testutil.ToFloat64(PendingCasesByTag.WithLabelValues("nsfw")))
		assert.Equal(t, float64(7), testutil.ToFloat64(ContentItemsByKind.WithLabelValues("post")))
	})

	t.Run("failing source keeps previous value", func(t *testing.T) {
		ActiveTimeouts.Set(9)
		collect(ctx, StatsSource{
			ActiveTimeoutCount: func(context.Context) (int, error) { return 0, errors.New("boom") },
		})
		assert.Equal(t, float64(9), testutil.ToFloat64(ActiveTimeouts))
	})

	t.Run("nil functions are skipped", func(t *testing.T) {
		assert.NotPanics(t, func() { collect(ctx, StatsSource{}) })
	})
}
