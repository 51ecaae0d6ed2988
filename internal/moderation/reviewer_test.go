package moderation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeReviewerConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reviewers.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestNewRegistry_NoConfig(t *testing.T) {
	// Registry works in disabled mode with an empty config path
	reg, err := NewRegistry("")
	require.NoError(t, err)
	assert.NotNil(t, reg)
	assert.False(t, reg.IsVerified("alice"))
	assert.Empty(t, reg.ListReviewers())
}

func TestNewRegistry_MissingFile(t *testing.T) {
	reg, err := NewRegistry("/nonexistent/path/reviewers.json")
	require.NoError(t, err)
	assert.False(t, reg.IsVerified("alice"))
}

func TestNewRegistry_InvalidJSON(t *testing.T) {
	path := writeReviewerConfig(t, "not valid json")

	_, err := NewRegistry(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestNewRegistry_ValidConfig(t *testing.T) {
	path := writeReviewerConfig(t, `{
		"reviewers": [
			{"id": "vera", "handle": "vera.example", "note": "lead"},
			{"id": "victor"}
		]
	}`)

	reg, err := NewRegistry(path)
	require.NoError(t, err)

	assert.True(t, reg.IsVerified("vera"))
	assert.True(t, reg.IsVerified("victor"))
	assert.False(t, reg.IsVerified("mallory"))
	assert.False(t, reg.IsVerified(""))
	assert.Len(t, reg.ListReviewers(), 2)
}

func TestReviewerConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  ReviewerConfig
		wantErr string
	}{
		{
			name:   "empty list",
			config: ReviewerConfig{},
		},
		{
			name:    "empty id",
			config:  ReviewerConfig{Reviewers: []ReviewerUser{{ID: ""}}},
			wantErr: "empty id",
		},
		{
			name:    "duplicate id",
			config:  ReviewerConfig{Reviewers: []ReviewerUser{{ID: "a"}, {ID: "a"}}},
			wantErr: "duplicate reviewer id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRegistry_Reload(t *testing.T) {
	path := writeReviewerConfig(t, `{"reviewers":[{"id":"vera"}]}`)

	reg, err := NewRegistry(path)
	require.NoError(t, err)
	assert.True(t, reg.IsVerified("vera"))
	assert.False(t, reg.IsVerified("victor"))

	require.NoError(t, os.WriteFile(path, []byte(`{"reviewers":[{"id":"victor"}]}`), 0644))
	require.NoError(t, reg.Reload())

	assert.False(t, reg.IsVerified("vera"))
	assert.True(t, reg.IsVerified("victor"))

	t.Run("bad file keeps previous list", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte(`{"reviewers":[{"id":""}]}`), 0644))
		assert.Error(t, reg.Reload())
		assert.True(t, reg.IsVerified("victor"))
	})
}

func TestReviewer_EnsureVerified(t *testing.T) {
	r := NewReviewer(NewStaticRegistry("vera"))

	assert.NoError(t, r.EnsureVerified("vera"))
	assert.ErrorIs(t, r.EnsureVerified("mallory"), ErrNotVerified)
	assert.ErrorIs(t, r.EnsureVerified(""), ErrNotVerified)

	assert.ErrorIs(t, NewReviewer(nil).EnsureVerified("vera"), ErrNotVerified)
}
