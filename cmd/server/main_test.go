package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"modgate/internal/config"
	"modgate/internal/database/redisstore"
	"modgate/internal/database/sqlitestore"
	"modgate/internal/moderation"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLogging(t *testing.T) {
	originalLogger := log.Logger
	originalLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = originalLogger
		zerolog.SetGlobalLevel(originalLevel)
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		setupLogging("warn", "json", &buf)

		log.Info().Msg("hidden")
		log.Warn().Str("user", "ana").Msg("shown")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "shown", entry["message"])
		assert.Equal(t, "ana", entry["user"])
		assert.Contains(t, entry, "time")
	})

	t.Run("unknown level defaults to info", func(t *testing.T) {
		var buf bytes.Buffer
		setupLogging("loud", "console", &buf)
		assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())

		log.Info().Msg("console line")
		assert.Contains(t, buf.String(), "console line")
	})
}

func testConfig(t *testing.T, backend string) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		Backend:       backend,
		DBPath:        filepath.Join(dir, "mod.db"),
		ContentDBPath: filepath.Join(dir, "content.sqlite"),
		Policy:        moderation.DefaultPolicy(),
	}
}

func TestOpenStores(t *testing.T) {
	ctx := context.Background()

	for _, backend := range []string{config.BackendBolt, config.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			st, err := openStores(ctx, testConfig(t, backend))
			require.NoError(t, err)
			defer st.Close()

			assert.Nil(t, st.timeouts)
			if backend == config.BackendSQLite {
				assert.IsType(t, &sqlitestore.ModerationStore{}, st.moderation)
			}

			_, err = st.moderation.CreateReport(ctx, moderation.Report{
				ID: moderation.NewTID(), ReporterID: "bob", TargetID: "p1", CreatedAt: time.Now(),
			})
			assert.NoError(t, err)
		})
	}
}

func TestOpenStores_Redis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	cfg := testConfig(t, config.BackendBolt)
	cfg.RedisURL = "redis://" + mr.Addr() + "/0"

	st, err := openStores(ctx, cfg)
	require.NoError(t, err)
	defer st.Close()
	require.IsType(t, &redisstore.TimeoutStore{}, st.timeouts)

	guard := moderation.NewGuard(st.timeouts, nil)
	_, err = guard.Impose(ctx, "ana", time.Hour, "test", "vera")
	require.NoError(t, err)
	assert.True(t, mr.Exists(redisstore.DefaultKeyPrefix+"ana"))
}

func TestOpenStores_BadRedis(t *testing.T) {
	cfg := testConfig(t, config.BackendBolt)
	cfg.RedisURL = "not a url"

	_, err := openStores(context.Background(), cfg)
	assert.Error(t, err)
}
