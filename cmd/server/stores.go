package main

import (
	"context"
	"fmt"

	"modgate/internal/config"
	"modgate/internal/database/boltstore"
	"modgate/internal/database/redisstore"
	"modgate/internal/database/sqlitestore"
	"modgate/internal/moderation"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// stores holds the opened persistence backends.
type stores struct {
	moderation moderation.Store
	// timeouts is set when suspensions live in Redis.
	timeouts moderation.TimeoutStore
	content  *sqlitestore.ContentStore

	closers []func() error
}

// openStores opens the content database, the moderation backend selected by
// cfg and, when configured, the Redis timeout store.
func openStores(ctx context.Context, cfg *config.Config) (st *stores, err error) {
	st = &stores{}
	defer func() {
		if err != nil {
			st.Close()
		}
	}()

	db, err := sqlitestore.Open(ctx, cfg.ContentDBPath)
	if err != nil {
		return nil, fmt.Errorf("open content database: %w", err)
	}
	st.closers = append(st.closers, db.Close)

	if st.content, err = sqlitestore.NewContentStore(ctx, db); err != nil {
		return nil, err
	}
	log.Info().Str("path", cfg.ContentDBPath).Msg("Content database opened")

	switch cfg.Backend {
	case config.BackendSQLite:
		st.moderation = sqlitestore.NewModerationStore(db)
		log.Info().Str("path", cfg.ContentDBPath).Msg("Moderation state stored in SQLite")
	default:
		opts := boltstore.DefaultOptions()
		opts.Path = cfg.DBPath
		bolt, err := boltstore.Open(opts)
		if err != nil {
			return nil, fmt.Errorf("open bolt database: %w", err)
		}
		st.closers = append(st.closers, bolt.Close)
		st.moderation = bolt.ModerationStore()
		log.Info().Str("path", cfg.DBPath).Msg("Moderation state stored in BoltDB")
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		st.closers = append(st.closers, client.Close)

		ts := redisstore.NewTimeoutStore(client, redisstore.Options{})
		if err := ts.Ping(ctx); err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		st.timeouts = ts
		log.Info().Str("addr", opts.Addr).Msg("Timeouts stored in Redis")
	}

	return st, nil
}

// Close releases every backend in reverse order of opening.
func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			log.Warn().Err(err).Msg("Failed to close store")
		}
	}
	s.closers = nil
}
