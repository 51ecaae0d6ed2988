// Package redisstore keeps user timeouts in Redis so several service
// instances share one view of who is suspended.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"modgate/internal/moderation"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultKeyPrefix namespaces timeout keys.
	DefaultKeyPrefix = "modgate:timeout:"

	// DefaultGrace is added to a record's remaining lifetime when setting its
	// Redis TTL. Expiry is still decided by the caller's clock.
	DefaultGrace = time.Hour

	maxWatchRetries = 10
)

// ErrConflict is returned when optimistic transactions keep losing races.
var ErrConflict = errors.New("redis: too many concurrent updates")

// TimeoutStore implements moderation.TimeoutStore on Redis. Check-and-set
// operations use WATCH/MULTI on the user's key.
type TimeoutStore struct {
	client redis.UniversalClient
	prefix string
	grace  time.Duration
}

var _ moderation.TimeoutStore = (*TimeoutStore)(nil)

// Options configures a TimeoutStore.
type Options struct {
	KeyPrefix string
	Grace     time.Duration
}

// NewTimeoutStore wraps a Redis client.
func NewTimeoutStore(client redis.UniversalClient, opts Options) *TimeoutStore {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = DefaultKeyPrefix
	}
	if opts.Grace <= 0 {
		opts.Grace = DefaultGrace
	}
	return &TimeoutStore{client: client, prefix: opts.KeyPrefix, grace: opts.Grace}
}

func (s *TimeoutStore) key(userID string) string {
	return s.prefix + userID
}

// ttl keeps stale records around for a grace period so lazy reaping stays
// observable, then lets Redis reclaim them.
func (s *TimeoutStore) ttl(t moderation.Timeout, now time.Time) time.Duration {
	remaining := t.ExpiresAt.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return remaining + s.grace
}

func read(ctx context.Context, c redis.Cmdable, key string) (*moderation.Timeout, error) {
	data, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t := &moderation.Timeout{}
	if err := json.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("failed to unmarshal timeout: %w", err)
	}
	return t, nil
}

// watch runs fn under WATCH key, retrying when another client modified the key.
func (s *TimeoutStore) watch(ctx context.Context, key string, fn func(tx *redis.Tx) error) error {
	for range maxWatchRetries {
		err := s.client.Watch(ctx, fn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return ErrConflict
}

func (s *TimeoutStore) write(ctx context.Context, tx *redis.Tx, t moderation.Timeout, now time.Time) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal timeout: %w", err)
	}
	_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(t.UserID), payload, s.ttl(t, now))
		return nil
	})
	return err
}

func (s *TimeoutStore) GetTimeout(ctx context.Context, userID string) (*moderation.Timeout, error) {
	return read(ctx, s.client, s.key(userID))
}

func (s *TimeoutStore) PutTimeout(ctx context.Context, t moderation.Timeout, now time.Time) (*moderation.Timeout, error) {
	key := s.key(t.UserID)
	var prev *moderation.Timeout

	err := s.watch(ctx, key, func(tx *redis.Tx) error {
		var err error
		prev, err = read(ctx, tx, key)
		if err != nil {
			return err
		}
		if prev.ActiveAt(now) {
			return moderation.ErrAlreadySuspended
		}
		return s.write(ctx, tx, t, now)
	})
	if err != nil && !errors.Is(err, moderation.ErrAlreadySuspended) {
		return nil, fmt.Errorf("put timeout: %w", err)
	}
	return prev, err
}

func (s *TimeoutStore) ReplaceTimeout(ctx context.Context, t moderation.Timeout) (*moderation.Timeout, error) {
	key := s.key(t.UserID)
	var prev *moderation.Timeout

	err := s.watch(ctx, key, func(tx *redis.Tx) error {
		var err error
		prev, err = read(ctx, tx, key)
		if err != nil {
			return err
		}
		return s.write(ctx, tx, t, t.CreatedAt)
	})
	if err != nil {
		return nil, fmt.Errorf("replace timeout: %w", err)
	}
	return prev, nil
}

func (s *TimeoutStore) DeleteTimeout(ctx context.Context, userID string) error {
	n, err := s.client.Del(ctx, s.key(userID)).Result()
	if err != nil {
		return fmt.Errorf("delete timeout: %w", err)
	}
	if n == 0 {
		return moderation.ErrNotFound
	}
	return nil
}

func (s *TimeoutStore) DeleteExpiredTimeout(ctx context.Context, userID string, now time.Time) (bool, error) {
	key := s.key(userID)
	var deleted bool

	err := s.watch(ctx, key, func(tx *redis.Tx) error {
		t, err := read(ctx, tx, key)
		if err != nil || t == nil || t.ActiveAt(now) {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		deleted = err == nil
		return err
	})
	if err != nil {
		return false, fmt.Errorf("reap timeout: %w", err)
	}
	return deleted, nil
}

// ListTimeouts scans every timeout key. On a cluster client only the keys
// reachable through the client's SCAN are returned.
func (s *TimeoutStore) ListTimeouts(ctx context.Context) ([]moderation.Timeout, error) {
	var timeouts []moderation.Timeout

	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		t, err := read(ctx, s.client, iter.Val())
		if err != nil {
			return nil, err
		}
		if t != nil {
			timeouts = append(timeouts, *t)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan timeouts: %w", err)
	}
	return timeouts, nil
}

// Ping checks connectivity.
func (s *TimeoutStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
