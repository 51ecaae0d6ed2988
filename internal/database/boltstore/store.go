// Package boltstore provides persistent storage using BoltDB (bbolt).
// It implements moderation.Store: reports, timeouts, tags and the audit log.
package boltstore

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names for organizing data
var (
	// BucketReports stores reports keyed by "targetID\x00reporterID"
	BucketReports = []byte("moderation_reports")

	// BucketTimeouts stores one timeout per user keyed by user ID
	BucketTimeouts = []byte("moderation_timeouts")

	// BucketTagsByTarget stores tags keyed by "targetID\x00tag"
	BucketTagsByTarget = []byte("moderation_tags_by_target")

	// BucketTargetsByTag indexes tagged targets keyed by "tag\x00targetID"
	BucketTargetsByTag = []byte("moderation_targets_by_tag")

	// BucketAuditLog stores moderation action audit trail
	BucketAuditLog = []byte("moderation_audit_log")
)

// Store wraps a BoltDB database and provides access to specialized stores.
type Store struct {
	db *bolt.DB
}

// Options configures the BoltDB store.
type Options struct {
	// Path to the database file. Parent directories will be created if needed.
	Path string

	// Timeout for obtaining a file lock on the database.
	// If zero, a default of 5 seconds is used.
	Timeout time.Duration

	// FileMode for creating the database file.
	// If zero, 0600 is used.
	FileMode os.FileMode
}

// DefaultOptions returns sensible defaults for development.
func DefaultOptions() Options {
	return Options{
		Path:     "modgate.db",
		Timeout:  5 * time.Second,
		FileMode: 0600,
	}
}

// Open creates or opens a BoltDB database at the specified path.
// It creates all necessary buckets if they don't exist.
func Open(opts Options) (*Store, error) {
	defaults := DefaultOptions()
	if opts.Path == "" {
		opts.Path = defaults.Path
	}
	if opts.Timeout == 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.FileMode == 0 {
		opts.FileMode = defaults.FileMode
	}

	// Ensure parent directory exists
	dir := filepath.Dir(opts.Path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Open the database
	db, err := bolt.Open(opts.Path, opts.FileMode, &bolt.Options{
		Timeout: opts.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets if they don't exist
	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			BucketReports,
			BucketTimeouts,
			BucketTagsByTarget,
			BucketTargetsByTag,
			BucketAuditLog,
		}

		for _, bucket := range buckets {
			_, err := tx.CreateBucketIfNotExists(bucket)
			if err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}

		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB returns the underlying BoltDB instance for advanced operations.
func (s *Store) DB() *bolt.DB {
	return s.db
}

// ModerationStore returns a moderation store backed by this database.
func (s *Store) ModerationStore() *ModerationStore {
	return &ModerationStore{db: s.db}
}
