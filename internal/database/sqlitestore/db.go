// Package sqlitestore provides SQLite-backed store implementations.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/XSAM/otelsql"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	_ "modernc.org/sqlite"
)

// timeFormat is fixed-width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeFormat, s)
	return t
}

const schema = `
CREATE TABLE IF NOT EXISTS moderation_reports (
	id          TEXT PRIMARY KEY,
	reporter_id TEXT NOT NULL,
	target_id   TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	UNIQUE (target_id, reporter_id)
);

CREATE TABLE IF NOT EXISTS moderation_timeouts (
	user_id    TEXT PRIMARY KEY,
	expires_at TEXT NOT NULL,
	reason     TEXT NOT NULL DEFAULT '',
	imposed_by TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS moderation_tags (
	tag        TEXT NOT NULL,
	target_id  TEXT NOT NULL,
	created_at TEXT NOT NULL,
	PRIMARY KEY (tag, target_id)
);
CREATE INDEX IF NOT EXISTS idx_moderation_tags_target ON moderation_tags(target_id);

CREATE TABLE IF NOT EXISTS moderation_audit_log (
	id        TEXT PRIMARY KEY,
	action    TEXT NOT NULL,
	actor_id  TEXT NOT NULL,
	target_id TEXT NOT NULL,
	reason    TEXT NOT NULL DEFAULT '',
	details   TEXT NOT NULL DEFAULT '{}',
	timestamp TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_moderation_audit_timestamp ON moderation_audit_log(timestamp);
`

// Open opens (creating if needed) the SQLite database at path with tracing
// enabled and the moderation schema applied.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := otelsql.Open("sqlite", dsn, otelsql.WithAttributes(semconv.DBSystemSqlite))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// One connection: every transaction in this package is serialised.
	// Never query db while holding a transaction.
	db.SetMaxOpenConns(1)

	if err := ApplySchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// ApplySchema creates the moderation tables if they do not exist.
func ApplySchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
