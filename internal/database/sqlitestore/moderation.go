package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"modgate/internal/moderation"
)

// ModerationStore implements moderation.Store using SQLite.
// It shares the database connection with the ContentStore.
type ModerationStore struct {
	db *sql.DB
}

// NewModerationStore creates a ModerationStore backed by the given database.
// The database must already have the moderation schema applied.
func NewModerationStore(db *sql.DB) *ModerationStore {
	return &ModerationStore{db: db}
}

// Ensure ModerationStore implements the interface at compile time.
var _ moderation.Store = (*ModerationStore)(nil)

// inTx runs fn in a transaction and commits if it returns nil.
func (s *ModerationStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ========== Reports ==========

func (s *ModerationStore) CreateReport(ctx context.Context, report moderation.Report) (int, error) {
	var count int
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO moderation_reports (id, reporter_id, target_id, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(target_id, reporter_id) DO NOTHING
		`, report.ID, report.ReporterID, report.TargetID, formatTime(report.CreatedAt))
		if err != nil {
			return fmt.Errorf("create report: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return moderation.ErrAlreadyReported
		}
		return tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM moderation_reports WHERE target_id = ?`, report.TargetID,
		).Scan(&count)
	})
	return count, err
}

func (s *ModerationStore) DeleteReport(ctx context.Context, reporterID, targetID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM moderation_reports WHERE reporter_id = ? AND target_id = ?
	`, reporterID, targetID)
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return moderation.ErrNotFound
	}
	return nil
}

func (s *ModerationStore) CountReports(ctx context.Context, targetID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM moderation_reports WHERE target_id = ?`, targetID).Scan(&count)
	return count, err
}

func (s *ModerationStore) ListReports(ctx context.Context, targetID string) ([]moderation.Report, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, reporter_id, target_id, created_at
		FROM moderation_reports WHERE target_id = ? ORDER BY created_at, reporter_id
	`, targetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReports(rows)
}

func (s *ModerationStore) DeleteReportsForTarget(ctx context.Context, targetID string) ([]moderation.Report, error) {
	var removed []moderation.Report
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id, reporter_id, target_id, created_at
			FROM moderation_reports WHERE target_id = ?
		`, targetID)
		if err != nil {
			return err
		}
		removed, err = scanReports(rows)
		rows.Close()
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM moderation_reports WHERE target_id = ?`, targetID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("delete reports: %w", err)
	}
	return removed, nil
}

func scanReports(rows *sql.Rows) ([]moderation.Report, error) {
	var reports []moderation.Report
	for rows.Next() {
		var r moderation.Report
		var createdAtStr string
		if err := rows.Scan(&r.ID, &r.ReporterID, &r.TargetID, &createdAtStr); err != nil {
			return nil, err
		}
		r.CreatedAt = parseTime(createdAtStr)
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// ========== Timeouts ==========

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getTimeout(ctx context.Context, q queryer, userID string) (*moderation.Timeout, error) {
	var t moderation.Timeout
	var expiresAtStr, createdAtStr string
	err := q.QueryRowContext(ctx, `
		SELECT user_id, expires_at, reason, imposed_by, created_at
		FROM moderation_timeouts WHERE user_id = ?
	`, userID).Scan(&t.UserID, &expiresAtStr, &t.Reason, &t.ImposedBy, &createdAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t.ExpiresAt = parseTime(expiresAtStr)
	t.CreatedAt = parseTime(createdAtStr)
	return &t, nil
}

func upsertTimeout(ctx context.Context, tx *sql.Tx, t moderation.Timeout) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO moderation_timeouts (user_id, expires_at, reason, imposed_by, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			expires_at = excluded.expires_at,
			reason     = excluded.reason,
			imposed_by = excluded.imposed_by,
			created_at = excluded.created_at
	`, t.UserID, formatTime(t.ExpiresAt), t.Reason, t.ImposedBy, formatTime(t.CreatedAt))
	return err
}

func (s *ModerationStore) GetTimeout(ctx context.Context, userID string) (*moderation.Timeout, error) {
	return getTimeout(ctx, s.db, userID)
}

func (s *ModerationStore) PutTimeout(ctx context.Context, t moderation.Timeout, now time.Time) (*moderation.Timeout, error) {
	var prev *moderation.Timeout
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		prev, err = getTimeout(ctx, tx, t.UserID)
		if err != nil {
			return err
		}
		if prev.ActiveAt(now) {
			return moderation.ErrAlreadySuspended
		}
		return upsertTimeout(ctx, tx, t)
	})
	if err != nil && !errors.Is(err, moderation.ErrAlreadySuspended) {
		return nil, fmt.Errorf("put timeout: %w", err)
	}
	return prev, err
}

func (s *ModerationStore) ReplaceTimeout(ctx context.Context, t moderation.Timeout) (*moderation.Timeout, error) {
	var prev *moderation.Timeout
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		prev, err = getTimeout(ctx, tx, t.UserID)
		if err != nil {
			return err
		}
		return upsertTimeout(ctx, tx, t)
	})
	if err != nil {
		return nil, fmt.Errorf("replace timeout: %w", err)
	}
	return prev, nil
}

func (s *ModerationStore) DeleteTimeout(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM moderation_timeouts WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("delete timeout: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return moderation.ErrNotFound
	}
	return nil
}

func (s *ModerationStore) DeleteExpiredTimeout(ctx context.Context, userID string, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM moderation_timeouts WHERE user_id = ? AND expires_at <= ?
	`, userID, formatTime(now))
	if err != nil {
		return false, fmt.Errorf("reap timeout: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *ModerationStore) ListTimeouts(ctx context.Context) ([]moderation.Timeout, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, expires_at, reason, imposed_by, created_at
		FROM moderation_timeouts ORDER BY expires_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var timeouts []moderation.Timeout
	for rows.Next() {
		var t moderation.Timeout
		var expiresAtStr, createdAtStr string
		if err := rows.Scan(&t.UserID, &expiresAtStr, &t.Reason, &t.ImposedBy, &createdAtStr); err != nil {
			continue
		}
		t.ExpiresAt = parseTime(expiresAtStr)
		t.CreatedAt = parseTime(createdAtStr)
		timeouts = append(timeouts, t)
	}
	return timeouts, rows.Err()
}

// ========== Tags ==========

func (s *ModerationStore) AddTag(ctx context.Context, tag moderation.Tag) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO moderation_tags (tag, target_id, created_at) VALUES (?, ?, ?)
		ON CONFLICT(tag, target_id) DO NOTHING
	`, tag.Tag, tag.TargetID, formatTime(tag.CreatedAt))
	if err != nil {
		return fmt.Errorf("add tag: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return moderation.ErrDuplicateTag
	}
	return nil
}

func (s *ModerationStore) RemoveTag(ctx context.Context, tag, targetID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM moderation_tags WHERE tag = ? AND target_id = ?`, tag, targetID)
	if err != nil {
		return fmt.Errorf("remove tag: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return moderation.ErrNotFound
	}
	return nil
}

func (s *ModerationStore) TagsForTarget(ctx context.Context, targetID string) ([]moderation.Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tag, target_id, created_at FROM moderation_tags WHERE target_id = ? ORDER BY tag
	`, targetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTags(rows)
}

func (s *ModerationStore) TargetsWithTag(ctx context.Context, tag string) ([]string, error) {
	return s.strings(ctx, `SELECT target_id FROM moderation_tags WHERE tag = ? ORDER BY target_id`, tag)
}

func (s *ModerationStore) ListTags(ctx context.Context) ([]string, error) {
	return s.strings(ctx, `SELECT DISTINCT tag FROM moderation_tags ORDER BY tag`)
}

func (s *ModerationStore) RemoveTagsForTarget(ctx context.Context, targetID string) ([]moderation.Tag, error) {
	var removed []moderation.Tag
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT tag, target_id, created_at FROM moderation_tags WHERE target_id = ?
		`, targetID)
		if err != nil {
			return err
		}
		removed, err = scanTags(rows)
		rows.Close()
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM moderation_tags WHERE target_id = ?`, targetID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("remove tags: %w", err)
	}
	return removed, nil
}

func scanTags(rows *sql.Rows) ([]moderation.Tag, error) {
	var tags []moderation.Tag
	for rows.Next() {
		var t moderation.Tag
		var createdAtStr string
		if err := rows.Scan(&t.Tag, &t.TargetID, &createdAtStr); err != nil {
			return nil, err
		}
		t.CreatedAt = parseTime(createdAtStr)
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

func (s *ModerationStore) strings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ========== Audit Log ==========

func (s *ModerationStore) LogAction(ctx context.Context, entry moderation.AuditEntry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		details = []byte("{}")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO moderation_audit_log (id, action, actor_id, target_id, reason, details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, string(entry.Action), entry.ActorID, entry.TargetID, entry.Reason,
		string(details), formatTime(entry.Timestamp))
	if err != nil {
		return fmt.Errorf("log action: %w", err)
	}
	return nil
}

func (s *ModerationStore) ListAuditLog(ctx context.Context, limit int) ([]moderation.AuditEntry, error) {
	if limit <= 0 {
		limit = -1 // no limit in SQLite
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, action, actor_id, target_id, reason, details, timestamp
		FROM moderation_audit_log ORDER BY timestamp DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []moderation.AuditEntry
	for rows.Next() {
		var e moderation.AuditEntry
		var timestampStr, detailsStr string
		if err := rows.Scan(&e.ID, &e.Action, &e.ActorID, &e.TargetID, &e.Reason,
			&detailsStr, &timestampStr); err != nil {
			continue
		}
		e.Timestamp = parseTime(timestampStr)
		_ = json.Unmarshal([]byte(detailsStr), &e.Details)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
