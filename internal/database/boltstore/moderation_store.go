package boltstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"modgate/internal/moderation"

	bolt "go.etcd.io/bbolt"
)

// keySep joins the parts of composite keys. IDs never contain it.
const keySep = "\x00"

// ModerationStore provides persistent storage for moderation data.
// Every check-and-set runs inside a single bolt write transaction.
type ModerationStore struct {
	db *bolt.DB
}

var _ moderation.Store = (*ModerationStore)(nil)

func compositeKey(a, b string) []byte {
	return []byte(a + keySep + b)
}

func prefixKey(a string) []byte {
	return []byte(a + keySep)
}

func bucketOf(tx *bolt.Tx, name []byte) (*bolt.Bucket, error) {
	bucket := tx.Bucket(name)
	if bucket == nil {
		return nil, fmt.Errorf("bucket not found: %s", name)
	}
	return bucket, nil
}

// CreateReport stores a report unless the reporter already reported the target.
func (s *ModerationStore) CreateReport(ctx context.Context, report moderation.Report) (int, error) {
	var count int

	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket, err := bucketOf(tx, BucketReports)
		if err != nil {
			return err
		}

		key := compositeKey(report.TargetID, report.ReporterID)
		if bucket.Get(key) != nil {
			return moderation.ErrAlreadyReported
		}

		data, err := json.Marshal(report)
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		if err := bucket.Put(key, data); err != nil {
			return err
		}

		count = countPrefix(bucket, prefixKey(report.TargetID))
		return nil
	})

	return count, err
}

// DeleteReport removes the reporter's report on the target.
func (s *ModerationStore) DeleteReport(ctx context.Context, reporterID, targetID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket, err := bucketOf(tx, BucketReports)
		if err != nil {
			return err
		}

		key := compositeKey(targetID, reporterID)
		if bucket.Get(key) == nil {
			return moderation.ErrNotFound
		}
		return bucket.Delete(key)
	})
}

// CountReports returns the number of reports on a target.
func (s *ModerationStore) CountReports(ctx context.Context, targetID string) (int, error) {
	var count int

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketReports)
		if bucket == nil {
			return nil
		}
		count = countPrefix(bucket, prefixKey(targetID))
		return nil
	})

	return count, err
}

// ListReports returns the reports on a target ordered by reporter ID.
func (s *ModerationStore) ListReports(ctx context.Context, targetID string) ([]moderation.Report, error) {
	var reports []moderation.Report

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketReports)
		if bucket == nil {
			return nil
		}

		prefix := prefixKey(targetID)
		cursor := bucket.Cursor()
		for k, v := cursor.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = cursor.Next() {
			var report moderation.Report
			if err := json.Unmarshal(v, &report); err != nil {
				return fmt.Errorf("failed to unmarshal report: %w", err)
			}
			reports = append(reports, report)
		}
		return nil
	})

	return reports, err
}

// DeleteReportsForTarget removes and returns every report on a target.
func (s *ModerationStore) DeleteReportsForTarget(ctx context.Context, targetID string) ([]moderation.Report, error) {
	var removed []moderation.Report

	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket, err := bucketOf(tx, BucketReports)
		if err != nil {
			return err
		}

		prefix := prefixKey(targetID)
		var keys [][]byte
		cursor := bucket.Cursor()
		for k, v := cursor.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = cursor.Next() {
			var report moderation.Report
			if err := json.Unmarshal(v, &report); err != nil {
				return fmt.Errorf("failed to unmarshal report: %w", err)
			}
			removed = append(removed, report)
			keys = append(keys, bytes.Clone(k))
		}

		// Deleting while iterating a bolt cursor skips keys
		for _, k := range keys {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return removed, nil
}

func getTimeout(bucket *bolt.Bucket, userID string) (*moderation.Timeout, error) {
	data := bucket.Get([]byte(userID))
	if data == nil {
		return nil, nil
	}
	t := &moderation.Timeout{}
	if err := json.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("failed to unmarshal timeout: %w", err)
	}
	return t, nil
}

func putTimeout(bucket *bolt.Bucket, t moderation.Timeout) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal timeout: %w", err)
	}
	return bucket.Put([]byte(t.UserID), data)
}

// GetTimeout returns the user's timeout record, expired or not.
func (s *ModerationStore) GetTimeout(ctx context.Context, userID string) (*moderation.Timeout, error) {
	var t *moderation.Timeout

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketTimeouts)
		if bucket == nil {
			return nil
		}
		var err error
		t, err = getTimeout(bucket, userID)
		return err
	})

	return t, err
}

// PutTimeout writes t unless the user has a timeout active at now.
func (s *ModerationStore) PutTimeout(ctx context.Context, t moderation.Timeout, now time.Time) (*moderation.Timeout, error) {
	var prev *moderation.Timeout

	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket, err := bucketOf(tx, BucketTimeouts)
		if err != nil {
			return err
		}

		prev, err = getTimeout(bucket, t.UserID)
		if err != nil {
			return err
		}
		if prev.ActiveAt(now) {
			return moderation.ErrAlreadySuspended
		}
		return putTimeout(bucket, t)
	})

	return prev, err
}

// ReplaceTimeout writes t unconditionally.
func (s *ModerationStore) ReplaceTimeout(ctx context.Context, t moderation.Timeout) (*moderation.Timeout, error) {
	var prev *moderation.Timeout

	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket, err := bucketOf(tx, BucketTimeouts)
		if err != nil {
			return err
		}

		prev, err = getTimeout(bucket, t.UserID)
		if err != nil {
			return err
		}
		return putTimeout(bucket, t)
	})
	if err != nil {
		return nil, err
	}

	return prev, nil
}

// DeleteTimeout removes the user's timeout record.
func (s *ModerationStore) DeleteTimeout(ctx context.Context, userID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket, err := bucketOf(tx, BucketTimeouts)
		if err != nil {
			return err
		}
		if bucket.Get([]byte(userID)) == nil {
			return moderation.ErrNotFound
		}
		return bucket.Delete([]byte(userID))
	})
}

// DeleteExpiredTimeout removes the user's record only if it is not active at now.
func (s *ModerationStore) DeleteExpiredTimeout(ctx context.Context, userID string, now time.Time) (bool, error) {
	var deleted bool

	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket, err := bucketOf(tx, BucketTimeouts)
		if err != nil {
			return err
		}

		t, err := getTimeout(bucket, userID)
		if err != nil || t == nil || t.ActiveAt(now) {
			return err
		}
		deleted = true
		return bucket.Delete([]byte(userID))
	})

	return deleted, err
}

// ListTimeouts returns every stored timeout record.
func (s *ModerationStore) ListTimeouts(ctx context.Context) ([]moderation.Timeout, error) {
	var timeouts []moderation.Timeout

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketTimeouts)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var t moderation.Timeout
			if err := json.Unmarshal(v, &t); err != nil {
				return nil // Skip malformed entries
			}
			timeouts = append(timeouts, t)
			return nil
		})
	})

	return timeouts, err
}

// AddTag attaches a tag to a target, keeping both indexes in step.
func (s *ModerationStore) AddTag(ctx context.Context, tag moderation.Tag) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		byTarget, err := bucketOf(tx, BucketTagsByTarget)
		if err != nil {
			return err
		}
		byTag, err := bucketOf(tx, BucketTargetsByTag)
		if err != nil {
			return err
		}

		key := compositeKey(tag.TargetID, tag.Tag)
		if byTarget.Get(key) != nil {
			return moderation.ErrDuplicateTag
		}

		data, err := json.Marshal(tag)
		if err != nil {
			return fmt.Errorf("failed to marshal tag: %w", err)
		}
		if err := byTarget.Put(key, data); err != nil {
			return err
		}
		return byTag.Put(compositeKey(tag.Tag, tag.TargetID), []byte{})
	})
}

// RemoveTag detaches a tag from a target.
func (s *ModerationStore) RemoveTag(ctx context.Context, tag, targetID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		byTarget, err := bucketOf(tx, BucketTagsByTarget)
		if err != nil {
			return err
		}
		byTag, err := bucketOf(tx, BucketTargetsByTag)
		if err != nil {
			return err
		}

		key := compositeKey(targetID, tag)
		if byTarget.Get(key) == nil {
			return moderation.ErrNotFound
		}
		if err := byTarget.Delete(key); err != nil {
			return err
		}
		return byTag.Delete(compositeKey(tag, targetID))
	})
}

// TagsForTarget returns the tags on a target.
func (s *ModerationStore) TagsForTarget(ctx context.Context, targetID string) ([]moderation.Tag, error) {
	var tags []moderation.Tag

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketTagsByTarget)
		if bucket == nil {
			return nil
		}

		prefix := prefixKey(targetID)
		cursor := bucket.Cursor()
		for k, v := cursor.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = cursor.Next() {
			var tag moderation.Tag
			if err := json.Unmarshal(v, &tag); err != nil {
				return fmt.Errorf("failed to unmarshal tag: %w", err)
			}
			tags = append(tags, tag)
		}
		return nil
	})

	return tags, err
}

// TargetsWithTag returns the IDs of every target carrying tag.
func (s *ModerationStore) TargetsWithTag(ctx context.Context, tag string) ([]string, error) {
	var targets []string

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketTargetsByTag)
		if bucket == nil {
			return nil
		}

		prefix := prefixKey(tag)
		cursor := bucket.Cursor()
		for k, _ := cursor.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = cursor.Next() {
			targets = append(targets, string(k[len(prefix):]))
		}
		return nil
	})

	return targets, err
}

// ListTags returns every distinct tag in use, in key order.
func (s *ModerationStore) ListTags(ctx context.Context) ([]string, error) {
	var tags []string

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketTargetsByTag)
		if bucket == nil {
			return nil
		}

		cursor := bucket.Cursor()
		for k, _ := cursor.First(); k != nil; {
			i := bytes.Index(k, []byte(keySep))
			if i < 0 {
				k, _ = cursor.Next()
				continue
			}
			tag := string(k[:i])
			tags = append(tags, tag)
			// Skip the rest of this tag's targets
			k, _ = cursor.Seek(append([]byte(tag), keySep[0]+1))
		}
		return nil
	})

	return tags, err
}

// RemoveTagsForTarget removes and returns every tag on a target.
func (s *ModerationStore) RemoveTagsForTarget(ctx context.Context, targetID string) ([]moderation.Tag, error) {
	var removed []moderation.Tag

	err := s.db.Update(func(tx *bolt.Tx) error {
		byTarget, err := bucketOf(tx, BucketTagsByTarget)
		if err != nil {
			return err
		}
		byTag, err := bucketOf(tx, BucketTargetsByTag)
		if err != nil {
			return err
		}

		prefix := prefixKey(targetID)
		var keys [][]byte
		cursor := byTarget.Cursor()
		for k, v := cursor.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = cursor.Next() {
			var tag moderation.Tag
			if err := json.Unmarshal(v, &tag); err != nil {
				return fmt.Errorf("failed to unmarshal tag: %w", err)
			}
			removed = append(removed, tag)
			keys = append(keys, bytes.Clone(k))
		}

		for i, k := range keys {
			if err := byTarget.Delete(k); err != nil {
				return err
			}
			if err := byTag.Delete(compositeKey(removed[i].Tag, targetID)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return removed, nil
}

// LogAction stores a moderation action in the audit log.
func (s *ModerationStore) LogAction(ctx context.Context, entry moderation.AuditEntry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket, err := bucketOf(tx, BucketAuditLog)
		if err != nil {
			return err
		}

		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal audit entry: %w", err)
		}

		// Zero-padded timestamp keeps byte order chronological; the ID keeps keys unique
		key := fmt.Sprintf("%020d:%s", entry.Timestamp.UnixNano(), entry.ID)

		return bucket.Put([]byte(key), data)
	})
}

// ListAuditLog returns the most recent audit log entries, newest first.
func (s *ModerationStore) ListAuditLog(ctx context.Context, limit int) ([]moderation.AuditEntry, error) {
	var entries []moderation.AuditEntry

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketAuditLog)
		if bucket == nil {
			return nil
		}

		cursor := bucket.Cursor()
		for k, v := cursor.Last(); k != nil && (limit <= 0 || len(entries) < limit); k, v = cursor.Prev() {
			var entry moderation.AuditEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				continue // Skip malformed entries
			}
			entries = append(entries, entry)
		}
		return nil
	})

	return entries, err
}

func countPrefix(bucket *bolt.Bucket, prefix []byte) int {
	var count int
	cursor := bucket.Cursor()
	for k, _ := cursor.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = cursor.Next() {
		count++
	}
	return count
}
