package moderation

import (
	"context"
	"time"
)

// ReportStore persists reports. Implementations must be safe for concurrent use
// and must make CreateReport atomic per (reporter, target) pair.
type ReportStore interface {
	// CreateReport stores the report and returns the new count for its target.
	// Returns ErrAlreadyReported if the reporter already has a report on the target.
	CreateReport(ctx context.Context, report Report) (int, error)
	// DeleteReport returns ErrNotFound if the pair has no report.
	DeleteReport(ctx context.Context, reporterID, targetID string) error
	CountReports(ctx context.Context, targetID string) (int, error)
	ListReports(ctx context.Context, targetID string) ([]Report, error)
	// DeleteReportsForTarget removes and returns every report on the target.
	DeleteReportsForTarget(ctx context.Context, targetID string) ([]Report, error)
}

// TimeoutStore persists one timeout per user. Check-and-set methods take the
// caller's notion of "now" so expiry is evaluated by a single clock.
type TimeoutStore interface {
	// GetTimeout returns nil, nil if the user has no record (expired or not).
	GetTimeout(ctx context.Context, userID string) (*Timeout, error)
	// PutTimeout writes t unless a record active at now exists, in which case the
	// existing record is returned along with ErrAlreadySuspended. On success the
	// replaced (stale) record is returned, or nil if there was none.
	PutTimeout(ctx context.Context, t Timeout, now time.Time) (*Timeout, error)
	// ReplaceTimeout writes t unconditionally and returns the previous record, if any.
	ReplaceTimeout(ctx context.Context, t Timeout) (*Timeout, error)
	// DeleteTimeout returns ErrNotFound if the user has no record.
	DeleteTimeout(ctx context.Context, userID string) error
	// DeleteExpiredTimeout deletes the record only if it is no longer active at now.
	DeleteExpiredTimeout(ctx context.Context, userID string, now time.Time) (bool, error)
	ListTimeouts(ctx context.Context) ([]Timeout, error)
}

// TagStore persists tag/target pairs.
type TagStore interface {
	// AddTag returns ErrDuplicateTag if the pair exists.
	AddTag(ctx context.Context, tag Tag) error
	// RemoveTag returns ErrNotFound if the pair does not exist.
	RemoveTag(ctx context.Context, tag, targetID string) error
	TagsForTarget(ctx context.Context, targetID string) ([]Tag, error)
	TargetsWithTag(ctx context.Context, tag string) ([]string, error)
	// ListTags returns every distinct tag in use.
	ListTags(ctx context.Context) ([]string, error)
	// RemoveTagsForTarget removes and returns every tag on the target.
	RemoveTagsForTarget(ctx context.Context, targetID string) ([]Tag, error)
}

// AuditLog records moderation actions.
type AuditLog interface {
	LogAction(ctx context.Context, entry AuditEntry) error
	ListAuditLog(ctx context.Context, limit int) ([]AuditEntry, error)
}

// Store bundles every persistence concern of the moderation subsystem.
type Store interface {
	ReportStore
	TimeoutStore
	TagStore
	AuditLog
}

// ContentStore is the contract the moderation subsystem needs from the content
// collaborator. Kind is one of "post", "comment" or "edit".
type ContentStore interface {
	Exists(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
	AuthorOf(ctx context.Context, id string) (string, error)
	KindOf(ctx context.Context, id string) (string, error)
	HasDependents(ctx context.Context, id string) (bool, error)
	// Dependents returns the ids of the comments and edits that Delete removes
	// along with id.
	Dependents(ctx context.Context, id string) ([]string, error)
}

// Capabilities answers whether a user holds the verified-reviewer capability.
type Capabilities interface {
	IsVerified(userID string) bool
}
