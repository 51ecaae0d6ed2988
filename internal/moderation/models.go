package moderation

import "time"

// Report is one user's flag on a piece of content.
type Report struct {
	ID         string    `json:"id"` // TID
	ReporterID string    `json:"reporter_id"`
	TargetID   string    `json:"target_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Timeout is a temporary suspension. It is active while now is before ExpiresAt.
type Timeout struct {
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	Reason    string    `json:"reason,omitempty"`
	ImposedBy string    `json:"imposed_by,omitempty"` // reviewer ID, or "system"
	CreatedAt time.Time `json:"created_at"`
}

// ActiveAt reports whether the timeout still restricts its user at the given instant.
func (t *Timeout) ActiveAt(now time.Time) bool {
	return t != nil && now.Before(t.ExpiresAt)
}

// Tag labels a content item. The (Tag, TargetID) pair is unique.
type Tag struct {
	Tag       string    `json:"tag"`
	TargetID  string    `json:"target_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Case is the derived moderation status of a target. It is never stored.
type Case struct {
	TargetID    string   `json:"target_id"`
	ReportCount int      `json:"report_count"`
	Tags        []string `json:"tags"`
	Pending     bool     `json:"pending"`
	Reports     []Report `json:"reports,omitempty"`
}

// ReportResult is returned after a report has been accepted.
type ReportResult struct {
	Report  Report `json:"report"`
	Count   int    `json:"count"`
	Pending bool   `json:"pending"`
}

// Timeout reasons used by the service itself
const (
	ReasonNewAccount = "new account cooldown"
	ReasonRejected   = "content rejected by reviewer"
)

// SystemActor is recorded as the imposer/actor for automatic actions.
const SystemActor = "system"

// AuditAction represents a type of moderation action
type AuditAction string

const (
	AuditActionApprove        AuditAction = "approve"
	AuditActionReject         AuditAction = "reject"
	AuditActionImposeTimeout  AuditAction = "impose_timeout"
	AuditActionReleaseTimeout AuditAction = "release_timeout"
)

// AuditEntry represents a logged moderation action
type AuditEntry struct {
	ID        string            `json:"id"`
	Action    AuditAction       `json:"action"`
	ActorID   string            `json:"actor_id"`  // reviewer ID or "system"
	TargetID  string            `json:"target_id"` // content ID or user ID being acted upon
	Reason    string            `json:"reason,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
