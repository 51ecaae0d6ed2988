package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bluesky-social/indigo/atproto/syntax"
)

// Ledger records abuse reports, one per (reporter, target) pair.
type Ledger struct {
	store ReportStore
	now   func() time.Time
}

// NewLedger creates a report ledger. If now is nil, time.Now is used.
func NewLedger(store ReportStore, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{store: store, now: now}
}

// Submit records a report and returns it with the updated count for the target.
func (l *Ledger) Submit(ctx context.Context, reporterID, targetID string) (Report, int, error) {
	report := Report{
		ID:         NewTID(),
		ReporterID: reporterID,
		TargetID:   targetID,
		CreatedAt:  l.now(),
	}

	count, err := l.store.CreateReport(ctx, report)
	if err != nil {
		if errors.Is(err, ErrAlreadyReported) {
			return Report{}, 0, err
		}
		return Report{}, 0, fmt.Errorf("submit report: %w", err)
	}
	return report, count, nil
}

// Withdraw deletes the reporter's report on the target.
func (l *Ledger) Withdraw(ctx context.Context, reporterID, targetID string) error {
	if err := l.store.DeleteReport(ctx, reporterID, targetID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("withdraw report: %w", err)
	}
	return nil
}

// CountFor returns the number of active reports on the target.
func (l *Ledger) CountFor(ctx context.Context, targetID string) (int, error) {
	return l.store.CountReports(ctx, targetID)
}

// ReportsFor lists the active reports on the target.
func (l *Ledger) ReportsFor(ctx context.Context, targetID string) ([]Report, error) {
	return l.store.ListReports(ctx, targetID)
}

// ClearAll deletes every report on the target and returns what was removed.
// Clearing a target with no reports is not an error.
func (l *Ledger) ClearAll(ctx context.Context, targetID string) ([]Report, error) {
	removed, err := l.store.DeleteReportsForTarget(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("clear reports: %w", err)
	}
	return removed, nil
}

// restore puts previously cleared reports back. Reports that were re-created in
// the meantime are left as they are.
func (l *Ledger) restore(ctx context.Context, reports []Report) error {
	for _, r := range reports {
		if _, err := l.store.CreateReport(ctx, r); err != nil && !errors.Is(err, ErrAlreadyReported) {
			return fmt.Errorf("restore report %s: %w", r.ID, err)
		}
	}
	return nil
}

var tidClock = syntax.NewTIDClock(0)

// NewTID generates a TID (timestamp-based identifier) using the AT Protocol TID
// format. TIDs from one process are strictly increasing.
func NewTID() string {
	return tidClock.Next().String()
}
