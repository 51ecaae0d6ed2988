package moderation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"modgate/internal/metrics"
	"modgate/internal/tracing"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Default policy values
const (
	DefaultReportThreshold    = 3
	DefaultRejectSuspension   = 24 * time.Hour
	DefaultNewAccountCooldown = 60 * time.Second
)

// Policy holds the tunable moderation constants.
type Policy struct {
	ReportThreshold    int
	RejectSuspension   time.Duration
	NewAccountCooldown time.Duration
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		ReportThreshold:    DefaultReportThreshold,
		RejectSuspension:   DefaultRejectSuspension,
		NewAccountCooldown: DefaultNewAccountCooldown,
	}
}

// pendingCountWorkers bounds concurrent count lookups in ListPending.
const pendingCountWorkers = 8

// Coordinator is the only component that chains effects across the ledger,
// the guard, the tag gate and the content store.
type Coordinator struct {
	ledger   *Ledger
	guard    *Guard
	tags     *TagGate
	reviewer *Reviewer
	content  ContentStore
	audit    AuditLog
	notifier Notifier
	policy   Policy
	locks    *keyedMutex
	now      func() time.Time
}

// Option configures a Coordinator.
type Option func(*coordinatorOptions)

type coordinatorOptions struct {
	now      func() time.Time
	notifier Notifier
	timeouts TimeoutStore
}

// WithClock replaces time.Now for every component.
func WithClock(now func() time.Time) Option {
	return func(o *coordinatorOptions) { o.now = now }
}

// WithNotifier publishes moderation events to n.
func WithNotifier(n Notifier) Option {
	return func(o *coordinatorOptions) { o.notifier = n }
}

// WithTimeoutStore keeps timeouts in ts instead of the main store.
func WithTimeoutStore(ts TimeoutStore) Option {
	return func(o *coordinatorOptions) { o.timeouts = ts }
}

// NewCoordinator wires the moderation components over store.
func NewCoordinator(store Store, content ContentStore, caps Capabilities, policy Policy, opts ...Option) *Coordinator {
	o := coordinatorOptions{now: time.Now, timeouts: store}
	for _, opt := range opts {
		opt(&o)
	}
	if policy.ReportThreshold < 1 {
		policy.ReportThreshold = DefaultReportThreshold
	}

	return &Coordinator{
		ledger:   NewLedger(store, o.now),
		guard:    NewGuard(o.timeouts, o.now),
		tags:     NewTagGate(store, o.now),
		reviewer: NewReviewer(caps),
		content:  content,
		audit:    store,
		notifier: o.notifier,
		policy:   policy,
		locks:    newKeyedMutex(),
		now:      o.now,
	}
}

// Policy returns the active policy.
func (c *Coordinator) Policy() Policy {
	return c.policy
}

// Guard fails with a *SuspendedError if the user may not perform action right now.
func (c *Coordinator) Guard(ctx context.Context, userID, action string) error {
	err := c.guard.Guard(ctx, userID)
	if errors.Is(err, ErrUserSuspended) {
		metrics.GuardRejectionsTotal.WithLabelValues(action).Inc()
	}
	return err
}

// ReportTarget files a report from reporterID against targetID.
func (c *Coordinator) ReportTarget(ctx context.Context, reporterID, targetID string) (res ReportResult, err error) {
	ctx, span := tracing.ModerationSpan(ctx, "report", reporterID, targetID)
	defer func() { tracing.EndWithError(span, err); span.End() }()

	if err := c.Guard(ctx, reporterID, "report"); err != nil {
		return ReportResult{}, err
	}

	unlock := c.locks.Lock(targetID)
	defer unlock()

	author, err := c.content.AuthorOf(ctx, targetID)
	if err != nil {
		return ReportResult{}, err
	}
	if author == reporterID {
		return ReportResult{}, ErrSelfReport
	}

	report, count, err := c.ledger.Submit(ctx, reporterID, targetID)
	if err != nil {
		return ReportResult{}, err
	}
	metrics.ReportsTotal.WithLabelValues("submit").Inc()

	pending := count >= c.policy.ReportThreshold
	if count == c.policy.ReportThreshold {
		metrics.CasesPendingTotal.Inc()
		tags, _ := c.tags.TagsOf(ctx, targetID)
		c.publish(Event{Type: EventCasePending, TargetID: targetID, Count: count, Tags: tags})
		log.Info().
			Str("target", targetID).
			Int("count", count).
			Msg("moderation: case pending review")
	}

	return ReportResult{Report: report, Count: count, Pending: pending}, nil
}

// WithdrawReport removes reporterID's report on targetID.
func (c *Coordinator) WithdrawReport(ctx context.Context, reporterID, targetID string) error {
	if err := c.Guard(ctx, reporterID, "withdraw"); err != nil {
		return err
	}

	unlock := c.locks.Lock(targetID)
	defer unlock()

	if err := c.ledger.Withdraw(ctx, reporterID, targetID); err != nil {
		return err
	}
	metrics.ReportsTotal.WithLabelValues("withdraw").Inc()
	return nil
}

// ListPending returns the sorted ids of targets carrying tag whose report
// count has reached the threshold.
func (c *Coordinator) ListPending(ctx context.Context, tag string) ([]string, error) {
	targets, err := c.tags.TargetsWithTag(ctx, tag)
	if err != nil {
		return nil, err
	}

	pending := make([]bool, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pendingCountWorkers)
	for i, id := range targets {
		g.Go(func() error {
			n, err := c.ledger.CountFor(gctx, id)
			if err != nil {
				return fmt.Errorf("count reports for %s: %w", id, err)
			}
			pending[i] = n >= c.policy.ReportThreshold
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := make([]string, 0, len(targets))
	for i, id := range targets {
		if pending[i] {
			result = append(result, id)
		}
	}
	sort.Strings(result)
	return result, nil
}

// ListBlocked is ListPending restricted to content of the given kind.
// Targets whose content no longer exists are skipped.
func (c *Coordinator) ListBlocked(ctx context.Context, kind, tag string) ([]string, error) {
	pending, err := c.ListPending(ctx, tag)
	if err != nil {
		return nil, err
	}

	result := make([]string, 0, len(pending))
	for _, id := range pending {
		k, err := c.content.KindOf(ctx, id)
		if errors.Is(err, ErrTargetNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if k == kind {
			result = append(result, id)
		}
	}
	return result, nil
}

// PendingByTag counts pending cases for every tag in use.
func (c *Coordinator) PendingByTag(ctx context.Context) (map[string]int, error) {
	tags, err := c.tags.Tags(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(tags))
	for _, tag := range tags {
		ids, err := c.ListPending(ctx, tag)
		if err != nil {
			return nil, err
		}
		out[tag] = len(ids)
	}
	return out, nil
}

// Case computes the moderation status of a target.
func (c *Coordinator) Case(ctx context.Context, targetID string) (Case, error) {
	reports, err := c.ledger.ReportsFor(ctx, targetID)
	if err != nil {
		return Case{}, err
	}
	tags, err := c.tags.TagsOf(ctx, targetID)
	if err != nil {
		return Case{}, err
	}
	return Case{
		TargetID:    targetID,
		ReportCount: len(reports),
		Tags:        tags,
		Pending:     len(reports) >= c.policy.ReportThreshold,
		Reports:     reports,
	}, nil
}

// IsPending reports whether the target is waiting for review.
func (c *Coordinator) IsPending(ctx context.Context, targetID string) (bool, error) {
	n, err := c.ledger.CountFor(ctx, targetID)
	if err != nil {
		return false, err
	}
	return n >= c.policy.ReportThreshold, nil
}

// Approve clears every report on the target and leaves the content in place.
// Approving a target with no reports succeeds without effect.
func (c *Coordinator) Approve(ctx context.Context, reviewerID, targetID string) (err error) {
	ctx, span := tracing.ModerationSpan(ctx, "approve", reviewerID, targetID)
	defer func() { tracing.EndWithError(span, err); span.End() }()

	if err := c.reviewer.EnsureVerified(reviewerID); err != nil {
		return err
	}

	unlock := c.locks.Lock(targetID)
	defer unlock()

	cleared, err := c.ledger.ClearAll(ctx, targetID)
	if err != nil {
		return err
	}
	if len(cleared) == 0 {
		return nil
	}

	metrics.ResolutionsTotal.WithLabelValues("approved").Inc()
	c.record(ctx, AuditEntry{
		Action:   AuditActionApprove,
		ActorID:  reviewerID,
		TargetID: targetID,
		Details:  map[string]string{"reports_cleared": fmt.Sprint(len(cleared))},
	})
	c.publish(Event{Type: EventCaseApproved, TargetID: targetID, ActorID: reviewerID})

	log.Info().
		Str("reviewer", reviewerID).
		Str("target", targetID).
		Int("reports_cleared", len(cleared)).
		Msg("moderation: case approved")
	return nil
}

// Reject deletes the target, clears its reports and tags, and suspends its
// author for RejectSuspension. Either every effect is applied or none is.
func (c *Coordinator) Reject(ctx context.Context, reviewerID, targetID string) (err error) {
	ctx, span := tracing.ModerationSpan(ctx, "reject", reviewerID, targetID)
	defer func() { tracing.EndWithError(span, err); span.End() }()

	if err := c.reviewer.EnsureVerified(reviewerID); err != nil {
		return err
	}

	ids, unlock, err := c.lockFamily(ctx, targetID)
	if err != nil {
		return err
	}
	defer unlock()

	authorID, err := c.content.AuthorOf(ctx, targetID)
	if err != nil {
		return err
	}

	var undo []func(context.Context) error
	defer func() {
		if err != nil && len(undo) > 0 {
			c.compensate(ctx, targetID, undo)
		}
	}()

	// Delete takes the comments and edits with it, so their cases go too.
	var reports []Report
	var tags []Tag
	for _, id := range ids {
		cleared, err := c.ledger.ClearAll(ctx, id)
		if err != nil {
			return err
		}
		undo = append(undo, func(ctx context.Context) error { return c.ledger.restore(ctx, cleared) })

		detached, err := c.tags.DetachAll(ctx, id)
		if err != nil {
			return err
		}
		undo = append(undo, func(ctx context.Context) error { return c.tags.restore(ctx, detached) })

		if id == targetID {
			reports, tags = cleared, detached
		}
	}

	prev, err := c.guard.Escalate(ctx, authorID, c.policy.RejectSuspension, ReasonRejected, reviewerID)
	if err != nil {
		return err
	}
	undo = append(undo, func(ctx context.Context) error { return c.guard.Restore(ctx, authorID, prev) })

	if err = c.content.Delete(ctx, targetID); err != nil {
		return fmt.Errorf("delete content: %w", err)
	}

	until := c.now().Add(c.policy.RejectSuspension)
	if prev.ActiveAt(c.now()) && prev.ExpiresAt.After(until) {
		until = prev.ExpiresAt
	}

	metrics.ResolutionsTotal.WithLabelValues("rejected").Inc()
	metrics.TimeoutsImposedTotal.WithLabelValues("rejected").Inc()
	c.record(ctx, AuditEntry{
		Action:   AuditActionReject,
		ActorID:  reviewerID,
		TargetID: targetID,
		Reason:   ReasonRejected,
		Details: map[string]string{
			"author":          authorID,
			"reports_cleared": fmt.Sprint(len(reports)),
			"dependents":      fmt.Sprint(len(ids) - 1),
			"suspended_until": until.UTC().Format(time.RFC3339),
		},
	})
	c.publish(Event{Type: EventCaseRejected, TargetID: targetID, ActorID: reviewerID, Tags: tagNames(tags), Until: until})

	log.Info().
		Str("reviewer", reviewerID).
		Str("target", targetID).
		Str("author", authorID).
		Time("suspended_until", until).
		Msg("moderation: case rejected")
	return nil
}

// lockFamily locks targetID and then each of its dependents, and returns the
// ids with targetID first. Children are always locked after their parent.
func (c *Coordinator) lockFamily(ctx context.Context, targetID string) ([]string, func(), error) {
	unlockParent := c.locks.Lock(targetID)

	deps, err := c.content.Dependents(ctx, targetID)
	if err != nil {
		unlockParent()
		return nil, nil, err
	}

	ids := make([]string, 0, len(deps)+1)
	ids = append(ids, targetID)
	unlocks := []func(){unlockParent}
	for _, id := range deps {
		if id == targetID {
			continue
		}
		ids = append(ids, id)
		unlocks = append(unlocks, c.locks.Lock(id))
	}

	return ids, func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}, nil
}

// compensate runs undo steps in reverse. It uses a context detached from the
// request so a cancelled client does not leave partial state behind.
func (c *Coordinator) compensate(ctx context.Context, targetID string, undo []func(context.Context) error) {
	metrics.RejectRollbacksTotal.Inc()
	ctx = context.WithoutCancel(ctx)
	for i := len(undo) - 1; i >= 0; i-- {
		if err := undo[i](ctx); err != nil {
			log.Error().Err(err).Str("target", targetID).Msg("moderation: reject rollback step failed")
		}
	}
	log.Warn().Str("target", targetID).Int("steps", len(undo)).Msg("moderation: reject rolled back")
}

// AttachTag labels the target. Only its author may tag it, and only while it
// has no comments or edits.
func (c *Coordinator) AttachTag(ctx context.Context, actorID, tag, targetID string) error {
	if err := c.Guard(ctx, actorID, "tag"); err != nil {
		return err
	}
	if err := c.ensureAuthor(ctx, actorID, targetID); err != nil {
		return err
	}

	unlock := c.locks.Lock(targetID)
	defer unlock()

	has, err := c.content.HasDependents(ctx, targetID)
	if err != nil {
		return err
	}
	if has {
		return ErrHasDependents
	}
	return c.tags.Attach(ctx, tag, targetID)
}

// DetachTag removes a label from the target. Only its author may do this.
func (c *Coordinator) DetachTag(ctx context.Context, actorID, tag, targetID string) error {
	if err := c.Guard(ctx, actorID, "untag"); err != nil {
		return err
	}
	if err := c.ensureAuthor(ctx, actorID, targetID); err != nil {
		return err
	}

	unlock := c.locks.Lock(targetID)
	defer unlock()

	return c.tags.Detach(ctx, tag, targetID)
}

// TagsOf lists the tags on a target.
func (c *Coordinator) TagsOf(ctx context.Context, targetID string) ([]string, error) {
	return c.tags.TagsOf(ctx, targetID)
}

// RemoveContent deletes content on behalf of its author and drops the
// moderation state attached to it.
func (c *Coordinator) RemoveContent(ctx context.Context, actorID, targetID string) error {
	if err := c.Guard(ctx, actorID, "delete"); err != nil {
		return err
	}
	if err := c.ensureAuthor(ctx, actorID, targetID); err != nil {
		return err
	}

	ids, unlock, err := c.lockFamily(ctx, targetID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := c.content.Delete(ctx, targetID); err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := c.ledger.ClearAll(ctx, id); err != nil {
			log.Warn().Err(err).Str("target", id).Msg("moderation: failed to clear reports of deleted content")
		}
		if _, err := c.tags.DetachAll(ctx, id); err != nil {
			log.Warn().Err(err).Str("target", id).Msg("moderation: failed to clear tags of deleted content")
		}
	}
	return nil
}

// AddDependent runs create for a new comment or edit under parentID while
// holding the parent's lock. AttachTag checks for dependents under the same
// lock.
func (c *Coordinator) AddDependent(ctx context.Context, actorID, action, parentID string, create func(context.Context) error) error {
	if err := c.Guard(ctx, actorID, action); err != nil {
		return err
	}

	unlock := c.locks.Lock(parentID)
	defer unlock()

	return create(ctx)
}

// ImposeTimeout suspends userID for d. Only verified reviewers may do this.
func (c *Coordinator) ImposeTimeout(ctx context.Context, reviewerID, userID string, d time.Duration, reason string) (t *Timeout, err error) {
	ctx, span := tracing.ModerationSpan(ctx, "impose_timeout", reviewerID, userID)
	defer func() { tracing.EndWithError(span, err); span.End() }()

	if err := c.reviewer.EnsureVerified(reviewerID); err != nil {
		return nil, err
	}
	if d <= 0 {
		return nil, ErrInvalidDuration
	}

	t, err = c.guard.Impose(ctx, userID, d, reason, reviewerID)
	if err != nil {
		return nil, err
	}

	metrics.TimeoutsImposedTotal.WithLabelValues("manual").Inc()
	c.record(ctx, AuditEntry{
		Action:   AuditActionImposeTimeout,
		ActorID:  reviewerID,
		TargetID: userID,
		Reason:   reason,
		Details:  map[string]string{"expires_at": t.ExpiresAt.UTC().Format(time.RFC3339)},
	})
	c.publish(Event{Type: EventTimeoutImposed, TargetID: userID, ActorID: reviewerID, Until: t.ExpiresAt})
	return t, nil
}

// ReleaseTimeout lifts userID's suspension early. Only verified reviewers may do this.
func (c *Coordinator) ReleaseTimeout(ctx context.Context, reviewerID, userID string) error {
	if err := c.reviewer.EnsureVerified(reviewerID); err != nil {
		return err
	}
	if err := c.guard.Release(ctx, userID); err != nil {
		return err
	}

	c.record(ctx, AuditEntry{
		Action:   AuditActionReleaseTimeout,
		ActorID:  reviewerID,
		TargetID: userID,
	})
	c.publish(Event{Type: EventTimeoutReleased, TargetID: userID, ActorID: reviewerID})
	return nil
}

// TimeoutStatus returns the user's active timeout, or nil.
func (c *Coordinator) TimeoutStatus(ctx context.Context, userID string) (*Timeout, error) {
	return c.guard.Status(ctx, userID)
}

// ActiveTimeouts lists every suspension in force.
func (c *Coordinator) ActiveTimeouts(ctx context.Context) ([]Timeout, error) {
	return c.guard.Active(ctx)
}

// OnAccountCreated applies the new-account cooldown. A zero cooldown disables it.
func (c *Coordinator) OnAccountCreated(ctx context.Context, userID string) (*Timeout, error) {
	if c.policy.NewAccountCooldown <= 0 {
		return nil, nil
	}
	t, err := c.guard.Impose(ctx, userID, c.policy.NewAccountCooldown, ReasonNewAccount, SystemActor)
	if err != nil {
		return nil, err
	}
	metrics.TimeoutsImposedTotal.WithLabelValues("new_account").Inc()
	return t, nil
}

// AuditLog returns the most recent moderation actions. Only verified reviewers may read it.
func (c *Coordinator) AuditLog(ctx context.Context, reviewerID string, limit int) ([]AuditEntry, error) {
	if err := c.reviewer.EnsureVerified(reviewerID); err != nil {
		return nil, err
	}
	return c.audit.ListAuditLog(ctx, limit)
}

// IsVerified reports whether the user holds the reviewer capability.
func (c *Coordinator) IsVerified(userID string) bool {
	return c.reviewer.EnsureVerified(userID) == nil
}

func (c *Coordinator) ensureAuthor(ctx context.Context, actorID, targetID string) error {
	author, err := c.content.AuthorOf(ctx, targetID)
	if err != nil {
		return err
	}
	if author != actorID {
		return ErrNotAuthor
	}
	return nil
}

// record writes an audit entry. Failures are logged and otherwise ignored.
func (c *Coordinator) record(ctx context.Context, entry AuditEntry) {
	entry.ID = NewTID()
	entry.Timestamp = c.now()
	if err := c.audit.LogAction(ctx, entry); err != nil {
		log.Warn().Err(err).Str("action", string(entry.Action)).Msg("moderation: failed to write audit entry")
	}
}

func (c *Coordinator) publish(ev Event) {
	if c.notifier == nil {
		return
	}
	ev.Timestamp = c.now()
	c.notifier.Publish(ev)
}

func tagNames(tags []Tag) []string {
	if len(tags) == 0 {
		return nil
	}
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Tag
	}
	sort.Strings(names)
	return names
}
