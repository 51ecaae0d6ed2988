package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Guard owns per-user suspension windows. Expiry is evaluated lazily: every
// read compares the deadline with the current time and reaps a stale record.
type Guard struct {
	store TimeoutStore
	now   func() time.Time
}

// NewGuard creates a timeout guard. If now is nil, time.Now is used.
func NewGuard(store TimeoutStore, now func() time.Time) *Guard {
	if now == nil {
		now = time.Now
	}
	return &Guard{store: store, now: now}
}

// Impose suspends the user for d. It fails with ErrAlreadySuspended while an
// earlier suspension is still active; an expired record is simply replaced.
func (g *Guard) Impose(ctx context.Context, userID string, d time.Duration, reason, imposedBy string) (*Timeout, error) {
	now := g.now()
	t := Timeout{
		UserID:    userID,
		ExpiresAt: now.Add(d),
		Reason:    reason,
		ImposedBy: imposedBy,
		CreatedAt: now,
	}

	if _, err := g.store.PutTimeout(ctx, t, now); err != nil {
		if errors.Is(err, ErrAlreadySuspended) {
			return nil, err
		}
		return nil, fmt.Errorf("impose timeout: %w", err)
	}

	log.Info().
		Str("user", userID).
		Time("expires_at", t.ExpiresAt).
		Str("reason", reason).
		Str("by", imposedBy).
		Msg("moderation: timeout imposed")

	return &t, nil
}

// Escalate suspends the user until now+d, replacing the current record unless
// it already lasts longer. It returns the record that was in place before the
// call (nil if none) so a caller can undo the change with Restore.
func (g *Guard) Escalate(ctx context.Context, userID string, d time.Duration, reason, imposedBy string) (*Timeout, error) {
	now := g.now()
	t := Timeout{
		UserID:    userID,
		ExpiresAt: now.Add(d),
		Reason:    reason,
		ImposedBy: imposedBy,
		CreatedAt: now,
	}

	prev, err := g.store.PutTimeout(ctx, t, now)
	switch {
	case err == nil:
		return prev, nil
	case !errors.Is(err, ErrAlreadySuspended):
		return nil, fmt.Errorf("escalate timeout: %w", err)
	}

	if !prev.ExpiresAt.Before(t.ExpiresAt) {
		return prev, nil
	}

	prev, err = g.store.ReplaceTimeout(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("escalate timeout: %w", err)
	}
	return prev, nil
}

// Restore puts back the record returned by Escalate. A nil prev removes the
// user's record entirely.
func (g *Guard) Restore(ctx context.Context, userID string, prev *Timeout) error {
	if prev == nil {
		err := g.store.DeleteTimeout(ctx, userID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("restore timeout: %w", err)
		}
		return nil
	}
	if _, err := g.store.ReplaceTimeout(ctx, *prev); err != nil {
		return fmt.Errorf("restore timeout: %w", err)
	}
	return nil
}

// Status returns the active timeout for the user, or nil. A stale record is
// deleted as a side effect.
func (g *Guard) Status(ctx context.Context, userID string) (*Timeout, error) {
	t, err := g.store.GetTimeout(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get timeout: %w", err)
	}
	if t == nil {
		return nil, nil
	}

	now := g.now()
	if t.ActiveAt(now) {
		return t, nil
	}

	// Conditional delete: a fresh suspension written since the read survives.
	reaped, err := g.store.DeleteExpiredTimeout(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("reap timeout: %w", err)
	}
	if reaped {
		log.Debug().Str("user", userID).Time("expired_at", t.ExpiresAt).Msg("moderation: expired timeout reaped")
	}
	return nil, nil
}

// IsSuspended reports whether the user is currently suspended.
func (g *Guard) IsSuspended(ctx context.Context, userID string) (bool, error) {
	t, err := g.Status(ctx, userID)
	if err != nil {
		return false, err
	}
	return t != nil, nil
}

// Release lifts the user's timeout whether or not it has expired.
func (g *Guard) Release(ctx context.Context, userID string) error {
	if err := g.store.DeleteTimeout(ctx, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotSuspended
		}
		return fmt.Errorf("release timeout: %w", err)
	}
	log.Info().Str("user", userID).Msg("moderation: timeout released")
	return nil
}

// Guard fails with a *SuspendedError while the user is suspended. Every
// restricted action calls it before doing anything else.
func (g *Guard) Guard(ctx context.Context, userID string) error {
	t, err := g.Status(ctx, userID)
	if err != nil {
		return err
	}
	if t != nil {
		return &SuspendedError{UserID: userID, Until: t.ExpiresAt}
	}
	return nil
}

// Active lists timeouts that are active now. Expired rows are skipped, not reaped.
func (g *Guard) Active(ctx context.Context) ([]Timeout, error) {
	all, err := g.store.ListTimeouts(ctx)
	if err != nil {
		return nil, err
	}
	now := g.now()
	active := make([]Timeout, 0, len(all))
	for i := range all {
		if all[i].ActiveAt(now) {
			active = append(active, all[i])
		}
	}
	return active, nil
}
