package moderation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// MaxTagLength is the maximum length of a normalised tag
const MaxTagLength = 64

var tagPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// NormalizeTag trims and lower-cases a tag and validates its characters.
func NormalizeTag(raw string) (string, error) {
	tag := strings.ToLower(strings.TrimSpace(raw))
	if tag == "" || len(tag) > MaxTagLength || !tagPattern.MatchString(tag) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTag, raw)
	}
	return tag, nil
}

// TagGate associates category tags with content ids.
type TagGate struct {
	store TagStore
	now   func() time.Time
}

// NewTagGate creates a tag gate. If now is nil, time.Now is used.
func NewTagGate(store TagStore, now func() time.Time) *TagGate {
	if now == nil {
		now = time.Now
	}
	return &TagGate{store: store, now: now}
}

// Attach labels the target with the tag.
func (g *TagGate) Attach(ctx context.Context, tag, targetID string) error {
	tag, err := NormalizeTag(tag)
	if err != nil {
		return err
	}
	err = g.store.AddTag(ctx, Tag{Tag: tag, TargetID: targetID, CreatedAt: g.now()})
	if err != nil && !errors.Is(err, ErrDuplicateTag) {
		return fmt.Errorf("attach tag: %w", err)
	}
	return err
}

// Detach removes the tag from the target.
func (g *TagGate) Detach(ctx context.Context, tag, targetID string) error {
	tag, err := NormalizeTag(tag)
	if err != nil {
		return err
	}
	err = g.store.RemoveTag(ctx, tag, targetID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("detach tag: %w", err)
	}
	return err
}

// TagsOf returns the tags on the target, sorted.
func (g *TagGate) TagsOf(ctx context.Context, targetID string) ([]string, error) {
	tags, err := g.store.TagsForTarget(ctx, targetID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.Tag)
	}
	sort.Strings(names)
	return names, nil
}

// TargetsWithTag returns every target carrying the tag.
func (g *TagGate) TargetsWithTag(ctx context.Context, tag string) ([]string, error) {
	tag, err := NormalizeTag(tag)
	if err != nil {
		return nil, err
	}
	return g.store.TargetsWithTag(ctx, tag)
}

// DetachAll removes every tag from the target and returns what was removed.
func (g *TagGate) DetachAll(ctx context.Context, targetID string) ([]Tag, error) {
	removed, err := g.store.RemoveTagsForTarget(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("detach tags: %w", err)
	}
	return removed, nil
}

func (g *TagGate) restore(ctx context.Context, tags []Tag) error {
	for _, t := range tags {
		if err := g.store.AddTag(ctx, t); err != nil && !errors.Is(err, ErrDuplicateTag) {
			return fmt.Errorf("restore tag %s: %w", t.Tag, err)
		}
	}
	return nil
}

// Tags returns every tag currently attached to at least one target.
func (g *TagGate) Tags(ctx context.Context) ([]string, error) {
	tags, err := g.store.ListTags(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(tags)
	return tags, nil
}
