package moderation

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
)

// ReviewerUser is a user holding the verified-reviewer capability
type ReviewerUser struct {
	ID     string `json:"id"`
	Handle string `json:"handle,omitempty"`
	Note   string `json:"note,omitempty"`
}

// ReviewerConfig is the reviewer list loaded from JSON
type ReviewerConfig struct {
	Reviewers []ReviewerUser `json:"reviewers"`
}

// Validate checks that the config is valid
func (c *ReviewerConfig) Validate() error {
	seen := make(map[string]bool, len(c.Reviewers))
	for i, r := range c.Reviewers {
		if r.ID == "" {
			return &ConfigError{
				Field:   "reviewers",
				Message: fmt.Sprintf("entry %d has an empty id", i),
			}
		}
		if seen[r.ID] {
			return &ConfigError{
				Field:   "reviewers",
				Message: "duplicate reviewer id: " + r.ID,
			}
		}
		seen[r.ID] = true
	}
	return nil
}

// Registry is a file-backed capability store.
// With no config path it runs in "disabled" mode where nobody is verified.
type Registry struct {
	mu         sync.RWMutex
	configPath string
	reviewers  map[string]ReviewerUser
}

var _ Capabilities = (*Registry)(nil)

// NewRegistry creates a reviewer registry from the JSON file at configPath.
func NewRegistry(configPath string) (*Registry, error) {
	r := &Registry{
		configPath: configPath,
		reviewers:  make(map[string]ReviewerUser),
	}

	if configPath == "" {
		log.Info().Msg("moderation: no reviewer config path provided, nobody is verified")
		return r, nil
	}

	if err := r.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load reviewer config: %w", err)
	}

	return r, nil
}

// NewStaticRegistry creates a registry from a fixed list of reviewer ids.
func NewStaticRegistry(ids ...string) *Registry {
	r := &Registry{reviewers: make(map[string]ReviewerUser, len(ids))}
	for _, id := range ids {
		r.reviewers[id] = ReviewerUser{ID: id}
	}
	return r
}

func (r *Registry) loadConfig() error {
	data, err := os.ReadFile(r.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("path", r.configPath).Msg("moderation: reviewer config not found, nobody is verified")
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var config ReviewerConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	reviewers := make(map[string]ReviewerUser, len(config.Reviewers))
	for _, u := range config.Reviewers {
		reviewers[u.ID] = u
	}

	r.mu.Lock()
	r.reviewers = reviewers
	r.mu.Unlock()

	log.Info().
		Int("reviewers", len(reviewers)).
		Str("path", r.configPath).
		Msg("moderation: reviewer config loaded")

	return nil
}

// Reload reloads the configuration from disk
func (r *Registry) Reload() error {
	if r.configPath == "" {
		return nil
	}
	return r.loadConfig()
}

// IsVerified returns true if the user holds the reviewer capability
func (r *Registry) IsVerified(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.reviewers[userID]
	return ok
}

// ListReviewers returns a copy of the configured reviewers
func (r *Registry) ListReviewers() []ReviewerUser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]ReviewerUser, 0, len(r.reviewers))
	for _, u := range r.reviewers {
		result = append(result, u)
	}
	return result
}

// Reviewer is the authority check in front of irreversible moderation actions.
type Reviewer struct {
	caps Capabilities
}

// NewReviewer wraps a capability store.
func NewReviewer(caps Capabilities) *Reviewer {
	return &Reviewer{caps: caps}
}

// EnsureVerified fails with ErrNotVerified unless the user is a verified reviewer.
func (r *Reviewer) EnsureVerified(userID string) error {
	if userID == "" || r.caps == nil || !r.caps.IsVerified(userID) {
		return ErrNotVerified
	}
	return nil
}
