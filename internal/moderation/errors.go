package moderation

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrAlreadyReported  = errors.New("target already reported by this user")
	ErrNotFound         = errors.New("not found")
	ErrAlreadySuspended = errors.New("user is already suspended")
	ErrNotSuspended     = errors.New("user is not suspended")
	ErrUserSuspended    = errors.New("user is suspended")
	ErrNotVerified      = errors.New("user is not a verified reviewer")
	ErrDuplicateTag     = errors.New("tag already attached")

	ErrTargetNotFound  = errors.New("target content not found")
	ErrNotAuthor       = errors.New("user is not the author of the target")
	ErrHasDependents   = errors.New("target already has comments or edits")
	ErrInvalidTag      = errors.New("invalid tag")
	ErrSelfReport      = errors.New("cannot report your own content")
	ErrInvalidDuration = errors.New("timeout duration must be positive")
)

// SuspendedError is returned by Guard while a timeout is active.
// errors.Is(err, ErrUserSuspended) holds for it.
type SuspendedError struct {
	UserID string
	Until  time.Time
}

func (e *SuspendedError) Error() string {
	return fmt.Sprintf("user %s is suspended until %s", e.UserID, e.Until.UTC().Format(time.RFC3339))
}

func (e *SuspendedError) Is(target error) bool {
	return target == ErrUserSuspended
}

// ConfigError represents a reviewer configuration validation error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "reviewer config error in " + e.Field + ": " + e.Message
}
