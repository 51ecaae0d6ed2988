package moderation

import "time"

// EventType names a moderation event published to live subscribers.
type EventType string

const (
	EventCasePending     EventType = "case.pending"
	EventCaseApproved    EventType = "case.approved"
	EventCaseRejected    EventType = "case.rejected"
	EventTimeoutImposed  EventType = "timeout.imposed"
	EventTimeoutReleased EventType = "timeout.released"
)

// Event is a moderation state change.
type Event struct {
	Type      EventType `json:"type"`
	TargetID  string    `json:"target_id"`
	ActorID   string    `json:"actor_id,omitempty"`
	Count     int       `json:"count,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	Until     time.Time `json:"until,omitzero"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier receives moderation events. Publish must not block.
type Notifier interface {
	Publish(Event)
}
