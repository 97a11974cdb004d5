package events

import "time"

// Event codes published to the bus. Mention events are consumed by the
// external notification service; lifecycle events by the audit reader.
const (
	TypeSessionCreated    = "SEARCH_SESSION_CREATED"
	TypeSessionDeleted    = "SEARCH_SESSION_DELETED"
	TypeAnnotationMention = "ANNOTATION_MENTION"
	TypeConflictDetected  = "STATE_CONFLICT_DETECTED"
	TypeConflictResolved  = "STATE_CONFLICT_RESOLVED"
)

// Event defines the contract for all outbound system events.
type Event interface {
	// EventType returns the unique code for this event.
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}
