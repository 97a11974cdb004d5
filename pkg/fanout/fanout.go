package fanout

import (
	"context"
	"encoding/json"
)

// Frame is the cross-replica broadcast envelope. TargetUserId narrows
// delivery to one participant; ExcludeUserId suppresses the originator's
// echo. Origin identifies the publishing replica so it can skip frames it
// already delivered locally.
type Frame struct {
	SessionId     string          `json:"session_id"`
	TargetUserId  string          `json:"target_user_id,omitempty"`
	ExcludeUserId string          `json:"exclude_user_id,omitempty"`
	Origin        string          `json:"origin"`
	Message       json.RawMessage `json:"message"`
}

// Bus is the shared fan-out channel between gateway replicas hosting
// connections for the same session. A local write is published here so
// participants attached to other replicas receive the event too.
type Bus interface {
	Publish(ctx context.Context, frame Frame) error
	Subscribe(ctx context.Context) (<-chan Frame, error)
	Close() error
}
