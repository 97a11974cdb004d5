package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventDraft is a not-yet-sequenced event submitted to the sequencer.
type EventDraft struct {
	SessionId       uuid.UUID
	Type            string
	ActorId         uuid.UUID
	Before          json.RawMessage
	After           json.RawMessage
	DebounceGroupId *string
	BatchId         *string
	TargetUserId    *uuid.UUID
	ExcludeActor    bool // suppress echo to the originating user
}

type EventResponse struct {
	Id              uuid.UUID       `json:"id"`
	SessionId       uuid.UUID       `json:"session_id"`
	SequenceNumber  int64           `json:"sequence_number"`
	Type            string          `json:"type"`
	ActorId         uuid.UUID       `json:"actor_id"`
	Before          json.RawMessage `json:"before,omitempty"`
	After           json.RawMessage `json:"after,omitempty"`
	DebounceGroupId *string         `json:"debounce_group_id,omitempty"`
	BatchId         *string         `json:"batch_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// BroadcastEnvelope travels over the in-process broadcast topic between the
// sequencer and the delivery consumer.
type BroadcastEnvelope struct {
	SessionId     uuid.UUID       `json:"session_id"`
	TargetUserId  *uuid.UUID      `json:"target_user_id,omitempty"`
	ExcludeUserId *uuid.UUID      `json:"exclude_user_id,omitempty"`
	Message       json.RawMessage `json:"message"`
}
