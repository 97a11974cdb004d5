package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SearchEvent is one record of the append-only per-session log. Sequence
// numbers are assigned by the sequencer, strictly increasing and gapless
// within a session. Records are immutable once written.
type SearchEvent struct {
	Id              uuid.UUID
	SessionId       uuid.UUID
	SequenceNumber  int64
	Type            string
	ActorId         uuid.UUID
	Before          json.RawMessage
	After           json.RawMessage
	DebounceGroupId *string
	BatchId         *string
	CreatedAt       time.Time
}
