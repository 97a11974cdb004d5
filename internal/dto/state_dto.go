package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type UpdateStateRequest struct {
	SessionId       uuid.UUID       `json:"-"`
	Key             string          `json:"key" validate:"required,max=255"`
	Value           json.RawMessage `json:"value" validate:"required"`
	ExpectedVersion int64           `json:"expected_version" validate:"min=0"`
	Strategy        string          `json:"strategy" validate:"omitempty,oneof=last_write_wins merge manual"`

	// Debounce metadata forwarded to the sequencer; REST callers leave
	// these empty.
	DebounceGroupId *string `json:"debounce_group_id,omitempty"`
	BatchId         *string `json:"batch_id,omitempty"`
}

type StateEntryResponse struct {
	Key            string          `json:"key"`
	Value          json.RawMessage `json:"value"`
	Version        int64           `json:"version"`
	StateHash      string          `json:"state_hash"`
	LastModifiedBy uuid.UUID       `json:"last_modified_by"`
	LastModifiedAt time.Time       `json:"last_modified_at"`
	ChangeSource   string          `json:"change_source"`
	Blocked        bool            `json:"blocked,omitempty"`
}

type StateSnapshotResponse struct {
	SessionId uuid.UUID                     `json:"session_id"`
	Entries   map[string]StateEntryResponse `json:"entries"`
}

type ResolveConflictRequest struct {
	ConflictId uuid.UUID       `json:"conflict_id" validate:"required"`
	Value      json.RawMessage `json:"value" validate:"required"`
}

type ConflictCandidateResponse struct {
	ActorId   uuid.UUID       `json:"actor_id"`
	Value     json.RawMessage `json:"value"`
	Timestamp time.Time       `json:"timestamp"`
}

type ConflictResponse struct {
	Id            uuid.UUID                   `json:"id"`
	SessionId     uuid.UUID                   `json:"session_id"`
	Key           string                      `json:"key"`
	Candidates    []ConflictCandidateResponse `json:"candidates"`
	Strategy      string                      `json:"strategy"`
	Status        string                      `json:"status"`
	ResolvedValue json.RawMessage             `json:"resolved_value,omitempty"`
	ResolvedBy    *uuid.UUID                  `json:"resolved_by,omitempty"`
	ResolvedAt    *time.Time                  `json:"resolved_at,omitempty"`
	CreatedAt     time.Time                   `json:"created_at"`
}
