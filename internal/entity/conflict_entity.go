package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type ConflictStatus string

const (
	ConflictPending   ConflictStatus = "pending"
	ConflictResolved  ConflictStatus = "resolved"
	ConflictCancelled ConflictStatus = "cancelled"
)

type ConflictCandidate struct {
	ActorId   uuid.UUID       `json:"actor_id"`
	Value     json.RawMessage `json:"value"`
	Timestamp time.Time       `json:"timestamp"`
}

// ConflictRecord is created when the resolver cannot decide automatically.
// Superseded last-write-wins losers are also recorded here for audit, with
// status resolved.
type ConflictRecord struct {
	Id            uuid.UUID
	SessionId     uuid.UUID
	Key           string
	Candidates    []ConflictCandidate
	Strategy      ResolutionStrategy
	Status        ConflictStatus
	ResolvedValue json.RawMessage
	ResolvedBy    *uuid.UUID
	ResolvedAt    *time.Time
	CreatedAt     time.Time
}
