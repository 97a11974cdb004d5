package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type SearchEvent struct {
	Id              uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionId       uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_event_session_seq"`
	SequenceNumber  int64          `gorm:"not null;uniqueIndex:idx_event_session_seq"`
	Type            string         `gorm:"type:varchar(64);not null"`
	ActorId         uuid.UUID      `gorm:"type:uuid;not null"`
	Before          datatypes.JSON `gorm:"type:jsonb"`
	After           datatypes.JSON `gorm:"type:jsonb"`
	DebounceGroupId *string        `gorm:"type:varchar(128)"`
	BatchId         *string        `gorm:"type:varchar(128)"`
	CreatedAt       time.Time      `gorm:"autoCreateTime"`
}

func (SearchEvent) TableName() string {
	return "search_events"
}

// SessionSequence is the per-session monotonic counter backing sequence
// number assignment. Incremented atomically at the persistence layer.
type SessionSequence struct {
	SessionId uuid.UUID `gorm:"type:uuid;primaryKey"`
	Value     int64     `gorm:"not null;default:0"`
}

func (SessionSequence) TableName() string {
	return "session_sequences"
}
