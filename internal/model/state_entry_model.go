package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type SessionStateEntry struct {
	Id             uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionId      uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_state_session_key"`
	StateKey       string         `gorm:"type:varchar(255);not null;uniqueIndex:idx_state_session_key"`
	Value          datatypes.JSON `gorm:"type:jsonb"`
	Version        int64          `gorm:"not null;default:1"`
	StateHash      string         `gorm:"type:varchar(64);not null"`
	LastModifiedBy uuid.UUID      `gorm:"type:uuid;not null"`
	LastModifiedAt time.Time      `gorm:"not null"`
	Strategy       string         `gorm:"type:varchar(32);not null;default:'last_write_wins'"`
	ChangeSource   string         `gorm:"type:varchar(16);not null;default:'user'"`
	PreviousValue  datatypes.JSON `gorm:"type:jsonb"`
	Blocked        bool           `gorm:"not null;default:false"`
	CreatedAt      time.Time      `gorm:"autoCreateTime"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime"`
}

func (SessionStateEntry) TableName() string {
	return "session_state_entries"
}
