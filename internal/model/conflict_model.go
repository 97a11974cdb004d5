package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ConflictRecord struct {
	Id            uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionId     uuid.UUID      `gorm:"type:uuid;not null;index"`
	StateKey      string         `gorm:"type:varchar(255);not null"`
	Candidates    datatypes.JSON `gorm:"type:jsonb;not null"`
	Strategy      string         `gorm:"type:varchar(32);not null"`
	Status        string         `gorm:"type:varchar(16);not null;default:'pending';index"`
	ResolvedValue datatypes.JSON `gorm:"type:jsonb"`
	ResolvedBy    *uuid.UUID     `gorm:"type:uuid"`
	ResolvedAt    *time.Time
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

func (ConflictRecord) TableName() string {
	return "conflict_records"
}
