package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SearchSession struct {
	Id                uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CollabSessionId   uuid.UUID `gorm:"type:uuid;not null;index"`
	WorkspaceId       uuid.UUID `gorm:"type:uuid;not null;index"`
	Name              string    `gorm:"type:varchar(255);not null"`
	CreatedBy         uuid.UUID `gorm:"type:uuid;not null"`
	IsActive          bool      `gorm:"not null;default:true"`
	IsPersistent      bool      `gorm:"not null;default:false"`
	MaxParticipants   int       `gorm:"not null;default:10"`
	AllowAnonymous    bool      `gorm:"not null;default:false"`
	RequireModeration bool      `gorm:"not null;default:false"`
	CreatedAt         time.Time `gorm:"autoCreateTime"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime"`
	DeletedAt         gorm.DeletedAt `gorm:"index"`
}

func (SearchSession) TableName() string {
	return "search_sessions"
}
