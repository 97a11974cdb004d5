package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SearchAnnotation struct {
	Id             uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionId      uuid.UUID      `gorm:"type:uuid;not null;index"`
	AuthorId       uuid.UUID      `gorm:"type:uuid;not null;index"`
	TargetResultId string         `gorm:"type:varchar(255);not null"`
	TargetType     string         `gorm:"type:varchar(64)"`
	Type           string         `gorm:"type:varchar(32);not null"`
	Content        string         `gorm:"type:text"`
	Selection      datatypes.JSON `gorm:"type:jsonb"`
	IsShared       bool           `gorm:"not null;default:true"`
	IsResolved     bool           `gorm:"not null;default:false"`
	ResolvedBy     *uuid.UUID     `gorm:"type:uuid"`
	ResolvedAt     *time.Time
	ParentId       *uuid.UUID     `gorm:"type:uuid;index"`
	Mentions       datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt      time.Time      `gorm:"autoCreateTime"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime"`
	DeletedAt      gorm.DeletedAt `gorm:"index"`
}

func (SearchAnnotation) TableName() string {
	return "search_annotations"
}
