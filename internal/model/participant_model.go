package model

import (
	"time"

	"github.com/google/uuid"
)

type SearchParticipant struct {
	Id              uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionId       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_participant_session_user"`
	UserId          uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_participant_session_user"`
	Role            string    `gorm:"type:varchar(32);not null"`
	IsActive        bool      `gorm:"not null;default:true"`
	QueryCount      int64     `gorm:"not null;default:0"`
	AnnotationCount int64     `gorm:"not null;default:0"`
	ActiveSeconds   int64     `gorm:"not null;default:0"`
	JoinedAt        time.Time `gorm:"autoCreateTime"`
	LastActiveAt    *time.Time
	LeftAt          *time.Time
}

func (SearchParticipant) TableName() string {
	return "search_participants"
}
