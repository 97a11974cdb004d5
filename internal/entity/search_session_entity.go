package entity

import (
	"time"

	"github.com/google/uuid"
)

type SessionSettings struct {
	MaxParticipants   int
	AllowAnonymous    bool
	RequireModeration bool
}

type SearchSession struct {
	Id              uuid.UUID
	CollabSessionId uuid.UUID
	WorkspaceId     uuid.UUID
	Name            string
	CreatedBy       uuid.UUID
	IsActive        bool
	IsPersistent    bool
	Settings        SessionSettings
	CreatedAt       time.Time
	UpdatedAt       *time.Time
	DeletedAt       *time.Time
	IsDeleted       bool
}
