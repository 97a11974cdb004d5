package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateSessionRequest struct {
	CollabSessionId   uuid.UUID `json:"collab_session_id" validate:"required"`
	WorkspaceId       uuid.UUID `json:"workspace_id" validate:"required"`
	Name              string    `json:"name" validate:"required,max=255"`
	IsPersistent      bool      `json:"is_persistent"`
	MaxParticipants   int       `json:"max_participants" validate:"omitempty,min=1,max=500"`
	AllowAnonymous    bool      `json:"allow_anonymous"`
	RequireModeration bool      `json:"require_moderation"`
}

type SessionResponse struct {
	Id                uuid.UUID  `json:"id"`
	CollabSessionId   uuid.UUID  `json:"collab_session_id"`
	WorkspaceId       uuid.UUID  `json:"workspace_id"`
	Name              string     `json:"name"`
	CreatedBy         uuid.UUID  `json:"created_by"`
	IsActive          bool       `json:"is_active"`
	IsPersistent      bool       `json:"is_persistent"`
	MaxParticipants   int        `json:"max_participants"`
	AllowAnonymous    bool       `json:"allow_anonymous"`
	RequireModeration bool       `json:"require_moderation"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         *time.Time `json:"updated_at"`
}

type UpdateSessionRequest struct {
	Id                uuid.UUID `json:"-"`
	Name              *string   `json:"name" validate:"omitempty,max=255"`
	IsActive          *bool     `json:"is_active"`
	MaxParticipants   *int      `json:"max_participants" validate:"omitempty,min=1,max=500"`
	RequireModeration *bool     `json:"require_moderation"`
}

type JoinSessionRequest struct {
	SessionId uuid.UUID `json:"session_id" validate:"required"`
	Role      string    `json:"role" validate:"required,oneof=searcher observer moderator"`
}

type ParticipantResponse struct {
	Id              uuid.UUID  `json:"id"`
	SessionId       uuid.UUID  `json:"session_id"`
	UserId          uuid.UUID  `json:"user_id"`
	Role            string     `json:"role"`
	IsActive        bool       `json:"is_active"`
	QueryCount      int64      `json:"query_count"`
	AnnotationCount int64      `json:"annotation_count"`
	ActiveSeconds   int64      `json:"active_seconds"`
	JoinedAt        time.Time  `json:"joined_at"`
	LastActiveAt    *time.Time `json:"last_active_at"`
}

type UpdateParticipantRequest struct {
	SessionId uuid.UUID `json:"-"`
	UserId    uuid.UUID `json:"user_id" validate:"required"`
	Role      *string   `json:"role" validate:"omitempty,oneof=searcher observer moderator"`
}
