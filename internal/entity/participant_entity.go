package entity

import (
	"time"

	"github.com/google/uuid"
)

type ParticipantRole string

const (
	RoleSearcher  ParticipantRole = "searcher"
	RoleObserver  ParticipantRole = "observer"
	RoleModerator ParticipantRole = "moderator"
)

// Capabilities are derived from the role on join; they gate every mutating
// operation in the engine.
type Capabilities struct {
	CanModifyFilters bool
	CanAnnotate      bool
	CanBookmark      bool
	CanInvite        bool
	CanModerate      bool
}

func (r ParticipantRole) Capabilities() Capabilities {
	switch r {
	case RoleModerator:
		return Capabilities{
			CanModifyFilters: true,
			CanAnnotate:      true,
			CanBookmark:      true,
			CanInvite:        true,
			CanModerate:      true,
		}
	case RoleSearcher:
		return Capabilities{
			CanModifyFilters: true,
			CanAnnotate:      true,
			CanBookmark:      true,
		}
	case RoleObserver:
		return Capabilities{
			CanBookmark: true,
		}
	default:
		return Capabilities{}
	}
}

func (r ParticipantRole) Valid() bool {
	switch r {
	case RoleSearcher, RoleObserver, RoleModerator:
		return true
	}
	return false
}

// Participant is never hard-deleted: metrics survive leave/rejoin cycles.
type Participant struct {
	Id              uuid.UUID
	SessionId       uuid.UUID
	UserId          uuid.UUID
	Role            ParticipantRole
	IsActive        bool
	QueryCount      int64
	AnnotationCount int64
	ActiveSeconds   int64
	JoinedAt        time.Time
	LastActiveAt    *time.Time
	LeftAt          *time.Time
}
