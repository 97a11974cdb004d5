package mapper

import (
	"time"

	"collabsearch-be/internal/entity"
	"collabsearch-be/internal/model"

	"gorm.io/gorm"
)

type SearchSessionMapper struct{}

func NewSearchSessionMapper() *SearchSessionMapper {
	return &SearchSessionMapper{}
}

func (m *SearchSessionMapper) ToEntity(s *model.SearchSession) *entity.SearchSession {
	if s == nil {
		return nil
	}

	var deletedAt *time.Time
	if s.DeletedAt.Valid {
		t := s.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		updatedAt = &t
	}

	return &entity.SearchSession{
		Id:              s.Id,
		CollabSessionId: s.CollabSessionId,
		WorkspaceId:     s.WorkspaceId,
		Name:            s.Name,
		CreatedBy:       s.CreatedBy,
		IsActive:        s.IsActive,
		IsPersistent:    s.IsPersistent,
		Settings: entity.SessionSettings{
			MaxParticipants:   s.MaxParticipants,
			AllowAnonymous:    s.AllowAnonymous,
			RequireModeration: s.RequireModeration,
		},
		CreatedAt: s.CreatedAt,
		UpdatedAt: updatedAt,
		DeletedAt: deletedAt,
		IsDeleted: s.DeletedAt.Valid,
	}
}

func (m *SearchSessionMapper) ToModel(s *entity.SearchSession) *model.SearchSession {
	if s == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if s.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *s.DeletedAt, Valid: true}
	} else if s.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	var updatedAt time.Time
	if s.UpdatedAt != nil {
		updatedAt = *s.UpdatedAt
	}

	return &model.SearchSession{
		Id:                s.Id,
		CollabSessionId:   s.CollabSessionId,
		WorkspaceId:       s.WorkspaceId,
		Name:              s.Name,
		CreatedBy:         s.CreatedBy,
		IsActive:          s.IsActive,
		IsPersistent:      s.IsPersistent,
		MaxParticipants:   s.Settings.MaxParticipants,
		AllowAnonymous:    s.Settings.AllowAnonymous,
		RequireModeration: s.Settings.RequireModeration,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         updatedAt,
		DeletedAt:         deletedAt,
	}
}

func (m *SearchSessionMapper) ToEntities(sessions []*model.SearchSession) []*entity.SearchSession {
	entities := make([]*entity.SearchSession, len(sessions))
	for i, s := range sessions {
		entities[i] = m.ToEntity(s)
	}
	return entities
}
