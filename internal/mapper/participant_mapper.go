package mapper

import (
	"collabsearch-be/internal/entity"
	"collabsearch-be/internal/model"
)

type ParticipantMapper struct{}

func NewParticipantMapper() *ParticipantMapper {
	return &ParticipantMapper{}
}

func (m *ParticipantMapper) ToEntity(p *model.SearchParticipant) *entity.Participant {
	if p == nil {
		return nil
	}

	return &entity.Participant{
		Id:              p.Id,
		SessionId:       p.SessionId,
		UserId:          p.UserId,
		Role:            entity.ParticipantRole(p.Role),
		IsActive:        p.IsActive,
		QueryCount:      p.QueryCount,
		AnnotationCount: p.AnnotationCount,
		ActiveSeconds:   p.ActiveSeconds,
		JoinedAt:        p.JoinedAt,
		LastActiveAt:    p.LastActiveAt,
		LeftAt:          p.LeftAt,
	}
}

func (m *ParticipantMapper) ToModel(p *entity.Participant) *model.SearchParticipant {
	if p == nil {
		return nil
	}

	return &model.SearchParticipant{
		Id:              p.Id,
		SessionId:       p.SessionId,
		UserId:          p.UserId,
		Role:            string(p.Role),
		IsActive:        p.IsActive,
		QueryCount:      p.QueryCount,
		AnnotationCount: p.AnnotationCount,
		ActiveSeconds:   p.ActiveSeconds,
		JoinedAt:        p.JoinedAt,
		LastActiveAt:    p.LastActiveAt,
		LeftAt:          p.LeftAt,
	}
}

func (m *ParticipantMapper) ToEntities(participants []*model.SearchParticipant) []*entity.Participant {
	entities := make([]*entity.Participant, len(participants))
	for i, p := range participants {
		entities[i] = m.ToEntity(p)
	}
	return entities
}
