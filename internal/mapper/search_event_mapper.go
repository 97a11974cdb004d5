package mapper

import (
	"encoding/json"

	"collabsearch-be/internal/entity"
	"collabsearch-be/internal/model"

	"gorm.io/datatypes"
)

type SearchEventMapper struct{}

func NewSearchEventMapper() *SearchEventMapper {
	return &SearchEventMapper{}
}

func (m *SearchEventMapper) ToEntity(e *model.SearchEvent) *entity.SearchEvent {
	if e == nil {
		return nil
	}

	return &entity.SearchEvent{
		Id:              e.Id,
		SessionId:       e.SessionId,
		SequenceNumber:  e.SequenceNumber,
		Type:            e.Type,
		ActorId:         e.ActorId,
		Before:          json.RawMessage(e.Before),
		After:           json.RawMessage(e.After),
		DebounceGroupId: e.DebounceGroupId,
		BatchId:         e.BatchId,
		CreatedAt:       e.CreatedAt,
	}
}

func (m *SearchEventMapper) ToModel(e *entity.SearchEvent) *model.SearchEvent {
	if e == nil {
		return nil
	}

	return &model.SearchEvent{
		Id:              e.Id,
		SessionId:       e.SessionId,
		SequenceNumber:  e.SequenceNumber,
		Type:            e.Type,
		ActorId:         e.ActorId,
		Before:          datatypes.JSON(e.Before),
		After:           datatypes.JSON(e.After),
		DebounceGroupId: e.DebounceGroupId,
		BatchId:         e.BatchId,
		CreatedAt:       e.CreatedAt,
	}
}

func (m *SearchEventMapper) ToEntities(events []*model.SearchEvent) []*entity.SearchEvent {
	entities := make([]*entity.SearchEvent, len(events))
	for i, e := range events {
		entities[i] = m.ToEntity(e)
	}
	return entities
}
