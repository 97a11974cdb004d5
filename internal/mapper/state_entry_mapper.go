package mapper

import (
	"encoding/json"
	"time"

	"collabsearch-be/internal/entity"
	"collabsearch-be/internal/model"

	"gorm.io/datatypes"
)

type StateEntryMapper struct{}

func NewStateEntryMapper() *StateEntryMapper {
	return &StateEntryMapper{}
}

func (m *StateEntryMapper) ToEntity(e *model.SessionStateEntry) *entity.StateEntry {
	if e == nil {
		return nil
	}

	var updatedAt *time.Time
	if !e.UpdatedAt.IsZero() {
		t := e.UpdatedAt
		updatedAt = &t
	}

	return &entity.StateEntry{
		Id:             e.Id,
		SessionId:      e.SessionId,
		Key:            e.StateKey,
		Value:          json.RawMessage(e.Value),
		Version:        e.Version,
		StateHash:      e.StateHash,
		LastModifiedBy: e.LastModifiedBy,
		LastModifiedAt: e.LastModifiedAt,
		Strategy:       entity.ResolutionStrategy(e.Strategy),
		ChangeSource:   entity.ChangeSource(e.ChangeSource),
		PreviousValue:  json.RawMessage(e.PreviousValue),
		Blocked:        e.Blocked,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      updatedAt,
	}
}

func (m *StateEntryMapper) ToModel(e *entity.StateEntry) *model.SessionStateEntry {
	if e == nil {
		return nil
	}

	var updatedAt time.Time
	if e.UpdatedAt != nil {
		updatedAt = *e.UpdatedAt
	}

	return &model.SessionStateEntry{
		Id:             e.Id,
		SessionId:      e.SessionId,
		StateKey:       e.Key,
		Value:          datatypes.JSON(e.Value),
		Version:        e.Version,
		StateHash:      e.StateHash,
		LastModifiedBy: e.LastModifiedBy,
		LastModifiedAt: e.LastModifiedAt,
		Strategy:       string(e.Strategy),
		ChangeSource:   string(e.ChangeSource),
		PreviousValue:  datatypes.JSON(e.PreviousValue),
		Blocked:        e.Blocked,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      updatedAt,
	}
}

func (m *StateEntryMapper) ToEntities(entries []*model.SessionStateEntry) []*entity.StateEntry {
	entities := make([]*entity.StateEntry, len(entries))
	for i, e := range entries {
		entities[i] = m.ToEntity(e)
	}
	return entities
}
