package mapper

import (
	"encoding/json"

	"collabsearch-be/internal/entity"
	"collabsearch-be/internal/model"

	"gorm.io/datatypes"
)

type ConflictMapper struct{}

func NewConflictMapper() *ConflictMapper {
	return &ConflictMapper{}
}

func (m *ConflictMapper) ToEntity(c *model.ConflictRecord) *entity.ConflictRecord {
	if c == nil {
		return nil
	}

	var candidates []entity.ConflictCandidate
	if len(c.Candidates) > 0 {
		_ = json.Unmarshal(c.Candidates, &candidates)
	}

	return &entity.ConflictRecord{
		Id:            c.Id,
		SessionId:     c.SessionId,
		Key:           c.StateKey,
		Candidates:    candidates,
		Strategy:      entity.ResolutionStrategy(c.Strategy),
		Status:        entity.ConflictStatus(c.Status),
		ResolvedValue: json.RawMessage(c.ResolvedValue),
		ResolvedBy:    c.ResolvedBy,
		ResolvedAt:    c.ResolvedAt,
		CreatedAt:     c.CreatedAt,
	}
}

func (m *ConflictMapper) ToModel(c *entity.ConflictRecord) *model.ConflictRecord {
	if c == nil {
		return nil
	}

	var candidates datatypes.JSON
	if len(c.Candidates) > 0 {
		raw, _ := json.Marshal(c.Candidates)
		candidates = datatypes.JSON(raw)
	}

	return &model.ConflictRecord{
		Id:            c.Id,
		SessionId:     c.SessionId,
		StateKey:      c.Key,
		Candidates:    candidates,
		Strategy:      string(c.Strategy),
		Status:        string(c.Status),
		ResolvedValue: datatypes.JSON(c.ResolvedValue),
		ResolvedBy:    c.ResolvedBy,
		ResolvedAt:    c.ResolvedAt,
		CreatedAt:     c.CreatedAt,
	}
}

func (m *ConflictMapper) ToEntities(records []*model.ConflictRecord) []*entity.ConflictRecord {
	entities := make([]*entity.ConflictRecord, len(records))
	for i, c := range records {
		entities[i] = m.ToEntity(c)
	}
	return entities
}
