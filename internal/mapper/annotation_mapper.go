package mapper

import (
	"encoding/json"
	"time"

	"collabsearch-be/internal/entity"
	"collabsearch-be/internal/model"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AnnotationMapper struct{}

func NewAnnotationMapper() *AnnotationMapper {
	return &AnnotationMapper{}
}

func (m *AnnotationMapper) ToEntity(a *model.SearchAnnotation) *entity.Annotation {
	if a == nil {
		return nil
	}

	var deletedAt *time.Time
	if a.DeletedAt.Valid {
		t := a.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !a.UpdatedAt.IsZero() {
		t := a.UpdatedAt
		updatedAt = &t
	}

	var mentions []uuid.UUID
	if len(a.Mentions) > 0 {
		// Corrupt mention payloads degrade to an empty list rather than failing the read.
		_ = json.Unmarshal(a.Mentions, &mentions)
	}

	return &entity.Annotation{
		Id:             a.Id,
		SessionId:      a.SessionId,
		AuthorId:       a.AuthorId,
		TargetResultId: a.TargetResultId,
		TargetType:     a.TargetType,
		Type:           entity.AnnotationType(a.Type),
		Content:        a.Content,
		Selection:      json.RawMessage(a.Selection),
		IsShared:       a.IsShared,
		IsResolved:     a.IsResolved,
		ResolvedBy:     a.ResolvedBy,
		ResolvedAt:     a.ResolvedAt,
		ParentId:       a.ParentId,
		Mentions:       mentions,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      updatedAt,
		DeletedAt:      deletedAt,
		IsDeleted:      a.DeletedAt.Valid,
	}
}

func (m *AnnotationMapper) ToModel(a *entity.Annotation) *model.SearchAnnotation {
	if a == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if a.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *a.DeletedAt, Valid: true}
	} else if a.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	var updatedAt time.Time
	if a.UpdatedAt != nil {
		updatedAt = *a.UpdatedAt
	}

	var mentions datatypes.JSON
	if len(a.Mentions) > 0 {
		raw, _ := json.Marshal(a.Mentions)
		mentions = datatypes.JSON(raw)
	}

	return &model.SearchAnnotation{
		Id:             a.Id,
		SessionId:      a.SessionId,
		AuthorId:       a.AuthorId,
		TargetResultId: a.TargetResultId,
		TargetType:     a.TargetType,
		Type:           string(a.Type),
		Content:        a.Content,
		Selection:      datatypes.JSON(a.Selection),
		IsShared:       a.IsShared,
		IsResolved:     a.IsResolved,
		ResolvedBy:     a.ResolvedBy,
		ResolvedAt:     a.ResolvedAt,
		ParentId:       a.ParentId,
		Mentions:       mentions,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      updatedAt,
		DeletedAt:      deletedAt,
	}
}

func (m *AnnotationMapper) ToEntities(annotations []*model.SearchAnnotation) []*entity.Annotation {
	entities := make([]*entity.Annotation, len(annotations))
	for i, a := range annotations {
		entities[i] = m.ToEntity(a)
	}
	return entities
}
