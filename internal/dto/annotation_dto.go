package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type CreateAnnotationRequest struct {
	SessionId      uuid.UUID       `json:"-"`
	TargetResultId string          `json:"target_result_id" validate:"required,max=255"`
	TargetType     string          `json:"target_type" validate:"omitempty,max=64"`
	Type           string          `json:"type" validate:"required,oneof=highlight note bookmark flag question suggestion"`
	Content        string          `json:"content"`
	Selection      json.RawMessage `json:"selection"`
	IsShared       bool            `json:"is_shared"`
	ParentId       *uuid.UUID      `json:"parent_id"`
	Mentions       []uuid.UUID     `json:"mentions"`
}

type UpdateAnnotationRequest struct {
	Id        uuid.UUID       `json:"-"`
	Content   *string         `json:"content"`
	Selection json.RawMessage `json:"selection"`
	IsShared  *bool           `json:"is_shared"`
	Mentions  []uuid.UUID     `json:"mentions"`
}

type AnnotationResponse struct {
	Id             uuid.UUID       `json:"id"`
	SessionId      uuid.UUID       `json:"session_id"`
	AuthorId       uuid.UUID       `json:"author_id"`
	TargetResultId string          `json:"target_result_id"`
	TargetType     string          `json:"target_type,omitempty"`
	Type           string          `json:"type"`
	Content        string          `json:"content,omitempty"`
	Selection      json.RawMessage `json:"selection,omitempty"`
	IsShared       bool            `json:"is_shared"`
	IsResolved     bool            `json:"is_resolved"`
	ResolvedBy     *uuid.UUID      `json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time      `json:"resolved_at,omitempty"`
	ParentId       *uuid.UUID      `json:"parent_id,omitempty"`
	Mentions       []uuid.UUID     `json:"mentions,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      *time.Time      `json:"updated_at"`
}
