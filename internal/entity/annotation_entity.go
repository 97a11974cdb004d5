package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type AnnotationType string

const (
	AnnotationHighlight  AnnotationType = "highlight"
	AnnotationNote       AnnotationType = "note"
	AnnotationBookmark   AnnotationType = "bookmark"
	AnnotationFlag       AnnotationType = "flag"
	AnnotationQuestion   AnnotationType = "question"
	AnnotationSuggestion AnnotationType = "suggestion"
)

func (t AnnotationType) Valid() bool {
	switch t {
	case AnnotationHighlight, AnnotationNote, AnnotationBookmark,
		AnnotationFlag, AnnotationQuestion, AnnotationSuggestion:
		return true
	}
	return false
}

type Annotation struct {
	Id             uuid.UUID
	SessionId      uuid.UUID
	AuthorId       uuid.UUID
	TargetResultId string
	TargetType     string
	Type           AnnotationType
	Content        string
	Selection      json.RawMessage
	IsShared       bool
	IsResolved     bool
	ResolvedBy     *uuid.UUID
	ResolvedAt     *time.Time
	ParentId       *uuid.UUID
	Mentions       []uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      *time.Time
	DeletedAt      *time.Time
	IsDeleted      bool
}
