package contract

import (
	"context"

	"collabsearch-be/internal/entity"
	"collabsearch-be/internal/repository/specification"

	"github.com/google/uuid"
)

type AnnotationRepository interface {
	Create(ctx context.Context, annotation *entity.Annotation) error
	Update(ctx context.Context, annotation *entity.Annotation) error
	Delete(ctx context.Context, id uuid.UUID) error // soft
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Annotation, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Annotation, error)
}
