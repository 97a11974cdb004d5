package contract

import (
	"context"

	"collabsearch-be/internal/entity"
	"collabsearch-be/internal/repository/specification"

	"github.com/google/uuid"
)

type SearchSessionRepository interface {
	Create(ctx context.Context, session *entity.SearchSession) error
	Update(ctx context.Context, session *entity.SearchSession) error
	Delete(ctx context.Context, id uuid.UUID) error // soft
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.SearchSession, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.SearchSession, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
