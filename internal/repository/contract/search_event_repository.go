package contract

import (
	"context"

	"collabsearch-be/internal/entity"
	"collabsearch-be/internal/repository/specification"

	"github.com/google/uuid"
)

type SearchEventRepository interface {
	// NextSequence atomically increments and returns the per-session
	// counter. Serialized at the persistence layer so gateway replicas
	// sharing one database never hand out the same number twice.
	NextSequence(ctx context.Context, sessionId uuid.UUID) (int64, error)

	Append(ctx context.Context, event *entity.SearchEvent) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.SearchEvent, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
