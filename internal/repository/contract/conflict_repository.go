package contract

import (
	"context"

	"collabsearch-be/internal/entity"
	"collabsearch-be/internal/repository/specification"

	"github.com/google/uuid"
)

type ConflictRepository interface {
	Create(ctx context.Context, record *entity.ConflictRecord) error
	Update(ctx context.Context, record *entity.ConflictRecord) error

	// CancelBySession marks every pending conflict of a deleted session as
	// cancelled; they are moot once the session is gone.
	CancelBySession(ctx context.Context, sessionId uuid.UUID) error

	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ConflictRecord, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ConflictRecord, error)
}
