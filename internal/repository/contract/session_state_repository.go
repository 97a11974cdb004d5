package contract

import (
	"context"

	"collabsearch-be/internal/entity"
	"collabsearch-be/internal/repository/specification"

	"github.com/google/uuid"
)

type SessionStateRepository interface {
	Create(ctx context.Context, entry *entity.StateEntry) error

	// UpdateWithVersion performs the compare-and-swap write: the row is
	// updated only if its stored version still equals expectedVersion.
	// Returns false when another writer got there first.
	UpdateWithVersion(ctx context.Context, entry *entity.StateEntry, expectedVersion int64) (bool, error)

	// SetBlocked toggles the manual-conflict block flag for a key.
	SetBlocked(ctx context.Context, sessionId uuid.UUID, key string, blocked bool) error

	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.StateEntry, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.StateEntry, error)
}
