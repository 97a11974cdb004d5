package unitofwork

import (
	"context"

	"collabsearch-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	SearchSessionRepository() contract.SearchSessionRepository
	ParticipantRepository() contract.ParticipantRepository
	SessionStateRepository() contract.SessionStateRepository
	SearchEventRepository() contract.SearchEventRepository
	AnnotationRepository() contract.AnnotationRepository
	ConflictRepository() contract.ConflictRepository
}
