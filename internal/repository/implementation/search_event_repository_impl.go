package implementation

import (
	"context"

	"collabsearch-be/internal/entity"
	"collabsearch-be/internal/mapper"
	"collabsearch-be/internal/model"
	"collabsearch-be/internal/repository/contract"
	"collabsearch-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SearchEventRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.SearchEventMapper
}

func NewSearchEventRepository(db *gorm.DB) contract.SearchEventRepository {
	return &SearchEventRepositoryImpl{
		db:     db,
		mapper: mapper.NewSearchEventMapper(),
	}
}

func (r *SearchEventRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

// NextSequence increments the per-session counter row in a single statement.
// The upsert keeps assignment atomic under concurrent appends from any
// replica, so accepted events get consecutive numbers with no reuse.
func (r *SearchEventRepositoryImpl) NextSequence(ctx context.Context, sessionId uuid.UUID) (int64, error) {
	var seq int64
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO session_sequences (session_id, value)
		VALUES (?, 1)
		ON CONFLICT (session_id)
		DO UPDATE SET value = session_sequences.value + 1
		RETURNING value`, sessionId).Scan(&seq).Error
	if err != nil {
		return 0, err
	}
	return seq, nil
}

func (r *SearchEventRepositoryImpl) Append(ctx context.Context, event *entity.SearchEvent) error {
	m := r.mapper.ToModel(event)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*event = *r.mapper.ToEntity(m)
	return nil
}

func (r *SearchEventRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.SearchEvent, error) {
	var models []*model.SearchEvent
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *SearchEventRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.SearchEvent{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
