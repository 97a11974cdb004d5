package implementation

import (
	"context"
	"errors"

	"collabsearch-be/internal/entity"
	"collabsearch-be/internal/mapper"
	"collabsearch-be/internal/model"
	"collabsearch-be/internal/repository/contract"
	"collabsearch-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SearchSessionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.SearchSessionMapper
}

func NewSearchSessionRepository(db *gorm.DB) contract.SearchSessionRepository {
	return &SearchSessionRepositoryImpl{
		db:     db,
		mapper: mapper.NewSearchSessionMapper(),
	}
}

func (r *SearchSessionRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *SearchSessionRepositoryImpl) Create(ctx context.Context, session *entity.SearchSession) error {
	m := r.mapper.ToModel(session)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*session = *r.mapper.ToEntity(m)
	return nil
}

func (r *SearchSessionRepositoryImpl) Update(ctx context.Context, session *entity.SearchSession) error {
	m := r.mapper.ToModel(session)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*session = *r.mapper.ToEntity(m)
	return nil
}

func (r *SearchSessionRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.SearchSession{}, id).Error
}

func (r *SearchSessionRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.SearchSession, error) {
	var m model.SearchSession
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *SearchSessionRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.SearchSession, error) {
	var models []*model.SearchSession
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *SearchSessionRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.SearchSession{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
