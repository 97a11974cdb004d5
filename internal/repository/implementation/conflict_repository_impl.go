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

type ConflictRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ConflictMapper
}

func NewConflictRepository(db *gorm.DB) contract.ConflictRepository {
	return &ConflictRepositoryImpl{
		db:     db,
		mapper: mapper.NewConflictMapper(),
	}
}

func (r *ConflictRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ConflictRepositoryImpl) Create(ctx context.Context, record *entity.ConflictRecord) error {
	m := r.mapper.ToModel(record)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*record = *r.mapper.ToEntity(m)
	return nil
}

func (r *ConflictRepositoryImpl) Update(ctx context.Context, record *entity.ConflictRecord) error {
	m := r.mapper.ToModel(record)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*record = *r.mapper.ToEntity(m)
	return nil
}

func (r *ConflictRepositoryImpl) CancelBySession(ctx context.Context, sessionId uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&model.ConflictRecord{}).
		Where("session_id = ? AND status = ?", sessionId, string(entity.ConflictPending)).
		Update("status", string(entity.ConflictCancelled)).Error
}

func (r *ConflictRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ConflictRecord, error) {
	var m model.ConflictRecord
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *ConflictRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ConflictRecord, error) {
	var models []*model.ConflictRecord
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}
