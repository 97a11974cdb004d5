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

type SessionStateRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.StateEntryMapper
}

func NewSessionStateRepository(db *gorm.DB) contract.SessionStateRepository {
	return &SessionStateRepositoryImpl{
		db:     db,
		mapper: mapper.NewStateEntryMapper(),
	}
}

func (r *SessionStateRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *SessionStateRepositoryImpl) Create(ctx context.Context, entry *entity.StateEntry) error {
	m := r.mapper.ToModel(entry)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*entry = *r.mapper.ToEntity(m)
	return nil
}

// UpdateWithVersion is the optimistic-concurrency write. The WHERE version
// guard makes the swap atomic across replicas sharing one database; a zero
// RowsAffected means a concurrent writer won and the caller must re-read.
func (r *SessionStateRepositoryImpl) UpdateWithVersion(ctx context.Context, entry *entity.StateEntry, expectedVersion int64) (bool, error) {
	m := r.mapper.ToModel(entry)

	res := r.db.WithContext(ctx).
		Model(&model.SessionStateEntry{}).
		Where("session_id = ? AND state_key = ? AND version = ?", m.SessionId, m.StateKey, expectedVersion).
		Updates(map[string]interface{}{
			"value":            m.Value,
			"version":          m.Version,
			"state_hash":       m.StateHash,
			"last_modified_by": m.LastModifiedBy,
			"last_modified_at": m.LastModifiedAt,
			"strategy":         m.Strategy,
			"change_source":    m.ChangeSource,
			"previous_value":   m.PreviousValue,
			"blocked":          m.Blocked,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *SessionStateRepositoryImpl) SetBlocked(ctx context.Context, sessionId uuid.UUID, key string, blocked bool) error {
	return r.db.WithContext(ctx).
		Model(&model.SessionStateEntry{}).
		Where("session_id = ? AND state_key = ?", sessionId, key).
		Update("blocked", blocked).Error
}

func (r *SessionStateRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.StateEntry, error) {
	var m model.SessionStateEntry
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *SessionStateRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.StateEntry, error) {
	var models []*model.SessionStateEntry
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}
