package integration

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"testing"
	"time"

	"collabsearch-be/internal/entity"
	"collabsearch-be/internal/repository/specification"
	"collabsearch-be/internal/repository/unitofwork"
	"collabsearch-be/pkg/database"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormConnection(t *testing.T) {
	// Load .env from root
	err := godotenv.Load("../../.env")
	if err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	gormDB, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		t.Fatalf("Failed to connect to DB: %v", err)
	}
	require.NoError(t, database.Migrate(gormDB))

	// Verify Wiring
	uowFactory := unitofwork.NewRepositoryFactory(gormDB)
	uow := uowFactory.NewUnitOfWork(context.Background())

	assert.NotNil(t, uow.SearchSessionRepository())
	assert.NotNil(t, uow.SearchEventRepository())

	// Basic Ping
	sqlDB, _ := gormDB.DB()
	err = sqlDB.Ping()
	assert.NoError(t, err)
	t.Log("Successfully connected to DB and initialized UnitOfWork Factory")

	t.Run("Check Session Repository", func(t *testing.T) {
		count, err := uow.SearchSessionRepository().Count(context.Background())
		assert.NoError(t, err)
		t.Logf("Session count: %d", count)
	})

	t.Run("Check Transactional Session Create", func(t *testing.T) {
		ctx := context.Background()
		err := uow.Begin(ctx)
		assert.NoError(t, err)
		defer uow.Rollback()

		sessionId := uuid.New()
		creator := uuid.New()
		now := time.Now().UTC()
		session := &entity.SearchSession{
			Id:              sessionId,
			CollabSessionId: uuid.New(),
			WorkspaceId:     uuid.New(),
			Name:            "integration-" + uuid.New().String(),
			CreatedBy:       creator,
			IsActive:        true,
			Settings:        entity.SessionSettings{MaxParticipants: 10},
			CreatedAt:       now,
		}
		err = uow.SearchSessionRepository().Create(ctx, session)
		assert.NoError(t, err)

		participant := &entity.Participant{
			Id:        uuid.New(),
			SessionId: sessionId,
			UserId:    creator,
			Role:      entity.RoleModerator,
			IsActive:  true,
			JoinedAt:  now,
		}
		err = uow.ParticipantRepository().Create(ctx, participant)
		assert.NoError(t, err)

		err = uow.Commit()
		assert.NoError(t, err)

		t.Log("Successfully created Session with Participant in Transaction")
	})

	t.Run("Check Sequence Counter", func(t *testing.T) {
		ctx := context.Background()
		sessionId := uuid.New()

		first, err := uow.SearchEventRepository().NextSequence(ctx, sessionId)
		assert.NoError(t, err)
		second, err := uow.SearchEventRepository().NextSequence(ctx, sessionId)
		assert.NoError(t, err)
		assert.Equal(t, first+1, second)
	})

	t.Run("Check Versioned State Update", func(t *testing.T) {
		ctx := context.Background()
		sessionId := uuid.New()

		entry := &entity.StateEntry{
			Id:             uuid.New(),
			SessionId:      sessionId,
			Key:            "filters",
			Value:          json.RawMessage(`{"year":2024}`),
			Version:        1,
			LastModifiedBy: uuid.New(),
			LastModifiedAt: time.Now().UTC(),
			Strategy:       entity.StrategyLastWriteWins,
			ChangeSource:   entity.SourceUser,
			CreatedAt:      time.Now().UTC(),
		}
		err := uow.SessionStateRepository().Create(ctx, entry)
		assert.NoError(t, err)

		next := *entry
		next.Value = json.RawMessage(`{"year":2025}`)
		next.Version = 2
		ok, err := uow.SessionStateRepository().UpdateWithVersion(ctx, &next, 1)
		assert.NoError(t, err)
		assert.True(t, ok)

		// A second writer with the stale version must lose the swap.
		stale := *entry
		stale.Value = json.RawMessage(`{"year":2026}`)
		stale.Version = 2
		ok, err = uow.SessionStateRepository().UpdateWithVersion(ctx, &stale, 1)
		assert.NoError(t, err)
		assert.False(t, ok)

		stored, err := uow.SessionStateRepository().FindOne(ctx,
			specification.BySessionID{SessionID: sessionId},
			specification.ByStateKey{Key: "filters"},
		)
		assert.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, int64(2), stored.Version)
	})
}
