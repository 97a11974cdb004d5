package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"collabsearch-be/internal/dto"
	"collabsearch-be/internal/pkg/apperrors"
	"collabsearch-be/internal/websocket/wire"
	"collabsearch-be/pkg/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) updateState(t *testing.T, userId uuid.UUID, req *dto.UpdateStateRequest) *dto.StateEntryResponse {
	t.Helper()
	entry, err := e.state.UpdateState(context.Background(), userId, req)
	require.NoError(t, err)
	return entry
}

func TestFirstWriteCreatesVersionOne(t *testing.T) {
	env := newTestEnv(t, 10*time.Millisecond)
	creator := uuid.New()
	session := env.createSession(t, creator, 5, false)

	entry := env.updateState(t, creator, &dto.UpdateStateRequest{
		SessionId: session.Id,
		Key:       "filters",
		Value:     json.RawMessage(`{"year":2024}`),
	})

	assert.Equal(t, int64(1), entry.Version)
	assert.Equal(t, "user", entry.ChangeSource)
	assert.Len(t, entry.StateHash, 64)
	assert.Equal(t, creator, entry.LastModifiedBy)
}

func TestCleanCompareAndSwapAdvancesVersion(t *testing.T) {
	env := newTestEnv(t, 10*time.Millisecond)
	creator := uuid.New()
	session := env.createSession(t, creator, 5, false)

	env.updateState(t, creator, &dto.UpdateStateRequest{
		SessionId: session.Id,
		Key:       "filters",
		Value:     json.RawMessage(`{"year":2024}`),
	})
	entry := env.updateState(t, creator, &dto.UpdateStateRequest{
		SessionId:       session.Id,
		Key:             "filters",
		Value:           json.RawMessage(`{"year":2025}`),
		ExpectedVersion: 1,
	})

	assert.Equal(t, int64(2), entry.Version)

	fetched, err := env.state.GetState(context.Background(), session.Id, creator, "filters")
	require.NoError(t, err)
	assert.JSONEq(t, `{"year":2025}`, string(fetched.Value))
}

func TestStaleLastWriteWinsIsAcceptedAndAudited(t *testing.T) {
	env := newTestEnv(t, 10*time.Millisecond)
	creator := uuid.New()
	session := env.createSession(t, creator, 5, false)
	other := uuid.New()
	env.join(t, session.Id, other, "searcher")

	env.updateState(t, creator, &dto.UpdateStateRequest{
		SessionId: session.Id,
		Key:       "filters",
		Value:     json.RawMessage(`{"year":2024}`),
	})

	// The second writer never saw version 1, yet last-write-wins lets the
	// late write through.
	entry := env.updateState(t, other, &dto.UpdateStateRequest{
		SessionId:       session.Id,
		Key:             "filters",
		Value:           json.RawMessage(`{"year":2026}`),
		ExpectedVersion: 0,
		Strategy:        "last_write_wins",
	})
	assert.Equal(t, int64(2), entry.Version)
	assert.JSONEq(t, `{"year":2026}`, string(entry.Value))

	// The discarded write left a resolved audit record behind.
	records, err := env.state.ListConflicts(context.Background(), session.Id, creator, false)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "resolved", records[0].Status)
	assert.Equal(t, "last_write_wins", records[0].Strategy)
	assert.JSONEq(t, `{"year":2026}`, string(records[0].ResolvedValue))
}

func TestStaleMergeCombinesDisjointChanges(t *testing.T) {
	env := newTestEnv(t, 10*time.Millisecond)
	creator := uuid.New()
	session := env.createSession(t, creator, 5, false)
	other := uuid.New()
	env.join(t, session.Id, other, "searcher")

	env.updateState(t, creator, &dto.UpdateStateRequest{
		SessionId: session.Id,
		Key:       "filters",
		Value:     json.RawMessage(`{"a":1}`),
	})
	env.updateState(t, creator, &dto.UpdateStateRequest{
		SessionId:       session.Id,
		Key:             "filters",
		Value:           json.RawMessage(`{"a":1,"b":2}`),
		ExpectedVersion: 1,
	})

	// Both writers diverged from version 1 but touched different keys.
	entry := env.updateState(t, other, &dto.UpdateStateRequest{
		SessionId:       session.Id,
		Key:             "filters",
		Value:           json.RawMessage(`{"a":1,"c":3}`),
		ExpectedVersion: 1,
		Strategy:        "merge",
	})

	assert.Equal(t, int64(3), entry.Version)
	assert.Equal(t, "merge", entry.ChangeSource)
	assert.JSONEq(t, `{"a":1,"b":2,"c":3}`, string(entry.Value))
}

func TestManualStrategyRaisesBlockingConflict(t *testing.T) {
	env := newTestEnv(t, 10*time.Millisecond)
	creator := uuid.New()
	session := env.createSession(t, creator, 5, false)
	other := uuid.New()
	env.join(t, session.Id, other, "searcher")

	env.updateState(t, creator, &dto.UpdateStateRequest{
		SessionId: session.Id,
		Key:       "filters",
		Value:     json.RawMessage(`{"year":2024}`),
	})

	_, err := env.state.UpdateState(context.Background(), other, &dto.UpdateStateRequest{
		SessionId:       session.Id,
		Key:             "filters",
		Value:           json.RawMessage(`{"year":2026}`),
		ExpectedVersion: 0,
		Strategy:        "manual",
	})
	require.True(t, apperrors.IsCode(err, apperrors.CodeConflict))
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.NotEqual(t, uuid.Nil, appErr.ConflictId)

	// The key is blocked: even a clean write is rejected until resolution.
	_, err = env.state.UpdateState(context.Background(), creator, &dto.UpdateStateRequest{
		SessionId:       session.Id,
		Key:             "filters",
		Value:           json.RawMessage(`{"year":2025}`),
		ExpectedVersion: 1,
	})
	require.True(t, apperrors.IsCode(err, apperrors.CodeConflict))
	blockedErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, appErr.ConflictId, blockedErr.ConflictId)

	pending, err := env.state.ListConflicts(context.Background(), session.Id, creator, true)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "pending", pending[0].Status)
	assert.Len(t, pending[0].Candidates, 2)

	assert.Len(t, env.bus.ofType(events.TypeConflictDetected), 1)
}

func TestResolveConflictUnblocksKey(t *testing.T) {
	env := newTestEnv(t, 10*time.Millisecond)
	creator := uuid.New()
	session := env.createSession(t, creator, 5, false)
	other := uuid.New()
	env.join(t, session.Id, other, "searcher")

	env.updateState(t, creator, &dto.UpdateStateRequest{
		SessionId: session.Id,
		Key:       "filters",
		Value:     json.RawMessage(`{"year":2024}`),
	})
	_, err := env.state.UpdateState(context.Background(), other, &dto.UpdateStateRequest{
		SessionId: session.Id,
		Key:       "filters",
		Value:     json.RawMessage(`{"year":2026}`),
		Strategy:  "manual",
	})
	appErr, ok := apperrors.As(err)
	require.True(t, ok)

	entry, err := env.state.ResolveConflict(context.Background(), creator, &dto.ResolveConflictRequest{
		ConflictId: appErr.ConflictId,
		Value:      json.RawMessage(`{"year":2026}`),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), entry.Version)
	assert.Equal(t, "system", entry.ChangeSource)
	assert.False(t, entry.Blocked)

	records, err := env.state.ListConflicts(context.Background(), session.Id, creator, false)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "resolved", records[0].Status)
	require.NotNil(t, records[0].ResolvedBy)
	assert.Equal(t, creator, *records[0].ResolvedBy)

	assert.Len(t, env.bus.ofType(events.TypeConflictResolved), 1)

	// Writes flow again once the key is unblocked.
	after := env.updateState(t, creator, &dto.UpdateStateRequest{
		SessionId:       session.Id,
		Key:             "filters",
		Value:           json.RawMessage(`{"year":2027}`),
		ExpectedVersion: 2,
	})
	assert.Equal(t, int64(3), after.Version)
}

func TestResolveSettledConflictRejected(t *testing.T) {
	env := newTestEnv(t, 10*time.Millisecond)
	creator := uuid.New()
	session := env.createSession(t, creator, 5, false)
	other := uuid.New()
	env.join(t, session.Id, other, "searcher")

	env.updateState(t, creator, &dto.UpdateStateRequest{
		SessionId: session.Id,
		Key:       "filters",
		Value:     json.RawMessage(`{"year":2024}`),
	})
	_, err := env.state.UpdateState(context.Background(), other, &dto.UpdateStateRequest{
		SessionId: session.Id,
		Key:       "filters",
		Value:     json.RawMessage(`{"year":2026}`),
		Strategy:  "manual",
	})
	appErr, _ := apperrors.As(err)

	_, err = env.state.ResolveConflict(context.Background(), creator, &dto.ResolveConflictRequest{
		ConflictId: appErr.ConflictId,
		Value:      json.RawMessage(`{"year":2026}`),
	})
	require.NoError(t, err)

	_, err = env.state.ResolveConflict(context.Background(), creator, &dto.ResolveConflictRequest{
		ConflictId: appErr.ConflictId,
		Value:      json.RawMessage(`{"year":2024}`),
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestObserverCannotModifyState(t *testing.T) {
	env := newTestEnv(t, 10*time.Millisecond)
	session := env.createSession(t, uuid.New(), 5, false)
	observer := uuid.New()
	env.join(t, session.Id, observer, "observer")

	_, err := env.state.UpdateState(context.Background(), observer, &dto.UpdateStateRequest{
		SessionId: session.Id,
		Key:       "filters",
		Value:     json.RawMessage(`{"year":2024}`),
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodePermission))
}

func TestResolutionAuthorizationFollowsModerationSetting(t *testing.T) {
	raiseConflict := func(t *testing.T, env *testEnv, requireModeration bool) (uuid.UUID, uuid.UUID, uuid.UUID) {
		creator := uuid.New()
		session := env.createSession(t, creator, 5, requireModeration)
		searcher := uuid.New()
		env.join(t, session.Id, searcher, "searcher")

		env.updateState(t, creator, &dto.UpdateStateRequest{
			SessionId: session.Id,
			Key:       "filters",
			Value:     json.RawMessage(`{"year":2024}`),
		})
		_, err := env.state.UpdateState(context.Background(), searcher, &dto.UpdateStateRequest{
			SessionId: session.Id,
			Key:       "filters",
			Value:     json.RawMessage(`{"year":2026}`),
			Strategy:  "manual",
		})
		appErr, ok := apperrors.As(err)
		require.True(t, ok)
		return session.Id, searcher, appErr.ConflictId
	}

	t.Run("moderated session restricts resolution to moderators", func(t *testing.T) {
		env := newTestEnv(t, 10*time.Millisecond)
		_, searcher, conflictId := raiseConflict(t, env, true)

		_, err := env.state.ResolveConflict(context.Background(), searcher, &dto.ResolveConflictRequest{
			ConflictId: conflictId,
			Value:      json.RawMessage(`{"year":2026}`),
		})
		assert.True(t, apperrors.IsCode(err, apperrors.CodePermission))
	})

	t.Run("unmoderated session lets any state writer resolve", func(t *testing.T) {
		env := newTestEnv(t, 10*time.Millisecond)
		_, searcher, conflictId := raiseConflict(t, env, false)

		entry, err := env.state.ResolveConflict(context.Background(), searcher, &dto.ResolveConflictRequest{
			ConflictId: conflictId,
			Value:      json.RawMessage(`{"year":2026}`),
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), entry.Version)
	})
}

func TestQueryWriteBroadcastsQueryUpdate(t *testing.T) {
	env := newTestEnv(t, 10*time.Millisecond)
	creator := uuid.New()
	session := env.createSession(t, creator, 5, false)

	env.updateState(t, creator, &dto.UpdateStateRequest{
		SessionId: session.Id,
		Key:       StateKeyQuery,
		Value:     json.RawMessage(`{"q":"neural networks"}`),
	})

	var sawQueryUpdate bool
	for _, envelope := range env.publisher.all() {
		var frame wire.Envelope
		require.NoError(t, json.Unmarshal(envelope.Message, &frame))
		if frame.Type == wire.TypeQueryUpdate {
			sawQueryUpdate = true
			assert.JSONEq(t, `{"q":"neural networks"}`, string(frame.Data))
		}
	}
	assert.True(t, sawQueryUpdate)

	participant, err := env.registry.ActiveParticipant(context.Background(), session.Id, creator)
	require.NoError(t, err)
	assert.Equal(t, int64(1), participant.QueryCount)
}
