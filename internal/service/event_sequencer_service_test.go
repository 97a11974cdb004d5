package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"collabsearch-be/internal/dto"
	"collabsearch-be/internal/websocket/wire"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAssignsGaplessSequences(t *testing.T) {
	env := newTestEnv(t, 10*time.Millisecond)
	sessionId, actorId := uuid.New(), uuid.New()

	for i := 0; i < 3; i++ {
		event, err := env.sequencer.Record(context.Background(), &dto.EventDraft{
			SessionId: sessionId,
			Type:      wire.TypeResultHighlight,
			ActorId:   actorId,
			After:     json.RawMessage(`{"result":"r1"}`),
		})
		require.NoError(t, err)
		require.NotNil(t, event)
		assert.Equal(t, int64(i+1), event.SequenceNumber)
	}

	// Each sequenced event went out as exactly one broadcast envelope.
	envelopes := env.publisher.all()
	require.Len(t, envelopes, 3)
	var frame wire.Envelope
	require.NoError(t, json.Unmarshal(envelopes[2].Message, &frame))
	assert.Equal(t, int64(3), frame.SequenceNumber)
	assert.Equal(t, wire.TypeResultHighlight, frame.Type)
}

func TestSequencesAreIndependentPerSession(t *testing.T) {
	env := newTestEnv(t, 10*time.Millisecond)
	first, second := uuid.New(), uuid.New()

	for _, sessionId := range []uuid.UUID{first, second} {
		event, err := env.sequencer.Record(context.Background(), &dto.EventDraft{
			SessionId: sessionId,
			Type:      wire.TypeCursorUpdate,
			ActorId:   uuid.New(),
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), event.SequenceNumber)
	}
}

func TestDebouncedEventsCoalesceToFinalValue(t *testing.T) {
	env := newTestEnv(t, 25*time.Millisecond)
	sessionId, actorId := uuid.New(), uuid.New()
	group := "query"

	for _, q := range []string{`{"q":"m"}`, `{"q":"ma"}`, `{"q":"machine learning"}`} {
		event, err := env.sequencer.Record(context.Background(), &dto.EventDraft{
			SessionId:       sessionId,
			Type:            wire.TypeQueryUpdate,
			ActorId:         actorId,
			After:           json.RawMessage(q),
			DebounceGroupId: &group,
		})
		require.NoError(t, err)
		assert.Nil(t, event, "coalesced drafts get no sequence number")
	}

	require.Eventually(t, func() bool {
		return len(env.publisher.all()) == 1
	}, time.Second, 5*time.Millisecond)

	var frame wire.Envelope
	require.NoError(t, json.Unmarshal(env.publisher.all()[0].Message, &frame))
	assert.Equal(t, int64(1), frame.SequenceNumber)
	assert.True(t, frame.IsDebounced)
	assert.JSONEq(t, `{"q":"machine learning"}`, string(frame.Data))
}

func TestNonGroupedEventFlushesActorsPendingGroupFirst(t *testing.T) {
	env := newTestEnv(t, time.Hour) // window never elapses on its own
	sessionId, actorId := uuid.New(), uuid.New()
	group := "query"

	_, err := env.sequencer.Record(context.Background(), &dto.EventDraft{
		SessionId:       sessionId,
		Type:            wire.TypeQueryUpdate,
		ActorId:         actorId,
		After:           json.RawMessage(`{"q":"pending"}`),
		DebounceGroupId: &group,
	})
	require.NoError(t, err)

	event, err := env.sequencer.Record(context.Background(), &dto.EventDraft{
		SessionId: sessionId,
		Type:      wire.TypeSelectionChange,
		ActorId:   actorId,
		After:     json.RawMessage(`{"selection":"s"}`),
	})
	require.NoError(t, err)
	require.NotNil(t, event)

	// The coalesced query update was sequenced before the new event.
	assert.Equal(t, int64(2), event.SequenceNumber)

	history, err := env.sequencer.History(context.Background(), sessionId, 0, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, wire.TypeQueryUpdate, history[0].Type)
	assert.Equal(t, wire.TypeSelectionChange, history[1].Type)
}

func TestHistoryReturnsEventsAfterSequence(t *testing.T) {
	env := newTestEnv(t, 10*time.Millisecond)
	sessionId := uuid.New()

	for i := 0; i < 5; i++ {
		_, err := env.sequencer.Record(context.Background(), &dto.EventDraft{
			SessionId: sessionId,
			Type:      wire.TypeCursorUpdate,
			ActorId:   uuid.New(),
		})
		require.NoError(t, err)
	}

	history, err := env.sequencer.History(context.Background(), sessionId, 2, 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, int64(3), history[0].SequenceNumber)
	assert.Equal(t, int64(5), history[2].SequenceNumber)
}

func TestHistoryFallsBackToDatabaseBeyondBuffer(t *testing.T) {
	env := newTestEnv(t, 10*time.Millisecond)
	sessionId := uuid.New()

	for i := 0; i < 3; i++ {
		_, err := env.sequencer.Record(context.Background(), &dto.EventDraft{
			SessionId: sessionId,
			Type:      wire.TypeCursorUpdate,
			ActorId:   uuid.New(),
		})
		require.NoError(t, err)
	}

	// Dropping the session clears the in-memory tail; history must still
	// come back from persistence.
	env.sequencer.DropSession(sessionId)

	history, err := env.sequencer.History(context.Background(), sessionId, 0, 0)
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestLatestSequence(t *testing.T) {
	env := newTestEnv(t, 10*time.Millisecond)
	sessionId := uuid.New()

	latest, err := env.sequencer.LatestSequence(context.Background(), sessionId)
	require.NoError(t, err)
	assert.Equal(t, int64(0), latest)

	for i := 0; i < 4; i++ {
		_, err := env.sequencer.Record(context.Background(), &dto.EventDraft{
			SessionId: sessionId,
			Type:      wire.TypeCursorUpdate,
			ActorId:   uuid.New(),
		})
		require.NoError(t, err)
	}

	latest, err = env.sequencer.LatestSequence(context.Background(), sessionId)
	require.NoError(t, err)
	assert.Equal(t, int64(4), latest)
}

func TestTargetedDraftCarriesTargetUser(t *testing.T) {
	env := newTestEnv(t, 10*time.Millisecond)
	sessionId, actorId, target := uuid.New(), uuid.New(), uuid.New()

	_, err := env.sequencer.Record(context.Background(), &dto.EventDraft{
		SessionId:    sessionId,
		Type:         wire.TypeResultHighlight,
		ActorId:      actorId,
		TargetUserId: &target,
		ExcludeActor: true,
	})
	require.NoError(t, err)

	envelopes := env.publisher.all()
	require.Len(t, envelopes, 1)
	require.NotNil(t, envelopes[0].TargetUserId)
	assert.Equal(t, target, *envelopes[0].TargetUserId)
	require.NotNil(t, envelopes[0].ExcludeUserId)
	assert.Equal(t, actorId, *envelopes[0].ExcludeUserId)
}
