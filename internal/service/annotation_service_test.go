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

func (e *testEnv) createAnnotation(t *testing.T, userId uuid.UUID, req *dto.CreateAnnotationRequest) *dto.AnnotationResponse {
	t.Helper()
	annotation, err := e.annotations.Create(context.Background(), userId, req)
	require.NoError(t, err)
	return annotation
}

func TestObserverCanBookmarkButNotAnnotate(t *testing.T) {
	env := newTestEnv(t, 10*time.Millisecond)
	session := env.createSession(t, uuid.New(), 5, false)
	observer := uuid.New()
	env.join(t, session.Id, observer, "observer")

	_, err := env.annotations.Create(context.Background(), observer, &dto.CreateAnnotationRequest{
		SessionId:      session.Id,
		TargetResultId: "result-1",
		Type:           "note",
		Content:        "interesting",
		IsShared:       true,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodePermission))

	bookmark := env.createAnnotation(t, observer, &dto.CreateAnnotationRequest{
		SessionId:      session.Id,
		TargetResultId: "result-1",
		Type:           "bookmark",
		IsShared:       true,
	})
	assert.Equal(t, "bookmark", bookmark.Type)
}

func TestMentionsPublishOneEventPerUser(t *testing.T) {
	env := newTestEnv(t, 10*time.Millisecond)
	creator := uuid.New()
	session := env.createSession(t, creator, 5, false)
	first, second := uuid.New(), uuid.New()

	env.createAnnotation(t, creator, &dto.CreateAnnotationRequest{
		SessionId:      session.Id,
		TargetResultId: "result-1",
		Type:           "question",
		Content:        "can one of you verify this source?",
		IsShared:       true,
		Mentions:       []uuid.UUID{first, second},
	})

	mentions := env.bus.ofType(events.TypeAnnotationMention)
	require.Len(t, mentions, 2)
	mentioned := map[string]bool{}
	for _, event := range mentions {
		mentioned[event.Payload()["mentioned_user"].(string)] = true
	}
	assert.True(t, mentioned[first.String()])
	assert.True(t, mentioned[second.String()])
}

func TestUpdateNotifiesOnlyNewMentions(t *testing.T) {
	env := newTestEnv(t, 10*time.Millisecond)
	creator := uuid.New()
	session := env.createSession(t, creator, 5, false)
	first, second := uuid.New(), uuid.New()

	annotation := env.createAnnotation(t, creator, &dto.CreateAnnotationRequest{
		SessionId:      session.Id,
		TargetResultId: "result-1",
		Type:           "note",
		Content:        "draft",
		IsShared:       true,
		Mentions:       []uuid.UUID{first},
	})

	_, err := env.annotations.Update(context.Background(), creator, &dto.UpdateAnnotationRequest{
		Id:       annotation.Id,
		Mentions: []uuid.UUID{first, second},
	})
	require.NoError(t, err)

	mentions := env.bus.ofType(events.TypeAnnotationMention)
	require.Len(t, mentions, 2)
	assert.Equal(t, second.String(), mentions[1].Payload()["mentioned_user"])
}

func TestPrivateAnnotationBroadcastTargetsAuthor(t *testing.T) {
	env := newTestEnv(t, 10*time.Millisecond)
	creator := uuid.New()
	session := env.createSession(t, creator, 5, false)

	env.createAnnotation(t, creator, &dto.CreateAnnotationRequest{
		SessionId:      session.Id,
		TargetResultId: "result-1",
		Type:           "note",
		Content:        "private working note",
		IsShared:       false,
	})

	envelopes := env.publisher.all()
	require.Len(t, envelopes, 1)
	require.NotNil(t, envelopes[0].TargetUserId)
	assert.Equal(t, creator, *envelopes[0].TargetUserId)

	var frame wire.Envelope
	require.NoError(t, json.Unmarshal(envelopes[0].Message, &frame))
	assert.Equal(t, wire.TypeAnnotation, frame.Type)
}

func TestBookmarkBroadcastsBookmarkEvent(t *testing.T) {
	env := newTestEnv(t, 10*time.Millisecond)
	creator := uuid.New()
	session := env.createSession(t, creator, 5, false)

	env.createAnnotation(t, creator, &dto.CreateAnnotationRequest{
		SessionId:      session.Id,
		TargetResultId: "result-7",
		Type:           "bookmark",
		IsShared:       true,
	})

	envelopes := env.publisher.all()
	require.Len(t, envelopes, 1)
	var frame wire.Envelope
	require.NoError(t, json.Unmarshal(envelopes[0].Message, &frame))
	assert.Equal(t, wire.TypeBookmark, frame.Type)
}

func TestUpdateRequiresAuthorOrModerator(t *testing.T) {
	env := newTestEnv(t, 10*time.Millisecond)
	creator := uuid.New()
	session := env.createSession(t, creator, 5, false)
	author, stranger := uuid.New(), uuid.New()
	env.join(t, session.Id, author, "searcher")
	env.join(t, session.Id, stranger, "searcher")

	annotation := env.createAnnotation(t, author, &dto.CreateAnnotationRequest{
		SessionId:      session.Id,
		TargetResultId: "result-1",
		Type:           "note",
		Content:        "original",
		IsShared:       true,
	})

	edited := "rewritten"
	_, err := env.annotations.Update(context.Background(), stranger, &dto.UpdateAnnotationRequest{
		Id:      annotation.Id,
		Content: &edited,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodePermission))

	// The session creator moderates, so they may delete someone else's note.
	require.NoError(t, env.annotations.Delete(context.Background(), creator, annotation.Id))

	_, err = env.annotations.Update(context.Background(), author, &dto.UpdateAnnotationRequest{
		Id:      annotation.Id,
		Content: &edited,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestReplyMustReferenceSameSession(t *testing.T) {
	env := newTestEnv(t, 10*time.Millisecond)
	creator := uuid.New()
	first := env.createSession(t, creator, 5, false)
	second := env.createSession(t, creator, 5, false)

	parent := env.createAnnotation(t, creator, &dto.CreateAnnotationRequest{
		SessionId:      first.Id,
		TargetResultId: "result-1",
		Type:           "note",
		Content:        "root",
		IsShared:       true,
	})

	_, err := env.annotations.Create(context.Background(), creator, &dto.CreateAnnotationRequest{
		SessionId:      second.Id,
		TargetResultId: "result-1",
		Type:           "note",
		Content:        "reply in the wrong session",
		IsShared:       true,
		ParentId:       &parent.Id,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestListForSessionHidesOthersPrivateAnnotations(t *testing.T) {
	env := newTestEnv(t, 10*time.Millisecond)
	creator := uuid.New()
	session := env.createSession(t, creator, 5, false)
	reader := uuid.New()
	env.join(t, session.Id, reader, "searcher")

	env.createAnnotation(t, creator, &dto.CreateAnnotationRequest{
		SessionId:      session.Id,
		TargetResultId: "result-1",
		Type:           "note",
		Content:        "shared finding",
		IsShared:       true,
	})
	env.createAnnotation(t, creator, &dto.CreateAnnotationRequest{
		SessionId:      session.Id,
		TargetResultId: "result-2",
		Type:           "note",
		Content:        "private scratchpad",
		IsShared:       false,
	})

	visible, err := env.annotations.ListForSession(context.Background(), session.Id, reader)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "shared finding", visible[0].Content)

	own, err := env.annotations.ListForSession(context.Background(), session.Id, creator)
	require.NoError(t, err)
	assert.Len(t, own, 2)
}

func TestResolveIsIdempotent(t *testing.T) {
	env := newTestEnv(t, 10*time.Millisecond)
	creator := uuid.New()
	session := env.createSession(t, creator, 5, false)
	resolver := uuid.New()
	env.join(t, session.Id, resolver, "searcher")

	annotation := env.createAnnotation(t, creator, &dto.CreateAnnotationRequest{
		SessionId:      session.Id,
		TargetResultId: "result-1",
		Type:           "question",
		Content:        "is this dataset current?",
		IsShared:       true,
	})

	resolved, err := env.annotations.Resolve(context.Background(), resolver, annotation.Id)
	require.NoError(t, err)
	assert.True(t, resolved.IsResolved)
	require.NotNil(t, resolved.ResolvedBy)
	assert.Equal(t, resolver, *resolved.ResolvedBy)

	again, err := env.annotations.Resolve(context.Background(), creator, annotation.Id)
	require.NoError(t, err)
	assert.Equal(t, resolver, *again.ResolvedBy)
}

func TestCreateBumpsAnnotationCounter(t *testing.T) {
	env := newTestEnv(t, 10*time.Millisecond)
	creator := uuid.New()
	session := env.createSession(t, creator, 5, false)

	env.createAnnotation(t, creator, &dto.CreateAnnotationRequest{
		SessionId:      session.Id,
		TargetResultId: "result-1",
		Type:           "highlight",
		Selection:      json.RawMessage(`{"start":0,"end":12}`),
		IsShared:       true,
	})

	participant, err := env.registry.ActiveParticipant(context.Background(), session.Id, creator)
	require.NoError(t, err)
	assert.Equal(t, int64(1), participant.AnnotationCount)
}
