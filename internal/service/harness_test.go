package service

import (
	"context"
	"testing"
	"time"

	"collabsearch-be/internal/dto"
	"collabsearch-be/pkg/collab/conflict"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// testEnv wires the real services over the in-memory fakes.
type testEnv struct {
	store       *fakeStore
	publisher   *capturePublisher
	bus         *captureBus
	sequencer   IEventSequencerService
	registry    ISessionRegistryService
	state       ISessionStateService
	annotations IAnnotationService
}

func newTestEnv(t *testing.T, debounceWindow time.Duration) *testEnv {
	t.Helper()

	store := newFakeStore()
	publisher := &capturePublisher{}
	bus := &captureBus{}
	factory := &fakeFactory{store: store}

	sequencer := NewEventSequencerService(factory, publisher, debounceWindow, 500, 50, nopLogger{})
	t.Cleanup(sequencer.Stop)

	registry := NewSessionRegistryService(factory, sequencer, bus, 10, nopLogger{})
	state := NewSessionStateService(factory, registry, conflict.NewResolver(), sequencer, bus, nopLogger{})
	annotations := NewAnnotationService(factory, registry, sequencer, bus, nopLogger{})

	return &testEnv{
		store:       store,
		publisher:   publisher,
		bus:         bus,
		sequencer:   sequencer,
		registry:    registry,
		state:       state,
		annotations: annotations,
	}
}

func (e *testEnv) createSession(t *testing.T, creator uuid.UUID, maxParticipants int, requireModeration bool) *dto.SessionResponse {
	t.Helper()
	session, err := e.registry.CreateSession(context.Background(), creator, &dto.CreateSessionRequest{
		CollabSessionId:   uuid.New(),
		WorkspaceId:       uuid.New(),
		Name:              "literature review",
		MaxParticipants:   maxParticipants,
		RequireModeration: requireModeration,
	})
	require.NoError(t, err)
	return session
}

func (e *testEnv) join(t *testing.T, sessionId, userId uuid.UUID, role string) *dto.ParticipantResponse {
	t.Helper()
	participant, err := e.registry.Join(context.Background(), userId, &dto.JoinSessionRequest{
		SessionId: sessionId,
		Role:      role,
	})
	require.NoError(t, err)
	return participant
}
