package service

import (
	"context"
	"encoding/json"
	"time"

	"collabsearch-be/internal/dto"
	"collabsearch-be/internal/entity"
	"collabsearch-be/internal/pkg/apperrors"
	"collabsearch-be/internal/pkg/logger"
	"collabsearch-be/internal/pkg/serverutils"
	"collabsearch-be/internal/repository/specification"
	"collabsearch-be/internal/repository/unitofwork"
	"collabsearch-be/internal/websocket/wire"
	"collabsearch-be/pkg/database"
	"collabsearch-be/pkg/events"

	"github.com/google/uuid"
)

// EventBusPublisher is the outbound bus surface the services need.
// Satisfied by the NATS publisher.
type EventBusPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// ActivityKind selects which participant counter an operation bumps.
type ActivityKind int

const (
	ActivityQuery ActivityKind = iota
	ActivityAnnotation
)

type ISessionRegistryService interface {
	CreateSession(ctx context.Context, userId uuid.UUID, req *dto.CreateSessionRequest) (*dto.SessionResponse, error)
	GetSession(ctx context.Context, id uuid.UUID) (*dto.SessionResponse, error)
	ListActiveSessions(ctx context.Context, workspaceId *uuid.UUID) ([]*dto.SessionResponse, error)
	UpdateSession(ctx context.Context, actorId uuid.UUID, req *dto.UpdateSessionRequest) (*dto.SessionResponse, error)
	DeleteSession(ctx context.Context, actorId uuid.UUID, id uuid.UUID) error

	Join(ctx context.Context, userId uuid.UUID, req *dto.JoinSessionRequest) (*dto.ParticipantResponse, error)
	Leave(ctx context.Context, sessionId, userId uuid.UUID) error
	ListParticipants(ctx context.Context, sessionId uuid.UUID) ([]*dto.ParticipantResponse, error)
	UpdateParticipant(ctx context.Context, actorId uuid.UUID, req *dto.UpdateParticipantRequest) (*dto.ParticipantResponse, error)

	// ActiveParticipant returns the caller's active membership, the
	// authorization anchor for every other service.
	ActiveParticipant(ctx context.Context, sessionId, userId uuid.UUID) (*entity.Participant, error)
	RecordActivity(ctx context.Context, sessionId, userId uuid.UUID, kind ActivityKind)
}

type SessionRegistryService struct {
	factory                unitofwork.RepositoryFactory
	sequencer              IEventSequencerService
	bus                    EventBusPublisher
	log                    logger.ILogger
	defaultMaxParticipants int
}

func NewSessionRegistryService(
	factory unitofwork.RepositoryFactory,
	sequencer IEventSequencerService,
	bus EventBusPublisher,
	defaultMaxParticipants int,
	log logger.ILogger,
) ISessionRegistryService {
	return &SessionRegistryService{
		factory:                factory,
		sequencer:              sequencer,
		bus:                    bus,
		log:                    log,
		defaultMaxParticipants: defaultMaxParticipants,
	}
}

func (s *SessionRegistryService) CreateSession(ctx context.Context, userId uuid.UUID, req *dto.CreateSessionRequest) (*dto.SessionResponse, error) {
	if err := serverutils.ValidateRequest(req); err != nil {
		return nil, err
	}

	maxParticipants := req.MaxParticipants
	if maxParticipants <= 0 {
		maxParticipants = s.defaultMaxParticipants
	}

	now := time.Now().UTC()
	session := &entity.SearchSession{
		Id:              uuid.New(),
		CollabSessionId: req.CollabSessionId,
		WorkspaceId:     req.WorkspaceId,
		Name:            req.Name,
		CreatedBy:       userId,
		IsActive:        true,
		IsPersistent:    req.IsPersistent,
		Settings: entity.SessionSettings{
			MaxParticipants:   maxParticipants,
			AllowAnonymous:    req.AllowAnonymous,
			RequireModeration: req.RequireModeration,
		},
		CreatedAt: now,
	}

	// The creator joins as moderator in the same transaction, so a
	// session can never exist without a moderator.
	creator := &entity.Participant{
		Id:           uuid.New(),
		SessionId:    session.Id,
		UserId:       userId,
		Role:         entity.RoleModerator,
		IsActive:     true,
		JoinedAt:     now,
		LastActiveAt: &now,
	}

	uow := s.factory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, apperrors.NewServiceUnavailable(err)
	}
	if err := uow.SearchSessionRepository().Create(ctx, session); err != nil {
		_ = uow.Rollback()
		return nil, apperrors.NewServiceUnavailable(err)
	}
	if err := uow.ParticipantRepository().Create(ctx, creator); err != nil {
		_ = uow.Rollback()
		return nil, apperrors.NewServiceUnavailable(err)
	}
	if err := uow.Commit(); err != nil {
		return nil, apperrors.NewServiceUnavailable(err)
	}

	s.publishBusEvent(ctx, events.TypeSessionCreated, map[string]interface{}{
		"session_id":   session.Id.String(),
		"workspace_id": session.WorkspaceId.String(),
		"created_by":   userId.String(),
		"name":         session.Name,
	})

	s.log.Info("SessionRegistry", "search session created", map[string]interface{}{
		"session_id": session.Id.String(),
		"created_by": userId.String(),
	})

	return toSessionResponse(session), nil
}

func (s *SessionRegistryService) GetSession(ctx context.Context, id uuid.UUID) (*dto.SessionResponse, error) {
	session, err := s.findSession(ctx, id)
	if err != nil {
		return nil, err
	}
	return toSessionResponse(session), nil
}

func (s *SessionRegistryService) ListActiveSessions(ctx context.Context, workspaceId *uuid.UUID) ([]*dto.SessionResponse, error) {
	specs := []specification.Specification{
		specification.ActiveOnly{},
		specification.OrderBy{Field: "created_at", Desc: true},
	}
	if workspaceId != nil {
		specs = append(specs, specification.ByWorkspaceID{WorkspaceID: *workspaceId})
	}

	uow := s.factory.NewUnitOfWork(ctx)
	sessions, err := uow.SearchSessionRepository().FindAll(ctx, specs...)
	if err != nil {
		return nil, apperrors.NewServiceUnavailable(err)
	}

	responses := make([]*dto.SessionResponse, 0, len(sessions))
	for _, session := range sessions {
		responses = append(responses, toSessionResponse(session))
	}
	return responses, nil
}

func (s *SessionRegistryService) UpdateSession(ctx context.Context, actorId uuid.UUID, req *dto.UpdateSessionRequest) (*dto.SessionResponse, error) {
	if err := serverutils.ValidateRequest(req); err != nil {
		return nil, err
	}

	session, err := s.findSession(ctx, req.Id)
	if err != nil {
		return nil, err
	}
	if err := s.requireModerator(ctx, session, actorId); err != nil {
		return nil, err
	}

	if req.Name != nil {
		session.Name = *req.Name
	}
	if req.IsActive != nil {
		session.IsActive = *req.IsActive
	}
	if req.MaxParticipants != nil {
		session.Settings.MaxParticipants = *req.MaxParticipants
	}
	if req.RequireModeration != nil {
		session.Settings.RequireModeration = *req.RequireModeration
	}
	now := time.Now().UTC()
	session.UpdatedAt = &now

	uow := s.factory.NewUnitOfWork(ctx)
	if err := uow.SearchSessionRepository().Update(ctx, session); err != nil {
		return nil, apperrors.NewServiceUnavailable(err)
	}

	resp := toSessionResponse(session)
	s.recordEvent(ctx, &dto.EventDraft{
		SessionId: session.Id,
		Type:      wire.TypeSessionUpdate,
		ActorId:   actorId,
		After:     mustJSON(resp),
	})
	return resp, nil
}

func (s *SessionRegistryService) DeleteSession(ctx context.Context, actorId uuid.UUID, id uuid.UUID) error {
	session, err := s.findSession(ctx, id)
	if err != nil {
		return err
	}
	if err := s.requireModerator(ctx, session, actorId); err != nil {
		return err
	}

	// Pending debounce drafts are moot once the session is gone.
	s.sequencer.DropSession(id)

	// Participants are notified before the registry forgets the session,
	// not silently dropped.
	s.recordEvent(ctx, &dto.EventDraft{
		SessionId: id,
		Type:      wire.TypeSessionUpdate,
		ActorId:   actorId,
		After:     mustJSON(map[string]interface{}{"is_active": false, "deleted": true}),
	})

	uow := s.factory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return apperrors.NewServiceUnavailable(err)
	}
	if err := uow.SearchSessionRepository().Delete(ctx, id); err != nil {
		_ = uow.Rollback()
		return apperrors.NewServiceUnavailable(err)
	}
	if err := uow.ConflictRepository().CancelBySession(ctx, id); err != nil {
		_ = uow.Rollback()
		return apperrors.NewServiceUnavailable(err)
	}
	if err := uow.Commit(); err != nil {
		return apperrors.NewServiceUnavailable(err)
	}

	s.publishBusEvent(ctx, events.TypeSessionDeleted, map[string]interface{}{
		"session_id": id.String(),
		"deleted_by": actorId.String(),
	})

	s.log.Info("SessionRegistry", "search session deleted", map[string]interface{}{
		"session_id": id.String(),
		"deleted_by": actorId.String(),
	})
	return nil
}

func (s *SessionRegistryService) Join(ctx context.Context, userId uuid.UUID, req *dto.JoinSessionRequest) (*dto.ParticipantResponse, error) {
	if err := serverutils.ValidateRequest(req); err != nil {
		return nil, err
	}

	session, err := s.findSession(ctx, req.SessionId)
	if err != nil {
		return nil, err
	}
	if !session.IsActive {
		return nil, apperrors.NewNotFound("active search session")
	}

	uow := s.factory.NewUnitOfWork(ctx)
	participants := uow.ParticipantRepository()

	existing, err := participants.FindOne(ctx,
		specification.BySessionID{SessionID: req.SessionId},
		specification.ByUserID{UserID: userId},
	)
	if err != nil {
		return nil, apperrors.NewServiceUnavailable(err)
	}

	now := time.Now().UTC()
	if existing != nil {
		// Rejoin is idempotent: reactivate, keep counters, keep the
		// previously granted role.
		if existing.IsActive {
			return toParticipantResponse(existing), nil
		}
		existing.IsActive = true
		existing.LastActiveAt = &now
		existing.LeftAt = nil
		if err := participants.Update(ctx, existing); err != nil {
			return nil, apperrors.NewServiceUnavailable(err)
		}
		s.recordJoinEvent(ctx, existing)
		return toParticipantResponse(existing), nil
	}

	activeCount, err := participants.Count(ctx,
		specification.BySessionID{SessionID: req.SessionId},
		specification.ActiveOnly{},
	)
	if err != nil {
		return nil, apperrors.NewServiceUnavailable(err)
	}
	if activeCount >= int64(session.Settings.MaxParticipants) {
		return nil, apperrors.NewCapacity(session.Settings.MaxParticipants)
	}

	participant := &entity.Participant{
		Id:           uuid.New(),
		SessionId:    req.SessionId,
		UserId:       userId,
		Role:         entity.ParticipantRole(req.Role),
		IsActive:     true,
		JoinedAt:     now,
		LastActiveAt: &now,
	}
	if err := participants.Create(ctx, participant); err != nil {
		if database.IsUniqueViolation(err) {
			// Lost a concurrent join race; the row now exists.
			return s.Join(ctx, userId, req)
		}
		return nil, apperrors.NewServiceUnavailable(err)
	}

	s.recordJoinEvent(ctx, participant)
	return toParticipantResponse(participant), nil
}

func (s *SessionRegistryService) Leave(ctx context.Context, sessionId, userId uuid.UUID) error {
	participant, err := s.ActiveParticipant(ctx, sessionId, userId)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if participant.LastActiveAt != nil {
		participant.ActiveSeconds += int64(now.Sub(*participant.LastActiveAt).Seconds())
	}
	participant.IsActive = false
	participant.LeftAt = &now
	participant.LastActiveAt = &now

	uow := s.factory.NewUnitOfWork(ctx)
	if err := uow.ParticipantRepository().Update(ctx, participant); err != nil {
		return apperrors.NewServiceUnavailable(err)
	}

	s.recordEvent(ctx, &dto.EventDraft{
		SessionId: sessionId,
		Type:      wire.TypeLeave,
		ActorId:   userId,
		After:     mustJSON(map[string]interface{}{"user_id": userId.String()}),
	})
	return nil
}

func (s *SessionRegistryService) ListParticipants(ctx context.Context, sessionId uuid.UUID) ([]*dto.ParticipantResponse, error) {
	uow := s.factory.NewUnitOfWork(ctx)
	participants, err := uow.ParticipantRepository().FindAll(ctx,
		specification.BySessionID{SessionID: sessionId},
		specification.OrderBy{Field: "joined_at"},
	)
	if err != nil {
		return nil, apperrors.NewServiceUnavailable(err)
	}

	responses := make([]*dto.ParticipantResponse, 0, len(participants))
	for _, participant := range participants {
		responses = append(responses, toParticipantResponse(participant))
	}
	return responses, nil
}

func (s *SessionRegistryService) UpdateParticipant(ctx context.Context, actorId uuid.UUID, req *dto.UpdateParticipantRequest) (*dto.ParticipantResponse, error) {
	if err := serverutils.ValidateRequest(req); err != nil {
		return nil, err
	}

	session, err := s.findSession(ctx, req.SessionId)
	if err != nil {
		return nil, err
	}
	if err := s.requireModerator(ctx, session, actorId); err != nil {
		return nil, err
	}

	uow := s.factory.NewUnitOfWork(ctx)
	participant, err := uow.ParticipantRepository().FindOne(ctx,
		specification.BySessionID{SessionID: req.SessionId},
		specification.ByUserID{UserID: req.UserId},
	)
	if err != nil {
		return nil, apperrors.NewServiceUnavailable(err)
	}
	if participant == nil {
		return nil, apperrors.NewNotFound("participant")
	}

	if req.Role != nil {
		// Capabilities are derived from the role, so a role change is a
		// capability change everywhere at once.
		participant.Role = entity.ParticipantRole(*req.Role)
	}
	if err := uow.ParticipantRepository().Update(ctx, participant); err != nil {
		return nil, apperrors.NewServiceUnavailable(err)
	}

	resp := toParticipantResponse(participant)
	s.recordEvent(ctx, &dto.EventDraft{
		SessionId: req.SessionId,
		Type:      wire.TypeSessionUpdate,
		ActorId:   actorId,
		After:     mustJSON(map[string]interface{}{"participant": resp}),
	})
	return resp, nil
}

func (s *SessionRegistryService) ActiveParticipant(ctx context.Context, sessionId, userId uuid.UUID) (*entity.Participant, error) {
	uow := s.factory.NewUnitOfWork(ctx)
	participant, err := uow.ParticipantRepository().FindOne(ctx,
		specification.BySessionID{SessionID: sessionId},
		specification.ByUserID{UserID: userId},
		specification.ActiveOnly{},
	)
	if err != nil {
		return nil, apperrors.NewServiceUnavailable(err)
	}
	if participant == nil {
		return nil, apperrors.NewPermission("operate on a session without joining it")
	}
	return participant, nil
}

// RecordActivity bumps per-participant counters. Failures are logged and
// swallowed: metrics never fail the operation that triggered them.
func (s *SessionRegistryService) RecordActivity(ctx context.Context, sessionId, userId uuid.UUID, kind ActivityKind) {
	uow := s.factory.NewUnitOfWork(ctx)
	participant, err := uow.ParticipantRepository().FindOne(ctx,
		specification.BySessionID{SessionID: sessionId},
		specification.ByUserID{UserID: userId},
	)
	if err != nil || participant == nil {
		return
	}

	switch kind {
	case ActivityQuery:
		participant.QueryCount++
	case ActivityAnnotation:
		participant.AnnotationCount++
	}
	now := time.Now().UTC()
	participant.LastActiveAt = &now

	if err := uow.ParticipantRepository().Update(ctx, participant); err != nil {
		s.log.Warn("SessionRegistry", "failed to record participant activity", map[string]interface{}{
			"session_id": sessionId.String(),
			"user_id":    userId.String(),
			"error":      err.Error(),
		})
	}
}

func (s *SessionRegistryService) findSession(ctx context.Context, id uuid.UUID) (*entity.SearchSession, error) {
	uow := s.factory.NewUnitOfWork(ctx)
	session, err := uow.SearchSessionRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return nil, apperrors.NewServiceUnavailable(err)
	}
	if session == nil {
		return nil, apperrors.NewNotFound("search session")
	}
	return session, nil
}

func (s *SessionRegistryService) requireModerator(ctx context.Context, session *entity.SearchSession, actorId uuid.UUID) error {
	if session.CreatedBy == actorId {
		return nil
	}
	participant, err := s.ActiveParticipant(ctx, session.Id, actorId)
	if err != nil {
		return err
	}
	if !participant.Role.Capabilities().CanModerate {
		return apperrors.NewPermission("moderate this session")
	}
	return nil
}

func (s *SessionRegistryService) recordJoinEvent(ctx context.Context, participant *entity.Participant) {
	s.recordEvent(ctx, &dto.EventDraft{
		SessionId: participant.SessionId,
		Type:      wire.TypeJoin,
		ActorId:   participant.UserId,
		After:     mustJSON(toParticipantResponse(participant)),
	})
}

func (s *SessionRegistryService) recordEvent(ctx context.Context, draft *dto.EventDraft) {
	if _, err := s.sequencer.Record(ctx, draft); err != nil {
		s.log.Error("SessionRegistry", "failed to record session event", map[string]interface{}{
			"session_id": draft.SessionId.String(),
			"type":       draft.Type,
			"error":      err.Error(),
		})
	}
}

func (s *SessionRegistryService) publishBusEvent(ctx context.Context, eventType string, payload map[string]interface{}) {
	if s.bus == nil {
		return
	}
	event := events.BaseEvent{Type: eventType, Data: payload, OccurredAt: time.Now().UTC()}
	if err := s.bus.Publish(ctx, event); err != nil {
		s.log.Warn("SessionRegistry", "failed to publish bus event", map[string]interface{}{
			"event_type": eventType,
			"error":      err.Error(),
		})
	}
}

func toSessionResponse(session *entity.SearchSession) *dto.SessionResponse {
	return &dto.SessionResponse{
		Id:                session.Id,
		CollabSessionId:   session.CollabSessionId,
		WorkspaceId:       session.WorkspaceId,
		Name:              session.Name,
		CreatedBy:         session.CreatedBy,
		IsActive:          session.IsActive,
		IsPersistent:      session.IsPersistent,
		MaxParticipants:   session.Settings.MaxParticipants,
		AllowAnonymous:    session.Settings.AllowAnonymous,
		RequireModeration: session.Settings.RequireModeration,
		CreatedAt:         session.CreatedAt,
		UpdatedAt:         session.UpdatedAt,
	}
}

func toParticipantResponse(participant *entity.Participant) *dto.ParticipantResponse {
	return &dto.ParticipantResponse{
		Id:              participant.Id,
		SessionId:       participant.SessionId,
		UserId:          participant.UserId,
		Role:            string(participant.Role),
		IsActive:        participant.IsActive,
		QueryCount:      participant.QueryCount,
		AnnotationCount: participant.AnnotationCount,
		ActiveSeconds:   participant.ActiveSeconds,
		JoinedAt:        participant.JoinedAt,
		LastActiveAt:    participant.LastActiveAt,
	}
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return data
}
