package service

import (
	"context"
	"errors"
	"time"

	"collabsearch-be/internal/dto"
	"collabsearch-be/internal/entity"
	"collabsearch-be/internal/pkg/apperrors"
	"collabsearch-be/internal/pkg/logger"
	"collabsearch-be/internal/pkg/serverutils"
	"collabsearch-be/internal/repository/specification"
	"collabsearch-be/internal/repository/unitofwork"
	"collabsearch-be/internal/websocket/wire"
	"collabsearch-be/pkg/collab/conflict"
	"collabsearch-be/pkg/database"
	"collabsearch-be/pkg/events"

	"github.com/google/uuid"
)

// casAttempts bounds the retry loop when compare-and-swap writes race.
const casAttempts = 3

// StateKeyQuery is the shared state key holding the active search query.
const StateKeyQuery = "query"

type ISessionStateService interface {
	UpdateState(ctx context.Context, userId uuid.UUID, req *dto.UpdateStateRequest) (*dto.StateEntryResponse, error)
	GetState(ctx context.Context, sessionId, userId uuid.UUID, key string) (*dto.StateEntryResponse, error)
	SyncState(ctx context.Context, sessionId, userId uuid.UUID) (*dto.StateSnapshotResponse, error)

	ListConflicts(ctx context.Context, sessionId, userId uuid.UUID, pendingOnly bool) ([]*dto.ConflictResponse, error)
	ResolveConflict(ctx context.Context, userId uuid.UUID, req *dto.ResolveConflictRequest) (*dto.StateEntryResponse, error)
}

type SessionStateService struct {
	factory   unitofwork.RepositoryFactory
	registry  ISessionRegistryService
	resolver  *conflict.Resolver
	sequencer IEventSequencerService
	bus       EventBusPublisher
	log       logger.ILogger
}

func NewSessionStateService(
	factory unitofwork.RepositoryFactory,
	registry ISessionRegistryService,
	resolver *conflict.Resolver,
	sequencer IEventSequencerService,
	bus EventBusPublisher,
	log logger.ILogger,
) ISessionStateService {
	return &SessionStateService{
		factory:   factory,
		registry:  registry,
		resolver:  resolver,
		sequencer: sequencer,
		bus:       bus,
		log:       log,
	}
}

func (s *SessionStateService) UpdateState(ctx context.Context, userId uuid.UUID, req *dto.UpdateStateRequest) (*dto.StateEntryResponse, error) {
	if err := serverutils.ValidateRequest(req); err != nil {
		return nil, err
	}

	participant, err := s.registry.ActiveParticipant(ctx, req.SessionId, userId)
	if err != nil {
		return nil, err
	}
	if !participant.Role.Capabilities().CanModifyFilters {
		return nil, apperrors.NewPermission("modify shared search state")
	}

	strategy := entity.ResolutionStrategy(req.Strategy)
	if strategy == "" {
		strategy = entity.StrategyLastWriteWins
	}

	accepted, previous, err := s.writeWithResolution(ctx, userId, req, strategy)
	if err != nil {
		return nil, err
	}

	if req.Key == StateKeyQuery {
		s.registry.RecordActivity(ctx, req.SessionId, userId, ActivityQuery)
	}

	draft := &dto.EventDraft{
		SessionId:       req.SessionId,
		Type:            eventTypeForKey(req.Key),
		ActorId:         userId,
		After:           accepted.Value,
		DebounceGroupId: req.DebounceGroupId,
		BatchId:         req.BatchId,
	}
	if previous != nil {
		draft.Before = previous.Value
	}
	if _, err := s.sequencer.Record(ctx, draft); err != nil {
		s.log.Error("SessionState", "state accepted but event recording failed", map[string]interface{}{
			"session_id": req.SessionId.String(),
			"key":        req.Key,
			"error":      err.Error(),
		})
	}

	return toStateEntryResponse(accepted), nil
}

// writeWithResolution runs the optimistic-concurrency loop: read, decide,
// compare-and-swap, retry on a lost race. It returns the accepted entry
// and the entry it replaced (nil on first write).
func (s *SessionStateService) writeWithResolution(ctx context.Context, userId uuid.UUID, req *dto.UpdateStateRequest, strategy entity.ResolutionStrategy) (*entity.StateEntry, *entity.StateEntry, error) {
	uow := s.factory.NewUnitOfWork(ctx)
	states := uow.SessionStateRepository()

	for attempt := 0; attempt < casAttempts; attempt++ {
		current, err := states.FindOne(ctx,
			specification.BySessionID{SessionID: req.SessionId},
			specification.ByStateKey{Key: req.Key},
		)
		if err != nil {
			return nil, nil, apperrors.NewServiceUnavailable(err)
		}

		if current == nil {
			entry := s.newEntry(req, userId, strategy)
			if err := states.Create(ctx, entry); err != nil {
				if database.IsUniqueViolation(err) {
					continue // lost the first-write race, re-read
				}
				return nil, nil, apperrors.NewServiceUnavailable(err)
			}
			return entry, nil, nil
		}

		if current.Blocked {
			return nil, nil, s.pendingConflictError(ctx, req.SessionId, req.Key)
		}

		if req.ExpectedVersion == current.Version {
			// Clean fast path, no concurrent writer since the client
			// last read.
			next := advance(current, req.Value, userId, entity.SourceUser)
			ok, err := states.UpdateWithVersion(ctx, next, current.Version)
			if err != nil {
				return nil, nil, apperrors.NewServiceUnavailable(err)
			}
			if ok {
				return next, current, nil
			}
			continue
		}

		// Version mismatch: a concurrent write was accepted first.
		decision, rerr := s.resolver.Resolve(strategy, current.PreviousValue, current.Value, req.Value)
		if errors.Is(rerr, conflict.ErrManualRequired) {
			return nil, nil, s.raiseConflict(ctx, userId, req, current, strategy)
		}
		if rerr != nil {
			return nil, nil, apperrors.New(apperrors.CodeConflict, "conflict resolution failed", rerr)
		}

		if strategy == entity.StrategyLastWriteWins && decision.Superseded != nil {
			s.auditSupersededWrite(ctx, userId, req, current, decision)
		}

		next := advance(current, decision.Value, userId, decision.Source)
		ok, err := states.UpdateWithVersion(ctx, next, current.Version)
		if err != nil {
			return nil, nil, apperrors.NewServiceUnavailable(err)
		}
		if ok {
			return next, current, nil
		}
	}

	return nil, nil, apperrors.NewTimeout("state update")
}

func (s *SessionStateService) newEntry(req *dto.UpdateStateRequest, userId uuid.UUID, strategy entity.ResolutionStrategy) *entity.StateEntry {
	now := time.Now().UTC()
	return &entity.StateEntry{
		Id:             uuid.New(),
		SessionId:      req.SessionId,
		Key:            req.Key,
		Value:          req.Value,
		Version:        1,
		StateHash:      conflict.HashValue(req.Value),
		LastModifiedBy: userId,
		LastModifiedAt: now,
		Strategy:       strategy,
		ChangeSource:   entity.SourceUser,
		CreatedAt:      now,
	}
}

// raiseConflict records a pending ConflictRecord, blocks the key and
// notifies participants. The incoming write is rejected until resolved.
func (s *SessionStateService) raiseConflict(ctx context.Context, userId uuid.UUID, req *dto.UpdateStateRequest, current *entity.StateEntry, strategy entity.ResolutionStrategy) error {
	now := time.Now().UTC()
	record := &entity.ConflictRecord{
		Id:        uuid.New(),
		SessionId: req.SessionId,
		Key:       req.Key,
		Candidates: []entity.ConflictCandidate{
			{ActorId: current.LastModifiedBy, Value: current.Value, Timestamp: current.LastModifiedAt},
			{ActorId: userId, Value: req.Value, Timestamp: now},
		},
		Strategy:  strategy,
		Status:    entity.ConflictPending,
		CreatedAt: now,
	}

	uow := s.factory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return apperrors.NewServiceUnavailable(err)
	}
	if err := uow.ConflictRepository().Create(ctx, record); err != nil {
		_ = uow.Rollback()
		return apperrors.NewServiceUnavailable(err)
	}
	if err := uow.SessionStateRepository().SetBlocked(ctx, req.SessionId, req.Key, true); err != nil {
		_ = uow.Rollback()
		return apperrors.NewServiceUnavailable(err)
	}
	if err := uow.Commit(); err != nil {
		return apperrors.NewServiceUnavailable(err)
	}

	s.publishBusEvent(ctx, events.TypeConflictDetected, map[string]interface{}{
		"conflict_id": record.Id.String(),
		"session_id":  req.SessionId.String(),
		"key":         req.Key,
	})

	// Every participant learns about the pending conflict, not just the
	// writer whose update was rejected.
	s.recordConflictEvent(ctx, userId, record, nil)

	s.log.Warn("SessionState", "manual conflict raised", map[string]interface{}{
		"conflict_id": record.Id.String(),
		"session_id":  req.SessionId.String(),
		"key":         req.Key,
	})

	return apperrors.NewConflict(record.Id, req.Key)
}

// auditSupersededWrite keeps a resolved ConflictRecord for every write a
// last-write-wins decision discarded. Best effort.
func (s *SessionStateService) auditSupersededWrite(ctx context.Context, userId uuid.UUID, req *dto.UpdateStateRequest, current *entity.StateEntry, decision conflict.Decision) {
	now := time.Now().UTC()
	record := &entity.ConflictRecord{
		Id:        uuid.New(),
		SessionId: req.SessionId,
		Key:       req.Key,
		Candidates: []entity.ConflictCandidate{
			{ActorId: current.LastModifiedBy, Value: decision.Superseded, Timestamp: current.LastModifiedAt},
			{ActorId: userId, Value: req.Value, Timestamp: now},
		},
		Strategy:      entity.StrategyLastWriteWins,
		Status:        entity.ConflictResolved,
		ResolvedValue: decision.Value,
		ResolvedAt:    &now,
		CreatedAt:     now,
	}

	uow := s.factory.NewUnitOfWork(ctx)
	if err := uow.ConflictRepository().Create(ctx, record); err != nil {
		s.log.Warn("SessionState", "failed to audit superseded write", map[string]interface{}{
			"session_id": req.SessionId.String(),
			"key":        req.Key,
			"error":      err.Error(),
		})
	}
}

func (s *SessionStateService) GetState(ctx context.Context, sessionId, userId uuid.UUID, key string) (*dto.StateEntryResponse, error) {
	if _, err := s.registry.ActiveParticipant(ctx, sessionId, userId); err != nil {
		return nil, err
	}

	uow := s.factory.NewUnitOfWork(ctx)
	entry, err := uow.SessionStateRepository().FindOne(ctx,
		specification.BySessionID{SessionID: sessionId},
		specification.ByStateKey{Key: key},
	)
	if err != nil {
		return nil, apperrors.NewServiceUnavailable(err)
	}
	if entry == nil {
		return nil, apperrors.NewNotFound("state key")
	}
	return toStateEntryResponse(entry), nil
}

func (s *SessionStateService) SyncState(ctx context.Context, sessionId, userId uuid.UUID) (*dto.StateSnapshotResponse, error) {
	if _, err := s.registry.ActiveParticipant(ctx, sessionId, userId); err != nil {
		return nil, err
	}

	uow := s.factory.NewUnitOfWork(ctx)
	entries, err := uow.SessionStateRepository().FindAll(ctx,
		specification.BySessionID{SessionID: sessionId},
	)
	if err != nil {
		return nil, apperrors.NewServiceUnavailable(err)
	}

	snapshot := &dto.StateSnapshotResponse{
		SessionId: sessionId,
		Entries:   make(map[string]dto.StateEntryResponse, len(entries)),
	}
	for _, entry := range entries {
		snapshot.Entries[entry.Key] = *toStateEntryResponse(entry)
	}
	return snapshot, nil
}

func (s *SessionStateService) ListConflicts(ctx context.Context, sessionId, userId uuid.UUID, pendingOnly bool) ([]*dto.ConflictResponse, error) {
	if _, err := s.registry.ActiveParticipant(ctx, sessionId, userId); err != nil {
		return nil, err
	}

	specs := []specification.Specification{
		specification.BySessionID{SessionID: sessionId},
		specification.OrderBy{Field: "created_at", Desc: true},
	}
	if pendingOnly {
		specs = append(specs, specification.ByStatus{Status: string(entity.ConflictPending)})
	}

	uow := s.factory.NewUnitOfWork(ctx)
	records, err := uow.ConflictRepository().FindAll(ctx, specs...)
	if err != nil {
		return nil, apperrors.NewServiceUnavailable(err)
	}

	responses := make([]*dto.ConflictResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, toConflictResponse(record))
	}
	return responses, nil
}

func (s *SessionStateService) ResolveConflict(ctx context.Context, userId uuid.UUID, req *dto.ResolveConflictRequest) (*dto.StateEntryResponse, error) {
	if err := serverutils.ValidateRequest(req); err != nil {
		return nil, err
	}

	uow := s.factory.NewUnitOfWork(ctx)
	record, err := uow.ConflictRepository().FindOne(ctx, specification.ByID{ID: req.ConflictId})
	if err != nil {
		return nil, apperrors.NewServiceUnavailable(err)
	}
	if record == nil {
		return nil, apperrors.NewNotFound("conflict")
	}
	if record.Status != entity.ConflictPending {
		return nil, apperrors.NewValidation("conflict is already settled", nil)
	}

	if err := s.authorizeResolution(ctx, record.SessionId, userId); err != nil {
		return nil, err
	}

	accepted, err := s.applyResolution(ctx, userId, record, req)
	if err != nil {
		return nil, err
	}

	s.publishBusEvent(ctx, events.TypeConflictResolved, map[string]interface{}{
		"conflict_id": record.Id.String(),
		"session_id":  record.SessionId.String(),
		"key":         record.Key,
		"resolved_by": userId.String(),
	})
	s.recordConflictEvent(ctx, userId, record, accepted)

	return toStateEntryResponse(accepted), nil
}

// authorizeResolution: a moderator always may resolve; when the session
// does not require moderation, any participant who can modify state may.
func (s *SessionStateService) authorizeResolution(ctx context.Context, sessionId, userId uuid.UUID) error {
	session, err := s.registry.GetSession(ctx, sessionId)
	if err != nil {
		return err
	}
	participant, err := s.registry.ActiveParticipant(ctx, sessionId, userId)
	if err != nil {
		return err
	}

	caps := participant.Role.Capabilities()
	if caps.CanModerate {
		return nil
	}
	if !session.RequireModeration && caps.CanModifyFilters {
		return nil
	}
	return apperrors.NewPermission("resolve this conflict")
}

func (s *SessionStateService) applyResolution(ctx context.Context, userId uuid.UUID, record *entity.ConflictRecord, req *dto.ResolveConflictRequest) (*entity.StateEntry, error) {
	now := time.Now().UTC()

	uow := s.factory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, apperrors.NewServiceUnavailable(err)
	}
	states := uow.SessionStateRepository()

	current, err := states.FindOne(ctx,
		specification.BySessionID{SessionID: record.SessionId},
		specification.ByStateKey{Key: record.Key},
	)
	if err != nil {
		_ = uow.Rollback()
		return nil, apperrors.NewServiceUnavailable(err)
	}
	if current == nil {
		_ = uow.Rollback()
		return nil, apperrors.NewNotFound("state key")
	}

	next := advance(current, req.Value, userId, entity.SourceSystem)
	next.Blocked = false
	ok, err := states.UpdateWithVersion(ctx, next, current.Version)
	if err != nil {
		_ = uow.Rollback()
		return nil, apperrors.NewServiceUnavailable(err)
	}
	if !ok {
		// The key is blocked while pending, so a lost race here means a
		// concurrent resolution settled it first.
		_ = uow.Rollback()
		return nil, apperrors.NewValidation("conflict is already settled", nil)
	}

	record.Status = entity.ConflictResolved
	record.ResolvedValue = req.Value
	record.ResolvedBy = &userId
	record.ResolvedAt = &now
	if err := uow.ConflictRepository().Update(ctx, record); err != nil {
		_ = uow.Rollback()
		return nil, apperrors.NewServiceUnavailable(err)
	}
	if err := uow.Commit(); err != nil {
		return nil, apperrors.NewServiceUnavailable(err)
	}

	s.log.Info("SessionState", "manual conflict resolved", map[string]interface{}{
		"conflict_id": record.Id.String(),
		"session_id":  record.SessionId.String(),
		"key":         record.Key,
		"resolved_by": userId.String(),
	})
	return next, nil
}

func (s *SessionStateService) pendingConflictError(ctx context.Context, sessionId uuid.UUID, key string) error {
	uow := s.factory.NewUnitOfWork(ctx)
	record, err := uow.ConflictRepository().FindOne(ctx,
		specification.BySessionID{SessionID: sessionId},
		specification.ByStatus{Status: string(entity.ConflictPending)},
		specification.Filter("state_key", key),
		specification.OrderBy{Field: "created_at", Desc: true},
	)
	if err == nil && record != nil {
		return apperrors.NewConflict(record.Id, key)
	}
	return apperrors.NewConflict(uuid.Nil, key)
}

// recordConflictEvent broadcasts conflict lifecycle transitions. accepted
// is nil while the conflict is still pending.
func (s *SessionStateService) recordConflictEvent(ctx context.Context, actorId uuid.UUID, record *entity.ConflictRecord, accepted *entity.StateEntry) {
	payload := map[string]interface{}{
		"conflict_id": record.Id.String(),
		"key":         record.Key,
		"status":      string(record.Status),
	}
	if record.Status == entity.ConflictPending {
		payload["candidates"] = record.Candidates
	}
	if accepted != nil {
		payload["value"] = accepted.Value
		payload["version"] = accepted.Version
	}

	draft := &dto.EventDraft{
		SessionId: record.SessionId,
		Type:      wire.TypeConflictResolution,
		ActorId:   actorId,
		After:     mustJSON(payload),
	}
	if _, err := s.sequencer.Record(ctx, draft); err != nil {
		s.log.Error("SessionState", "failed to record conflict event", map[string]interface{}{
			"conflict_id": record.Id.String(),
			"error":       err.Error(),
		})
	}
}

func (s *SessionStateService) publishBusEvent(ctx context.Context, eventType string, payload map[string]interface{}) {
	if s.bus == nil {
		return
	}
	event := events.BaseEvent{Type: eventType, Data: payload, OccurredAt: time.Now().UTC()}
	if err := s.bus.Publish(ctx, event); err != nil {
		s.log.Warn("SessionState", "failed to publish bus event", map[string]interface{}{
			"event_type": eventType,
			"error":      err.Error(),
		})
	}
}

// advance builds the successor entry for an accepted write.
func advance(current *entity.StateEntry, value []byte, userId uuid.UUID, source entity.ChangeSource) *entity.StateEntry {
	now := time.Now().UTC()
	next := *current
	next.Value = value
	next.Version = current.Version + 1
	next.StateHash = conflict.HashValue(value)
	next.LastModifiedBy = userId
	next.LastModifiedAt = now
	next.ChangeSource = source
	next.PreviousValue = current.Value
	next.UpdatedAt = &now
	return &next
}

func eventTypeForKey(key string) string {
	if key == StateKeyQuery {
		return wire.TypeQueryUpdate
	}
	return wire.TypeFilterUpdate
}

func toStateEntryResponse(entry *entity.StateEntry) *dto.StateEntryResponse {
	return &dto.StateEntryResponse{
		Key:            entry.Key,
		Value:          entry.Value,
		Version:        entry.Version,
		StateHash:      entry.StateHash,
		LastModifiedBy: entry.LastModifiedBy,
		LastModifiedAt: entry.LastModifiedAt,
		ChangeSource:   string(entry.ChangeSource),
		Blocked:        entry.Blocked,
	}
}

func toConflictResponse(record *entity.ConflictRecord) *dto.ConflictResponse {
	candidates := make([]dto.ConflictCandidateResponse, 0, len(record.Candidates))
	for _, candidate := range record.Candidates {
		candidates = append(candidates, dto.ConflictCandidateResponse{
			ActorId:   candidate.ActorId,
			Value:     candidate.Value,
			Timestamp: candidate.Timestamp,
		})
	}
	return &dto.ConflictResponse{
		Id:            record.Id,
		SessionId:     record.SessionId,
		Key:           record.Key,
		Candidates:    candidates,
		Strategy:      string(record.Strategy),
		Status:        string(record.Status),
		ResolvedValue: record.ResolvedValue,
		ResolvedBy:    record.ResolvedBy,
		ResolvedAt:    record.ResolvedAt,
		CreatedAt:     record.CreatedAt,
	}
}
