package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"collabsearch-be/internal/dto"
	"collabsearch-be/internal/entity"
	"collabsearch-be/internal/pkg/apperrors"
	"collabsearch-be/internal/pkg/logger"
	"collabsearch-be/internal/repository/specification"
	"collabsearch-be/internal/repository/unitofwork"
	"collabsearch-be/internal/websocket/wire"
	"collabsearch-be/pkg/collab/debounce"

	"github.com/google/uuid"
)

// IEventSequencerService assigns sequence numbers, persists the event log
// and hands sequenced events to the broadcast pipeline. Record returns nil
// without error when the event was coalesced into a pending debounce group.
type IEventSequencerService interface {
	Record(ctx context.Context, draft *dto.EventDraft) (*dto.EventResponse, error)
	History(ctx context.Context, sessionId uuid.UUID, fromSequence int64, limit int) ([]*dto.EventResponse, error)
	LatestSequence(ctx context.Context, sessionId uuid.UUID) (int64, error)
	FlushSession(sessionId uuid.UUID)
	DropSession(sessionId uuid.UUID)
	Stop()
}

type EventSequencerService struct {
	factory   unitofwork.RepositoryFactory
	publisher IPublisherService
	coalescer *debounce.Coalescer
	log       logger.ILogger

	historyLimit int
	bufferSize   int

	// recent holds the tail of each session's log so reconnect catch-up
	// rarely touches the database.
	mu     sync.Mutex
	recent map[uuid.UUID][]*dto.EventResponse
}

func NewEventSequencerService(
	factory unitofwork.RepositoryFactory,
	publisher IPublisherService,
	debounceWindow time.Duration,
	historyLimit int,
	bufferSize int,
	log logger.ILogger,
) IEventSequencerService {
	s := &EventSequencerService{
		factory:      factory,
		publisher:    publisher,
		log:          log,
		historyLimit: historyLimit,
		bufferSize:   bufferSize,
		recent:       make(map[uuid.UUID][]*dto.EventResponse),
	}
	s.coalescer = debounce.NewCoalescer(debounceWindow, s.flushDraft)
	return s
}

func (s *EventSequencerService) Record(ctx context.Context, draft *dto.EventDraft) (*dto.EventResponse, error) {
	if draft.DebounceGroupId != nil && *draft.DebounceGroupId != "" {
		// No sequence number yet: the group holds one pending slot and
		// later submissions replace the draft in place.
		s.coalescer.Submit(debounce.Key{
			SessionId: draft.SessionId,
			ActorId:   draft.ActorId,
			GroupId:   *draft.DebounceGroupId,
		}, draft)
		return nil, nil
	}

	// A non-grouped event from the same actor must not overtake that
	// actor's pending coalesced updates.
	s.coalescer.FlushActor(draft.SessionId, draft.ActorId)

	return s.commit(ctx, draft, false)
}

func (s *EventSequencerService) flushDraft(key debounce.Key, pending interface{}) {
	draft, ok := pending.(*dto.EventDraft)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := s.commit(ctx, draft, true); err != nil {
		s.log.Error("EventSequencer", "failed to flush debounced event", map[string]interface{}{
			"session_id": key.SessionId.String(),
			"actor_id":   key.ActorId.String(),
			"group_id":   key.GroupId,
			"error":      err.Error(),
		})
	}
}

// commit is the single path through which an event gains a sequence
// number. Counter increment and append share a transaction, so an aborted
// write cannot leave a gap in the log.
func (s *EventSequencerService) commit(ctx context.Context, draft *dto.EventDraft, debounced bool) (*dto.EventResponse, error) {
	uow := s.factory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, apperrors.NewServiceUnavailable(err)
	}

	seq, err := uow.SearchEventRepository().NextSequence(ctx, draft.SessionId)
	if err != nil {
		_ = uow.Rollback()
		return nil, apperrors.NewServiceUnavailable(err)
	}

	event := &entity.SearchEvent{
		Id:              uuid.New(),
		SessionId:       draft.SessionId,
		SequenceNumber:  seq,
		Type:            draft.Type,
		ActorId:         draft.ActorId,
		Before:          draft.Before,
		After:           draft.After,
		DebounceGroupId: draft.DebounceGroupId,
		BatchId:         draft.BatchId,
		CreatedAt:       time.Now().UTC(),
	}

	if err := uow.SearchEventRepository().Append(ctx, event); err != nil {
		_ = uow.Rollback()
		return nil, apperrors.NewServiceUnavailable(err)
	}
	if err := uow.Commit(); err != nil {
		return nil, apperrors.NewServiceUnavailable(err)
	}

	resp := toEventResponse(event)
	s.remember(resp)
	s.broadcast(ctx, draft, event, debounced)

	return resp, nil
}

func (s *EventSequencerService) broadcast(ctx context.Context, draft *dto.EventDraft, event *entity.SearchEvent, debounced bool) {
	now := event.CreatedAt
	frame := wire.Envelope{
		Type:            event.Type,
		SearchSessionId: event.SessionId,
		UserId:          event.ActorId,
		Data:            event.After,
		Timestamp:       &now,
		SequenceNumber:  event.SequenceNumber,
		DebounceGroupId: event.DebounceGroupId,
		BatchId:         event.BatchId,
		IsDebounced:     debounced,
	}

	payload, err := json.Marshal(frame)
	if err != nil {
		s.log.Error("EventSequencer", "failed to marshal broadcast frame", map[string]interface{}{
			"event_id": event.Id.String(),
			"error":    err.Error(),
		})
		return
	}

	env := &dto.BroadcastEnvelope{
		SessionId:    event.SessionId,
		TargetUserId: draft.TargetUserId,
		Message:      payload,
	}
	if draft.ExcludeActor {
		actor := event.ActorId
		env.ExcludeUserId = &actor
	}

	if err := s.publisher.PublishBroadcast(ctx, env); err != nil {
		// The event is durable and will reach clients on resync.
		s.log.Warn("EventSequencer", "broadcast publish failed, clients will catch up on resync", map[string]interface{}{
			"event_id": event.Id.String(),
			"sequence": event.SequenceNumber,
		})
	}
}

func (s *EventSequencerService) History(ctx context.Context, sessionId uuid.UUID, fromSequence int64, limit int) ([]*dto.EventResponse, error) {
	if limit <= 0 || limit > s.historyLimit {
		limit = s.historyLimit
	}

	if cached, ok := s.fromBuffer(sessionId, fromSequence, limit); ok {
		return cached, nil
	}

	uow := s.factory.NewUnitOfWork(ctx)
	events, err := uow.SearchEventRepository().FindAll(ctx,
		specification.BySessionID{SessionID: sessionId},
		specification.AfterSequence{From: fromSequence},
		specification.OrderBy{Field: "sequence_number"},
		specification.Pagination{Limit: limit},
	)
	if err != nil {
		return nil, apperrors.NewServiceUnavailable(err)
	}

	responses := make([]*dto.EventResponse, 0, len(events))
	for _, event := range events {
		responses = append(responses, toEventResponse(event))
	}
	return responses, nil
}

func (s *EventSequencerService) LatestSequence(ctx context.Context, sessionId uuid.UUID) (int64, error) {
	s.mu.Lock()
	if buf := s.recent[sessionId]; len(buf) > 0 {
		latest := buf[len(buf)-1].SequenceNumber
		s.mu.Unlock()
		return latest, nil
	}
	s.mu.Unlock()

	uow := s.factory.NewUnitOfWork(ctx)
	events, err := uow.SearchEventRepository().FindAll(ctx,
		specification.BySessionID{SessionID: sessionId},
		specification.OrderBy{Field: "sequence_number", Desc: true},
		specification.Pagination{Limit: 1},
	)
	if err != nil {
		return 0, apperrors.NewServiceUnavailable(err)
	}
	if len(events) == 0 {
		return 0, nil
	}
	return events[0].SequenceNumber, nil
}

func (s *EventSequencerService) FlushSession(sessionId uuid.UUID) {
	s.coalescer.FlushSession(sessionId)
}

func (s *EventSequencerService) DropSession(sessionId uuid.UUID) {
	s.coalescer.DropSession(sessionId)
	s.mu.Lock()
	delete(s.recent, sessionId)
	s.mu.Unlock()
}

func (s *EventSequencerService) Stop() {
	s.coalescer.Stop()
}

func (s *EventSequencerService) remember(event *dto.EventResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := append(s.recent[event.SessionId], event)
	if len(buf) > s.bufferSize {
		buf = buf[len(buf)-s.bufferSize:]
	}
	s.recent[event.SessionId] = buf
}

// fromBuffer serves catch-up from the in-memory tail when it covers the
// requested range completely.
func (s *EventSequencerService) fromBuffer(sessionId uuid.UUID, fromSequence int64, limit int) ([]*dto.EventResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := s.recent[sessionId]
	if len(buf) == 0 {
		return nil, false
	}
	// The buffer must reach back to fromSequence+1 or the range may have
	// older events only the database knows about.
	if buf[0].SequenceNumber > fromSequence+1 {
		return nil, false
	}

	var out []*dto.EventResponse
	for _, event := range buf {
		if event.SequenceNumber > fromSequence {
			out = append(out, event)
			if len(out) == limit {
				break
			}
		}
	}
	return out, true
}

func toEventResponse(event *entity.SearchEvent) *dto.EventResponse {
	return &dto.EventResponse{
		Id:              event.Id,
		SessionId:       event.SessionId,
		SequenceNumber:  event.SequenceNumber,
		Type:            event.Type,
		ActorId:         event.ActorId,
		Before:          event.Before,
		After:           event.After,
		DebounceGroupId: event.DebounceGroupId,
		BatchId:         event.BatchId,
		CreatedAt:       event.CreatedAt,
	}
}
