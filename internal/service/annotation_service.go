package service

import (
	"context"
	"time"

	"collabsearch-be/internal/dto"
	"collabsearch-be/internal/entity"
	"collabsearch-be/internal/pkg/apperrors"
	"collabsearch-be/internal/pkg/logger"
	"collabsearch-be/internal/pkg/serverutils"
	"collabsearch-be/internal/repository/specification"
	"collabsearch-be/internal/repository/unitofwork"
	"collabsearch-be/internal/websocket/wire"
	"collabsearch-be/pkg/events"

	"github.com/google/uuid"
)

type IAnnotationService interface {
	Create(ctx context.Context, userId uuid.UUID, req *dto.CreateAnnotationRequest) (*dto.AnnotationResponse, error)
	Update(ctx context.Context, userId uuid.UUID, req *dto.UpdateAnnotationRequest) (*dto.AnnotationResponse, error)
	Delete(ctx context.Context, userId, id uuid.UUID) error
	Resolve(ctx context.Context, userId, id uuid.UUID) (*dto.AnnotationResponse, error)
	ListForSession(ctx context.Context, sessionId, userId uuid.UUID) ([]*dto.AnnotationResponse, error)
}

type AnnotationService struct {
	factory   unitofwork.RepositoryFactory
	registry  ISessionRegistryService
	sequencer IEventSequencerService
	bus       EventBusPublisher
	log       logger.ILogger
}

func NewAnnotationService(
	factory unitofwork.RepositoryFactory,
	registry ISessionRegistryService,
	sequencer IEventSequencerService,
	bus EventBusPublisher,
	log logger.ILogger,
) IAnnotationService {
	return &AnnotationService{
		factory:   factory,
		registry:  registry,
		sequencer: sequencer,
		bus:       bus,
		log:       log,
	}
}

func (s *AnnotationService) Create(ctx context.Context, userId uuid.UUID, req *dto.CreateAnnotationRequest) (*dto.AnnotationResponse, error) {
	if err := serverutils.ValidateRequest(req); err != nil {
		return nil, err
	}

	participant, err := s.registry.ActiveParticipant(ctx, req.SessionId, userId)
	if err != nil {
		return nil, err
	}

	annotationType := entity.AnnotationType(req.Type)
	caps := participant.Role.Capabilities()
	if annotationType == entity.AnnotationBookmark {
		// Observers may bookmark even though they cannot annotate.
		if !caps.CanBookmark {
			return nil, apperrors.NewPermission("bookmark results in this session")
		}
	} else if !caps.CanAnnotate {
		return nil, apperrors.NewPermission("annotate results in this session")
	}

	uow := s.factory.NewUnitOfWork(ctx)
	annotations := uow.AnnotationRepository()

	if req.ParentId != nil {
		parent, err := annotations.FindOne(ctx, specification.ByID{ID: *req.ParentId})
		if err != nil {
			return nil, apperrors.NewServiceUnavailable(err)
		}
		if parent == nil || parent.SessionId != req.SessionId {
			return nil, apperrors.NewValidation("parent annotation does not belong to this session", nil)
		}
	}

	now := time.Now().UTC()
	annotation := &entity.Annotation{
		Id:             uuid.New(),
		SessionId:      req.SessionId,
		AuthorId:       userId,
		TargetResultId: req.TargetResultId,
		TargetType:     req.TargetType,
		Type:           annotationType,
		Content:        req.Content,
		Selection:      req.Selection,
		IsShared:       req.IsShared,
		ParentId:       req.ParentId,
		Mentions:       req.Mentions,
		CreatedAt:      now,
	}
	if err := annotations.Create(ctx, annotation); err != nil {
		return nil, apperrors.NewServiceUnavailable(err)
	}

	s.registry.RecordActivity(ctx, req.SessionId, userId, ActivityAnnotation)
	s.notifyMentions(ctx, annotation, req.Mentions)
	s.broadcastAnnotation(ctx, userId, annotation, "create")

	return toAnnotationResponse(annotation), nil
}

func (s *AnnotationService) Update(ctx context.Context, userId uuid.UUID, req *dto.UpdateAnnotationRequest) (*dto.AnnotationResponse, error) {
	if err := serverutils.ValidateRequest(req); err != nil {
		return nil, err
	}

	annotation, err := s.findAnnotation(ctx, req.Id)
	if err != nil {
		return nil, err
	}
	if err := s.requireAuthorOrModerator(ctx, annotation, userId, "edit this annotation"); err != nil {
		return nil, err
	}

	if req.Content != nil {
		annotation.Content = *req.Content
	}
	if req.Selection != nil {
		annotation.Selection = req.Selection
	}
	if req.IsShared != nil {
		annotation.IsShared = *req.IsShared
	}
	var addedMentions []uuid.UUID
	if req.Mentions != nil {
		addedMentions = newMentions(annotation.Mentions, req.Mentions)
		annotation.Mentions = req.Mentions
	}
	now := time.Now().UTC()
	annotation.UpdatedAt = &now

	uow := s.factory.NewUnitOfWork(ctx)
	if err := uow.AnnotationRepository().Update(ctx, annotation); err != nil {
		return nil, apperrors.NewServiceUnavailable(err)
	}

	s.notifyMentions(ctx, annotation, addedMentions)
	s.broadcastAnnotation(ctx, userId, annotation, "update")

	return toAnnotationResponse(annotation), nil
}

func (s *AnnotationService) Delete(ctx context.Context, userId, id uuid.UUID) error {
	annotation, err := s.findAnnotation(ctx, id)
	if err != nil {
		return err
	}
	if err := s.requireAuthorOrModerator(ctx, annotation, userId, "delete this annotation"); err != nil {
		return err
	}

	uow := s.factory.NewUnitOfWork(ctx)
	if err := uow.AnnotationRepository().Delete(ctx, id); err != nil {
		return apperrors.NewServiceUnavailable(err)
	}

	annotation.IsDeleted = true
	s.broadcastAnnotation(ctx, userId, annotation, "delete")
	return nil
}

func (s *AnnotationService) Resolve(ctx context.Context, userId, id uuid.UUID) (*dto.AnnotationResponse, error) {
	annotation, err := s.findAnnotation(ctx, id)
	if err != nil {
		return nil, err
	}

	participant, err := s.registry.ActiveParticipant(ctx, annotation.SessionId, userId)
	if err != nil {
		return nil, err
	}
	if !participant.Role.Capabilities().CanAnnotate {
		return nil, apperrors.NewPermission("resolve annotations in this session")
	}
	if annotation.IsResolved {
		return toAnnotationResponse(annotation), nil
	}

	now := time.Now().UTC()
	annotation.IsResolved = true
	annotation.ResolvedBy = &userId
	annotation.ResolvedAt = &now
	annotation.UpdatedAt = &now

	uow := s.factory.NewUnitOfWork(ctx)
	if err := uow.AnnotationRepository().Update(ctx, annotation); err != nil {
		return nil, apperrors.NewServiceUnavailable(err)
	}

	s.broadcastAnnotation(ctx, userId, annotation, "resolve")
	return toAnnotationResponse(annotation), nil
}

func (s *AnnotationService) ListForSession(ctx context.Context, sessionId, userId uuid.UUID) ([]*dto.AnnotationResponse, error) {
	if _, err := s.registry.ActiveParticipant(ctx, sessionId, userId); err != nil {
		return nil, err
	}

	uow := s.factory.NewUnitOfWork(ctx)
	annotations, err := uow.AnnotationRepository().FindAll(ctx,
		specification.BySessionID{SessionID: sessionId},
		specification.VisibleTo{UserID: userId},
		specification.OrderBy{Field: "created_at"},
	)
	if err != nil {
		return nil, apperrors.NewServiceUnavailable(err)
	}

	responses := make([]*dto.AnnotationResponse, 0, len(annotations))
	for _, annotation := range annotations {
		responses = append(responses, toAnnotationResponse(annotation))
	}
	return responses, nil
}

func (s *AnnotationService) findAnnotation(ctx context.Context, id uuid.UUID) (*entity.Annotation, error) {
	uow := s.factory.NewUnitOfWork(ctx)
	annotation, err := uow.AnnotationRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return nil, apperrors.NewServiceUnavailable(err)
	}
	if annotation == nil {
		return nil, apperrors.NewNotFound("annotation")
	}
	return annotation, nil
}

func (s *AnnotationService) requireAuthorOrModerator(ctx context.Context, annotation *entity.Annotation, userId uuid.UUID, action string) error {
	if annotation.AuthorId == userId {
		return nil
	}
	participant, err := s.registry.ActiveParticipant(ctx, annotation.SessionId, userId)
	if err != nil {
		return err
	}
	if !participant.Role.Capabilities().CanModerate {
		return apperrors.NewPermission(action)
	}
	return nil
}

// notifyMentions publishes one bus event per mentioned user; the external
// notification service turns them into user-facing notifications.
func (s *AnnotationService) notifyMentions(ctx context.Context, annotation *entity.Annotation, mentions []uuid.UUID) {
	if s.bus == nil || len(mentions) == 0 {
		return
	}
	for _, mentioned := range mentions {
		event := events.BaseEvent{
			Type: events.TypeAnnotationMention,
			Data: map[string]interface{}{
				"annotation_id":    annotation.Id.String(),
				"session_id":       annotation.SessionId.String(),
				"author_id":        annotation.AuthorId.String(),
				"mentioned_user":   mentioned.String(),
				"target_result_id": annotation.TargetResultId,
			},
			OccurredAt: time.Now().UTC(),
		}
		if err := s.bus.Publish(ctx, event); err != nil {
			s.log.Warn("Annotation", "failed to publish mention event", map[string]interface{}{
				"annotation_id": annotation.Id.String(),
				"error":         err.Error(),
			})
		}
	}
}

// broadcastAnnotation records the annotation change in the event log.
// Private annotations reach only their author.
func (s *AnnotationService) broadcastAnnotation(ctx context.Context, actorId uuid.UUID, annotation *entity.Annotation, action string) {
	eventType := wire.TypeAnnotation
	if annotation.Type == entity.AnnotationBookmark {
		eventType = wire.TypeBookmark
	}

	payload := map[string]interface{}{
		"action":     action,
		"annotation": toAnnotationResponse(annotation),
	}
	draft := &dto.EventDraft{
		SessionId: annotation.SessionId,
		Type:      eventType,
		ActorId:   actorId,
		After:     mustJSON(payload),
	}
	if !annotation.IsShared {
		author := annotation.AuthorId
		draft.TargetUserId = &author
	}

	if _, err := s.sequencer.Record(ctx, draft); err != nil {
		s.log.Error("Annotation", "failed to record annotation event", map[string]interface{}{
			"annotation_id": annotation.Id.String(),
			"error":         err.Error(),
		})
	}
}

func newMentions(previous, next []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(previous))
	for _, id := range previous {
		seen[id] = true
	}
	var added []uuid.UUID
	for _, id := range next {
		if !seen[id] {
			added = append(added, id)
		}
	}
	return added
}

func toAnnotationResponse(annotation *entity.Annotation) *dto.AnnotationResponse {
	return &dto.AnnotationResponse{
		Id:             annotation.Id,
		SessionId:      annotation.SessionId,
		AuthorId:       annotation.AuthorId,
		TargetResultId: annotation.TargetResultId,
		TargetType:     annotation.TargetType,
		Type:           string(annotation.Type),
		Content:        annotation.Content,
		Selection:      annotation.Selection,
		IsShared:       annotation.IsShared,
		IsResolved:     annotation.IsResolved,
		ResolvedBy:     annotation.ResolvedBy,
		ResolvedAt:     annotation.ResolvedAt,
		ParentId:       annotation.ParentId,
		Mentions:       annotation.Mentions,
		CreatedAt:      annotation.CreatedAt,
		UpdatedAt:      annotation.UpdatedAt,
	}
}
