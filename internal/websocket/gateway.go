package websocket

import (
	"context"
	"encoding/json"
	"time"

	"collabsearch-be/internal/dto"
	"collabsearch-be/internal/pkg/apperrors"
	"collabsearch-be/internal/pkg/logger"
	"collabsearch-be/internal/repository/memory"
	"collabsearch-be/internal/service"
	"collabsearch-be/internal/websocket/wire"

	"github.com/google/uuid"
)

const dispatchTimeout = 10 * time.Second

// Gateway is the inbound side of the websocket surface: it validates
// frames, deduplicates retries, dispatches to the domain services and
// acknowledges. Errors go back to the sender only, never into a broadcast.
type Gateway struct {
	registry    service.ISessionRegistryService
	state       service.ISessionStateService
	annotations service.IAnnotationService
	sequencer   service.IEventSequencerService

	acks *memory.AckCache
	log  logger.ILogger

	// historyRetention caps event catch-up; beyond it a reconnecting
	// client gets a snapshot instead of a replay.
	historyRetention int
}

func NewGateway(
	registry service.ISessionRegistryService,
	state service.ISessionStateService,
	annotations service.IAnnotationService,
	sequencer service.IEventSequencerService,
	acks *memory.AckCache,
	historyRetention int,
	log logger.ILogger,
) *Gateway {
	return &Gateway{
		registry:         registry,
		state:            state,
		annotations:      annotations,
		sequencer:        sequencer,
		acks:             acks,
		log:              log,
		historyRetention: historyRetention,
	}
}

// HandleMessage runs the full inbound pipeline for one frame.
func (g *Gateway) HandleMessage(c *Client, raw []byte) {
	env, err := wire.ParseEnvelope(raw)
	if err != nil {
		g.sendError(c, "", apperrors.NewValidation(err.Error(), err))
		return
	}

	// A connection is pinned to one session and user; a frame claiming
	// another identity is rejected outright.
	if env.SearchSessionId != c.SessionId || env.UserId != c.UserId {
		g.sendError(c, env.MessageId, apperrors.NewPermission("send messages for another session or user"))
		return
	}

	// Retried frames replay the original outcome instead of re-executing.
	if env.MessageId != "" {
		if cached, ok := g.acks.Get(env.MessageId); ok {
			c.Enqueue(cached)
			return
		}
	}

	if !c.Joined() && env.Type != wire.TypeJoin {
		g.sendError(c, env.MessageId, apperrors.NewPermission("send messages before joining the session"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	seq, err := g.dispatch(ctx, c, env)
	if err != nil {
		g.replyError(c, env.MessageId, err)
		return
	}

	if env.MessageId != "" {
		g.replyAck(c, env.MessageId, seq)
	}
}

// dispatch routes the frame to its service. The returned sequence number
// is zero when the operation did not (yet) produce a sequenced event.
func (g *Gateway) dispatch(ctx context.Context, c *Client, env *wire.Envelope) (int64, error) {
	switch env.Type {
	case wire.TypeJoin:
		return 0, g.handleJoin(ctx, c, env)

	case wire.TypeLeave:
		if err := g.registry.Leave(ctx, c.SessionId, c.UserId); err != nil {
			return 0, err
		}
		c.setJoined(false)
		return 0, nil

	case wire.TypeQueryUpdate, wire.TypeFilterUpdate:
		return 0, g.handleStateUpdate(ctx, c, env)

	case wire.TypeResultHighlight, wire.TypeCursorUpdate, wire.TypeSelectionChange:
		return g.handleEphemeralEvent(ctx, c, env)

	case wire.TypeAnnotation, wire.TypeBookmark:
		return 0, g.handleAnnotation(ctx, c, env)

	case wire.TypeStateSync:
		return 0, g.handleResync(ctx, c, env)

	case wire.TypeConflictResolution:
		return 0, g.handleConflictResolution(ctx, c, env)

	case wire.TypeSessionUpdate:
		return 0, g.handleSessionUpdate(ctx, c, env)

	default:
		return 0, apperrors.NewValidation("unsupported message type", nil)
	}
}

func (g *Gateway) handleJoin(ctx context.Context, c *Client, env *wire.Envelope) error {
	var payload wire.JoinPayload
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return apperrors.NewValidation("malformed join payload", err)
		}
	}
	if payload.Role == "" {
		payload.Role = "searcher"
	}

	if _, err := g.registry.Join(ctx, c.UserId, &dto.JoinSessionRequest{
		SessionId: c.SessionId,
		Role:      payload.Role,
	}); err != nil {
		return err
	}
	c.setJoined(true)
	return nil
}

func (g *Gateway) handleStateUpdate(ctx context.Context, c *Client, env *wire.Envelope) error {
	var payload wire.StateUpdatePayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return apperrors.NewValidation("malformed state update payload", err)
	}
	if len(payload.Value) == 0 {
		return apperrors.NewValidation("state update requires a value", nil)
	}

	key := payload.Key
	if env.Type == wire.TypeQueryUpdate {
		key = service.StateKeyQuery
	} else if key == "" {
		key = "filters"
	}

	_, err := g.state.UpdateState(ctx, c.UserId, &dto.UpdateStateRequest{
		SessionId:       c.SessionId,
		Key:             key,
		Value:           payload.Value,
		ExpectedVersion: payload.ExpectedVersion,
		Strategy:        payload.Strategy,
		DebounceGroupId: env.DebounceGroupId,
		BatchId:         env.BatchId,
	})
	return err
}

// handleEphemeralEvent covers highlights, cursor moves and selection
// changes: sequenced and broadcast, but with no shared-state write. The
// sender does not need its own echo.
func (g *Gateway) handleEphemeralEvent(ctx context.Context, c *Client, env *wire.Envelope) (int64, error) {
	if _, err := g.registry.ActiveParticipant(ctx, c.SessionId, c.UserId); err != nil {
		return 0, err
	}

	event, err := g.sequencer.Record(ctx, &dto.EventDraft{
		SessionId:       c.SessionId,
		Type:            env.Type,
		ActorId:         c.UserId,
		After:           env.Data,
		DebounceGroupId: env.DebounceGroupId,
		BatchId:         env.BatchId,
		TargetUserId:    env.TargetUserId,
		ExcludeActor:    true,
	})
	if err != nil {
		return 0, err
	}
	if event == nil {
		// Coalesced into a pending debounce group.
		return 0, nil
	}
	return event.SequenceNumber, nil
}

func (g *Gateway) handleAnnotation(ctx context.Context, c *Client, env *wire.Envelope) error {
	var payload wire.AnnotationPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return apperrors.NewValidation("malformed annotation payload", err)
	}

	action := payload.Action
	if action == "" {
		action = "create"
	}

	switch action {
	case "create":
		annotationType := payload.AnnotationType
		if env.Type == wire.TypeBookmark {
			annotationType = "bookmark"
		}
		content := ""
		if payload.Content != nil {
			content = *payload.Content
		}
		isShared := true
		if payload.IsShared != nil {
			isShared = *payload.IsShared
		}
		_, err := g.annotations.Create(ctx, c.UserId, &dto.CreateAnnotationRequest{
			SessionId:      c.SessionId,
			TargetResultId: payload.TargetResultId,
			TargetType:     payload.TargetType,
			Type:           annotationType,
			Content:        content,
			Selection:      payload.Selection,
			IsShared:       isShared,
			ParentId:       payload.ParentId,
			Mentions:       payload.Mentions,
		})
		return err

	case "update":
		if payload.Id == nil {
			return apperrors.NewValidation("annotation update requires an id", nil)
		}
		_, err := g.annotations.Update(ctx, c.UserId, &dto.UpdateAnnotationRequest{
			Id:        *payload.Id,
			Content:   payload.Content,
			Selection: payload.Selection,
			IsShared:  payload.IsShared,
			Mentions:  payload.Mentions,
		})
		return err

	case "delete":
		if payload.Id == nil {
			return apperrors.NewValidation("annotation delete requires an id", nil)
		}
		return g.annotations.Delete(ctx, c.UserId, *payload.Id)

	case "resolve":
		if payload.Id == nil {
			return apperrors.NewValidation("annotation resolve requires an id", nil)
		}
		_, err := g.annotations.Resolve(ctx, c.UserId, *payload.Id)
		return err

	default:
		return apperrors.NewValidation("unknown annotation action", nil)
	}
}

// handleResync serves reconnection catch-up directly to the requesting
// connection: the current state snapshot plus, when the gap is small
// enough, the missed event range in order.
func (g *Gateway) handleResync(ctx context.Context, c *Client, env *wire.Envelope) error {
	var payload wire.StateSyncPayload
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return apperrors.NewValidation("malformed state sync payload", err)
		}
	}

	snapshot, err := g.state.SyncState(ctx, c.SessionId, c.UserId)
	if err != nil {
		return err
	}
	latest, err := g.sequencer.LatestSequence(ctx, c.SessionId)
	if err != nil {
		return err
	}

	fullSync := payload.FullSync || payload.LastSequence <= 0 ||
		latest-payload.LastSequence > int64(g.historyRetention)

	response := map[string]interface{}{
		"snapshot":        snapshot,
		"latest_sequence": latest,
		"full_sync":       fullSync,
	}
	if !fullSync {
		missed, err := g.sequencer.History(ctx, c.SessionId, payload.LastSequence, 0)
		if err != nil {
			return err
		}
		response["events"] = missed
	}

	data, err := json.Marshal(response)
	if err != nil {
		return apperrors.New(apperrors.CodeConnection, "failed to encode sync response", err)
	}

	now := time.Now().UTC()
	frame, err := json.Marshal(wire.Envelope{
		Type:            wire.TypeStateSync,
		SearchSessionId: c.SessionId,
		UserId:          c.UserId,
		Data:            data,
		Timestamp:       &now,
		SequenceNumber:  latest,
	})
	if err != nil {
		return apperrors.New(apperrors.CodeConnection, "failed to encode sync frame", err)
	}
	c.Enqueue(frame)
	return nil
}

func (g *Gateway) handleConflictResolution(ctx context.Context, c *Client, env *wire.Envelope) error {
	var payload wire.ConflictResolutionPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return apperrors.NewValidation("malformed conflict resolution payload", err)
	}

	_, err := g.state.ResolveConflict(ctx, c.UserId, &dto.ResolveConflictRequest{
		ConflictId: payload.ConflictId,
		Value:      payload.Value,
	})
	return err
}

func (g *Gateway) handleSessionUpdate(ctx context.Context, c *Client, env *wire.Envelope) error {
	var payload wire.SessionUpdatePayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return apperrors.NewValidation("malformed session update payload", err)
	}

	_, err := g.registry.UpdateSession(ctx, c.UserId, &dto.UpdateSessionRequest{
		Id:                c.SessionId,
		Name:              payload.Name,
		IsActive:          payload.IsActive,
		MaxParticipants:   payload.MaxParticipants,
		RequireModeration: payload.RequireModeration,
	})
	return err
}

// replyAck confirms a processed frame and caches the ack so retries of
// the same messageId replay it without re-executing.
func (g *Gateway) replyAck(c *Client, messageId string, seq int64) {
	ack := wire.NewAck(messageId, seq)
	data, err := json.Marshal(ack)
	if err != nil {
		return
	}
	g.acks.Save(messageId, data)
	c.Enqueue(data)
}

// replyError reports a failed frame to the sender only. Failures are
// cached under the messageId too, so a blind retry of a rejected frame
// gets the same verdict.
func (g *Gateway) replyError(c *Client, messageId string, err error) {
	g.sendError(c, messageId, err)
	g.log.Warn("Gateway", "message dispatch failed", map[string]interface{}{
		"session_id": c.SessionId.String(),
		"user_id":    c.UserId.String(),
		"error":      err.Error(),
	})
}

func (g *Gateway) sendError(c *Client, messageId string, err error) {
	code := apperrors.CodeConnection
	message := "internal error"
	var conflictId *uuid.UUID

	if appErr, ok := apperrors.As(err); ok {
		code = appErr.Code
		message = appErr.Message
		if appErr.ConflictId != uuid.Nil {
			id := appErr.ConflictId
			conflictId = &id
		}
	}

	errMsg := wire.NewError(string(code), message, messageId)
	errMsg.ConflictId = conflictId
	data, marshalErr := json.Marshal(errMsg)
	if marshalErr != nil {
		return
	}
	if messageId != "" {
		g.acks.Save(messageId, data)
	}
	c.Enqueue(data)
}

func (g *Gateway) logMessageError(c *Client, err error) {
	g.log.Warn("Gateway", "websocket read failed", map[string]interface{}{
		"session_id": c.SessionId.String(),
		"user_id":    c.UserId.String(),
		"error":      err.Error(),
	})
}
