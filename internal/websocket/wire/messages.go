// Package wire defines the websocket message protocol shared by the
// connection gateway and the services that emit broadcast frames.
package wire

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	TypeJoin               = "search_join"
	TypeLeave              = "search_leave"
	TypeQueryUpdate        = "search_query_update"
	TypeFilterUpdate       = "search_filter_update"
	TypeResultHighlight    = "search_result_highlight"
	TypeCursorUpdate       = "search_cursor_update"
	TypeSelectionChange    = "search_selection_change"
	TypeAnnotation         = "search_annotation"
	TypeBookmark           = "search_bookmark"
	TypeStateSync          = "search_state_sync"
	TypeConflictResolution = "search_conflict_resolution"
	TypeSessionUpdate      = "search_session_update"
	TypeAck                = "ack"
	TypeError              = "error"
)

// Envelope is the frame exchanged over the websocket in both directions.
// Inbound frames carry client intent in Data; outbound frames carry the
// sequenced event payload plus the sequence number assigned by the server.
type Envelope struct {
	Type            string          `json:"type"`
	SearchSessionId uuid.UUID       `json:"searchSessionId"`
	UserId          uuid.UUID       `json:"userId"`
	Data            json.RawMessage `json:"data,omitempty"`
	Timestamp       *time.Time      `json:"timestamp,omitempty"`
	SequenceNumber  int64           `json:"sequenceNumber,omitempty"`
	MessageId       string          `json:"messageId,omitempty"`
	DebounceGroupId *string         `json:"debounceGroupId,omitempty"`
	BatchId         *string         `json:"batchId,omitempty"`
	IsDebounced     bool            `json:"isDebounced,omitempty"`
	TargetUserId    *uuid.UUID      `json:"targetUserId,omitempty"`
	RequiresAck     bool            `json:"requiresAck,omitempty"`
	ParentMessageId *string         `json:"parentMessageId,omitempty"`
}

var inboundTypes = map[string]bool{
	TypeJoin:               true,
	TypeLeave:              true,
	TypeQueryUpdate:        true,
	TypeFilterUpdate:       true,
	TypeResultHighlight:    true,
	TypeCursorUpdate:       true,
	TypeSelectionChange:    true,
	TypeAnnotation:         true,
	TypeBookmark:           true,
	TypeStateSync:          true,
	TypeConflictResolution: true,
	TypeSessionUpdate:      true,
}

// typesRequiringData lists message types whose Data payload is mandatory.
// Leave and state sync are meaningful with an empty body.
var typesRequiringData = map[string]bool{
	TypeQueryUpdate:        true,
	TypeFilterUpdate:       true,
	TypeResultHighlight:    true,
	TypeCursorUpdate:       true,
	TypeSelectionChange:    true,
	TypeAnnotation:         true,
	TypeBookmark:           true,
	TypeConflictResolution: true,
	TypeSessionUpdate:      true,
}

// ParseEnvelope decodes and structurally validates an inbound frame.
func ParseEnvelope(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("malformed message: %w", err)
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	return &env, nil
}

func (e *Envelope) Validate() error {
	if e.Type == "" {
		return fmt.Errorf("missing message type")
	}
	if !inboundTypes[e.Type] {
		return fmt.Errorf("unknown message type %q", e.Type)
	}
	if e.SearchSessionId == uuid.Nil {
		return fmt.Errorf("missing searchSessionId")
	}
	if e.UserId == uuid.Nil {
		return fmt.Errorf("missing userId")
	}
	if typesRequiringData[e.Type] && len(e.Data) == 0 {
		return fmt.Errorf("message type %q requires a data payload", e.Type)
	}
	return nil
}

// JoinPayload accompanies search_join.
type JoinPayload struct {
	Role string `json:"role"`
}

// StateUpdatePayload accompanies search_query_update and
// search_filter_update. Key is optional for filter updates that target a
// named sub-key; query updates always write the "query" key.
type StateUpdatePayload struct {
	Key             string          `json:"key,omitempty"`
	Value           json.RawMessage `json:"value"`
	ExpectedVersion int64           `json:"expectedVersion"`
	Strategy        string          `json:"strategy,omitempty"`
}

// AnnotationPayload accompanies search_annotation and search_bookmark.
// Action selects the operation; fields beyond Action are operation
// dependent.
type AnnotationPayload struct {
	Action         string          `json:"action"` // create, update, delete, resolve
	Id             *uuid.UUID      `json:"id,omitempty"`
	TargetResultId string          `json:"targetResultId,omitempty"`
	TargetType     string          `json:"targetType,omitempty"`
	AnnotationType string          `json:"annotationType,omitempty"`
	Content        *string         `json:"content,omitempty"`
	Selection      json.RawMessage `json:"selection,omitempty"`
	IsShared       *bool           `json:"isShared,omitempty"`
	ParentId       *uuid.UUID      `json:"parentId,omitempty"`
	Mentions       []uuid.UUID     `json:"mentions,omitempty"`
}

// StateSyncPayload accompanies search_state_sync. LastSequence is the last
// sequence number the client saw; zero requests a full snapshot.
type StateSyncPayload struct {
	LastSequence int64 `json:"lastSequence"`
	FullSync     bool  `json:"fullSync,omitempty"`
}

// ConflictResolutionPayload accompanies search_conflict_resolution.
type ConflictResolutionPayload struct {
	ConflictId uuid.UUID       `json:"conflictId"`
	Value      json.RawMessage `json:"value"`
}

// SessionUpdatePayload accompanies search_session_update.
type SessionUpdatePayload struct {
	Name              *string `json:"name,omitempty"`
	IsActive          *bool   `json:"isActive,omitempty"`
	MaxParticipants   *int    `json:"maxParticipants,omitempty"`
	RequireModeration *bool   `json:"requireModeration,omitempty"`
}

// Ack confirms a processed inbound frame. Status is "ok" or "error";
// ConflictId is set when the frame raised a manual conflict.
type Ack struct {
	Type           string     `json:"type"`
	MessageId      string     `json:"messageId"`
	Status         string     `json:"status"`
	SequenceNumber int64      `json:"sequenceNumber,omitempty"`
	ConflictId     *uuid.UUID `json:"conflictId,omitempty"`
	Timestamp      time.Time  `json:"timestamp"`
}

func NewAck(messageId string, sequenceNumber int64) *Ack {
	return &Ack{
		Type:           TypeAck,
		MessageId:      messageId,
		Status:         "ok",
		SequenceNumber: sequenceNumber,
		Timestamp:      time.Now().UTC(),
	}
}

// ErrorMessage is sent only to the offending sender, never broadcast.
type ErrorMessage struct {
	Type       string     `json:"type"`
	Code       string     `json:"code"`
	Message    string     `json:"message"`
	MessageId  string     `json:"messageId,omitempty"`
	ConflictId *uuid.UUID `json:"conflictId,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

func NewError(code, message, messageId string) *ErrorMessage {
	return &ErrorMessage{
		Type:      TypeError,
		Code:      code,
		Message:   message,
		MessageId: messageId,
		Timestamp: time.Now().UTC(),
	}
}
