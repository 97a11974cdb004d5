package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"collabsearch-be/internal/dto"
	"collabsearch-be/internal/pkg/logger"
	"collabsearch-be/pkg/fanout"

	"github.com/google/uuid"
)

// Hub tracks live connections per session and user (multi-device) and
// bridges local delivery with the cross-replica fan-out bus.
type Hub struct {
	// sessionId -> userId -> connections
	clients map[uuid.UUID]map[uuid.UUID][]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	bus fanout.Bus

	// origin identifies this replica on the bus so it can skip frames it
	// already delivered locally.
	origin string

	logger logger.ILogger
}

func NewHub(bus fanout.Bus, log logger.ILogger) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[uuid.UUID][]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		bus:        bus,
		origin:     uuid.NewString(),
		logger:     log,
	}
}

func (h *Hub) Run(ctx context.Context) {
	if h.bus != nil {
		go h.subscribeToBus(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			session := h.clients[client.SessionId]
			if session == nil {
				session = make(map[uuid.UUID][]*Client)
				h.clients[client.SessionId] = session
			}
			session[client.UserId] = append(session[client.UserId], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "client registered", map[string]interface{}{
				"session_id": client.SessionId.String(),
				"user_id":    client.UserId.String(),
			})

		case client := <-h.unregister:
			h.mu.Lock()
			if session, ok := h.clients[client.SessionId]; ok {
				conns := session[client.UserId]
				for i, c := range conns {
					if c == client {
						session[client.UserId] = append(conns[:i], conns[i+1:]...)
						close(client.Send)
						break
					}
				}
				if len(session[client.UserId]) == 0 {
					delete(session, client.UserId)
				}
				if len(session) == 0 {
					delete(h.clients, client.SessionId)
				}
			}
			h.mu.Unlock()
			h.logger.Info("Hub", "client unregistered", map[string]interface{}{
				"session_id": client.SessionId.String(),
				"user_id":    client.UserId.String(),
			})
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Deliver sends a broadcast envelope to local participants and replicates
// it to the other gateway replicas.
func (h *Hub) Deliver(env *dto.BroadcastEnvelope) {
	h.deliverLocal(env.SessionId, env.Message, env.TargetUserId, env.ExcludeUserId)

	if h.bus == nil {
		return
	}
	frame := fanout.Frame{
		SessionId: env.SessionId.String(),
		Origin:    h.origin,
		Message:   json.RawMessage(env.Message),
	}
	if env.TargetUserId != nil {
		frame.TargetUserId = env.TargetUserId.String()
	}
	if env.ExcludeUserId != nil {
		frame.ExcludeUserId = env.ExcludeUserId.String()
	}
	if err := h.bus.Publish(context.Background(), frame); err != nil {
		h.logger.Warn("Hub", "fan-out publish failed", map[string]interface{}{
			"session_id": env.SessionId.String(),
			"error":      err.Error(),
		})
	}
}

func (h *Hub) deliverLocal(sessionId uuid.UUID, message []byte, target, exclude *uuid.UUID) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	session, ok := h.clients[sessionId]
	if !ok {
		return
	}

	for userId, conns := range session {
		if target != nil && userId != *target {
			continue
		}
		if exclude != nil && userId == *exclude {
			continue
		}
		for _, client := range conns {
			if !client.Joined() {
				continue
			}
			client.Enqueue(message)
		}
	}
}

func (h *Hub) subscribeToBus(ctx context.Context) {
	frames, err := h.bus.Subscribe(ctx)
	if err != nil {
		h.logger.Error("Hub", "failed to subscribe to fan-out bus", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	for frame := range frames {
		if frame.Origin == h.origin {
			continue
		}

		sessionId, err := uuid.Parse(frame.SessionId)
		if err != nil {
			continue
		}
		var target, exclude *uuid.UUID
		if frame.TargetUserId != "" {
			if id, err := uuid.Parse(frame.TargetUserId); err == nil {
				target = &id
			}
		}
		if frame.ExcludeUserId != "" {
			if id, err := uuid.Parse(frame.ExcludeUserId); err == nil {
				exclude = &id
			}
		}
		h.deliverLocal(sessionId, frame.Message, target, exclude)
	}
}

// SessionPresence returns the user ids with at least one live connection.
func (h *Hub) SessionPresence(sessionId uuid.UUID) []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	session := h.clients[sessionId]
	users := make([]uuid.UUID, 0, len(session))
	for userId := range session {
		users = append(users, userId)
	}
	return users
}
