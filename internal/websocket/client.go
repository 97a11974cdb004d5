package websocket

import (
	"sync/atomic"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Filter payloads can be large; annotation selections too.
	maxMessageSize = 64 * 1024
)

// Client is a middleman between one websocket connection and the hub.
// A connection is pinned to a single session and user for its lifetime.
type Client struct {
	Hub     *Hub
	Gateway *Gateway

	Conn *websocket.Conn

	UserId    uuid.UUID
	SessionId uuid.UUID

	// Buffered channel of outbound messages.
	Send chan []byte

	// joined flips once the join message is accepted; session broadcasts
	// are withheld until then.
	joined atomic.Bool
}

func NewClient(hub *Hub, gateway *Gateway, conn *websocket.Conn, userId, sessionId uuid.UUID) *Client {
	return &Client{
		Hub:       hub,
		Gateway:   gateway,
		Conn:      conn,
		UserId:    userId,
		SessionId: sessionId,
		Send:      make(chan []byte, 256),
	}
}

func (c *Client) Joined() bool {
	return c.joined.Load()
}

func (c *Client) setJoined(joined bool) {
	c.joined.Store(joined)
}

// Enqueue queues a message without blocking; a stalled connection drops
// frames and recovers via resync instead of stalling the hub.
func (c *Client) Enqueue(message []byte) {
	select {
	case c.Send <- message:
	default:
	}
}

// readPump pumps messages from the websocket connection to the gateway.
func (c *Client) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Gateway.logMessageError(c, err)
			}
			break
		}
		c.Gateway.HandleMessage(c, message)
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
