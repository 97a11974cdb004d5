package websocket

import (
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// ServeWs attaches an upgraded connection to the hub and runs its pumps.
// Blocks until the connection closes.
func ServeWs(hub *Hub, gateway *Gateway, conn *websocket.Conn, userId, sessionId uuid.UUID) {
	client := NewClient(hub, gateway, conn, userId, sessionId)
	hub.Register(client)

	go client.writePump()
	client.readPump()
}
