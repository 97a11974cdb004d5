package handler

import (
	"os"

	"collabsearch-be/internal/pkg/logger"
	internalWS "collabsearch-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SearchWsHandler upgrades authenticated clients onto a search session's
// websocket. The session id is bound at upgrade time; every frame on the
// connection is validated against it.
type SearchWsHandler struct {
	hub     *internalWS.Hub
	gateway *internalWS.Gateway
	logger  logger.ILogger
}

func NewSearchWsHandler(hub *internalWS.Hub, gateway *internalWS.Gateway, log logger.ILogger) *SearchWsHandler {
	return &SearchWsHandler{
		hub:     hub,
		gateway: gateway,
		logger:  log,
	}
}

func (h *SearchWsHandler) RegisterRoutes(r fiber.Router) {
	r.Get("/ws/search/:sessionId", h.ServeWs)
}

func (h *SearchWsHandler) ServeWs(c *fiber.Ctx) error {
	// Browsers cannot set headers on websocket handshakes, so the token
	// may arrive as a query param instead.
	tokenStr := c.Query("token")
	if tokenStr == "" {
		authHeader := c.Get("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			tokenStr = authHeader[7:]
		}
	}
	if tokenStr == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing token"})
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.ErrUnauthorized
		}
		return []byte(os.Getenv("JWT_SECRET")), nil
	})
	if err != nil || !token.Valid {
		h.logger.Warn("SearchWsHandler", "invalid token in handshake", map[string]interface{}{"error": err})
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token claims"})
	}
	userIdStr, ok := claims["user_id"].(string)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "token missing user_id"})
	}
	userId, err := uuid.Parse(userIdStr)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid user id in token"})
	}

	sessionId, err := uuid.Parse(c.Params("sessionId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid session id"})
	}

	if websocket.IsWebSocketUpgrade(c) {
		return websocket.New(func(conn *websocket.Conn) {
			h.logger.Info("SearchWsHandler", "websocket session started", map[string]interface{}{
				"user_id":    userId.String(),
				"session_id": sessionId.String(),
			})
			internalWS.ServeWs(h.hub, h.gateway, conn, userId, sessionId)
			h.logger.Info("SearchWsHandler", "websocket session ended", map[string]interface{}{
				"user_id":    userId.String(),
				"session_id": sessionId.String(),
			})
		})(c)
	}
	return fiber.ErrUpgradeRequired
}
