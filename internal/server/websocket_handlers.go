package server

import (
	"log/slog"

	"nexify/internal/middleware"
	"nexify/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// WebsocketHandler streams the caller's notification events. The upgrade is
// refused when Redis is absent.
func (s *Server) WebsocketHandler() fiber.Handler {
	upgrade := websocket.New(func(conn *websocket.Conn) {
		userID, ok := conn.Locals("userID").(uuid.UUID)
		if !ok {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(userID, conn)
		if err != nil {
			middleware.Logger.Warn("WebSocket register failed",
				slog.String("user_id", userID.String()), slog.String("error", err.Error()))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		// The write pump owns outbound frames; the read pump blocks until the
		// peer goes away and then unregisters the client.
		go client.WritePump()
		client.ReadPump()
	})

	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return models.RespondWithError(c, fiber.StatusUpgradeRequired,
				models.NewValidationError("WebSocket upgrade required"))
		}
		if s.hub == nil || s.notifier == nil {
			return models.RespondWithError(c, fiber.StatusServiceUnavailable,
				models.NewValidationError("Realtime notifications are unavailable"))
		}
		return upgrade(c)
	}
}
