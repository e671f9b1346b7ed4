package handler

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/kita-live/kita-api/internal/middleware"
	"github.com/kita-live/kita-api/internal/service"
)

// RealtimeHandler upgrades subscribers onto the room snapshot stream.
type RealtimeHandler struct {
	service service.RealtimeService
	logger  zerolog.Logger
}

// NewRealtimeHandler constructs the handler.
func NewRealtimeHandler(service service.RealtimeService, logger zerolog.Logger) *RealtimeHandler {
	return &RealtimeHandler{
		service: service,
		logger:  logger.With().Str("component", "realtime_handler").Logger(),
	}
}

// Register binds the websocket upgrade route under the provided group.
func (h *RealtimeHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			ctx := c.UserContext()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
			c.Locals("request_ctx", ctx)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/ws", websocket.New(h.handleConnection))
}

func (h *RealtimeHandler) handleConnection(conn *websocket.Conn) {
	uid, _ := conn.Locals("uid").(string)
	if uid == "" {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(fiber.StatusUnauthorized, "session required"))
		_ = conn.Close()
		return
	}

	roomCode := strings.TrimSpace(conn.Query("room_code"))
	if roomCode == "" {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(fiber.StatusBadRequest, "room_code required"))
		_ = conn.Close()
		return
	}

	name, _ := conn.Locals("user_name").(string)
	correlation, _ := conn.Locals("correlation_id").(string)
	baseCtx, _ := conn.Locals("request_ctx").(context.Context)

	opts := service.ConnectionOptions{
		UID:           uid,
		Name:          name,
		RoomCode:      roomCode,
		CorrelationID: correlation,
		Context:       baseCtx,
	}

	h.logger.Info().Str("uid", uid).Str("room_code", roomCode).Msg("realtime client connected")
	h.service.ServeConnection(conn, opts)
	h.logger.Info().Str("uid", uid).Str("room_code", roomCode).Msg("realtime client disconnected")
}
