package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/kita-live/kita-api/internal/dto"
	"github.com/kita-live/kita-api/internal/middleware"
	"github.com/kita-live/kita-api/internal/service"
	"github.com/kita-live/kita-api/internal/utils"
)

// ChatHandler handles room chat endpoints. Delivery to connected clients
// happens over the realtime socket; these routes cover posting and catch-up.
type ChatHandler struct {
	service service.MessageService
	logger  zerolog.Logger
}

// NewChatHandler constructs the handler.
func NewChatHandler(service service.MessageService, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		service: service,
		logger:  logger.With().Str("component", "chat_handler").Logger(),
	}
}

// Register wires chat routes under a room group.
func (h *ChatHandler) Register(router fiber.Router) {
	router.Post("/:code/messages", middleware.WithAuth(h.send))
	router.Get("/:code/messages", middleware.WithAuth(h.history))
}

func (h *ChatHandler) send(c *fiber.Ctx) error {
	var req dto.SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	message, err := h.service.Send(c.UserContext(), callerFromContext(c), c.Params("code"), req)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to send message")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message sent", message)
}

func (h *ChatHandler) history(c *fiber.Ctx) error {
	messages, err := h.service.History(c.UserContext(), callerFromContext(c), c.Params("code"))
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to fetch chat history")
	}
	return utils.SendSuccess(c, "chat history", messages)
}
