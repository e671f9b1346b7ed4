package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/kita-live/kita-api/internal/dto"
	"github.com/kita-live/kita-api/internal/service"
	"github.com/kita-live/kita-api/internal/utils"
)

// AIHandler exposes the AI dispatch gateway.
type AIHandler struct {
	service service.AIService
	logger  zerolog.Logger
}

// NewAIHandler constructs the handler.
func NewAIHandler(service service.AIService, logger zerolog.Logger) *AIHandler {
	return &AIHandler{
		service: service,
		logger:  logger.With().Str("component", "ai_handler").Logger(),
	}
}

// Register wires AI routes. The whole group sits behind authentication.
func (h *AIHandler) Register(router fiber.Router) {
	router.Post("/ask", h.ask)
}

func (h *AIHandler) ask(c *fiber.Ctx) error {
	var req dto.AskAIRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.service.Ask(c.UserContext(), callerFromContext(c), req)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "AI request failed")
	}
	return utils.SendSuccess(c, "answer generated", response)
}
