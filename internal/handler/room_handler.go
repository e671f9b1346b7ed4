package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/kita-live/kita-api/internal/dto"
	"github.com/kita-live/kita-api/internal/middleware"
	"github.com/kita-live/kita-api/internal/service"
	"github.com/kita-live/kita-api/internal/utils"
)

// RoomHandler handles room lifecycle and teacher control endpoints.
type RoomHandler struct {
	service service.RoomService
	logger  zerolog.Logger
}

// NewRoomHandler constructs the handler.
func NewRoomHandler(service service.RoomService, logger zerolog.Logger) *RoomHandler {
	return &RoomHandler{
		service: service,
		logger:  logger.With().Str("component", "room_handler").Logger(),
	}
}

// Register wires room routes. Reads and joining are public so learners can
// enter with nothing but a code; every mutation requires authentication.
func (h *RoomHandler) Register(router fiber.Router) {
	router.Post("", middleware.WithAuth(h.create))
	router.Get("/:code", h.get)
	router.Post("/:code/join", h.join)
	router.Get("/:code/students", h.students)
	router.Post("/:code/command", middleware.WithAuth(h.sendCommand))
	router.Post("/:code/ai/toggle", middleware.WithAuth(h.toggleAI))
	router.Put("/:code/ai/model", middleware.WithAuth(h.switchModel))
	router.Put("/:code/prompt", middleware.WithAuth(h.setActivePrompt))
	router.Post("/:code/reset", middleware.WithAuth(h.reset))
}

func (h *RoomHandler) create(c *fiber.Ctx) error {
	logger := requestLogger(h.logger, c)
	room, err := h.service.Create(c.UserContext(), callerFromContext(c))
	if err != nil {
		return sendServiceError(c, logger, err, "failed to create room")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "room created", room)
}

func (h *RoomHandler) get(c *fiber.Ctx) error {
	room, err := h.service.Get(c.UserContext(), c.Params("code"))
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to fetch room")
	}
	return utils.SendSuccess(c, "room retrieved", room)
}

func (h *RoomHandler) join(c *fiber.Ctx) error {
	var req dto.JoinRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.service.Join(c.UserContext(), c.Params("code"), req); err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to join room")
	}
	return utils.SendSuccess(c, "joined room", nil)
}

func (h *RoomHandler) students(c *fiber.Ctx) error {
	students, err := h.service.Students(c.UserContext(), c.Params("code"))
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to list students")
	}
	return utils.SendSuccess(c, "students retrieved", students)
}

func (h *RoomHandler) sendCommand(c *fiber.Ctx) error {
	var req dto.SendCommandRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.service.SendCommand(c.UserContext(), callerFromContext(c), c.Params("code"), req); err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to send command")
	}
	return utils.SendSuccess(c, "command sent", nil)
}

func (h *RoomHandler) toggleAI(c *fiber.Ctx) error {
	active, err := h.service.ToggleAI(c.UserContext(), callerFromContext(c), c.Params("code"))
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to toggle ai")
	}
	return utils.SendSuccess(c, "ai toggled", fiber.Map{"ai_active": active})
}

func (h *RoomHandler) switchModel(c *fiber.Ctx) error {
	var req dto.SwitchModelRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.service.SwitchModel(c.UserContext(), callerFromContext(c), c.Params("code"), req); err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to switch model")
	}
	return utils.SendSuccess(c, "model switched", nil)
}

func (h *RoomHandler) setActivePrompt(c *fiber.Ctx) error {
	var req dto.SetActivePromptRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.service.SetActivePrompt(c.UserContext(), callerFromContext(c), c.Params("code"), req); err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to set active prompt")
	}
	return utils.SendSuccess(c, "active prompt updated", nil)
}

func (h *RoomHandler) reset(c *fiber.Ctx) error {
	if err := h.service.Reset(c.UserContext(), callerFromContext(c), c.Params("code")); err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to reset room")
	}
	return utils.SendSuccess(c, "room reset", nil)
}
