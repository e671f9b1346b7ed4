package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/kita-live/kita-api/internal/dto"
	"github.com/kita-live/kita-api/internal/middleware"
	"github.com/kita-live/kita-api/internal/service"
	"github.com/kita-live/kita-api/internal/utils"
)

// PollHandler handles poll lifecycle and answer submission endpoints.
type PollHandler struct {
	service service.PollService
	logger  zerolog.Logger
}

// NewPollHandler constructs the handler.
func NewPollHandler(service service.PollService, logger zerolog.Logger) *PollHandler {
	return &PollHandler{
		service: service,
		logger:  logger.With().Str("component", "poll_handler").Logger(),
	}
}

// Register wires poll routes under a room group. Answer submission is
// registered separately because learners call it without a session.
func (h *PollHandler) Register(router fiber.Router) {
	router.Post("/:code/poll", middleware.WithAuth(h.start))
	router.Post("/:code/poll/stop", middleware.WithAuth(h.stop))
	router.Post("/:code/poll/close", middleware.WithAuth(h.closeOpenQuestion))
	router.Get("/:code/poll/results", middleware.WithAuth(h.results))
	router.Get("/:code/poll/history", middleware.WithAuth(h.history))
}

// RegisterPublic wires the unauthenticated submission endpoint.
func (h *PollHandler) RegisterPublic(router fiber.Router) {
	router.Post("/answer", h.submitAnswer)
}

func (h *PollHandler) start(c *fiber.Ctx) error {
	var req dto.StartPollRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	poll, err := h.service.Start(c.UserContext(), callerFromContext(c), c.Params("code"), req)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to start poll")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "poll started", poll)
}

func (h *PollHandler) stop(c *fiber.Ctx) error {
	if err := h.service.Stop(c.UserContext(), callerFromContext(c), c.Params("code")); err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to stop poll")
	}
	return utils.SendSuccess(c, "poll stopped", nil)
}

func (h *PollHandler) closeOpenQuestion(c *fiber.Ctx) error {
	if err := h.service.CloseOpenQuestion(c.UserContext(), callerFromContext(c), c.Params("code")); err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to close question")
	}
	return utils.SendSuccess(c, "question closed", nil)
}

func (h *PollHandler) results(c *fiber.Ctx) error {
	results, err := h.service.Results(c.UserContext(), callerFromContext(c), c.Params("code"))
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to aggregate results")
	}
	return utils.SendSuccess(c, "poll results", results)
}

func (h *PollHandler) history(c *fiber.Ctx) error {
	entries, err := h.service.History(c.UserContext(), callerFromContext(c), c.Params("code"))
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to list poll history")
	}
	return utils.SendSuccess(c, "poll history", entries)
}

func (h *PollHandler) submitAnswer(c *fiber.Ctx) error {
	var req dto.SubmitAnswerRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.service.SubmitAnswer(c.UserContext(), req); err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to submit answer")
	}
	return utils.SendSuccess(c, "answer received", nil)
}
