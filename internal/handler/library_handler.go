package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/kita-live/kita-api/internal/dto"
	"github.com/kita-live/kita-api/internal/service"
	"github.com/kita-live/kita-api/internal/utils"
)

// LibraryHandler handles the teacher's personal prompt and link libraries.
type LibraryHandler struct {
	service service.LibraryService
	logger  zerolog.Logger
}

// NewLibraryHandler constructs the handler.
func NewLibraryHandler(service service.LibraryService, logger zerolog.Logger) *LibraryHandler {
	return &LibraryHandler{
		service: service,
		logger:  logger.With().Str("component", "library_handler").Logger(),
	}
}

// Register wires library routes. The whole group sits behind authentication.
func (h *LibraryHandler) Register(router fiber.Router) {
	router.Get("/prompts", h.listPrompts)
	router.Post("/prompts", h.createPrompt)
	router.Put("/prompts/:id", h.updatePrompt)
	router.Delete("/prompts/:id", h.deletePrompt)

	router.Get("/links", h.listLinks)
	router.Post("/links", h.createLink)
	router.Put("/links/:id", h.updateLink)
	router.Delete("/links/:id", h.deleteLink)
}

func (h *LibraryHandler) listPrompts(c *fiber.Ctx) error {
	prompts, err := h.service.ListPrompts(c.UserContext(), callerFromContext(c))
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to list prompts")
	}
	return utils.SendSuccess(c, "prompts retrieved", prompts)
}

func (h *LibraryHandler) createPrompt(c *fiber.Ctx) error {
	var req dto.SavePromptRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	prompt, err := h.service.SavePrompt(c.UserContext(), callerFromContext(c), "", req)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to save prompt")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "prompt saved", prompt)
}

func (h *LibraryHandler) updatePrompt(c *fiber.Ctx) error {
	var req dto.SavePromptRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	prompt, err := h.service.SavePrompt(c.UserContext(), callerFromContext(c), c.Params("id"), req)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to save prompt")
	}
	return utils.SendSuccess(c, "prompt saved", prompt)
}

func (h *LibraryHandler) deletePrompt(c *fiber.Ctx) error {
	if err := h.service.DeletePrompt(c.UserContext(), callerFromContext(c), c.Params("id")); err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to delete prompt")
	}
	return utils.SendSuccess(c, "prompt deleted", nil)
}

func (h *LibraryHandler) listLinks(c *fiber.Ctx) error {
	links, err := h.service.ListLinks(c.UserContext(), callerFromContext(c))
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to list links")
	}
	return utils.SendSuccess(c, "links retrieved", links)
}

func (h *LibraryHandler) createLink(c *fiber.Ctx) error {
	var req dto.SaveLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	link, err := h.service.SaveLink(c.UserContext(), callerFromContext(c), "", req)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to save link")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "link saved", link)
}

func (h *LibraryHandler) updateLink(c *fiber.Ctx) error {
	var req dto.SaveLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	link, err := h.service.SaveLink(c.UserContext(), callerFromContext(c), c.Params("id"), req)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to save link")
	}
	return utils.SendSuccess(c, "link saved", link)
}

func (h *LibraryHandler) deleteLink(c *fiber.Ctx) error {
	if err := h.service.DeleteLink(c.UserContext(), callerFromContext(c), c.Params("id")); err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to delete link")
	}
	return utils.SendSuccess(c, "link deleted", nil)
}
