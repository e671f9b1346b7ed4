package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/kita-live/kita-api/internal/service"
	"github.com/kita-live/kita-api/internal/utils"
)

// AdminHandler exposes housekeeping operations. The cleanup sweep also runs
// on a timer; this endpoint lets an operator trigger it on demand.
type AdminHandler struct {
	cleanup   service.CleanupService
	retention time.Duration
	logger    zerolog.Logger
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(cleanup service.CleanupService, retention time.Duration, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		cleanup:   cleanup,
		retention: retention,
		logger:    logger.With().Str("component", "admin_handler").Logger(),
	}
}

// Register wires admin routes. The group sits behind authentication.
func (h *AdminHandler) Register(router fiber.Router) {
	router.Post("/cleanup", h.runCleanup)
}

func (h *AdminHandler) runCleanup(c *fiber.Ctx) error {
	logger := requestLogger(h.logger, c)
	deleted, err := h.cleanup.ExpireStaleRooms(c.UserContext(), h.retention)
	if err != nil {
		logger.Error().Err(err).Msg("cleanup sweep failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "cleanup failed")
	}
	return utils.SendSuccess(c, "cleanup finished", fiber.Map{"deletedCount": deleted})
}
