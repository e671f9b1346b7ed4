package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/kita-live/kita-api/internal/middleware"
	"github.com/kita-live/kita-api/internal/service"
	"github.com/kita-live/kita-api/internal/utils"
)

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func callerFromContext(c *fiber.Ctx) service.Caller {
	caller := service.Caller{}
	if uid, ok := c.Locals("uid").(string); ok {
		caller.UID = strings.TrimSpace(uid)
	}
	if name, ok := c.Locals("user_name").(string); ok {
		caller.Name = strings.TrimSpace(name)
	}
	return caller
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

// sendServiceError translates the service error taxonomy into HTTP statuses.
// Unrecognized errors become opaque 500s so internals never leak to clients.
func sendServiceError(c *fiber.Ctx, logger *zerolog.Logger, err error, fallback string) error {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	case errors.Is(err, service.ErrInvalidArgument) || isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrFailedPrecondition):
		return utils.SendError(c, fiber.StatusPreconditionFailed, err.Error())
	case errors.Is(err, service.ErrInternal):
		// Services redact upstream detail before wrapping ErrInternal.
		if logger != nil {
			logger.Error().Err(err).Msg(fallback)
		}
		return utils.SendError(c, fiber.StatusInternalServerError, err.Error())
	default:
		if logger != nil {
			logger.Error().Err(err).Msg(fallback)
		}
		return utils.SendError(c, fiber.StatusInternalServerError, fallback)
	}
}
