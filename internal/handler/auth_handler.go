package handler

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kita-live/kita-api/internal/dto"
	"github.com/kita-live/kita-api/internal/utils"
)

const sessionTokenTTL = 24 * time.Hour

// AuthHandler mints anonymous session identities. Every participant,
// teacher or learner, gets a throwaway uid bound into a signed token.
type AuthHandler struct {
	secret    string
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(secret string, validate *validator.Validate, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		secret:    secret,
		validator: validate,
		logger:    logger.With().Str("component", "auth_handler").Logger(),
		now:       time.Now,
	}
}

// Register wires auth routes.
func (h *AuthHandler) Register(router fiber.Router) {
	router.Post("/anonymous", h.anonymous)
}

func (h *AuthHandler) anonymous(c *fiber.Ctx) error {
	// The body is optional; a bare POST mints a nameless session.
	var req dto.AnonymousSessionRequest
	_ = c.BodyParser(&req)
	if err := h.validator.Struct(req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	uid := uuid.NewString()
	now := h.now().UTC()
	claims := jwt.MapClaims{
		"sub": uid,
		"iat": now.Unix(),
		"exp": now.Add(sessionTokenTTL).Unix(),
	}
	if req.Name != "" {
		claims["name"] = req.Name
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.secret))
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to sign session token")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to create session")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "session created", dto.AnonymousSessionResponse{
		UID:       uid,
		Token:     token,
		ExpiresIn: int64(sessionTokenTTL.Seconds()),
	})
}
