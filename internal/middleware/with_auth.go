package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kita-live/kita-api/internal/utils"
)

// WithAuth wraps a handler so it only runs when the request carries an
// authenticated session uid. Used on routes living inside otherwise-public
// groups.
func WithAuth(handler fiber.Handler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		uid, _ := c.Locals("uid").(string)
		if uid == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}
		return handler(c)
	}
}
