package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/kita-live/kita-api/internal/utils"
)

// AdminHeader carries the shared operator token for maintenance endpoints.
const AdminHeader = "X-Admin-Token"

// AdminOnly gates operator endpoints behind a shared token. Any anonymous
// session can mint a valid JWT, so holding one is not enough to run
// maintenance actions. With no token configured the endpoints stay closed.
func AdminOnly(token string) fiber.Handler {
	expected := []byte(strings.TrimSpace(token))

	return func(c *fiber.Ctx) error {
		if len(expected) == 0 {
			return utils.SendError(c, fiber.StatusForbidden, "admin endpoints are disabled")
		}

		presented := []byte(strings.TrimSpace(c.Get(AdminHeader)))
		if subtle.ConstantTimeCompare(expected, presented) != 1 {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid admin token")
		}

		return c.Next()
	}
}
