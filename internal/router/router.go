package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/kita-live/kita-api/internal/config"
	"github.com/kita-live/kita-api/internal/handler"
	"github.com/kita-live/kita-api/internal/middleware"
	"github.com/kita-live/kita-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler     *handler.AuthHandler
	RoomHandler     *handler.RoomHandler
	PollHandler     *handler.PollHandler
	AIHandler       *handler.AIHandler
	ChatHandler     *handler.ChatHandler
	RealtimeHandler *handler.RealtimeHandler
	LibraryHandler  *handler.LibraryHandler
	AdminHandler    *handler.AdminHandler
	JWTMiddleware   fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.AuthHandler != nil {
		auth := api.Group("/auth", middleware.RateLimit("auth", 30, time.Minute))
		deps.AuthHandler.Register(auth)
	}

	// Room reads and joins are public; mutating routes carry their own
	// auth guards inside the handlers, fed by the token when present.
	rooms := api.Group("/rooms", optional(jwtMiddleware))
	if deps.RoomHandler != nil {
		deps.RoomHandler.Register(rooms)
	}
	if deps.PollHandler != nil {
		deps.PollHandler.Register(rooms)

		polls := api.Group("/poll", middleware.RateLimit("poll", 60, time.Minute))
		deps.PollHandler.RegisterPublic(polls)
	}
	if deps.ChatHandler != nil {
		deps.ChatHandler.Register(rooms)
	}

	if deps.RealtimeHandler != nil {
		realtime := api.Group("/realtime", jwtMiddleware)
		deps.RealtimeHandler.Register(realtime)
	}

	if deps.AIHandler != nil {
		ai := api.Group("/ai", jwtMiddleware, middleware.RateLimit("ai", 20, time.Minute))
		deps.AIHandler.Register(ai)
	}

	if deps.LibraryHandler != nil {
		library := api.Group("/library", jwtMiddleware)
		deps.LibraryHandler.Register(library)
	}

	if deps.AdminHandler != nil {
		// Maintenance actions need the operator token on top of a session;
		// anonymous sessions alone never reach them.
		admin := api.Group("/admin", jwtMiddleware, middleware.AdminOnly(cfg.AdminToken))
		deps.AdminHandler.Register(admin)
	}
}

// optional runs the wrapped auth middleware only when credentials are
// presented, so public routes and guarded routes can share one group.
func optional(authMiddleware fiber.Handler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get("Authorization") == "" {
			return c.Next()
		}
		return authMiddleware(c)
	}
}
