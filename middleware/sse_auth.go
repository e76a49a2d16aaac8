// middleware/sse_auth.go
package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// SSEAuthMiddleware is SessionAuthMiddleware for EventSource clients, which
// cannot set headers: the token may come from the `token` query parameter.
//
// Usage:
//
//	app.Get("/me/stream", middleware.SSEAuthMiddleware(sessions, log), handler)
func SSEAuthMiddleware(sessions SessionResolver, logger *zap.SugaredLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		if token == "" {
			token = strings.TrimSpace(c.Query("token"))
		}
		if token == "" {
			logger.Debugf("[SSEAuth] ❌ missing token for %s from %s", c.Path(), c.IP())
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Missing token in query",
			})
		}
		return authenticate(c, sessions, token, logger)
	}
}
