// middleware/auth.go
package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"staking-ledger/models"
	"staking-ledger/services"
)

// Locals set for authenticated requests.
const (
	LocalAccountID = "account_id"
	LocalSessionID = "session_id"
)

type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*models.Session, error)
}

// SessionAuthMiddleware accepts "Authorization: Bearer <token>" and attaches
// the session's account id and session id to the request.
func SessionAuthMiddleware(sessions SessionResolver, logger *zap.SugaredLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing session token",
			})
		}
		return authenticate(c, sessions, token, logger)
	}
}

func bearerToken(c *fiber.Ctx) string {
	h := c.Get(fiber.HeaderAuthorization)
	if h == "" {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}

func authenticate(c *fiber.Ctx, sessions SessionResolver, token string, logger *zap.SugaredLogger) error {
	sess, err := sessions.Resolve(c.UserContext(), token)
	if err != nil {
		if errors.Is(err, services.ErrSessionInvalid) {
			logger.Debugf("🚫 [AUTH] rejected session token for %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		logger.Errorf("❌ [AUTH] session lookup failed for %s: %v", c.Path(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to resolve session",
		})
	}

	c.Locals(LocalAccountID, sess.AccountID)
	c.Locals(LocalSessionID, sess.ID)
	return c.Next()
}

// AccountID returns the authenticated account id, or false on public routes.
func AccountID(c *fiber.Ctx) (int64, bool) {
	id, ok := c.Locals(LocalAccountID).(int64)
	return id, ok
}

func SessionID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalSessionID).(string)
	return id
}
