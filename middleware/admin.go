// middleware/admin.go
package middleware

import (
	"context"
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"staking-ledger/config"
	"staking-ledger/models"
)

const HeaderAdminToken = "X-Admin-Token"

type AccountLookup interface {
	GetAccount(ctx context.Context, id int64) (*models.Account, error)
}

// AdminMiddleware admits a request carrying the configured X-Admin-Token, or
// a session whose account username is on the admin list.
func AdminMiddleware(cfg config.Admin, sessions SessionResolver, accounts AccountLookup, logger *zap.SugaredLogger) fiber.Handler {
	admins := make(map[string]struct{}, len(cfg.Usernames))
	for _, u := range cfg.Usernames {
		admins[u] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		if got := c.Get(HeaderAdminToken); got != "" && cfg.Token != "" {
			if subtle.ConstantTimeCompare([]byte(got), []byte(cfg.Token)) == 1 {
				return c.Next()
			}
			logger.Warnf("❌ [ADMIN] invalid admin token for %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid admin token",
			})
		}

		token := bearerToken(c)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "admin authentication required",
			})
		}
		sess, err := sessions.Resolve(c.UserContext(), token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "admin authentication required",
			})
		}
		acct, err := accounts.GetAccount(c.UserContext(), sess.AccountID)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "admin authentication required",
			})
		}
		if _, ok := admins[acct.Username]; !ok {
			logger.Warnf("🚫 [ADMIN] %s is not an admin (%s)", acct.Username, c.Path())
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "admin access required",
			})
		}

		c.Locals(LocalAccountID, sess.AccountID)
		c.Locals(LocalSessionID, sess.ID)
		return c.Next()
	}
}
