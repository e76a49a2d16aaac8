// handlers/ops_routes.go
package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"staking-ledger/config"
	"staking-ledger/metrics"
)

func SetupOpsRoutes(app *fiber.App, h *Handler) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))
	app.Get("/healthz", h.Health)
}

func (h *Handler) Health(c *fiber.Ctx) error {
	if err := h.Ledger.Ping(c.UserContext()); err != nil {
		h.Logger.Errorf("❌ health check: store unreachable: %v", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unavailable",
		})
	}
	return c.JSON(fiber.Map{
		"status": "ok",
	})
}

// SetupRoutes mounts every route group.
func SetupRoutes(app *fiber.App, h *Handler, adminCfg config.Admin) {
	SetupAuthRoutes(app, h)
	SetupAccountRoutes(app, h)
	SetupAdminRoutes(app, h, adminCfg)
	SetupOpsRoutes(app, h)
}
