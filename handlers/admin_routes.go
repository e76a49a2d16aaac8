// handlers/admin_routes.go
package handlers

import (
	"github.com/gofiber/fiber/v2"

	"staking-ledger/config"
	"staking-ledger/middleware"
	"staking-ledger/models"
	"staking-ledger/services"
)

func SetupAdminRoutes(app *fiber.App, h *Handler, adminCfg config.Admin) {
	// 🔐 Admin token or admin-username session
	admin := app.Group("/admin", middleware.AdminMiddleware(adminCfg, h.Sessions, h.Ledger, h.Logger))

	admin.Get("/transactions", h.AdminTransactions)
	admin.Post("/transactions/:id/approve", h.Approve)
	admin.Post("/transactions/:id/reject", h.Reject)
	admin.Get("/accounts", h.AdminAccounts)
}

func parseStatus(raw string) (models.TransactionStatus, error) {
	st := models.TransactionStatus(raw)
	if !st.Valid() {
		return "", fiber.NewError(fiber.StatusBadRequest, "status must be pending, approved or rejected")
	}
	return st, nil
}

// AdminTransactions lists transactions with ?search= and ?status= filters.
func (h *Handler) AdminTransactions(c *fiber.Ctx) error {
	q := services.TransactionQuery{Search: c.Query("search")}
	if raw := c.Query("status"); raw != "" && raw != "all" {
		st, err := parseStatus(raw)
		if err != nil {
			return h.fail(c, err)
		}
		q.Status = &st
	}
	txs, err := h.Ledger.ListTransactions(c.UserContext(), q)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"transactions": txs,
		"count":        len(txs),
	})
}

func (h *Handler) Approve(c *fiber.Ctx) error {
	id := c.Params("id")
	acct, err := h.Ledger.Approve(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err)
	}
	tx, err := h.Ledger.GetTransaction(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"account":     acct.View(),
		"transaction": tx,
		"notice":      services.ApprovedNotice(tx, acct.Username),
	})
}

func (h *Handler) Reject(c *fiber.Ctx) error {
	tx, err := h.Ledger.Reject(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"transaction": tx,
		"notice":      services.RejectedNotice(tx),
	})
}

func (h *Handler) AdminAccounts(c *fiber.Ctx) error {
	accounts, err := h.Ledger.ListAccounts(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	views := make([]models.AccountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, a.View())
	}
	return c.JSON(fiber.Map{
		"accounts": views,
		"count":    len(views),
	})
}
