// handlers/account_routes.go
package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"staking-ledger/middleware"
	"staking-ledger/services"
)

type depositRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type withdrawRequest struct {
	Amount  decimal.Decimal `json:"amount"`
	Address string          `json:"address" validate:"max=256"`
}

type referralRequest struct {
	Username string `json:"username" validate:"max=64"`
}

func SetupAccountRoutes(app *fiber.App, h *Handler) {
	// per-route auth: /me/stream authenticates differently
	auth := middleware.SessionAuthMiddleware(h.Sessions, h.Logger)

	app.Get("/me", auth, h.Me)
	app.Get("/me/summary", auth, h.Summary)
	app.Get("/me/transactions", auth, h.MyTransactions)
	app.Post("/me/deposits", auth, h.RequestDeposit)
	app.Post("/me/withdrawals", auth, h.RequestWithdraw)
	app.Post("/me/referrals", auth, h.AddReferral)

	// EventSource cannot send headers, so the stream takes ?token= too
	app.Get("/me/stream", middleware.SSEAuthMiddleware(h.Sessions, h.Logger), h.Stream)
}

func (h *Handler) Me(c *fiber.Ctx) error {
	id, _ := middleware.AccountID(c)
	acct, err := h.Ledger.GetAccount(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(acct.View())
}

func (h *Handler) Summary(c *fiber.Ctx) error {
	id, _ := middleware.AccountID(c)
	sum, err := h.Ledger.Summary(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(sum)
}

func (h *Handler) MyTransactions(c *fiber.Ctx) error {
	id, _ := middleware.AccountID(c)
	q := services.TransactionQuery{AccountID: &id}
	if raw := c.Query("status"); raw != "" {
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
	})
}

func (h *Handler) RequestDeposit(c *fiber.Ctx) error {
	var req depositRequest
	if err := h.bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	id, _ := middleware.AccountID(c)
	tx, err := h.Ledger.RequestDeposit(c.UserContext(), id, req.Amount)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"transaction": tx,
		"notice":      services.DepositRequestedNotice(),
	})
}

func (h *Handler) RequestWithdraw(c *fiber.Ctx) error {
	var req withdrawRequest
	if err := h.bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	id, _ := middleware.AccountID(c)
	tx, err := h.Ledger.RequestWithdraw(c.UserContext(), id, req.Amount, req.Address)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"transaction": tx,
		"notice":      services.WithdrawalRequestedNotice(),
	})
}

func (h *Handler) AddReferral(c *fiber.Ctx) error {
	var req referralRequest
	if err := h.bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	id, _ := middleware.AccountID(c)
	acct, tier, err := h.Ledger.AddReferral(c.UserContext(), id, req.Username)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"account": acct.View(),
		"notice":  services.ReferralNotice(req.Username, h.Ledger.Rules().ReferralBonus, tier),
	})
}
