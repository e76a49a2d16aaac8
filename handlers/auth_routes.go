// handlers/auth_routes.go
package handlers

import (
	"github.com/gofiber/fiber/v2"

	"staking-ledger/middleware"
	"staking-ledger/models"
	"staking-ledger/services"
)

type registerRequest struct {
	Username string  `json:"username" validate:"required,username,max=64"`
	Password string  `json:"password" validate:"required,max=72"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Phone    *string `json:"phone" validate:"omitempty,max=32"`
	Referrer string  `json:"referrer" validate:"omitempty,max=64"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=128"`
}

func SetupAuthRoutes(app *fiber.App, h *Handler) {
	// 🔓 Public
	app.Post("/auth/register", h.Register)
	app.Post("/auth/login", h.Login)

	// 🔐 Session
	app.Post("/auth/logout", middleware.SessionAuthMiddleware(h.Sessions, h.Logger), h.Logout)
}

func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := h.bind(c, &req); err != nil {
		return h.fail(c, err)
	}

	acct, err := h.Ledger.Register(c.UserContext(), services.RegisterRequest{
		Username:   req.Username,
		Credential: req.Password,
		Email:      req.Email,
		Phone:      req.Phone,
		Referrer:   req.Referrer,
	})
	if err != nil {
		return h.fail(c, err)
	}

	// registration signs the user in, as login would
	sess, token, err := h.Sessions.Open(c.UserContext(), acct.ID)
	if err != nil {
		return h.fail(c, err)
	}

	resp := sessionResponse(acct, sess, token)
	resp["notice"] = services.RegisteredNotice(acct)
	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := h.bind(c, &req); err != nil {
		return h.fail(c, err)
	}

	acct, err := h.Ledger.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return h.fail(c, err)
	}
	sess, token, err := h.Sessions.Open(c.UserContext(), acct.ID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(sessionResponse(acct, sess, token))
}

func sessionResponse(acct *models.Account, sess *models.Session, token string) fiber.Map {
	return fiber.Map{
		"account":    acct.View(),
		"token":      token,
		"expires_at": sess.ExpiresAt,
	}
}

func (h *Handler) Logout(c *fiber.Ctx) error {
	if err := h.Sessions.Close(c.UserContext(), middleware.SessionID(c)); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "logged out",
	})
}
