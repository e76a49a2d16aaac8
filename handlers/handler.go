// handlers/handler.go
package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"staking-ledger/services"
)

// Handler carries what every route needs.
type Handler struct {
	Ledger   *services.LedgerService
	Sessions *services.SessionManager
	Logger   *zap.SugaredLogger

	// StreamInterval paces /me/stream frames.
	StreamInterval time.Duration

	validate *validator.Validate
}

func NewHandler(ledger *services.LedgerService, sessions *services.SessionManager, logger *zap.SugaredLogger) (*Handler, error) {
	v, err := newValidator()
	if err != nil {
		return nil, err
	}
	return &Handler{
		Ledger:         ledger,
		Sessions:       sessions,
		Logger:         logger.Named("http"),
		StreamInterval: 2 * time.Second,
		validate:       v,
	}, nil
}

func newValidator() (*validator.Validate, error) {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// usernames are exact, case-sensitive identifiers; reject surrounding space
	err := v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		if fl.Field().Kind() != reflect.String {
			panic(fmt.Errorf("%q is not a string", fl.FieldName()))
		}
		s := fl.Field().String()
		return s == "" || s == strings.TrimSpace(s)
	})
	return v, err
}

// bind parses the JSON body into dst and validates it.
func (h *Handler) bind(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON")
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("%s failed %q validation", fe.Field(), fe.Tag()))
		}
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

// statusFor maps ledger errors to HTTP status codes.
func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, services.ErrDuplicateUsername),
		errors.Is(err, services.ErrDuplicateReferral),
		errors.Is(err, services.ErrTransactionNotPending):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrSessionInvalid):
		return fiber.StatusUnauthorized
	case errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrMissingAddress),
		errors.Is(err, services.ErrSelfReferral),
		errors.Is(err, services.ErrMissingField),
		errors.Is(err, services.ErrCredentialTooLong):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrReservedUsername):
		return fiber.StatusForbidden
	case errors.Is(err, services.ErrInsufficientBalance):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, services.ErrAccountNotFound),
		errors.Is(err, services.ErrTransactionNotFound),
		errors.Is(err, services.ErrReferralNotFound):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status == fiber.StatusInternalServerError {
		h.Logger.Errorf("❌ %s %s: %v", c.Method(), c.Path(), err)
		return c.Status(status).JSON(fiber.Map{
			"error": "internal error",
		})
	}
	msg := err.Error()
	var fe *fiber.Error
	if errors.As(err, &fe) {
		msg = fe.Message
	}
	return c.Status(status).JSON(fiber.Map{
		"error": msg,
	})
}
