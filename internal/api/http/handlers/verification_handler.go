package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/storefront-auth/internal/api/dto"
	"github.com/spec-kit/storefront-auth/internal/auth"
	"github.com/spec-kit/storefront-auth/internal/service"
	apperrors "github.com/spec-kit/storefront-auth/pkg/util"
)

// VerificationHandler exposes the email verification flow.
type VerificationHandler struct {
	sessions *service.SessionService
}

// NewVerificationHandler constructs handler.
func NewVerificationHandler(sessions *service.SessionService) *VerificationHandler {
	return &VerificationHandler{sessions: sessions}
}

// Request handles POST /auth/verify-email/request. The token goes out by email only.
func (h *VerificationHandler) Request(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if _, err := h.sessions.RequestEmailVerification(c.UserContext(), principal); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusAccepted)
}

// Confirm handles POST /auth/verify-email/confirm.
func (h *VerificationHandler) Confirm(c *fiber.Ctx) error {
	var req dto.VerifyEmailConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := req.Validate(); err != nil {
		return apperrors.NewValidationError("token is required", map[string]any{"fields": err})
	}
	if err := h.sessions.ConfirmEmailVerification(c.UserContext(), req.Token); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
