package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/storefront-auth/internal/auth"
	apperrors "github.com/spec-kit/storefront-auth/pkg/util"
)

// StoreHandler serves owner-only store endpoints.
type StoreHandler struct{}

// NewStoreHandler constructs handler.
func NewStoreHandler() *StoreHandler {
	return &StoreHandler{}
}

// Get handles GET /owner/store.
func (h *StoreHandler) Get(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"owner_id":   principal.UserID,
			"store_name": principal.StoreName,
			"store_type": principal.StoreType,
		},
	})
}

// ServicePing handles GET /service/ping for API-key callers.
func (h *StoreHandler) ServicePing(c *fiber.Ctx) error {
	identity, ok := auth.ServiceIdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("invalid api key")
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"key_id": identity.KeyID}})
}
