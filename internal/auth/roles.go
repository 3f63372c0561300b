package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/storefront-auth/internal/domain"
)

// RequireRole authenticates the request and demands the given role.
func RequireRole(a *Authenticator, role domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, err := a.RequireRole(c, role)
		if err != nil {
			return err
		}
		c.Locals(principalKey, principal)
		return c.Next()
	}
}

// RequireOwner guards store-management routes.
func RequireOwner(a *Authenticator) fiber.Handler {
	return RequireRole(a, domain.RoleOwner)
}

// RequireCustomer guards shopper-only routes.
func RequireCustomer(a *Authenticator) fiber.Handler {
	return RequireRole(a, domain.RoleCustomer)
}
