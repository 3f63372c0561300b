package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/storefront-auth/internal/domain"
)

const principalKey = "auth_principal"

// RequireAuth rejects the request unless the access-token cookie authenticates.
func RequireAuth(a *Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, err := a.Authenticate(c)
		if err != nil {
			return err
		}
		c.Locals(principalKey, principal)
		return c.Next()
	}
}

// OptionalAuth attaches a principal when the request carries a valid session and otherwise
// lets the request through anonymously.
func OptionalAuth(a *Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if principal := a.AuthenticateOptional(c); principal != nil {
			c.Locals(principalKey, principal)
		}
		return c.Next()
	}
}

// PrincipalFromContext retrieves the authenticated principal.
func PrincipalFromContext(c *fiber.Ctx) (*domain.Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*domain.Principal)
	return principal, ok
}
