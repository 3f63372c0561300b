// Package trusted reads caller identity forwarded by the upstream gateway in request headers.
//
// Headers are trivially forgeable by anyone who can reach the listener, so this package must
// only be mounted on the internal service-to-service listener, never on a public route. It
// returns its own Identity type, never a domain.Principal.
package trusted

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/storefront-auth/internal/domain"
)

const (
	HeaderUserID        = "x-user-id"
	HeaderUserEmail     = "x-user-email"
	HeaderUserRole      = "x-user-role"
	HeaderUserName      = "x-user-name"
	HeaderEmailVerified = "x-user-email-verified"
	HeaderUserActive    = "x-user-active"

	identityKey = "trusted_identity"
)

// HeaderReader is satisfied by *fiber.Ctx.
type HeaderReader interface {
	Get(key string, defaultValue ...string) string
}

// Identity is a partial principal asserted by the gateway. Only UserID is guaranteed.
type Identity struct {
	UserID        string
	Email         *string
	Role          *domain.Role
	DisplayName   *string
	EmailVerified *bool
	IsActive      *bool
}

// ExtractPrincipal reads the forwarded identity, or nil when no user id was forwarded.
// Unknown roles and unparsable booleans are dropped rather than guessed.
func ExtractPrincipal(headers HeaderReader) *Identity {
	userID := strings.TrimSpace(headers.Get(HeaderUserID))
	if userID == "" {
		return nil
	}

	identity := &Identity{UserID: userID}
	if email := strings.TrimSpace(headers.Get(HeaderUserEmail)); email != "" {
		identity.Email = &email
	}
	if name := strings.TrimSpace(headers.Get(HeaderUserName)); name != "" {
		identity.DisplayName = &name
	}
	if role, ok := domain.ParseRole(strings.TrimSpace(headers.Get(HeaderUserRole))); ok {
		identity.Role = &role
	}
	identity.EmailVerified = parseBool(headers.Get(HeaderEmailVerified))
	identity.IsActive = parseBool(headers.Get(HeaderUserActive))
	return identity
}

func parseBool(raw string) *bool {
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return nil
	}
	return &v
}

// Middleware attaches the forwarded identity, when any, to the request.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if identity := ExtractPrincipal(c); identity != nil {
			c.Locals(identityKey, identity)
		}
		return c.Next()
	}
}

// FromContext retrieves the identity stored by Middleware.
func FromContext(c *fiber.Ctx) (*Identity, bool) {
	identity, ok := c.Locals(identityKey).(*Identity)
	return identity, ok
}
