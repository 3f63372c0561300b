package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/storefront-auth/pkg/util"
)

const (
	// APIKeyHeader carries a service key.
	APIKeyHeader = "x-api-key"
	// APIKeyQueryParam is the query-string fallback for APIKeyHeader.
	APIKeyQueryParam = "api_key"

	serviceIdentityKey = "auth_service_identity"
)

// ServiceIdentity identifies a calling service. It is a coarser identity than a Principal and
// carries no user information.
type ServiceIdentity struct {
	KeyID string
}

// APIKeyGuard checks presented keys against a static allow-list. Only digests are kept.
type APIKeyGuard struct {
	digests [][sha256.Size]byte
}

// NewAPIKeyGuard builds a guard; empty keys are ignored.
func NewAPIKeyGuard(keys []string) *APIKeyGuard {
	g := &APIKeyGuard{}
	for _, key := range keys {
		if key == "" {
			continue
		}
		g.digests = append(g.digests, sha256.Sum256([]byte(key)))
	}
	return g
}

// Check validates the header key, falling back to the query parameter. Every allow-listed
// digest is compared in constant time.
func (g *APIKeyGuard) Check(headerKey, queryKey string) (*ServiceIdentity, bool) {
	presented := headerKey
	if presented == "" {
		presented = queryKey
	}
	if presented == "" || len(g.digests) == 0 {
		return nil, false
	}

	digest := sha256.Sum256([]byte(presented))
	matched := 0
	for i := range g.digests {
		matched |= subtle.ConstantTimeCompare(digest[:], g.digests[i][:])
	}
	if matched != 1 {
		return nil, false
	}
	return &ServiceIdentity{KeyID: hex.EncodeToString(digest[:4])}, true
}

// RequireAPIKey admits only callers presenting an allow-listed key.
func RequireAPIKey(g *APIKeyGuard) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := g.Check(c.Get(APIKeyHeader), c.Query(APIKeyQueryParam))
		if !ok {
			return apperrors.NewUnauthorized("invalid api key")
		}
		c.Locals(serviceIdentityKey, identity)
		return c.Next()
	}
}

// ServiceIdentityFromContext retrieves the identity stored by RequireAPIKey.
func ServiceIdentityFromContext(c *fiber.Ctx) (*ServiceIdentity, bool) {
	identity, ok := c.Locals(serviceIdentityKey).(*ServiceIdentity)
	return identity, ok
}
