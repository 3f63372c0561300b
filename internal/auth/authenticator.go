package auth

import (
	"github.com/spec-kit/storefront-auth/internal/domain"
)

const (
	// AccessCookieName carries the access token.
	AccessCookieName = "token"
	// RefreshCookieName carries the refresh token.
	RefreshCookieName = "refresh_token"
)

// CookieReader is the slice of an inbound request the authenticator needs. *fiber.Ctx
// satisfies it.
type CookieReader interface {
	Cookies(key string, defaultValue ...string) string
}

// Authenticator turns the access-token cookie of a request into a Principal, applying account
// state and role policy on top of signature validity. It is stateless.
type Authenticator struct {
	codec      *Codec
	cookieName string
}

// AuthenticatorOption customizes an Authenticator.
type AuthenticatorOption func(*Authenticator)

// WithCookieName reads the access token from a different cookie.
func WithCookieName(name string) AuthenticatorOption {
	return func(a *Authenticator) {
		if name != "" {
			a.cookieName = name
		}
	}
}

// NewAuthenticator constructs an authenticator over codec.
func NewAuthenticator(codec *Codec, opts ...AuthenticatorOption) *Authenticator {
	a := &Authenticator{codec: codec, cookieName: AccessCookieName}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authenticate runs the ordered checks: token present, not a short-lived token, not expired,
// signature valid, required claims complete, account active. The first failing step decides
// the error kind.
func (a *Authenticator) Authenticate(req CookieReader) (*domain.Principal, error) {
	token := req.Cookies(a.cookieName)
	if token == "" {
		return nil, newAuthError(KindMissingToken, "no access token cookie", nil)
	}

	raw, ok := a.codec.DecodeWithoutVerification(token)
	if !ok {
		return nil, newAuthError(KindInvalidToken, "access token is not decodable", nil)
	}
	if purpose := raw.Purpose(); purpose != "" {
		return nil, newAuthError(KindInvalidToken, "short-lived "+purpose+" token presented as access token", nil)
	}
	if a.codec.rawExpired(raw) {
		return nil, newAuthError(KindTokenExpired, "access token for "+raw.Subject()+" expired", nil)
	}

	principal, err := a.codec.VerifyAccessTokenDetailed(token)
	if err != nil {
		return nil, err
	}

	if !principal.IsActive {
		return nil, newAuthError(KindAccountDeactivated, "account is deactivated", nil)
	}
	return principal, nil
}

// AuthenticateOptional is Authenticate with every failure mapped to nil, for routes that
// serve anonymous callers too.
func (a *Authenticator) AuthenticateOptional(req CookieReader) *domain.Principal {
	principal, err := a.Authenticate(req)
	if err != nil {
		return nil
	}
	return principal
}

// RequireRole authenticates and then demands an exact role match.
func (a *Authenticator) RequireRole(req CookieReader, role domain.Role) (*domain.Principal, error) {
	principal, err := a.Authenticate(req)
	if err != nil {
		return nil, err
	}
	if !principal.HasRole(role) {
		return nil, newAuthError(KindInsufficientRole, "role "+string(role)+" required", nil)
	}
	return principal, nil
}
