package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/storefront-auth/internal/api/dto"
	"github.com/spec-kit/storefront-auth/internal/auth"
	"github.com/spec-kit/storefront-auth/internal/service"
	apperrors "github.com/spec-kit/storefront-auth/pkg/util"
)

const refreshCookiePath = "/auth"

// CookiePolicy controls the attributes of session cookies.
type CookiePolicy struct {
	Secure bool
}

func (p CookiePolicy) set(c *fiber.Ctx, name, value, path string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  expires,
		HTTPOnly: true,
		Secure:   p.Secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (p CookiePolicy) clear(c *fiber.Ctx, name, path string) {
	p.set(c, name, "", path, time.Unix(0, 0))
}

func (p CookiePolicy) writeSession(c *fiber.Ctx, sess *service.Session) {
	p.set(c, auth.AccessCookieName, sess.AccessToken, "/", sess.AccessExpiresAt)
	p.set(c, auth.RefreshCookieName, sess.RefreshToken, refreshCookiePath, sess.RefreshExpiresAt)
}

// SessionHandler exposes cookie session endpoints.
type SessionHandler struct {
	sessions *service.SessionService
	cookies  CookiePolicy
}

// NewSessionHandler constructs handler.
func NewSessionHandler(sessions *service.SessionService, cookies CookiePolicy) *SessionHandler {
	return &SessionHandler{sessions: sessions, cookies: cookies}
}

// Refresh handles POST /auth/refresh.
func (h *SessionHandler) Refresh(c *fiber.Ctx) error {
	sess, err := h.sessions.Refresh(c.UserContext(), c.Cookies(auth.RefreshCookieName))
	if err != nil {
		if auth.KindOf(err) != "" {
			h.cookies.clear(c, auth.RefreshCookieName, refreshCookiePath)
		}
		return err
	}

	h.cookies.writeSession(c, sess)
	return c.JSON(fiber.Map{
		"data": dto.AuthResponse{ExpiresAt: sess.AccessExpiresAt, RefreshExpiresAt: sess.RefreshExpiresAt},
	})
}

// Logout handles POST /auth/logout. It only clears this browser's cookies.
func (h *SessionHandler) Logout(c *fiber.Ctx) error {
	h.cookies.clear(c, auth.AccessCookieName, "/")
	h.cookies.clear(c, auth.RefreshCookieName, refreshCookiePath)
	return c.SendStatus(fiber.StatusNoContent)
}

// LogoutAll handles POST /auth/logout-all, revoking every refresh token of the caller.
func (h *SessionHandler) LogoutAll(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	version, err := h.sessions.RevokeAll(c.UserContext(), principal.UserID)
	if err != nil {
		return err
	}

	h.cookies.clear(c, auth.AccessCookieName, "/")
	h.cookies.clear(c, auth.RefreshCookieName, refreshCookiePath)
	return c.JSON(fiber.Map{"data": dto.RevokeResponse{TokenVersion: version}})
}

// Me handles GET /auth/me.
func (h *SessionHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	return c.JSON(fiber.Map{"data": dto.NewPrincipalResponse(principal)})
}

// Session handles GET /auth/session; anonymous callers get authenticated=false.
func (h *SessionHandler) Session(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return c.JSON(fiber.Map{"data": dto.SessionStateResponse{Authenticated: false}})
	}
	resp := dto.NewPrincipalResponse(principal)
	return c.JSON(fiber.Map{"data": dto.SessionStateResponse{Authenticated: true, User: &resp}})
}
