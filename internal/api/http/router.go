package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/storefront-auth/internal/api/http/handlers"
	"github.com/spec-kit/storefront-auth/internal/auth"
	"github.com/spec-kit/storefront-auth/internal/auth/trusted"
)

// RouteConfig bundles dependencies for public route registration.
type RouteConfig struct {
	Health        *handlers.HealthHandler
	Sessions      *handlers.SessionHandler
	Verification  *handlers.VerificationHandler
	Store         *handlers.StoreHandler
	Authenticator *auth.Authenticator
	APIKeys       *auth.APIKeyGuard
}

// RegisterRoutes wires the public HTTP routes. Identity comes only from the signed cookie.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/refresh", cfg.Sessions.Refresh)
	authGroup.Post("/logout", cfg.Sessions.Logout)
	authGroup.Get("/session", auth.OptionalAuth(cfg.Authenticator), cfg.Sessions.Session)
	authGroup.Post("/verify-email/confirm", cfg.Verification.Confirm)

	// Guards are attached per route so unknown paths and methods still fall through to 404.
	requireAuth := auth.RequireAuth(cfg.Authenticator)
	authGroup.Get("/me", requireAuth, cfg.Sessions.Me)
	authGroup.Post("/logout-all", requireAuth, cfg.Sessions.LogoutAll)
	authGroup.Post("/verify-email/request", requireAuth, cfg.Verification.Request)

	app.Get("/owner/store", auth.RequireOwner(cfg.Authenticator), cfg.Store.Get)
	app.Get("/customer/account", auth.RequireCustomer(cfg.Authenticator), cfg.Sessions.Me)

	app.Get("/service/ping", auth.RequireAPIKey(cfg.APIKeys), cfg.Store.ServicePing)
}

// InternalRouteConfig bundles dependencies for the internal listener.
type InternalRouteConfig struct {
	Health   *handlers.HealthHandler
	Internal *handlers.InternalHandler
	APIKeys  *auth.APIKeyGuard
}

// RegisterInternalRoutes wires the service-to-service routes. Trusted identity headers are
// honored here and nowhere else.
func RegisterInternalRoutes(app *fiber.App, cfg InternalRouteConfig) {
	app.Get("/health/live", cfg.Health.Live)

	internal := app.Group("/internal")
	internal.Get("/whoami", trusted.Middleware(), cfg.Internal.WhoAmI)

	requireKey := auth.RequireAPIKey(cfg.APIKeys)
	internal.Post("/sessions/:userID", requireKey, cfg.Internal.IssueSession)
	internal.Get("/metrics", requireKey, cfg.Internal.Metrics)
}
