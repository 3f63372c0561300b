package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/storefront-auth/internal/api/dto"
	"github.com/spec-kit/storefront-auth/internal/auth/trusted"
	"github.com/spec-kit/storefront-auth/internal/observability"
	"github.com/spec-kit/storefront-auth/internal/service"
	apperrors "github.com/spec-kit/storefront-auth/pkg/util"
)

// InternalHandler serves the service-to-service listener.
type InternalHandler struct {
	sessions *service.SessionService
	metrics  *observability.Metrics
}

// NewInternalHandler constructs handler.
func NewInternalHandler(sessions *service.SessionService, metrics *observability.Metrics) *InternalHandler {
	return &InternalHandler{sessions: sessions, metrics: metrics}
}

// WhoAmI handles GET /internal/whoami, echoing the gateway-asserted identity.
func (h *InternalHandler) WhoAmI(c *fiber.Ctx) error {
	identity, ok := trusted.FromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("no forwarded identity")
	}
	return c.JSON(fiber.Map{"data": dto.NewTrustedIdentityResponse(identity)})
}

// IssueSession handles POST /internal/sessions/:userID for the login service, which has
// already checked credentials.
func (h *InternalHandler) IssueSession(c *fiber.Ctx) error {
	userID := c.Params("userID")
	if userID == "" {
		return apperrors.NewValidationError("user id is required", nil)
	}
	sess, err := h.sessions.IssueSession(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": sess})
}

// Metrics handles GET /internal/metrics.
func (h *InternalHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.metrics.Snapshot()})
}
