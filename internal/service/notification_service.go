package service

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/storefront-auth/internal/config"
	"github.com/spec-kit/storefront-auth/internal/events"
)

// NotificationService turns session events into outbound notifications.
type NotificationService struct {
	logger *zap.Logger
	cfg    config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		logger: logger,
		cfg:    cfg,
	}
}

// EventTypes lists the events Handle acts on.
func (n *NotificationService) EventTypes() []events.EventType {
	return []events.EventType{
		events.EventEmailVerificationRequested,
		events.EventEmailVerified,
		events.EventSessionRevoked,
	}
}

// Handle delivers the notification for one event. Unknown event types are ignored.
func (n *NotificationService) Handle(ctx context.Context, event events.Event) error {
	switch event.Type {
	case events.EventEmailVerificationRequested:
		return n.handleVerificationRequested(ctx, event)
	case events.EventEmailVerified:
		return n.handleEmailVerified(ctx, event)
	case events.EventSessionRevoked:
		return n.handleSessionRevoked(ctx, event)
	default:
		return nil
	}
}

func (n *NotificationService) handleVerificationRequested(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.EmailVerificationRequestedPayload)
	if !ok {
		n.logger.Warn("EmailVerificationRequested without payload", zap.String("user_id", event.UserID))
		return nil
	}
	n.logger.Info("EmailVerificationRequested", zap.String("user_id", event.UserID), zap.Time("expires_at", payload.ExpiresAt))
	n.sendEmailNotificationStub(ctx, event, payload.Email, VerificationLink(n.cfg.VerifyEmailURL, payload.Token))
	return nil
}

func (n *NotificationService) handleEmailVerified(ctx context.Context, event events.Event) error {
	n.logger.Info("EmailVerified", zap.String("user_id", event.UserID))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleSessionRevoked(ctx context.Context, event events.Event) error {
	n.logger.Info("SessionRevoked", zap.String("user_id", event.UserID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

// VerificationLink appends token as the "token" query parameter of base.
func VerificationLink(base, token string) string {
	u, err := url.Parse(base)
	if err != nil || base == "" {
		return ""
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

func (n *NotificationService) sendEmailNotificationStub(ctx context.Context, event events.Event, to, link string) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" || link == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("to", to),
		zap.String("user_id", event.UserID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("user_id", event.UserID),
		zap.String("event_type", string(event.Type)))
}
