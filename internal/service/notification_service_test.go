package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/storefront-auth/internal/config"
	"github.com/spec-kit/storefront-auth/internal/events"
)

func TestVerificationLink(t *testing.T) {
	assert.Equal(t, "https://shop.example/verify?token=abc", VerificationLink("https://shop.example/verify", "abc"))
	assert.Equal(t, "https://shop.example/verify?lang=en&token=a%2Bb", VerificationLink("https://shop.example/verify?lang=en", "a+b"))
	assert.Equal(t, "", VerificationLink("", "abc"))
}

func TestNotificationServiceHandlesVerificationRequest(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	svc := NewNotificationService(zap.New(core), config.NotificationConfig{
		EmailFrom:      "noreply@shop.example",
		VerifyEmailURL: "https://shop.example/verify",
	})

	err := svc.Handle(context.Background(), events.NewEvent(events.EventEmailVerificationRequested, "u1",
		events.EmailVerificationRequestedPayload{Email: "a@b.com", Token: "tok", ExpiresAt: time.Now().Add(time.Hour)}))
	require.NoError(t, err)

	assert.Equal(t, 1, logs.FilterMessage("EmailVerificationRequested").Len())
	stub := logs.FilterMessage("sendEmailNotificationStub").All()
	require.Len(t, stub, 1)
	assert.Equal(t, "a@b.com", stub[0].ContextMap()["to"])
	for _, entry := range logs.All() {
		for _, v := range entry.ContextMap() {
			assert.NotEqual(t, "tok", v, "tokens are never logged")
		}
	}
}

func TestNotificationServiceHandleRouting(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	svc := NewNotificationService(zap.New(core), config.NotificationConfig{WebhookURL: "https://hooks.example/auth"})
	ctx := context.Background()

	assert.ElementsMatch(t, []events.EventType{
		events.EventEmailVerificationRequested,
		events.EventEmailVerified,
		events.EventSessionRevoked,
	}, svc.EventTypes())

	require.NoError(t, svc.Handle(ctx, events.NewEvent(events.EventSessionRevoked, "u1", events.SessionRevokedPayload{TokenVersion: 2})))
	require.NoError(t, svc.Handle(ctx, events.NewEvent(events.EventEmailVerified, "u1", events.EmailVerifiedPayload{Email: "a@b.com"})))
	require.NoError(t, svc.Handle(ctx, events.NewEvent(events.EventSessionIssued, "u1", nil)))
	require.NoError(t, svc.Handle(ctx, events.NewEvent(events.EventEmailVerificationRequested, "u1", nil)))

	assert.Equal(t, 1, logs.FilterMessage("SessionRevoked").Len())
	assert.Equal(t, 1, logs.FilterMessage("EmailVerified").Len())
	assert.Equal(t, 2, logs.FilterMessage("sendWebhookNotificationStub").Len())
	assert.Equal(t, 1, logs.FilterMessage("EmailVerificationRequested without payload").Len())
}
