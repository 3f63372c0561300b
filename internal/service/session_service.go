package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/spec-kit/storefront-auth/internal/auth"
	"github.com/spec-kit/storefront-auth/internal/domain"
	"github.com/spec-kit/storefront-auth/internal/events"
	"github.com/spec-kit/storefront-auth/internal/repository"
	apperrors "github.com/spec-kit/storefront-auth/pkg/util"
)

const (
	tracerName = "storefront-auth/service"

	// PurposeEmailVerify tags email verification tokens.
	PurposeEmailVerify = "email-verify"
)

// Session is a freshly issued access/refresh token pair.
type Session struct {
	AccessToken      string                 `json:"access_token"`
	AccessExpiresAt  time.Time              `json:"access_expires_at"`
	RefreshToken     string                 `json:"refresh_token"`
	RefreshExpiresAt time.Time              `json:"refresh_expires_at"`
	Principal        domain.PrincipalFields `json:"-"`
}

// SessionService coordinates session issuance, refresh, revocation and email verification.
type SessionService struct {
	codec      *auth.Codec
	users      repository.UserRepository
	versions   repository.TokenVersionStore
	dispatcher events.Dispatcher
	logger     *zap.Logger
	tracer     trace.Tracer
}

// NewSessionService builds the service.
func NewSessionService(codec *auth.Codec, users repository.UserRepository, versions repository.TokenVersionStore, dispatcher events.Dispatcher, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		codec:      codec,
		users:      users,
		versions:   versions,
		dispatcher: dispatcher,
		logger:     logger,
		tracer:     otel.Tracer(tracerName),
	}
}

// IssueSession mints a token pair for an active user at the user's current token version.
func (s *SessionService) IssueSession(ctx context.Context, userID string) (sess *Session, err error) {
	ctx, span := s.startSpan(ctx, "SessionService.IssueSession", userID)
	defer func() { endSpan(span, err) }()

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, auth.NewError(auth.KindAccountDeactivated, "account is deactivated", nil)
	}

	version, err := s.versions.Current(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load token version: %w", err)
	}

	sess, err = s.issuePair(user, version)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.NewEvent(events.EventSessionIssued, userID, events.SessionIssuedPayload{
		Source:       "issue",
		TokenVersion: version,
		ExpiresAt:    sess.RefreshExpiresAt,
	}))
	return sess, nil
}

// Refresh exchanges a valid refresh token for a new pair. Tokens minted before the last
// RevokeAll carry a stale version and are rejected.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (sess *Session, err error) {
	ctx, span := s.startSpan(ctx, "SessionService.Refresh", "")
	defer func() { endSpan(span, err) }()

	if refreshToken == "" {
		return nil, auth.NewError(auth.KindMissingToken, "no refresh token", nil)
	}
	claims, ok := s.codec.VerifyRefreshToken(refreshToken)
	if !ok {
		return nil, auth.NewError(auth.KindInvalidToken, "refresh token verification failed", nil)
	}
	span.SetAttributes(attribute.String("user.id", claims.UserID))

	current, err := s.versions.Current(ctx, claims.UserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, auth.NewError(auth.KindInvalidToken, "unknown user", err)
	}
	if err != nil {
		return nil, fmt.Errorf("load token version: %w", err)
	}
	if claims.TokenVersion != current {
		return nil, auth.NewError(auth.KindInvalidToken, "session revoked", nil)
	}

	user, err := s.loadUser(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, auth.NewError(auth.KindAccountDeactivated, "account is deactivated", nil)
	}

	sess, err = s.issuePair(user, current)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.NewEvent(events.EventSessionRefreshed, user.ID, events.SessionIssuedPayload{
		Source:       "refresh",
		TokenVersion: current,
		ExpiresAt:    sess.RefreshExpiresAt,
	}))
	return sess, nil
}

// RevokeAll bumps the user's token version, invalidating every outstanding refresh token.
// Access tokens already issued stay valid until they expire.
func (s *SessionService) RevokeAll(ctx context.Context, userID string) (version int64, err error) {
	ctx, span := s.startSpan(ctx, "SessionService.RevokeAll", userID)
	defer func() { endSpan(span, err) }()

	version, err = s.versions.Increment(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, apperrors.NewNotFound("user", map[string]any{"user_id": userID})
	}
	if err != nil {
		return 0, fmt.Errorf("increment token version: %w", err)
	}

	s.logger.Info("sessions revoked", zap.String("user_id", userID), zap.Int64("token_version", version))
	s.publish(ctx, events.NewEvent(events.EventSessionRevoked, userID, events.SessionRevokedPayload{TokenVersion: version}))
	return version, nil
}

// RequestEmailVerification issues an email-verify purpose token bound to the principal's
// current address and emits it for delivery.
func (s *SessionService) RequestEmailVerification(ctx context.Context, principal *domain.Principal) (token string, err error) {
	if principal == nil {
		return "", auth.NewError(auth.KindMissingToken, "no principal", nil)
	}
	ctx, span := s.startSpan(ctx, "SessionService.RequestEmailVerification", principal.UserID)
	defer func() { endSpan(span, err) }()

	if principal.EmailVerified {
		return "", apperrors.NewValidationError("email already verified", nil)
	}

	token, expiresAt, err := s.codec.IssueShortLivedToken(map[string]any{
		"sub":   principal.UserID,
		"email": principal.Email,
	}, PurposeEmailVerify, 0)
	if err != nil {
		return "", err
	}

	s.publish(ctx, events.NewEvent(events.EventEmailVerificationRequested, principal.UserID, events.EmailVerificationRequestedPayload{
		Email:     principal.Email,
		Token:     token,
		ExpiresAt: expiresAt,
	}))
	return token, nil
}

// ConfirmEmailVerification marks the address verified. The token is rejected if the account's
// email changed after it was issued.
func (s *SessionService) ConfirmEmailVerification(ctx context.Context, token string) (err error) {
	ctx, span := s.startSpan(ctx, "SessionService.ConfirmEmailVerification", "")
	defer func() { endSpan(span, err) }()

	bag, ok := s.codec.VerifyShortLivedToken(token, PurposeEmailVerify)
	if !ok {
		return auth.NewError(auth.KindInvalidToken, "verification token rejected", nil)
	}
	userID, _ := bag["sub"].(string)
	email, _ := bag["email"].(string)
	if userID == "" || email == "" {
		return auth.NewError(auth.KindMalformedToken, "verification token lacks subject", nil)
	}
	span.SetAttributes(attribute.String("user.id", userID))

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.Email != email {
		return auth.NewError(auth.KindInvalidToken, "verification token is for a previous address", nil)
	}
	if user.EmailVerified {
		return nil
	}

	if err := s.users.MarkEmailVerified(ctx, userID); err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}
	s.publish(ctx, events.NewEvent(events.EventEmailVerified, userID, events.EmailVerifiedPayload{Email: email}))
	return nil
}

func (s *SessionService) issuePair(user *domain.User, version int64) (*Session, error) {
	fields := user.PrincipalFields()

	access, accessExp, err := s.codec.IssueAccessToken(fields)
	if err != nil {
		s.logger.Error("issue access token", zap.String("user_id", user.ID), zap.Error(err))
		return nil, err
	}
	refresh, refreshExp, err := s.codec.IssueRefreshToken(user.ID, version)
	if err != nil {
		s.logger.Error("issue refresh token", zap.String("user_id", user.ID), zap.Error(err))
		return nil, err
	}
	return &Session{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
		Principal:        fields,
	}, nil
}

func (s *SessionService) loadUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNotFound("user", map[string]any{"user_id": userID})
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

func (s *SessionService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func (s *SessionService) startSpan(ctx context.Context, name, userID string) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, name)
	if userID != "" {
		span.SetAttributes(attribute.String("user.id", userID))
	}
	return ctx, span
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
