package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/storefront-auth/internal/auth"
	"github.com/spec-kit/storefront-auth/internal/config"
	"github.com/spec-kit/storefront-auth/internal/domain"
	"github.com/spec-kit/storefront-auth/internal/events"
	apperrors "github.com/spec-kit/storefront-auth/pkg/util"
)

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

func (m *mockUserRepository) MarkEmailVerified(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type memoryVersions struct {
	mu       sync.Mutex
	versions map[string]int64
}

func (m *memoryVersions) Current(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.versions[userID]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	return v, nil
}

func (m *memoryVersions) Increment(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.versions[userID]; !ok {
		return 0, pgx.ErrNoRows
	}
	m.versions[userID]++
	return m.versions[userID], nil
}

type recordedEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordedEvents) record(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordedEvents) ofType(t events.EventType) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	svc      *SessionService
	codec    *auth.Codec
	users    *mockUserRepository
	versions *memoryVersions
	events   *recordedEvents
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	codec, err := auth.NewCodec(config.AuthConfig{
		JWTSecret:          "svc-access-secret-0123456789abcdefgh",
		RefreshSecret:      "svc-refresh-secret-0123456789abcdefg",
		AccessTokenTTL:     time.Hour,
		RefreshTokenTTL:    24 * time.Hour,
		ShortLivedTokenTTL: time.Hour,
		Issuer:             "storefront-auth/test",
		Audience:           []string{"storefront-web"},
	})
	require.NoError(t, err)

	f := &fixture{
		codec:    codec,
		users:    &mockUserRepository{},
		versions: &memoryVersions{versions: map[string]int64{"u1": 0}},
		events:   &recordedEvents{},
	}
	dispatcher := events.NewInMemoryDispatcher()
	for _, et := range []events.EventType{
		events.EventSessionIssued,
		events.EventSessionRefreshed,
		events.EventSessionRevoked,
		events.EventEmailVerificationRequested,
		events.EventEmailVerified,
	} {
		dispatcher.Subscribe(et, f.events.record)
	}
	f.svc = NewSessionService(codec, f.users, f.versions, dispatcher, nil)
	return f
}

func activeOwner() *domain.User {
	store := "Ada's Goods"
	return &domain.User{
		ID:          "u1",
		Email:       "a@b.com",
		DisplayName: "Ada",
		Role:        domain.RoleOwner,
		StoreName:   &store,
		IsActive:    true,
	}
}

func TestRefreshFlowWithVersionBump(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.users.On("GetByID", mock.Anything, "u1").Return(activeOwner(), nil)

	first, err := f.svc.IssueSession(ctx, "u1")
	require.NoError(t, err)

	claims, ok := f.codec.VerifyRefreshToken(first.RefreshToken)
	require.True(t, ok)
	assert.Equal(t, int64(0), claims.TokenVersion)

	principal, ok := f.codec.VerifyAccessToken(first.AccessToken)
	require.True(t, ok)
	assert.Equal(t, domain.RoleOwner, principal.Role)

	second, err := f.svc.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, second.AccessToken)

	version, err := f.svc.RevokeAll(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	_, err = f.svc.Refresh(ctx, second.RefreshToken)
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	third, err := f.svc.IssueSession(ctx, "u1")
	require.NoError(t, err)
	_, err = f.svc.Refresh(ctx, third.RefreshToken)
	assert.NoError(t, err)

	revoked := f.events.ofType(events.EventSessionRevoked)
	require.Len(t, revoked, 1)
	assert.Equal(t, events.SessionRevokedPayload{TokenVersion: 1}, revoked[0].Payload)
	assert.Len(t, f.events.ofType(events.EventSessionRefreshed), 2)
}

func TestRefreshRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Refresh(ctx, "")
	assert.ErrorIs(t, err, auth.ErrMissingToken)

	_, err = f.svc.Refresh(ctx, "garbage")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	access, _, err := f.codec.IssueAccessToken(activeOwner().PrincipalFields())
	require.NoError(t, err)
	_, err = f.svc.Refresh(ctx, access)
	assert.ErrorIs(t, err, auth.ErrInvalidToken, "access tokens are not refresh tokens")

	orphan, _, err := f.codec.IssueRefreshToken("ghost", 0)
	require.NoError(t, err)
	_, err = f.svc.Refresh(ctx, orphan)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestRefreshDeactivatedAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	inactive := activeOwner()
	inactive.IsActive = false
	f.users.On("GetByID", mock.Anything, "u1").Return(inactive, nil)

	refresh, _, err := f.codec.IssueRefreshToken("u1", 0)
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, refresh)
	assert.ErrorIs(t, err, auth.ErrAccountDeactivated)

	_, err = f.svc.IssueSession(ctx, "u1")
	assert.ErrorIs(t, err, auth.ErrAccountDeactivated)
}

func TestIssueSessionUnknownUser(t *testing.T) {
	f := newFixture(t)
	f.users.On("GetByID", mock.Anything, "nobody").Return(nil, pgx.ErrNoRows)

	_, err := f.svc.IssueSession(context.Background(), "nobody")
	require.Error(t, err)
	assert.Equal(t, 404, apperrors.ToDomainError(err).HTTPStatus)

	_, err = f.svc.RevokeAll(context.Background(), "nobody")
	assert.Equal(t, 404, apperrors.ToDomainError(err).HTTPStatus)
}

func TestEmailVerificationFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := activeOwner()
	f.users.On("GetByID", mock.Anything, "u1").Return(user, nil)
	f.users.On("MarkEmailVerified", mock.Anything, "u1").Return(nil).Once()

	principal := &domain.Principal{UserID: "u1", Email: "a@b.com", Role: domain.RoleOwner, IsActive: true}
	token, err := f.svc.RequestEmailVerification(ctx, principal)
	require.NoError(t, err)

	requested := f.events.ofType(events.EventEmailVerificationRequested)
	require.Len(t, requested, 1)
	payload, ok := requested[0].Payload.(events.EmailVerificationRequestedPayload)
	require.True(t, ok)
	assert.Equal(t, token, payload.Token)
	assert.Equal(t, "a@b.com", payload.Email)

	_, ok = f.codec.VerifyAccessToken(token)
	assert.False(t, ok, "verification tokens never authenticate")

	require.NoError(t, f.svc.ConfirmEmailVerification(ctx, token))
	f.users.AssertExpectations(t)
	assert.Len(t, f.events.ofType(events.EventEmailVerified), 1)
}

func TestConfirmEmailVerificationRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	access, _, err := f.codec.IssueAccessToken(activeOwner().PrincipalFields())
	require.NoError(t, err)
	assert.ErrorIs(t, f.svc.ConfirmEmailVerification(ctx, access), auth.ErrInvalidToken)

	other, _, err := f.codec.IssueShortLivedToken(map[string]any{"sub": "u1", "email": "a@b.com"}, "password-reset", 0)
	require.NoError(t, err)
	assert.ErrorIs(t, f.svc.ConfirmEmailVerification(ctx, other), auth.ErrInvalidToken)

	stale, _, err := f.codec.IssueShortLivedToken(map[string]any{"sub": "u1", "email": "old@b.com"}, PurposeEmailVerify, 0)
	require.NoError(t, err)
	f.users.On("GetByID", mock.Anything, "u1").Return(activeOwner(), nil)
	assert.ErrorIs(t, f.svc.ConfirmEmailVerification(ctx, stale), auth.ErrInvalidToken)

	f.users.AssertNotCalled(t, "MarkEmailVerified", mock.Anything, mock.Anything)
}

func TestRequestEmailVerificationAlreadyVerified(t *testing.T) {
	f := newFixture(t)
	principal := &domain.Principal{UserID: "u1", Email: "a@b.com", Role: domain.RoleOwner, EmailVerified: true, IsActive: true}

	_, err := f.svc.RequestEmailVerification(context.Background(), principal)
	require.Error(t, err)
	assert.Equal(t, 400, apperrors.ToDomainError(err).HTTPStatus)
	assert.Empty(t, f.events.ofType(events.EventEmailVerificationRequested))
}
