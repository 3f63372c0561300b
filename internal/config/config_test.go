package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"30d":  30 * 24 * time.Hour,
		"1d":   24 * time.Hour,
		"0.5d": 12 * time.Hour,
		"1h":   time.Hour,
		"90m":  90 * time.Minute,
	}
	for raw, want := range cases {
		got, err := ParseDuration(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := ParseDuration("xd")
	assert.Error(t, err)
	_, err = ParseDuration("soon")
	assert.Error(t, err)
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTH_JWT_SECRET")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("AUTH_REFRESH_SECRET", "")
	t.Setenv("AUTH_ACCESS_TOKEN_TTL", "")
	t.Setenv("AUTH_REFRESH_TOKEN_TTL", "")
	t.Setenv("AUTH_SHORT_LIVED_TOKEN_TTL", "")
	t.Setenv("AUTH_AUDIENCE", "")
	t.Setenv("AUTH_ISSUER", "")
	t.Setenv("APP_ENV", "development")
	t.Setenv("NOTIFY_WORKERS", "")
	t.Setenv("NOTIFY_QUEUE_SIZE", "")
	t.Setenv("NOTIFY_HANDLER_TIMEOUT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Notification.Workers)
	assert.Equal(t, 256, cfg.Notification.QueueSize)
	assert.Equal(t, 10*time.Second, cfg.Notification.HandlerTimeout)
	assert.Equal(t, 30*24*time.Hour, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, 30*24*time.Hour, cfg.Auth.RefreshTokenTTL)
	assert.Equal(t, time.Hour, cfg.Auth.ShortLivedTokenTTL)
	assert.Equal(t, "storefront-auth/v1", cfg.Auth.Issuer)
	assert.Equal(t, []string{"storefront-web"}, cfg.Auth.Audience)
	assert.False(t, cfg.Auth.CookieSecure)

	assert.True(t, cfg.Auth.RefreshSecretDerived)
	assert.NotEmpty(t, cfg.Auth.RefreshSecret)
	assert.NotEqual(t, cfg.Auth.JWTSecret, cfg.Auth.RefreshSecret)
	assert.Contains(t, cfg.Auth.Warnings(), "AUTH_REFRESH_SECRET not set; refresh tokens use a secret derived from AUTH_JWT_SECRET")
}

func TestLoadExplicitAuthSettings(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "short")
	t.Setenv("AUTH_REFRESH_SECRET", "refresh-secret")
	t.Setenv("AUTH_ACCESS_TOKEN_TTL", "15m")
	t.Setenv("AUTH_REFRESH_TOKEN_TTL", "7d")
	t.Setenv("AUTH_AUDIENCE", "web, mobile ,")
	t.Setenv("AUTH_API_KEYS", "k1,k2")
	t.Setenv("APP_ENV", "production")
	t.Setenv("AUTH_COOKIE_SECURE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTokenTTL)
	assert.Equal(t, []string{"web", "mobile"}, cfg.Auth.Audience)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Auth.APIKeys)
	assert.Equal(t, "refresh-secret", cfg.Auth.RefreshSecret)
	assert.False(t, cfg.Auth.RefreshSecretDerived)
	assert.True(t, cfg.Auth.CookieSecure)

	warnings := cfg.Auth.Warnings()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "shorter than")
}

func TestLoadRejectsBadTTL(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("AUTH_ACCESS_TOKEN_TTL", "-1h")

	_, err := Load()
	assert.Error(t, err)
}

func TestDeriveRefreshSecretIsDeterministic(t *testing.T) {
	a, err := DeriveRefreshSecret("secret")
	require.NoError(t, err)
	b, err := DeriveRefreshSecret("secret")
	require.NoError(t, err)
	c, err := DeriveRefreshSecret("other")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)

	_, err = DeriveRefreshSecret("")
	assert.Error(t, err)
}
