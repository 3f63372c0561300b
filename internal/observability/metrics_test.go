package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/auth/me", "GET", 200, 10*time.Millisecond)
	m.RecordRequest("/auth/me", "GET", 200, 30*time.Millisecond)
	m.RecordError("/auth/me", "GET", "TOKEN_EXPIRED")

	s := m.Snapshot()
	assert.Equal(t, int64(2), s.Requests["/auth/me|GET|200"])
	assert.Equal(t, int64(20), s.AvgLatencyMillis["/auth/me|GET|200"])
	assert.Equal(t, int64(1), s.Errors["/auth/me|GET|TOKEN_EXPIRED"])

	m.RecordError("/auth/me", "GET", "TOKEN_EXPIRED")
	assert.Equal(t, int64(1), s.Errors["/auth/me|GET|TOKEN_EXPIRED"], "snapshot is a copy")
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, time.Millisecond)
	m.RecordError("/", "GET", "X")
	assert.Empty(t, m.Snapshot().Requests)
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	metrics := NewMetrics()

	app := fiber.New()
	app.Use(TracingMiddleware())
	app.Use(RequestLogger(zap.New(core), metrics))
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) })
	app.Get("/denied", func(c *fiber.Ctx) error { return c.SendStatus(http.StatusForbidden) })

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: "secret-cookie-value"})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, err = app.Test(httptest.NewRequest(http.MethodGet, "/denied", nil))
	require.NoError(t, err)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	for _, entry := range entries {
		for _, field := range entry.Context {
			assert.NotContains(t, field.String, "secret-cookie-value")
		}
	}

	assert.Equal(t, int64(1), metrics.Snapshot().Requests["/denied|GET|403"])
}
