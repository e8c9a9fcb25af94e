package handler_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/taskhub-api/internal/config"
	"github.com/noah-isme/taskhub-api/internal/handler"
	"github.com/noah-isme/taskhub-api/internal/router"
)

func TestHealthCheckIsPublic(t *testing.T) {
	cfg := config.Config{AppName: "TaskHub API", AppEnv: "test"}

	app := fiber.New()
	router.Register(app, cfg, router.Dependencies{
		JWTMiddleware: func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusUnauthorized) },
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, cfg.AppName, resp.Header.Get("X-Application"))

	var payload envelope[handler.HealthResponse]
	decodeResponse(t, resp, &payload)
	require.True(t, payload.Success)
	require.Equal(t, "ok", payload.Data.Status)
	require.Equal(t, cfg.AppName, payload.Data.Service)
	require.Equal(t, cfg.AppEnv, payload.Data.Environment)
	require.WithinDuration(t, time.Now().UTC(), payload.Data.Timestamp, 2*time.Second)
}

func TestMetricsEndpointIsMounted(t *testing.T) {
	app := fiber.New()
	router.Register(app, config.Config{AppName: "TaskHub API"}, router.Dependencies{
		MetricsHandler: func(c *fiber.Ctx) error { return c.SendString("taskhub_http_requests_total 1") },
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}
