package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/taskhub-api/internal/models"
)

func TestRateLimitIsPerUser(t *testing.T) {
	app := fiber.New()
	identify := func(c *fiber.Ctx) error {
		if id, err := c.ParamsInt("user"); err == nil {
			SetIdentity(c, uint(id), models.RoleStudent)
		}
		return c.Next()
	}
	app.Post("/submit/:user", identify, RateLimit("submissions", 1, time.Minute), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})

	post := func(path string) *http.Response {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, path, nil), -1)
		require.NoError(t, err)
		return resp
	}

	require.Equal(t, fiber.StatusCreated, post("/submit/1").StatusCode)

	limited := post("/submit/1")
	require.Equal(t, fiber.StatusTooManyRequests, limited.StatusCode)
	require.NotEmpty(t, limited.Header.Get(fiber.HeaderRetryAfter))
	var body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	require.NoError(t, decodeBody(limited, &body))
	require.False(t, body.Success)

	require.Equal(t, fiber.StatusCreated, post("/submit/2").StatusCode)
}
