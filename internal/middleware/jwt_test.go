package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/taskhub-api/internal/models"
)

type accountsStub map[uint]models.User

func (s accountsStub) GetByID(_ context.Context, id uint) (models.User, error) {
	if id == 500 {
		return models.User{}, errors.New("connection refused")
	}
	user, ok := s[id]
	if !ok {
		return models.User{}, gorm.ErrRecordNotFound
	}
	return user, nil
}

func signedToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func identityApp(cfg JWTConfig) *fiber.App {
	app := fiber.New()
	app.Use(JWTProtected(cfg))
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"id": UserID(c), "role": UserRole(c)})
	})
	return app
}

func requestWithToken(t *testing.T, app *fiber.App, token string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestJWTProtectedTrustsClaimsWithoutAccounts(t *testing.T) {
	app := identityApp(JWTConfig{Secret: "secret"})

	token := signedToken(t, "secret", jwt.MapClaims{"sub": "42", "role": "Teacher", "exp": time.Now().Add(time.Hour).Unix()})
	resp := requestWithToken(t, app, token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		ID   uint   `json:"id"`
		Role string `json:"role"`
	}
	require.NoError(t, decodeBody(resp, &body))
	require.Equal(t, uint(42), body.ID)
	require.Equal(t, "teacher", body.Role)

	token = signedToken(t, "secret", jwt.MapClaims{"sub": "43", "role": "superuser"})
	resp = requestWithToken(t, app, token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NoError(t, decodeBody(resp, &body))
	require.Empty(t, body.Role)
}

func TestJWTProtectedUsesStoredAccount(t *testing.T) {
	accounts := accountsStub{
		7: {ID: 7, Role: models.RoleStudent, Active: true},
		8: {ID: 8, Role: models.RoleTeacher, Active: false},
	}
	app := identityApp(JWTConfig{Secret: "secret", Accounts: accounts})

	// a stale admin claim does not outrank the stored role
	resp := requestWithToken(t, app, signedToken(t, "secret", jwt.MapClaims{"sub": 7, "role": "admin"}))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var body struct {
		Role string `json:"role"`
	}
	require.NoError(t, decodeBody(resp, &body))
	require.Equal(t, "student", body.Role)

	resp = requestWithToken(t, app, signedToken(t, "secret", jwt.MapClaims{"sub": 8}))
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = requestWithToken(t, app, signedToken(t, "secret", jwt.MapClaims{"sub": 9}))
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = requestWithToken(t, app, signedToken(t, "secret", jwt.MapClaims{"sub": 500}))
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestJWTProtectedRejectsBadTokens(t *testing.T) {
	app := identityApp(JWTConfig{Secret: "secret"})

	expired := signedToken(t, "secret", jwt.MapClaims{"sub": 1, "exp": time.Now().Add(-time.Hour).Unix()})
	forged := signedToken(t, "other", jwt.MapClaims{"sub": 1})
	anonymous := signedToken(t, "secret", jwt.MapClaims{"role": "admin"})

	for name, header := range map[string]string{
		"missing":   "",
		"scheme":    "Basic abc",
		"empty":     "Bearer ",
		"expired":   "Bearer " + expired,
		"forged":    "Bearer " + forged,
		"anonymous": "Bearer " + anonymous,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, name)
	}
}

func TestExtractClaims(t *testing.T) {
	id := extractUserIDFromClaims(jwt.MapClaims{"user_id": float64(9)})
	require.NotNil(t, id)
	require.Equal(t, uint(9), *id)
	require.Nil(t, extractUserIDFromClaims(jwt.MapClaims{"sub": "abc"}))
	require.Equal(t, "admin", extractUserRoleFromClaims(jwt.MapClaims{"roles": []interface{}{"Admin", "teacher"}}))
}
