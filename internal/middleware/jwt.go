package middleware

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/taskhub-api/internal/models"
	"github.com/noah-isme/taskhub-api/internal/utils"
)

// AccountLookup loads the account a token was issued for.
type AccountLookup interface {
	GetByID(ctx context.Context, id uint) (models.User, error)
}

// JWTConfig configures JWTProtected.
type JWTConfig struct {
	Secret string
	// Accounts makes the stored account authoritative: deleted or deactivated users are refused and the
	// stored role replaces the role claim. Without it the claims are trusted as issued.
	Accounts AccountLookup
	Logger   *zerolog.Logger
}

// JWTProtected returns a middleware that validates JWT bearer tokens and binds the caller's identity.
func JWTProtected(cfg JWTConfig) fiber.Handler {
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "jwt").Logger()
	}

	keyFunc := func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(cfg.Secret), nil
	}

	return func(c *fiber.Ctx) error {
		tokenString, err := bearerToken(c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
		}

		token, err := jwt.Parse(tokenString, keyFunc)
		if err != nil || !token.Valid {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token claims")
		}

		userID := extractUserIDFromClaims(claims)
		if userID == nil || *userID == 0 {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token subject")
		}
		role, _ := models.ParseRole(extractUserRoleFromClaims(claims))

		if cfg.Accounts != nil {
			account, err := cfg.Accounts.GetByID(c.UserContext(), *userID)
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				return utils.SendError(c, fiber.StatusForbidden, "user account no longer exists")
			case err != nil:
				RequestLogger(c, logger).Error().Err(err).Uint("user_id", *userID).Msg("failed to load account")
				return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
			case !account.Active:
				return utils.SendError(c, fiber.StatusForbidden, "user account is inactive")
			}
			role = account.Role
		}

		SetIdentity(c, *userID, role)
		return c.Next()
	}
}

func bearerToken(authorization string) (string, error) {
	if authorization == "" {
		return "", errors.New("authorization header missing")
	}

	const bearer = "bearer "
	if len(authorization) < len(bearer) || !strings.EqualFold(authorization[:len(bearer)], bearer) {
		return "", errors.New("invalid authorization header")
	}

	token := strings.TrimSpace(authorization[len(bearer):])
	if token == "" {
		return "", errors.New("invalid token")
	}
	return token, nil
}

func extractUserIDFromClaims(claims jwt.MapClaims) *uint {
	for _, key := range []string{"sub", "user_id", "id"} {
		if value, ok := claims[key]; ok {
			if normalized, err := normalizeUserID(value); err == nil {
				return &normalized
			}
		}
	}
	return nil
}

func normalizeUserID(value interface{}) (uint, error) {
	switch v := value.(type) {
	case float64:
		if v < 0 {
			return 0, fmt.Errorf("invalid subject")
		}
		return uint(v), nil
	case string:
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, err
		}
		return uint(parsed), nil
	default:
		return 0, fmt.Errorf("unsupported subject type")
	}
}

// extractUserRoleFromClaims reads "role" or the first entry of "roles".
func extractUserRoleFromClaims(claims jwt.MapClaims) string {
	for _, key := range []string{"role", "roles"} {
		switch v := claims[key].(type) {
		case string:
			if role := strings.TrimSpace(v); role != "" {
				return strings.ToLower(role)
			}
		case []interface{}:
			for _, item := range v {
				if str, ok := item.(string); ok && strings.TrimSpace(str) != "" {
					return strings.ToLower(strings.TrimSpace(str))
				}
			}
		}
	}
	return ""
}
