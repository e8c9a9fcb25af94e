package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/taskhub-api/internal/models"
	"github.com/noah-isme/taskhub-api/internal/utils"
)

// Auth role constants used by WithAuth helper. Staff covers teachers and administrators.
const (
	AuthRoleAny     = "any"
	AuthRoleStaff   = "staff"
	AuthRoleAdmin   = string(models.RoleAdmin)
	AuthRoleStudent = string(models.RoleStudent)
)

// AuthOptions configures the WithAuth helper.
type AuthOptions struct {
	Role        string
	RequireUser bool
	// SelfParam names a route parameter that must match the caller's id unless the caller is staff.
	SelfParam string
}

// WithAuth wraps a handler with basic authentication/authorization guards.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	role := strings.ToLower(strings.TrimSpace(opts.Role))
	if role == "" {
		role = AuthRoleAny
	}

	requireUser := opts.RequireUser
	if !requireUser && (role != AuthRoleAny || opts.SelfParam != "") {
		requireUser = true
	}

	return func(c *fiber.Ctx) error {
		userID := UserID(c)
		if requireUser && userID == 0 {
			return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
		}

		currentRole := UserRole(c)
		staff := IsStaff(c)

		switch role {
		case AuthRoleAny:
		case AuthRoleStaff:
			if !staff {
				return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", nil)
			}
		default:
			if string(currentRole) != role {
				return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", nil)
			}
		}

		if opts.SelfParam != "" && !staff {
			id, err := c.ParamsInt(opts.SelfParam)
			if err != nil || id <= 0 || uint(id) != userID {
				return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", nil)
			}
		}

		return handler(c)
	}
}
