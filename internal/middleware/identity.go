package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/taskhub-api/internal/models"
)

const (
	localUserID   = "user_id"
	localUserRole = "user_role"
)

// SetIdentity binds the authenticated account to the request.
func SetIdentity(c *fiber.Ctx, userID uint, role models.UserRole) {
	c.Locals(localUserID, userID)
	if role != "" {
		c.Locals(localUserRole, string(role))
	}
}

// UserID returns the authenticated user's id, or zero for anonymous requests.
func UserID(c *fiber.Ctx) uint {
	switch v := c.Locals(localUserID).(type) {
	case uint:
		return v
	case int:
		if v > 0 {
			return uint(v)
		}
	}
	return 0
}

// UserRole returns the authenticated user's role. Roles outside the TaskHub set read as empty.
func UserRole(c *fiber.Ctx) models.UserRole {
	var raw string
	switch v := c.Locals(localUserRole).(type) {
	case string:
		raw = v
	case models.UserRole:
		raw = string(v)
	}
	role, _ := models.ParseRole(raw)
	return role
}

// IsStaff reports whether the caller is a teacher or an administrator.
func IsStaff(c *fiber.Ctx) bool {
	role := UserRole(c)
	return role == models.RoleTeacher || role == models.RoleAdmin
}
