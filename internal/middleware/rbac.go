package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/taskhub-api/internal/models"
	"github.com/noah-isme/taskhub-api/internal/utils"
)

// RequireRole guards a route group so only the listed roles get through.
func RequireRole(roles ...models.UserRole) fiber.Handler {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		if UserID(c) == 0 {
			return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
		}
		if _, ok := allowed[UserRole(c)]; !ok {
			return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", nil)
		}
		return c.Next()
	}
}
