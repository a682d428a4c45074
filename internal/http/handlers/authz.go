package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"librarium/internal/domain"
	applog "librarium/internal/log"
	"librarium/internal/services"
)

func bearerToken(c *fiber.Ctx) string {
	h := c.Get(fiber.HeaderAuthorization)
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// currentUser is the authenticated account set by RequireUser/RequireAdmin.
func currentUser(c *fiber.Ctx) *domain.User {
	u, _ := c.Locals("user").(*domain.User)
	return u
}

// RequireUser rejects requests without a valid bearer token.
func RequireUser(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u, err := auth.UserByToken(bearerToken(c))
		if err != nil || u == nil {
			return message(c, fiber.StatusUnauthorized, "Unauthenticated.")
		}
		c.Locals("user", u)
		c.Locals("user_id", u.ID)
		return c.Next()
	}
}

// RequireAdmin additionally demands the staff role.
func RequireAdmin(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u, err := auth.UserByToken(bearerToken(c))
		if err != nil || u == nil {
			return message(c, fiber.StatusUnauthorized, "Unauthenticated.")
		}
		if !u.Role.CanManageLibrary() {
			applog.Security(c, "access.denied.admin", map[string]any{"user_id": u.ID})
			return message(c, fiber.StatusForbidden, "Forbidden.")
		}
		c.Locals("user", u)
		c.Locals("user_id", u.ID)
		return c.Next()
	}
}
