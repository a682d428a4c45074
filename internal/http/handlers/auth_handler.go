package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"librarium/internal/domain"
	applog "librarium/internal/log"
	"librarium/internal/services"
	"librarium/internal/validate"
)

type AuthHandler struct {
	Auth *services.AuthService
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Role     string `json:"role" validate:"required,oneof=Admin User"`
	Password string `json:"password" validate:"required,min=8"`
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return message(c, fiber.StatusBadRequest, "Malformed request body.")
	}
	if problems := validate.Struct(req); problems != nil {
		return invalid(c, problems)
	}
	role, _ := domain.ParseRole(req.Role)

	u, token, err := h.Auth.Register(services.RegisterInput{
		Name: req.Name, Email: req.Email, Role: role, Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, services.ErrEmailTaken) {
			return invalid(c, map[string]string{"email": err.Error()})
		}
		applog.Error(c, "auth.register.fail", err, nil)
		return message(c, fiber.StatusInternalServerError, "Unable to create account")
	}

	applog.Audit(c, "auth.register", map[string]any{"user_id": u.ID})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"user": u, "token": token})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return message(c, fiber.StatusBadRequest, "Malformed request body.")
	}
	if problems := validate.Struct(req); problems != nil {
		return invalid(c, problems)
	}

	u, token, err := h.Auth.Login(req.Email, req.Password)
	if err != nil {
		applog.Security(c, "auth.login.fail", map[string]any{"email": req.Email})
		return message(c, fiber.StatusUnauthorized, "Invalid credentials")
	}

	applog.Audit(c, "auth.login.success", map[string]any{"user_id": u.ID})
	return c.JSON(fiber.Map{"user": u, "token": token})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	u := currentUser(c)
	if err := h.Auth.Logout(u.ID); err != nil {
		applog.Error(c, "auth.logout.fail", err, nil)
		return message(c, fiber.StatusInternalServerError, "Unable to log out")
	}
	applog.Audit(c, "auth.logout", nil)
	return c.JSON(fiber.Map{"message": "Logged out"})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"user": currentUser(c)})
}
