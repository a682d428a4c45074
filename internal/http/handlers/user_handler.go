package handlers

import (
	"database/sql"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"librarium/internal/domain"
	applog "librarium/internal/log"
	"librarium/internal/repos"
	"librarium/internal/services"
	"librarium/internal/validate"
)

// UserHandler is the admin-only member management surface. It talks to the
// repo directly; there is no workflow behind plain CRUD.
type UserHandler struct {
	Users *repos.UserRepo
	Auth  *services.AuthService
}

// GET /api/users (admin)
func (h *UserHandler) Index(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(c.Query("per_page", "10"))
	if perPage < 1 || perPage > 100 {
		perPage = 10
	}

	total, err := h.Users.Count()
	if err != nil {
		applog.Error(c, "users.list.fail", err, nil)
		return message(c, fiber.StatusInternalServerError, "Unable to get users")
	}
	users, err := h.Users.List(perPage, (page-1)*perPage)
	if err != nil {
		applog.Error(c, "users.list.fail", err, nil)
		return message(c, fiber.StatusInternalServerError, "Unable to get users")
	}
	if users == nil {
		users = []domain.User{}
	}
	return c.JSON(fiber.Map{
		"data": users,
		"meta": fiber.Map{"total": total, "page": page, "per_page": perPage},
	})
}

// GET /api/users/:id (admin)
func (h *UserHandler) Show(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return message(c, fiber.StatusNotFound, "User not found.")
	}
	u, err := h.Users.ByID(id)
	if err != nil {
		return message(c, fiber.StatusNotFound, "User not found.")
	}
	return c.JSON(u)
}

// POST /api/users (admin): same shape as register, issued by staff.
func (h *UserHandler) Store(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return message(c, fiber.StatusBadRequest, "Malformed request body.")
	}
	if problems := validate.Struct(req); problems != nil {
		return invalid(c, problems)
	}
	role, _ := domain.ParseRole(req.Role)

	u, _, err := h.Auth.Register(services.RegisterInput{
		Name: req.Name, Email: req.Email, Role: role, Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, services.ErrEmailTaken) {
			return invalid(c, map[string]string{"email": err.Error()})
		}
		applog.Error(c, "users.create.fail", err, nil)
		return message(c, fiber.StatusInternalServerError, "Unable to create user")
	}
	applog.Audit(c, "users.create", map[string]any{"target_id": u.ID})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "User created successfully", "user": u})
}

type userUpdateRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Role     string `json:"role" validate:"required,oneof=Admin User"`
	Password string `json:"password" validate:"omitempty,min=8"`
}

// PUT /api/users/:id (admin)
func (h *UserHandler) Update(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return message(c, fiber.StatusNotFound, "User not found.")
	}
	var req userUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return message(c, fiber.StatusBadRequest, "Malformed request body.")
	}
	if problems := validate.Struct(req); problems != nil {
		return invalid(c, problems)
	}

	u, err := h.Users.ByID(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return message(c, fiber.StatusNotFound, "User not found.")
		}
		applog.Error(c, "users.update.fail", err, map[string]any{"target_id": id})
		return message(c, fiber.StatusInternalServerError, "Unable to update user")
	}

	role, _ := domain.ParseRole(req.Role)
	u.Name, u.Email, u.Role = req.Name, req.Email, role
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), 12)
		if err != nil {
			return message(c, fiber.StatusInternalServerError, "Unable to update user")
		}
		u.Hash = string(hash)
	}
	if err := h.Users.Update(u); err != nil {
		if isUniqueViolation(err) {
			return invalid(c, map[string]string{"email": services.ErrEmailTaken.Error()})
		}
		applog.Error(c, "users.update.fail", err, map[string]any{"target_id": id})
		return message(c, fiber.StatusInternalServerError, "Unable to update user")
	}
	applog.Audit(c, "users.update", map[string]any{"target_id": id})
	return c.JSON(fiber.Map{"message": "User updated successfully", "user": u})
}

// DELETE /api/users/:id (admin)
func (h *UserHandler) Destroy(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return message(c, fiber.StatusNotFound, "User not found.")
	}
	if _, err := h.Users.ByID(id); err != nil {
		return message(c, fiber.StatusNotFound, "User not found.")
	}
	if err := h.Users.Delete(id); err != nil {
		applog.Error(c, "users.delete.fail", err, map[string]any{"target_id": id})
		return message(c, fiber.StatusInternalServerError, "Unable to delete user")
	}
	applog.Audit(c, "users.delete", map[string]any{"target_id": id})
	return c.SendStatus(fiber.StatusNoContent)
}
