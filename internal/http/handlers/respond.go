package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	applog "librarium/internal/log"
	"librarium/internal/services"
)

func message(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"message": msg})
}

func invalid(c *fiber.Ctx, problems map[string]string) error {
	return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
		"message": "The given data was invalid.",
		"errors":  problems,
	})
}

// workflowError maps the borrow workflow's sentinel errors onto the HTTP
// contract: 404 missing, 422 unavailable/limit, 409 double return, 403
// foreign return. Anything else is an internal failure and stays opaque.
func workflowError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrBookNotFound),
		errors.Is(err, services.ErrBorrowNotFound):
		return message(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrBookUnavailable),
		errors.Is(err, services.ErrBorrowLimit):
		return message(c, fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, services.ErrBorrowClosed):
		return message(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, services.ErrNotBorrower):
		return message(c, fiber.StatusForbidden, err.Error())
	}
	applog.Error(c, "workflow.error", err, nil)
	return message(c, fiber.StatusInternalServerError, "Something went wrong. Please try again.")
}
