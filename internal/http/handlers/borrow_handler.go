package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"librarium/internal/domain"
	applog "librarium/internal/log"
	"librarium/internal/services"
	"librarium/internal/validate"
)

type BorrowHandler struct {
	Borrows *services.BorrowService
}

type borrowRequest struct {
	BookID int64 `json:"book_id" validate:"required,gt=0"`
}

// POST /api/borrowings
func (h *BorrowHandler) Borrow(c *fiber.Ctx) error {
	var req borrowRequest
	if err := c.BodyParser(&req); err != nil {
		return message(c, fiber.StatusBadRequest, "Malformed request body.")
	}
	if problems := validate.Struct(req); problems != nil {
		return invalid(c, problems)
	}

	u := currentUser(c)
	b, err := h.Borrows.Borrow(u, req.BookID)
	if err != nil {
		applog.Info(c, "borrow.rejected", map[string]any{"book_id": req.BookID, "reason": err.Error()})
		return workflowError(c, err)
	}

	applog.Audit(c, "borrow.created", map[string]any{"borrow_id": b.ID, "book_id": b.BookID})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": b.View(time.Now().UTC())})
}

// POST /api/borrowings/:id/return
func (h *BorrowHandler) Return(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return message(c, fiber.StatusNotFound, services.ErrBorrowNotFound.Error())
	}

	u := currentUser(c)
	b, err := h.Borrows.Return(u, id)
	if err != nil {
		applog.Info(c, "borrow.return.rejected", map[string]any{"borrow_id": id, "reason": err.Error()})
		return workflowError(c, err)
	}

	applog.Audit(c, "borrow.returned", map[string]any{"borrow_id": b.ID, "book_id": b.BookID})
	return c.JSON(fiber.Map{"data": b.View(time.Now().UTC())})
}

// statusFilter interprets ?status=; anything but "active" means everything.
func statusFilter(c *fiber.Ctx, def string) bool {
	return c.Query("status", def) == "active"
}

// GET /api/borrowings (admin): whole ledger, newest first, default all.
func (h *BorrowHandler) Index(c *fiber.Ctx) error {
	borrows, err := h.Borrows.ListAll(statusFilter(c, "all"))
	if err != nil {
		applog.Error(c, "borrow.list.fail", err, nil)
		return message(c, fiber.StatusInternalServerError, "Unable to get borrow records")
	}
	return c.JSON(fiber.Map{"data": domain.Views(borrows, time.Now().UTC())})
}

// GET /api/me/borrowings: the caller's history, default active only.
func (h *BorrowHandler) Mine(c *fiber.Ctx) error {
	u := currentUser(c)
	borrows, err := h.Borrows.ListForUser(u.ID, statusFilter(c, "active"))
	if err != nil {
		applog.Error(c, "borrow.mine.fail", err, nil)
		return message(c, fiber.StatusInternalServerError, "Unable to get borrow records")
	}
	return c.JSON(fiber.Map{"data": domain.Views(borrows, time.Now().UTC())})
}
