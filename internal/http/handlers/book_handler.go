package handlers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	applog "librarium/internal/log"
	"librarium/internal/services"
	"librarium/internal/validate"
)

type BookHandler struct {
	Catalog *services.CatalogService
}

func paramID(c *fiber.Ctx) (int64, bool) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	return id, err == nil && id > 0
}

// GET /api/books
func (h *BookHandler) Index(c *fiber.Ctx) error {
	term := strings.TrimSpace(c.Query("search"))
	page, _ := strconv.Atoi(c.Query("page", "1"))
	perPage, _ := strconv.Atoi(c.Query("per_page", "10"))

	pg, err := h.Catalog.List(term, page, perPage)
	if err != nil {
		applog.Error(c, "books.list.fail", err, nil)
		return message(c, fiber.StatusInternalServerError, "Unable to get books")
	}
	return c.JSON(fiber.Map{
		"data": pg.Items,
		"meta": fiber.Map{"total": pg.Total, "page": pg.Page, "per_page": pg.PerPage},
	})
}

// GET /api/books/:id
func (h *BookHandler) Show(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return message(c, fiber.StatusNotFound, services.ErrBookNotFound.Error())
	}
	b, err := h.Catalog.Get(id)
	if err != nil {
		return workflowError(c, err)
	}
	return c.JSON(b)
}

type bookRequest struct {
	Title           string `json:"title" validate:"required,max=255"`
	Author          string `json:"author" validate:"required,max=255"`
	ISBN            string `json:"isbn" validate:"required,max=32"`
	PublicationYear int    `json:"publication_year" validate:"required,gte=1000,lte=2100"`
}

// POST /api/books (admin)
func (h *BookHandler) Store(c *fiber.Ctx) error {
	var req bookRequest
	if err := c.BodyParser(&req); err != nil {
		return message(c, fiber.StatusBadRequest, "Malformed request body.")
	}
	if problems := validate.Struct(req); problems != nil {
		return invalid(c, problems)
	}
	b, err := h.Catalog.Create(services.BookInput{
		Title: req.Title, Author: req.Author, ISBN: req.ISBN, PublicationYear: req.PublicationYear,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return invalid(c, map[string]string{"isbn": "The isbn has already been taken."})
		}
		applog.Error(c, "books.create.fail", err, nil)
		return message(c, fiber.StatusInternalServerError, "Unable to create book")
	}
	applog.Audit(c, "books.create", map[string]any{"book_id": b.ID})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Book created successfully", "book": b})
}

// PUT /api/books/:id (admin)
func (h *BookHandler) Update(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return message(c, fiber.StatusNotFound, services.ErrBookNotFound.Error())
	}
	var req bookRequest
	if err := c.BodyParser(&req); err != nil {
		return message(c, fiber.StatusBadRequest, "Malformed request body.")
	}
	if problems := validate.Struct(req); problems != nil {
		return invalid(c, problems)
	}
	b, err := h.Catalog.Update(id, services.BookInput{
		Title: req.Title, Author: req.Author, ISBN: req.ISBN, PublicationYear: req.PublicationYear,
	})
	if err != nil {
		if errors.Is(err, services.ErrBookNotFound) {
			return workflowError(c, err)
		}
		if isUniqueViolation(err) {
			return invalid(c, map[string]string{"isbn": "The isbn has already been taken."})
		}
		applog.Error(c, "books.update.fail", err, map[string]any{"book_id": id})
		return message(c, fiber.StatusInternalServerError, "Unable to update book")
	}
	applog.Audit(c, "books.update", map[string]any{"book_id": id})
	return c.JSON(fiber.Map{"message": "Book updated successfully", "book": b})
}

// DELETE /api/books/:id (admin)
func (h *BookHandler) Destroy(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return message(c, fiber.StatusNotFound, services.ErrBookNotFound.Error())
	}
	if err := h.Catalog.Delete(id); err != nil {
		if errors.Is(err, services.ErrBookNotFound) {
			return workflowError(c, err)
		}
		// Ledger rows reference books with ON DELETE RESTRICT.
		applog.Error(c, "books.delete.fail", err, map[string]any{"book_id": id})
		return message(c, fiber.StatusInternalServerError, "Unable to delete book")
	}
	applog.Audit(c, "books.delete", map[string]any{"book_id": id})
	return c.SendStatus(fiber.StatusNoContent)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
