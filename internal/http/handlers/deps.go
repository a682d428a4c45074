package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/jmoiron/sqlx"

	applog "librarium/internal/log"
	"librarium/internal/repos"
	"librarium/internal/services"
)

type Deps struct {
	AuthSvc *services.AuthService

	AuthHandler   *AuthHandler
	BookHandler   *BookHandler
	BorrowHandler *BorrowHandler
	UserHandler   *UserHandler
}

func NewDeps(db *sqlx.DB) *Deps {
	userRepo := repos.NewUserRepo(db)
	bookRepo := repos.NewBookRepo(db)

	authSvc := &services.AuthService{Users: userRepo}
	catalogSvc := services.NewCatalogService(bookRepo)
	borrowSvc := services.NewBorrowService(db)

	return &Deps{
		AuthSvc:       authSvc,
		AuthHandler:   &AuthHandler{Auth: authSvc},
		BookHandler:   &BookHandler{Catalog: catalogSvc},
		BorrowHandler: &BorrowHandler{Borrows: borrowSvc},
		UserHandler:   &UserHandler{Users: userRepo, Auth: authSvc},
	}
}

// Mount registers the API routes. Shared between main and the endpoint tests
// so both always exercise the same wiring.
func (d *Deps) Mount(app *fiber.App) {
	api := app.Group("/api")

	// Public auth (login throttled)
	api.Post("/register", d.AuthHandler.Register)
	api.Post("/login", limiter.New(limiter.Config{
		Max:        10,
		Expiration: 10 * time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.login.hit", nil)
			return message(c, fiber.StatusTooManyRequests, "Too many attempts. Please try again later.")
		},
	}), d.AuthHandler.Login)

	user := RequireUser(d.AuthSvc)
	admin := RequireAdmin(d.AuthSvc)

	api.Post("/logout", user, d.AuthHandler.Logout)
	api.Get("/me", user, d.AuthHandler.Me)

	// Catalog: reads are public, management is staff-only
	api.Get("/books", d.BookHandler.Index)
	api.Get("/books/:id", d.BookHandler.Show)
	api.Post("/books", admin, d.BookHandler.Store)
	api.Put("/books/:id", admin, d.BookHandler.Update)
	api.Delete("/books/:id", admin, d.BookHandler.Destroy)

	// Members (staff-only)
	api.Get("/users", admin, d.UserHandler.Index)
	api.Post("/users", admin, d.UserHandler.Store)
	api.Get("/users/:id", admin, d.UserHandler.Show)
	api.Put("/users/:id", admin, d.UserHandler.Update)
	api.Delete("/users/:id", admin, d.UserHandler.Destroy)

	// Borrow workflow
	api.Post("/borrowings", user, d.BorrowHandler.Borrow)
	api.Get("/borrowings", admin, d.BorrowHandler.Index)
	api.Post("/borrowings/:id/return", user, d.BorrowHandler.Return)
	api.Get("/me/borrowings", user, d.BorrowHandler.Mine)
}
