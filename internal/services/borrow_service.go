package services

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"librarium/internal/domain"
	"librarium/internal/repos"
)

// Business-rule failures surfaced by the borrow workflow. All terminal and
// non-retryable; the handler layer maps each to its HTTP status.
var (
	ErrBookNotFound    = errors.New("Book not found.")
	ErrBorrowNotFound  = errors.New("Borrow record not found.")
	ErrBookUnavailable = errors.New("This book is currently unavailable.")
	ErrBorrowLimit     = fmt.Errorf("Borrowing limit reached. Return a book before borrowing a new one (limit: %d).", domain.MaxActiveBorrows)
	ErrBorrowClosed    = errors.New("This borrow record is already closed.")
	ErrNotBorrower     = errors.New("You are not authorized to return this book.")
)

// BorrowService is the borrow workflow engine. Each operation runs its
// precondition checks and both store mutations inside a single immediate
// transaction, so either everything lands or nothing does.
type BorrowService struct {
	DB      *sqlx.DB
	Books   *repos.BookRepo
	Borrows *repos.BorrowRepo
	Users   *repos.UserRepo

	// Clock is overridable in tests; nil means time.Now.
	Clock func() time.Time
}

func NewBorrowService(db *sqlx.DB) *BorrowService {
	return &BorrowService{
		DB:      db,
		Books:   repos.NewBookRepo(db),
		Borrows: repos.NewBorrowRepo(db),
		Users:   repos.NewUserRepo(db),
	}
}

func (s *BorrowService) now() time.Time {
	if s.Clock != nil {
		return s.Clock().UTC()
	}
	return time.Now().UTC()
}

// Borrow checks the book out to the user. Precondition order is part of the
// contract: missing book, then availability, then the per-user limit.
func (s *BorrowService) Borrow(user *domain.User, bookID int64) (*domain.Borrow, error) {
	tx, err := s.DB.Beginx()
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	books := s.Books.WithTx(tx)
	borrows := s.Borrows.WithTx(tx)

	book, err := books.Get(bookID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookNotFound
		}
		return nil, err
	}
	if !book.Available {
		return nil, ErrBookUnavailable
	}

	open, err := borrows.CountOpenForUser(user.ID)
	if err != nil {
		return nil, err
	}
	if open >= domain.MaxActiveBorrows {
		return nil, ErrBorrowLimit
	}

	now := s.now()
	b := &domain.Borrow{
		UserID:     user.ID,
		BookID:     book.ID,
		BorrowedAt: now,
		DueDate:    domain.DueDateFor(now),
	}
	if err := borrows.Create(b); err != nil {
		return nil, err
	}
	if err := books.MarkUnavailable(book.ID); err != nil {
		// A losing racer lands here: someone else flipped the flag between
		// our read and our write. Same outcome as an unavailable book.
		if errors.Is(err, repos.ErrNotFlipped) {
			return nil, ErrBookUnavailable
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	book.Available = false
	b.Book = &book
	b.User = user
	return b, nil
}

// Return closes a borrow record. The already-closed check deliberately comes
// before authorization, so a double return reads as a conflict even when the
// second caller is a stranger.
func (s *BorrowService) Return(actor *domain.User, borrowID int64) (*domain.Borrow, error) {
	tx, err := s.DB.Beginx()
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	books := s.Books.WithTx(tx)
	borrows := s.Borrows.WithTx(tx)
	users := s.Users.WithTx(tx)

	b, err := borrows.Get(borrowID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBorrowNotFound
		}
		return nil, err
	}
	if !b.Open() {
		return nil, ErrBorrowClosed
	}
	if b.UserID != actor.ID && !actor.Role.CanManageLibrary() {
		return nil, ErrNotBorrower
	}

	now := s.now()
	if err := borrows.MarkReturned(b.ID, now); err != nil {
		if errors.Is(err, repos.ErrAlreadyClosed) {
			return nil, ErrBorrowClosed
		}
		return nil, err
	}
	if err := books.MarkAvailable(b.BookID); err != nil {
		return nil, err
	}

	// Fresh relations for the response, read inside the same transaction.
	book, err := books.Get(b.BookID)
	if err != nil {
		return nil, err
	}
	owner := actor
	if b.UserID != actor.ID {
		if owner, err = users.ByID(b.UserID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	b.ReturnedAt = &now
	b.Book = &book
	b.User = owner
	return &b, nil
}

// ListAll is the admin view over the whole ledger.
func (s *BorrowService) ListAll(activeOnly bool) ([]domain.Borrow, error) {
	return s.Borrows.ListAll(activeOnly)
}

// ListForUser is one member's borrowing history.
func (s *BorrowService) ListForUser(userID int64, activeOnly bool) ([]domain.Borrow, error) {
	return s.Borrows.ListForUser(userID, activeOnly)
}
