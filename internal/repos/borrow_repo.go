package repos

import (
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"librarium/internal/domain"
)

// ErrAlreadyClosed signals that a guarded close matched no row: the borrow is
// gone or its returned_at was already set by an earlier return.
var ErrAlreadyClosed = errors.New("borrow record already closed")

// BorrowRepo is the borrow ledger. Records are created by a successful borrow
// and mutated exactly once, when the book comes back; nothing here deletes.
type BorrowRepo struct{ ext sqlx.Ext }

func NewBorrowRepo(db *sqlx.DB) *BorrowRepo { return &BorrowRepo{ext: db} }

func (r *BorrowRepo) WithTx(tx *sqlx.Tx) *BorrowRepo { return &BorrowRepo{ext: tx} }

const borrowCols = `id, user_id, book_id, borrowed_at, due_date, returned_at`

func (r *BorrowRepo) Get(id int64) (domain.Borrow, error) {
	var b domain.Borrow
	err := sqlx.Get(r.ext, &b, `SELECT `+borrowCols+` FROM borrows WHERE id = ?`, id)
	return b, err
}

// CountOpenForUser counts the user's unreturned borrows. Inside a workflow
// transaction this read is serialized with the subsequent insert, so the
// count-then-create sequence cannot race past the limit.
func (r *BorrowRepo) CountOpenForUser(userID int64) (int, error) {
	var n int
	err := sqlx.Get(r.ext, &n, `
		SELECT COUNT(*) FROM borrows
		WHERE user_id = ? AND returned_at IS NULL
	`, userID)
	return n, err
}

// CountOpenForBook supports invariant checks: at most one row may come back.
func (r *BorrowRepo) CountOpenForBook(bookID int64) (int, error) {
	var n int
	err := sqlx.Get(r.ext, &n, `
		SELECT COUNT(*) FROM borrows
		WHERE book_id = ? AND returned_at IS NULL
	`, bookID)
	return n, err
}

func (r *BorrowRepo) Create(b *domain.Borrow) error {
	res, err := r.ext.Exec(`
		INSERT INTO borrows(user_id, book_id, borrowed_at, due_date, returned_at)
		VALUES (?, ?, ?, ?, NULL)
	`, b.UserID, b.BookID, b.BorrowedAt, b.DueDate)
	if err != nil {
		return err
	}
	b.ID, err = res.LastInsertId()
	return err
}

// MarkReturned closes the record, guarded against double-close: a row already
// carrying a returned_at is left untouched and ErrAlreadyClosed comes back.
func (r *BorrowRepo) MarkReturned(id int64, at time.Time) error {
	res, err := r.ext.Exec(`
		UPDATE borrows SET returned_at = ?
		WHERE id = ? AND returned_at IS NULL
	`, at, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAlreadyClosed
	}
	return nil
}

// borrowRow carries a ledger row with its joined relations.
type borrowRow struct {
	domain.Borrow
	BkTitle     string `db:"bk_title"`
	BkAuthor    string `db:"bk_author"`
	BkISBN      string `db:"bk_isbn"`
	BkYear      int    `db:"bk_year"`
	BkAvailable bool   `db:"bk_available"`

	UName      *string `db:"u_name"`
	UEmail     *string `db:"u_email"`
	ULibraryID *string `db:"u_library_id"`
	URole      *string `db:"u_role"`
}

func (row *borrowRow) hydrate(withUser bool) domain.Borrow {
	b := row.Borrow
	b.Book = &domain.Book{
		ID:              b.BookID,
		Title:           row.BkTitle,
		Author:          row.BkAuthor,
		ISBN:            row.BkISBN,
		PublicationYear: row.BkYear,
		Available:       row.BkAvailable,
	}
	if withUser && row.UName != nil {
		b.User = &domain.User{
			ID:        b.UserID,
			Name:      *row.UName,
			Email:     *row.UEmail,
			LibraryID: *row.ULibraryID,
			Role:      domain.Role(*row.URole),
		}
	}
	return b
}

// ListAll returns every ledger row with book and user attached, newest borrow
// first. activeOnly narrows to open records.
func (r *BorrowRepo) ListAll(activeOnly bool) ([]domain.Borrow, error) {
	query := `
		SELECT b.id, b.user_id, b.book_id, b.borrowed_at, b.due_date, b.returned_at,
		       bk.title AS bk_title, bk.author AS bk_author, bk.isbn AS bk_isbn,
		       bk.publication_year AS bk_year, bk.available AS bk_available,
		       u.name AS u_name, u.email AS u_email, u.library_id AS u_library_id, u.role AS u_role
		FROM borrows b
		JOIN books bk ON bk.id = b.book_id
		JOIN users u  ON u.id  = b.user_id`
	if activeOnly {
		query += `
		WHERE b.returned_at IS NULL`
	}
	query += `
		ORDER BY datetime(b.borrowed_at) DESC`

	var rows []borrowRow
	if err := sqlx.Select(r.ext, &rows, query); err != nil {
		return nil, err
	}
	out := make([]domain.Borrow, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].hydrate(true))
	}
	return out, nil
}

// ListForUser returns one user's history with books attached, newest first.
func (r *BorrowRepo) ListForUser(userID int64, activeOnly bool) ([]domain.Borrow, error) {
	query := `
		SELECT b.id, b.user_id, b.book_id, b.borrowed_at, b.due_date, b.returned_at,
		       bk.title AS bk_title, bk.author AS bk_author, bk.isbn AS bk_isbn,
		       bk.publication_year AS bk_year, bk.available AS bk_available
		FROM borrows b
		JOIN books bk ON bk.id = b.book_id
		WHERE b.user_id = ?`
	if activeOnly {
		query += ` AND b.returned_at IS NULL`
	}
	query += `
		ORDER BY datetime(b.borrowed_at) DESC`

	var rows []borrowRow
	if err := sqlx.Select(r.ext, &rows, query, userID); err != nil {
		return nil, err
	}
	out := make([]domain.Borrow, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].hydrate(false))
	}
	return out, nil
}
