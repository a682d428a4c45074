package repos

import (
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"librarium/internal/domain"
)

// ErrNotFlipped signals that a guarded availability update matched no row:
// either the book is gone or another transaction already flipped the flag.
var ErrNotFlipped = errors.New("availability flag not flipped")

// BookRepo is the catalog store. It runs against the shared DB by default;
// WithTx rebinds it to an open transaction so availability reads and writes
// share the workflow engine's atomic unit.
type BookRepo struct{ ext sqlx.Ext }

func NewBookRepo(db *sqlx.DB) *BookRepo { return &BookRepo{ext: db} }

func (r *BookRepo) WithTx(tx *sqlx.Tx) *BookRepo { return &BookRepo{ext: tx} }

const bookCols = `id, title, author, isbn, publication_year, available`

func (r *BookRepo) Get(id int64) (domain.Book, error) {
	var b domain.Book
	err := sqlx.Get(r.ext, &b, `SELECT `+bookCols+` FROM books WHERE id = ?`, id)
	return b, err
}

// Search lists catalog entries ordered by title, optionally filtered by a
// term matched against title, author and ISBN.
func (r *BookRepo) Search(term string, limit, offset int) ([]domain.Book, error) {
	query := `SELECT ` + bookCols + ` FROM books`
	args := []any{}
	if term != "" {
		query += ` WHERE LOWER(title) LIKE ? OR LOWER(author) LIKE ? OR isbn LIKE ?`
		like := "%" + strings.ToLower(term) + "%"
		args = append(args, like, like, like)
	}
	query += ` ORDER BY title LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	var out []domain.Book
	err := sqlx.Select(r.ext, &out, query, args...)
	return out, err
}

func (r *BookRepo) Count(term string) (int, error) {
	query := `SELECT COUNT(*) FROM books`
	args := []any{}
	if term != "" {
		query += ` WHERE LOWER(title) LIKE ? OR LOWER(author) LIKE ? OR isbn LIKE ?`
		like := "%" + strings.ToLower(term) + "%"
		args = append(args, like, like, like)
	}
	var n int
	err := sqlx.Get(r.ext, &n, query, args...)
	return n, err
}

func (r *BookRepo) Create(b *domain.Book) error {
	res, err := r.ext.Exec(`
		INSERT INTO books(title, author, isbn, publication_year, available)
		VALUES (?, ?, ?, ?, 1)
	`, b.Title, b.Author, b.ISBN, b.PublicationYear)
	if err != nil {
		return err
	}
	b.ID, err = res.LastInsertId()
	b.Available = true
	return err
}

// Update edits catalog fields. The available flag is deliberately out of
// reach here; only the borrow workflow flips it.
func (r *BookRepo) Update(b domain.Book) error {
	_, err := r.ext.Exec(`
		UPDATE books SET title = ?, author = ?, isbn = ?, publication_year = ?
		WHERE id = ?
	`, b.Title, b.Author, b.ISBN, b.PublicationYear, b.ID)
	return err
}

func (r *BookRepo) Delete(id int64) error {
	_, err := r.ext.Exec(`DELETE FROM books WHERE id = ?`, id)
	return err
}

// MarkUnavailable flips available to false, guarded so only one borrower can
// win: the update matches nothing unless the book is currently available.
func (r *BookRepo) MarkUnavailable(id int64) error {
	res, err := r.ext.Exec(`UPDATE books SET available = 0 WHERE id = ? AND available = 1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFlipped
	}
	return nil
}

// MarkAvailable flips available back to true on return.
func (r *BookRepo) MarkAvailable(id int64) error {
	_, err := r.ext.Exec(`UPDATE books SET available = 1 WHERE id = ?`, id)
	return err
}
