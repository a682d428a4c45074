package repos

import (
	"log"
	"strings"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

// OpenDB opens the SQLite database, ensures the schema, and seeds baseline
// data. Writer serialization is handled here: transactions take the write
// lock up front (_txlock=immediate) and the pool is capped at one connection,
// so a borrow/return transaction never observes stale availability state.
func OpenDB(dsn string) (*sqlx.DB, error) {
	// foreign_keys is a per-connection pragma, so it rides the DSN rather
	// than a one-off Exec.
	for _, param := range []string{"_txlock=immediate", "_pragma=foreign_keys(1)"} {
		if strings.Contains(dsn, "?") {
			dsn += "&" + param
		} else {
			dsn += "?" + param
		}
	}
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		return nil, err
	}

	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	// Seed demo catalog if the DB is empty, then make sure the admin account
	// exists (idempotent; safe to run every start).
	if err := seedIfEmpty(db); err != nil {
		return nil, err
	}
	if err := seedAdmin(db); err != nil {
		return nil, err
	}

	return db, nil
}

func ensureSchema(db *sqlx.DB) error {
	schema := `
-- Users
CREATE TABLE IF NOT EXISTS users(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  email TEXT NOT NULL UNIQUE,
  library_id TEXT NOT NULL UNIQUE,
  role TEXT NOT NULL CHECK (role IN ('Admin','User')),
  password_hash TEXT NOT NULL,
  created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_nocase ON users(LOWER(email));

-- Catalog
CREATE TABLE IF NOT EXISTS books(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  title TEXT NOT NULL,
  author TEXT NOT NULL,
  isbn TEXT NOT NULL UNIQUE,
  publication_year INTEGER NOT NULL,
  available INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_books_title  ON books(LOWER(title));
CREATE INDEX IF NOT EXISTS idx_books_author ON books(LOWER(author));

-- Borrow ledger
CREATE TABLE IF NOT EXISTS borrows(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  book_id INTEGER NOT NULL REFERENCES books(id) ON DELETE RESTRICT,
  borrowed_at TIMESTAMP NOT NULL,
  due_date TIMESTAMP NOT NULL,
  returned_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_borrows_user ON borrows(user_id);
CREATE INDEX IF NOT EXISTS idx_borrows_book ON borrows(book_id);
CREATE INDEX IF NOT EXISTS idx_borrows_borrowed_at ON borrows(borrowed_at);
-- At most one open borrow may exist per book.
CREATE UNIQUE INDEX IF NOT EXISTS idx_borrows_open_book
  ON borrows(book_id) WHERE returned_at IS NULL;

-- Bearer tokens (revocable; logout deletes all rows for the user)
CREATE TABLE IF NOT EXISTS api_tokens(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  token TEXT NOT NULL UNIQUE,
  created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_api_tokens_user ON api_tokens(user_id);
`
	_, err := db.Exec(schema)
	return err
}

func seedIfEmpty(db *sqlx.DB) error {
	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM books`); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	log.Println("[seed] inserting demo catalog")

	tx := db.MustBegin()
	tx.MustExec(`INSERT INTO books(title,author,isbn,publication_year,available) VALUES
	  ('The Go Programming Language','Alan A. A. Donovan','978-0134190440',2015,1),
	  ('Designing Data-Intensive Applications','Martin Kleppmann','978-1449373320',2017,1),
	  ('The Pragmatic Programmer','David Thomas','978-0135957059',2019,1),
	  ('Clean Architecture','Robert C. Martin','978-0134494166',2017,1),
	  ('Structure and Interpretation of Computer Programs','Harold Abelson','978-0262510875',1996,1)`)
	return tx.Commit()
}

// seedAdmin ensures the bootstrap admin account exists (idempotent).
func seedAdmin(db *sqlx.DB) error {
	hash, err := bcrypt.GenerateFromPassword([]byte("ChangeMe123!"), 12)
	if err != nil {
		return err
	}
	_, err = db.Exec(`
		INSERT INTO users(name,email,library_id,role,password_hash)
		VALUES('Head Librarian','admin@librarium.test','LIB-0001','Admin',?)
		ON CONFLICT(email) DO NOTHING
	`, string(hash))
	return err
}
