package services_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"librarium/internal/domain"
	"librarium/internal/repos"
	"librarium/internal/services"
)

func memdb(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func addUser(t *testing.T, db *sqlx.DB, name string, role domain.Role) *domain.User {
	t.Helper()
	u := &domain.User{
		Name:      name,
		Email:     strings.ToLower(name) + "@librarium.test",
		LibraryID: "LIB-T" + name,
		Role:      role,
		Hash:      "x",
	}
	if err := repos.NewUserRepo(db).Create(u); err != nil {
		t.Fatal(err)
	}
	return u
}

func addBook(t *testing.T, db *sqlx.DB, title string) domain.Book {
	t.Helper()
	b := domain.Book{Title: title, Author: "Anon", ISBN: "isbn-" + title, PublicationYear: 2000}
	if err := repos.NewBookRepo(db).Create(&b); err != nil {
		t.Fatal(err)
	}
	return b
}

// checkLedgerInvariant asserts that for every book, available == false holds
// exactly when an open borrow exists for it.
func checkLedgerInvariant(t *testing.T, db *sqlx.DB) {
	t.Helper()
	type row struct {
		ID        int64 `db:"id"`
		Available bool  `db:"available"`
		Open      int   `db:"open"`
	}
	var rows []row
	err := db.Select(&rows, `
		SELECT b.id, b.available,
		       (SELECT COUNT(*) FROM borrows WHERE book_id = b.id AND returned_at IS NULL) AS open
		FROM books b
	`)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range rows {
		if r.Open > 1 {
			t.Fatalf("book %d has %d open borrows", r.ID, r.Open)
		}
		if r.Available == (r.Open == 1) {
			t.Fatalf("book %d violates invariant: available=%v open=%d", r.ID, r.Available, r.Open)
		}
	}
}

func TestBorrowSuccess(t *testing.T) {
	db := memdb(t)
	svc := services.NewBorrowService(db)
	u := addUser(t, db, "Alice", domain.RoleUser)
	book := addBook(t, db, "Dune")

	b, err := svc.Borrow(u, book.ID)
	if err != nil {
		t.Fatal(err)
	}
	if b.ID == 0 || b.UserID != u.ID || b.BookID != book.ID {
		t.Fatalf("bad borrow: %+v", b)
	}
	if b.Book == nil || b.Book.Available {
		t.Fatalf("result book must be populated and unavailable: %+v", b.Book)
	}
	if got := b.DueDate.Sub(b.BorrowedAt); got != 14*24*time.Hour {
		t.Fatalf("due_date - borrowed_at: want 14 days, got %v", got)
	}
	if v := b.View(time.Now().UTC()); v.Status != domain.StatusActive {
		t.Fatalf("want active, got %s", v.Status)
	}

	fresh, err := repos.NewBookRepo(db).Get(book.ID)
	if err != nil {
		t.Fatal(err)
	}
	if fresh.Available {
		t.Fatal("availability flag not flipped")
	}
	checkLedgerInvariant(t, db)
}

func TestBorrowMissingBook(t *testing.T) {
	db := memdb(t)
	svc := services.NewBorrowService(db)
	u := addUser(t, db, "Alice", domain.RoleUser)

	if _, err := svc.Borrow(u, 99999); !errors.Is(err, services.ErrBookNotFound) {
		t.Fatalf("want ErrBookNotFound, got %v", err)
	}
}

func TestBorrowUnavailable(t *testing.T) {
	db := memdb(t)
	svc := services.NewBorrowService(db)
	alice := addUser(t, db, "Alice", domain.RoleUser)
	bob := addUser(t, db, "Bob", domain.RoleUser)
	book := addBook(t, db, "Dune")

	if _, err := svc.Borrow(alice, book.ID); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Borrow(bob, book.ID)
	if !errors.Is(err, services.ErrBookUnavailable) {
		t.Fatalf("want ErrBookUnavailable, got %v", err)
	}
	if err.Error() != "This book is currently unavailable." {
		t.Fatalf("message drifted: %q", err.Error())
	}
	checkLedgerInvariant(t, db)
}

// The unavailable check outranks the limit check: a maxed-out user hitting an
// unavailable book still sees the availability conflict.
func TestUnavailableBeatsLimit(t *testing.T) {
	db := memdb(t)
	svc := services.NewBorrowService(db)
	alice := addUser(t, db, "Alice", domain.RoleUser)
	bob := addUser(t, db, "Bob", domain.RoleUser)

	taken := addBook(t, db, "Taken")
	if _, err := svc.Borrow(bob, taken.ID); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < domain.MaxActiveBorrows; i++ {
		b := addBook(t, db, "Filler"+string(rune('A'+i)))
		if _, err := svc.Borrow(alice, b.ID); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := svc.Borrow(alice, taken.ID); !errors.Is(err, services.ErrBookUnavailable) {
		t.Fatalf("want ErrBookUnavailable, got %v", err)
	}
}

func TestBorrowLimit(t *testing.T) {
	db := memdb(t)
	svc := services.NewBorrowService(db)
	u := addUser(t, db, "Alice", domain.RoleUser)

	// limit-1 open borrows: the next one must pass
	for i := 0; i < domain.MaxActiveBorrows-1; i++ {
		b := addBook(t, db, "Vol"+string(rune('A'+i)))
		if _, err := svc.Borrow(u, b.ID); err != nil {
			t.Fatal(err)
		}
	}
	last := addBook(t, db, "LastAllowed")
	if _, err := svc.Borrow(u, last.ID); err != nil {
		t.Fatalf("borrow %d should pass: %v", domain.MaxActiveBorrows, err)
	}

	// at the limit: rejected, and the message names the configured cap
	over := addBook(t, db, "OneTooMany")
	_, err := svc.Borrow(u, over.ID)
	if !errors.Is(err, services.ErrBorrowLimit) {
		t.Fatalf("want ErrBorrowLimit, got %v", err)
	}
	if !strings.Contains(err.Error(), "limit: 3") {
		t.Fatalf("limit message must embed the cap: %q", err.Error())
	}

	// returning one frees a slot
	var borrowID int64
	if err := db.Get(&borrowID, `SELECT id FROM borrows WHERE user_id = ? AND returned_at IS NULL LIMIT 1`, u.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Return(u, borrowID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Borrow(u, over.ID); err != nil {
		t.Fatalf("borrow after return should pass: %v", err)
	}
	checkLedgerInvariant(t, db)
}

func TestReturnFlow(t *testing.T) {
	db := memdb(t)
	svc := services.NewBorrowService(db)
	u := addUser(t, db, "Alice", domain.RoleUser)
	book := addBook(t, db, "Dune")

	b, err := svc.Borrow(u, book.ID)
	if err != nil {
		t.Fatal(err)
	}

	ret, err := svc.Return(u, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if ret.ReturnedAt == nil {
		t.Fatal("returned_at not set")
	}
	if ret.Book == nil || !ret.Book.Available {
		t.Fatalf("result book must be fresh and available: %+v", ret.Book)
	}
	if ret.User == nil || ret.User.ID != u.ID {
		t.Fatalf("result user must be populated: %+v", ret.User)
	}
	if v := ret.View(time.Now().UTC()); v.Status != domain.StatusReturned || v.IsOverdue {
		t.Fatalf("want returned projection, got %+v", v)
	}
	checkLedgerInvariant(t, db)

	// second return: conflict, and availability is not toggled again
	if _, err := svc.Return(u, b.ID); !errors.Is(err, services.ErrBorrowClosed) {
		t.Fatalf("want ErrBorrowClosed, got %v", err)
	}
	fresh, err := repos.NewBookRepo(db).Get(book.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !fresh.Available {
		t.Fatal("double return must not flip availability back")
	}
	checkLedgerInvariant(t, db)
}

func TestReturnAuthorization(t *testing.T) {
	db := memdb(t)
	svc := services.NewBorrowService(db)
	alice := addUser(t, db, "Alice", domain.RoleUser)
	bob := addUser(t, db, "Bob", domain.RoleUser)
	admin := addUser(t, db, "Root", domain.RoleAdmin)

	b1, err := svc.Borrow(alice, addBook(t, db, "One").ID)
	if err != nil {
		t.Fatal(err)
	}
	b2, err := svc.Borrow(alice, addBook(t, db, "Two").ID)
	if err != nil {
		t.Fatal(err)
	}

	// stranger: forbidden, nothing changes
	if _, err := svc.Return(bob, b1.ID); !errors.Is(err, services.ErrNotBorrower) {
		t.Fatalf("want ErrNotBorrower, got %v", err)
	}
	checkLedgerInvariant(t, db)

	// admin may return on the owner's behalf, and the result carries the
	// owner, not the actor
	ret, err := svc.Return(admin, b2.ID)
	if err != nil {
		t.Fatal(err)
	}
	if ret.User == nil || ret.User.ID != alice.ID {
		t.Fatalf("result user must be the owner: %+v", ret.User)
	}

	// a closed record reads as conflict even for a stranger
	if _, err := svc.Return(bob, b2.ID); !errors.Is(err, services.ErrBorrowClosed) {
		t.Fatalf("closed-before-authz ordering broken: %v", err)
	}

	if _, err := svc.Return(alice, 424242); !errors.Is(err, services.ErrBorrowNotFound) {
		t.Fatalf("want ErrBorrowNotFound, got %v", err)
	}
}

func TestOverdueProjectionThroughClock(t *testing.T) {
	db := memdb(t)
	svc := services.NewBorrowService(db)
	u := addUser(t, db, "Alice", domain.RoleUser)
	book := addBook(t, db, "Dune")

	// borrow three weeks ago; the 14-day loan is a week past due
	past := time.Now().UTC().Add(-21 * 24 * time.Hour)
	svc.Clock = func() time.Time { return past }
	b, err := svc.Borrow(u, book.ID)
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now().UTC()
	v := b.View(now)
	if v.Status != domain.StatusOverdue || !v.IsOverdue || v.DaysOverdue < 1 {
		t.Fatalf("want overdue projection, got %+v", v)
	}

	svc.Clock = nil
	ret, err := svc.Return(u, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	v = ret.View(time.Now().UTC())
	if v.Status != domain.StatusReturned || v.IsOverdue || v.DaysOverdue != 0 {
		t.Fatalf("want returned projection after return, got %+v", v)
	}
}

func TestListOrderingAndFilter(t *testing.T) {
	db := memdb(t)
	svc := services.NewBorrowService(db)
	u := addUser(t, db, "Alice", domain.RoleUser)

	times := []time.Time{
		time.Now().UTC().Add(-72 * time.Hour),
		time.Now().UTC().Add(-48 * time.Hour),
		time.Now().UTC().Add(-24 * time.Hour),
	}
	var ids []int64
	for i, ts := range times {
		svc.Clock = func() time.Time { return ts }
		b, err := svc.Borrow(u, addBook(t, db, "Seq"+string(rune('A'+i))).ID)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, b.ID)
	}
	svc.Clock = nil

	if _, err := svc.Return(u, ids[1]); err != nil {
		t.Fatal(err)
	}

	all, err := svc.ListAll(false)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("want 3 rows, got %d", len(all))
	}
	// newest borrow first
	for i := 0; i < len(all)-1; i++ {
		if all[i].BorrowedAt.Before(all[i+1].BorrowedAt) {
			t.Fatalf("ledger not ordered newest-first: %v then %v", all[i].BorrowedAt, all[i+1].BorrowedAt)
		}
	}
	if all[0].Book == nil || all[0].User == nil {
		t.Fatal("admin listing must carry book and user relations")
	}

	active, err := svc.ListForUser(u.ID, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 2 {
		t.Fatalf("want 2 active rows, got %d", len(active))
	}
	for _, b := range active {
		if !b.Open() {
			t.Fatalf("active filter leaked a closed row: %+v", b)
		}
		if b.Book == nil {
			t.Fatal("history rows must carry the book relation")
		}
	}
}
