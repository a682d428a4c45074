package domain

import "time"

const (
	// MaxActiveBorrows is the per-user cap on concurrently open borrows.
	MaxActiveBorrows = 3
	// LoanDays is the fixed loan period; due_date = borrowed_at + LoanDays.
	LoanDays = 14
)

type BorrowStatus string

const (
	StatusActive   BorrowStatus = "active"
	StatusOverdue  BorrowStatus = "overdue"
	StatusReturned BorrowStatus = "returned"
)

type Borrow struct {
	ID         int64      `db:"id"`
	UserID     int64      `db:"user_id"`
	BookID     int64      `db:"book_id"`
	BorrowedAt time.Time  `db:"borrowed_at"`
	DueDate    time.Time  `db:"due_date"`
	ReturnedAt *time.Time `db:"returned_at"`

	Book *Book `db:"-"`
	User *User `db:"-"`
}

// DueDateFor freezes the due date at creation time. It is never recomputed.
func DueDateFor(borrowedAt time.Time) time.Time {
	return borrowedAt.AddDate(0, 0, LoanDays)
}

// Open reports whether the book is still out (returned_at unset).
func (b *Borrow) Open() bool { return b.ReturnedAt == nil }

// StatusAt derives the presentation status for a given clock reading.
func (b *Borrow) StatusAt(now time.Time) BorrowStatus {
	switch {
	case b.ReturnedAt != nil:
		return StatusReturned
	case now.After(b.DueDate):
		return StatusOverdue
	default:
		return StatusActive
	}
}

// DaysOverdueAt is the overdue age in whole days, rounded up. Zero unless the
// borrow is open and past due.
func (b *Borrow) DaysOverdueAt(now time.Time) int {
	if b.StatusAt(now) != StatusOverdue {
		return 0
	}
	late := now.Sub(b.DueDate)
	days := int(late / (24 * time.Hour))
	if late%(24*time.Hour) != 0 {
		days++
	}
	return days
}

// BorrowView is the wire shape of a borrow record. Timestamps marshal as
// ISO-8601 (RFC 3339); book and user render only when the relation is loaded.
type BorrowView struct {
	ID          int64        `json:"id"`
	BorrowedAt  time.Time    `json:"borrowed_at"`
	DueDate     time.Time    `json:"due_date"`
	ReturnedAt  *time.Time   `json:"returned_at"`
	Status      BorrowStatus `json:"status"`
	IsOverdue   bool         `json:"is_overdue"`
	DaysOverdue int          `json:"days_overdue"`
	Book        *Book        `json:"book,omitempty"`
	User        *UserSummary `json:"user,omitempty"`
}

// View projects the record against the given clock reading. Pure: same record
// and same now always yield the same view.
func (b *Borrow) View(now time.Time) BorrowView {
	status := b.StatusAt(now)
	v := BorrowView{
		ID:          b.ID,
		BorrowedAt:  b.BorrowedAt,
		DueDate:     b.DueDate,
		ReturnedAt:  b.ReturnedAt,
		Status:      status,
		IsOverdue:   status == StatusOverdue,
		DaysOverdue: b.DaysOverdueAt(now),
		Book:        b.Book,
	}
	if b.User != nil {
		v.User = b.User.Summary()
	}
	return v
}

// Views projects a collection with one shared clock reading.
func Views(borrows []Borrow, now time.Time) []BorrowView {
	out := make([]BorrowView, 0, len(borrows))
	for i := range borrows {
		out = append(out, borrows[i].View(now))
	}
	return out
}
