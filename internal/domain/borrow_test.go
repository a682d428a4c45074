package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestDueDateFor(t *testing.T) {
	borrowed := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	due := DueDateFor(borrowed)
	if got := due.Sub(borrowed); got != 14*24*time.Hour {
		t.Fatalf("loan period: want 14 days, got %v", got)
	}
}

func TestStatusProjection(t *testing.T) {
	now := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
	returned := now.Add(-time.Hour)

	cases := []struct {
		name string
		b    Borrow
		want BorrowStatus
	}{
		{"active before due", Borrow{DueDate: now.Add(48 * time.Hour)}, StatusActive},
		{"active exactly at due", Borrow{DueDate: now}, StatusActive},
		{"overdue past due", Borrow{DueDate: now.Add(-time.Minute)}, StatusOverdue},
		{"returned wins over overdue", Borrow{DueDate: now.Add(-time.Minute), ReturnedAt: &returned}, StatusReturned},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.b.StatusAt(now); got != tc.want {
				t.Fatalf("want %s, got %s", tc.want, got)
			}
		})
	}
}

func TestDaysOverdueRoundsUp(t *testing.T) {
	now := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		late time.Duration
		want int
	}{
		{0, 0},               // not overdue at the due instant
		{time.Minute, 1},     // any lateness counts as a day
		{24 * time.Hour, 1},  // exactly one day
		{25 * time.Hour, 2},  // partial second day rounds up
		{10 * 24 * time.Hour, 10},
	}
	for _, tc := range cases {
		b := Borrow{DueDate: now.Add(-tc.late)}
		if got := b.DaysOverdueAt(now); got != tc.want {
			t.Fatalf("late %v: want %d days, got %d", tc.late, tc.want, got)
		}
	}

	ret := now
	closed := Borrow{DueDate: now.Add(-48 * time.Hour), ReturnedAt: &ret}
	if got := closed.DaysOverdueAt(now); got != 0 {
		t.Fatalf("returned record must project 0 days overdue, got %d", got)
	}
}

func TestViewRelations(t *testing.T) {
	now := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
	b := Borrow{
		ID:         7,
		BorrowedAt: now.Add(-20 * 24 * time.Hour),
		DueDate:    now.Add(-6 * 24 * time.Hour),
	}

	v := b.View(now)
	if v.Status != StatusOverdue || !v.IsOverdue || v.DaysOverdue != 6 {
		t.Fatalf("bad overdue view: %+v", v)
	}
	if v.Book != nil || v.User != nil {
		t.Fatal("unloaded relations must stay absent")
	}

	b.Book = &Book{ID: 3, Title: "Dune"}
	b.User = &User{ID: 9, Name: "Ada", Role: RoleUser, Hash: "secret"}
	v = b.View(now)
	if v.Book == nil || v.Book.Title != "Dune" {
		t.Fatalf("book relation missing: %+v", v.Book)
	}
	if v.User == nil || v.User.Name != "Ada" {
		t.Fatalf("user relation missing: %+v", v.User)
	}

	// The password hash must never reach the wire.
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "secret") {
		t.Fatal("hash leaked into projection JSON")
	}
	if !strings.Contains(string(raw), `"status":"overdue"`) || !strings.Contains(string(raw), `"is_overdue":true`) {
		t.Fatalf("unexpected projection JSON: %s", raw)
	}
}

func TestViewsBulk(t *testing.T) {
	now := time.Now().UTC()
	ret := now
	list := []Borrow{
		{ID: 1, DueDate: now.Add(time.Hour)},
		{ID: 2, DueDate: now.Add(-time.Hour)},
		{ID: 3, DueDate: now.Add(-time.Hour), ReturnedAt: &ret},
	}
	views := Views(list, now)
	if len(views) != 3 {
		t.Fatalf("want 3 views, got %d", len(views))
	}
	wants := []BorrowStatus{StatusActive, StatusOverdue, StatusReturned}
	for i, w := range wants {
		if views[i].Status != w {
			t.Fatalf("view %d: want %s, got %s", i, w, views[i].Status)
		}
	}
}
