package domain

import "time"

// Role is the closed set of account roles. Keeping it a distinct type keeps
// authorization checks behind predicates instead of string comparisons
// scattered around call sites.
type Role string

const (
	RoleAdmin Role = "Admin"
	RoleUser  Role = "User"
)

// ParseRole maps request input onto a known role.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleUser:
		return RoleUser, true
	}
	return "", false
}

// CanManageLibrary reports whether the role carries staff powers: catalog and
// user management, and acting on any borrow record regardless of owner.
func (r Role) CanManageLibrary() bool { return r == RoleAdmin }

type User struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	LibraryID string    `db:"library_id" json:"library_id"`
	Role      Role      `db:"role" json:"role"`
	Hash      string    `db:"password_hash" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// UserSummary is the user shape embedded in borrow projections.
type UserSummary struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	LibraryID string `json:"library_id"`
	Role      Role   `json:"role"`
}

func (u *User) Summary() *UserSummary {
	return &UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, LibraryID: u.LibraryID, Role: u.Role}
}
