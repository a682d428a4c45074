package repos

import (
	"github.com/jmoiron/sqlx"

	"librarium/internal/domain"
)

// UserRepo holds member accounts and their bearer tokens.
type UserRepo struct{ ext sqlx.Ext }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{ext: db} }

func (r *UserRepo) WithTx(tx *sqlx.Tx) *UserRepo { return &UserRepo{ext: tx} }

const userCols = `id, name, email, library_id, role, password_hash, created_at`

func (r *UserRepo) ByID(id int64) (*domain.User, error) {
	var u domain.User
	if err := sqlx.Get(r.ext, &u, `SELECT `+userCols+` FROM users WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) ByEmail(email string) (*domain.User, error) {
	var u domain.User
	if err := sqlx.Get(r.ext, &u, `SELECT `+userCols+` FROM users WHERE LOWER(email) = LOWER(?)`, email); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) List(limit, offset int) ([]domain.User, error) {
	var out []domain.User
	err := sqlx.Select(r.ext, &out, `
		SELECT `+userCols+` FROM users ORDER BY id LIMIT ? OFFSET ?
	`, limit, offset)
	return out, err
}

func (r *UserRepo) Count() (int, error) {
	var n int
	err := sqlx.Get(r.ext, &n, `SELECT COUNT(*) FROM users`)
	return n, err
}

func (r *UserRepo) Create(u *domain.User) error {
	res, err := r.ext.Exec(`
		INSERT INTO users(name, email, library_id, role, password_hash)
		VALUES (?, ?, ?, ?, ?)
	`, u.Name, u.Email, u.LibraryID, string(u.Role), u.Hash)
	if err != nil {
		return err
	}
	u.ID, err = res.LastInsertId()
	return err
}

func (r *UserRepo) Update(u *domain.User) error {
	_, err := r.ext.Exec(`
		UPDATE users SET name = ?, email = ?, role = ?, password_hash = ?
		WHERE id = ?
	`, u.Name, u.Email, string(u.Role), u.Hash, u.ID)
	return err
}

func (r *UserRepo) Delete(id int64) error {
	_, err := r.ext.Exec(`DELETE FROM users WHERE id = ?`, id)
	return err
}

func (r *UserRepo) LibraryIDTaken(libraryID string) (bool, error) {
	var n int
	if err := sqlx.Get(r.ext, &n, `SELECT COUNT(*) FROM users WHERE library_id = ?`, libraryID); err != nil {
		return false, err
	}
	return n > 0, nil
}

// ---------- Bearer tokens ----------

func (r *UserRepo) BindToken(token string, userID int64) error {
	_, err := r.ext.Exec(`INSERT INTO api_tokens(user_id, token) VALUES (?, ?)`, userID, token)
	return err
}

func (r *UserRepo) ByToken(token string) (*domain.User, error) {
	var u domain.User
	err := sqlx.Get(r.ext, &u, `
		SELECT u.id, u.name, u.email, u.library_id, u.role, u.password_hash, u.created_at
		FROM api_tokens t
		JOIN users u ON u.id = t.user_id
		WHERE t.token = ?
	`, token)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// RevokeTokens drops every token the user holds; logout invalidates all
// devices at once, matching the issue-on-login model.
func (r *UserRepo) RevokeTokens(userID int64) error {
	_, err := r.ext.Exec(`DELETE FROM api_tokens WHERE user_id = ?`, userID)
	return err
}
