package services

import (
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"librarium/internal/domain"
	"librarium/internal/repos"
)

var (
	ErrBadCreds   = errors.New("Invalid credentials")
	ErrEmailTaken = errors.New("The email has already been taken.")
)

type AuthService struct {
	Users *repos.UserRepo
}

type RegisterInput struct {
	Name     string
	Email    string
	Role     domain.Role
	Password string
}

// Register creates an account with a generated LIB-#### membership id and
// issues its first bearer token.
func (s *AuthService) Register(in RegisterInput) (*domain.User, string, error) {
	if _, err := s.Users.ByEmail(in.Email); err == nil {
		return nil, "", ErrEmailTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), 12)
	if err != nil {
		return nil, "", err
	}

	libraryID, err := s.generateLibraryID()
	if err != nil {
		return nil, "", err
	}

	u := &domain.User{
		Name:      in.Name,
		Email:     in.Email,
		LibraryID: libraryID,
		Role:      in.Role,
		Hash:      string(hash),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Users.Create(u); err != nil {
		return nil, "", err
	}

	token, err := s.issueToken(u.ID)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// generateLibraryID draws LIB-#### until it finds a free one, falling back to
// a timestamp-derived suffix when the random space looks exhausted.
func (s *AuthService) generateLibraryID() (string, error) {
	const maxAttempts = 100
	for i := 0; i < maxAttempts; i++ {
		id := fmt.Sprintf("LIB-%04d", 1000+rand.IntN(9000))
		taken, err := s.Users.LibraryIDTaken(id)
		if err != nil {
			return "", err
		}
		if !taken {
			return id, nil
		}
	}
	id := fmt.Sprintf("LIB-%04d", time.Now().Unix()%10000)
	taken, err := s.Users.LibraryIDTaken(id)
	if err != nil {
		return "", err
	}
	if taken {
		id = fmt.Sprintf("LIB-%03d%c", time.Now().Unix()%1000, 'A'+rune(rand.IntN(26)))
	}
	return id, nil
}

func (s *AuthService) Login(email, password string) (*domain.User, string, error) {
	u, err := s.Users.ByEmail(email)
	if err != nil {
		return nil, "", ErrBadCreds
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Hash), []byte(password)) != nil {
		return nil, "", ErrBadCreds
	}
	token, err := s.issueToken(u.ID)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// Logout revokes every token the user holds.
func (s *AuthService) Logout(userID int64) error {
	return s.Users.RevokeTokens(userID)
}

// UserByToken resolves a bearer token to its account; used by the authz
// middleware on every authenticated request.
func (s *AuthService) UserByToken(token string) (*domain.User, error) {
	if token == "" {
		return nil, sql.ErrNoRows
	}
	return s.Users.ByToken(token)
}

func (s *AuthService) issueToken(userID int64) (string, error) {
	token := uuid.NewString()
	if err := s.Users.BindToken(token, userID); err != nil {
		return "", err
	}
	return token, nil
}
