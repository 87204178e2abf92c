// Package app implements the storefront backend: user accounts, cookie
// sessions, Stripe-driven entitlements, and metered usage quotas.
package app

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/gofrs/uuid/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/2456Zebra/novahunt-sub001/app/models"
)

var (
	// ErrEmailTaken indicates a signup against an existing account.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidCredentials masks both unknown-email and wrong-password.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Users persists accounts and checks sign-in credentials.
type Users struct {
	db *sql.DB
}

func NewUsers(db *sql.DB) *Users {
	return &Users{db: db}
}

// Create registers a new account with a hashed password.
func (s *Users) Create(ctx context.Context, email, password string) (models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return models.User{}, errors.New("empty email/password")
	}

	uid, err := uuid.NewV4()
	if err != nil {
		return models.User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, err
	}

	user := models.User{ID: uid.String(), Email: email, PasswordHash: string(hash)}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash)
		VALUES ($1, $2, $3);
	`, user.ID, user.Email, user.PasswordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, ErrEmailTaken
		}
		return models.User{}, err
	}
	return user, nil
}

// Authenticate verifies sign-in credentials. Unknown emails and wrong
// passwords produce the same error.
func (s *Users) Authenticate(ctx context.Context, email, password string) (models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, created_at
		FROM users
		WHERE email = $1;
	`, email).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return models.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// GetByID loads an account by id.
func (s *Users) GetByID(ctx context.Context, id string) (models.User, error) {
	var user models.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, created_at
		FROM users
		WHERE id = $1;
	`, id).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}
