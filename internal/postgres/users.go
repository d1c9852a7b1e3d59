package postgres

import (
	"context"

	"github.com/ariefcatur/go-shop-checkout/internal/auth"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const userCols = `id, name, email, password, created_at, updated_at`

func (s *Store) CreateUser(ctx context.Context, u *auth.User) error {
	err := s.DB.QueryRow(ctx, `
		INSERT INTO users(name, email, password) VALUES ($1,$2,$3)
		RETURNING id, created_at, updated_at`,
		u.Name, u.Email, u.PasswordHash,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if name, ok := uniqueViolation(err); ok && name == "users_email_key" {
		return auth.ErrEmailTaken
	}
	return errors.Wrap(err, "insert user")
}

func (s *Store) UserByEmail(ctx context.Context, email string) (auth.User, error) {
	return s.user(ctx, `SELECT `+userCols+` FROM users WHERE email=$1`, email)
}

func (s *Store) UserByID(ctx context.Context, id int64) (auth.User, error) {
	return s.user(ctx, `SELECT `+userCols+` FROM users WHERE id=$1`, id)
}

func (s *Store) user(ctx context.Context, sql string, arg any) (auth.User, error) {
	var u auth.User
	err := s.DB.QueryRow(ctx, sql, arg).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return auth.User{}, auth.ErrUserNotFound
	}
	return u, errors.Wrap(err, "get user")
}
