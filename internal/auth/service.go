package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-shop-checkout/internal/logging"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrTokenRevoked       = errors.New("token has been revoked")
)

type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type UserRepository interface {
	// CreateUser fills in ID; ErrEmailTaken on duplicates.
	CreateUser(ctx context.Context, u *User) error
	UserByEmail(ctx context.Context, email string) (User, error)
	UserByID(ctx context.Context, id int64) (User, error)
}

// Revocations remembers logged-out token ids until they would expire anyway.
type Revocations interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// Session is what register and login hand back to the client.
type Session struct {
	User      User      `json:"user"`
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Service struct {
	Users       UserRepository
	Tokens      *Tokens
	Revocations Revocations
	BcryptCost  int
}

func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (Session, error) {
	hash, err := HashPassword(in.Password, s.BcryptCost)
	if err != nil {
		return Session{}, err
	}
	u := User{
		Name:         strings.TrimSpace(in.Name),
		Email:        normalizeEmail(in.Email),
		PasswordHash: hash,
	}
	if err := s.Users.CreateUser(ctx, &u); err != nil {
		return Session{}, err
	}
	logging.FromContext(ctx).Info("user registered", zap.Int64("user_id", u.ID))
	return s.session(u)
}

func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := s.Users.UserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrUserNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		logging.FromContext(ctx).Info("login rejected", zap.Int64("user_id", u.ID))
		return Session{}, ErrInvalidCredentials
	}
	logging.FromContext(ctx).Info("user logged in", zap.Int64("user_id", u.ID))
	return s.session(u)
}

// Logout revokes the presented token for the rest of its lifetime.
func (s *Service) Logout(ctx context.Context, p Principal) error {
	ttl := time.Until(p.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := s.Revocations.Revoke(ctx, p.TokenID, ttl); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	logging.FromContext(ctx).Info("user logged out", zap.Int64("user_id", p.UserID))
	return nil
}

// Authenticate resolves a bearer token into a Principal.
func (s *Service) Authenticate(ctx context.Context, token string) (Principal, error) {
	p, err := s.Tokens.Parse(token)
	if err != nil {
		return Principal{}, err
	}
	revoked, err := s.Revocations.IsRevoked(ctx, p.TokenID)
	if err != nil {
		return Principal{}, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return Principal{}, ErrTokenRevoked
	}
	return p, nil
}

func (s *Service) Profile(ctx context.Context, userID int64) (User, error) {
	return s.Users.UserByID(ctx, userID)
}

func (s *Service) session(u User) (Session, error) {
	token, p, err := s.Tokens.Issue(u)
	if err != nil {
		return Session{}, err
	}
	return Session{User: u, Token: token, TokenType: "Bearer", ExpiresAt: p.ExpiresAt}, nil
}

func normalizeEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}
