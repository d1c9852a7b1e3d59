package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memUsers struct {
	mu    sync.Mutex
	users []User
}

func (m *memUsers) CreateUser(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.users {
		if x.Email == u.Email {
			return ErrEmailTaken
		}
	}
	u.ID = int64(len(m.users) + 1)
	m.users = append(m.users, *u)
	return nil
}

func (m *memUsers) UserByEmail(_ context.Context, email string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.users {
		if x.Email == email {
			return x, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (m *memUsers) UserByID(_ context.Context, id int64) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.users {
		if x.ID == id {
			return x, nil
		}
	}
	return User{}, ErrUserNotFound
}

type memRevocations struct{ revoked map[string]time.Duration }

func (m *memRevocations) Revoke(_ context.Context, id string, ttl time.Duration) error {
	m.revoked[id] = ttl
	return nil
}

func (m *memRevocations) IsRevoked(_ context.Context, id string) (bool, error) {
	_, ok := m.revoked[id]
	return ok, nil
}

func newService() (*Service, *memRevocations) {
	rev := &memRevocations{revoked: map[string]time.Duration{}}
	return &Service{
		Users:       &memUsers{},
		Tokens:      NewTokens("unit-test-secret", time.Hour),
		Revocations: rev,
		BcryptCost:  bcrypt.MinCost,
	}, rev
}

func TestTokensRoundTrip(t *testing.T) {
	tk := NewTokens("s3cret", time.Hour)
	token, p, err := tk.Issue(User{ID: 7, Email: "test@ecommerce.com"})
	require.NoError(t, err)

	got, err := tk.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.UserID)
	assert.Equal(t, "test@ecommerce.com", got.Email)
	assert.Equal(t, p.TokenID, got.TokenID)
	assert.NotEmpty(t, got.TokenID)
	assert.True(t, p.ExpiresAt.Equal(got.ExpiresAt))
}

func TestTokensRejects(t *testing.T) {
	tk := NewTokens("s3cret", time.Minute)
	token, _, err := tk.Issue(User{ID: 7})
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := NewTokens("other", time.Minute).Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
	t.Run("expired", func(t *testing.T) {
		late := NewTokens("s3cret", time.Minute)
		late.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
		_, err := late.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
	t.Run("none algorithm", func(t *testing.T) {
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
			RegisteredClaims: jwt.RegisteredClaims{ID: "x", Subject: "7", Issuer: issuer, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = tk.Parse(unsigned)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
	t.Run("garbage", func(t *testing.T) {
		_, err := tk.Parse("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestRegisterLoginLogout(t *testing.T) {
	ctx := context.Background()
	svc, rev := newService()

	s, err := svc.Register(ctx, RegisterInput{Name: " Budi ", Email: " Budi@Example.com ", Password: "rahasia123"})
	require.NoError(t, err)
	assert.Equal(t, "budi@example.com", s.User.Email)
	assert.Equal(t, "Budi", s.User.Name)
	assert.Equal(t, "Bearer", s.TokenType)

	_, err = svc.Register(ctx, RegisterInput{Name: "Budi", Email: "budi@example.com", Password: "rahasia123"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = svc.Login(ctx, "budi@example.com", "salah")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "nobody@example.com", "rahasia123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	s, err = svc.Login(ctx, "BUDI@example.com", "rahasia123")
	require.NoError(t, err)

	p, err := svc.Authenticate(ctx, s.Token)
	require.NoError(t, err)
	u, err := svc.Profile(ctx, p.UserID)
	require.NoError(t, err)
	assert.Equal(t, "Budi", u.Name)

	require.NoError(t, svc.Logout(ctx, p))
	assert.Greater(t, rev.revoked[p.TokenID], time.Duration(0))
	_, err = svc.Authenticate(ctx, s.Token)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestPrincipalContext(t *testing.T) {
	_, ok := PrincipalFrom(context.Background())
	assert.False(t, ok)
	ctx := WithPrincipal(context.Background(), Principal{UserID: 3})
	p, ok := PrincipalFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(3), p.UserID)
}
