package httpx

import (
	"net/http"
	"time"

	"github.com/ariefcatur/go-shop-checkout/internal/auth"
	"github.com/ariefcatur/go-shop-checkout/internal/schema"
	"github.com/go-chi/chi/v5"
)

var registerSchema = schema.MustCompile("register", `{
  "type": "object",
  "required": ["name", "email", "password"],
  "properties": {
    "name": {"type": "string", "minLength": 1, "maxLength": 255},
    "email": {"type": "string", "format": "email", "maxLength": 255},
    "password": {"type": "string", "minLength": 8, "maxLength": 72}
  }
}`)

var loginSchema = schema.MustCompile("login", `{
  "type": "object",
  "required": ["email", "password"],
  "properties": {
    "email": {"type": "string", "format": "email"},
    "password": {"type": "string", "minLength": 1}
  }
}`)

type AuthHandler struct {
	Service *auth.Service
}

type userView struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type sessionView struct {
	User        userView  `json:"user"`
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func viewUser(u auth.User) userView {
	return userView{ID: u.ID, Name: u.Name, Email: u.Email, CreatedAt: u.CreatedAt}
}

func viewSession(s auth.Session) sessionView {
	return sessionView{User: viewUser(s.User), AccessToken: s.Token, TokenType: s.TokenType, ExpiresAt: s.ExpiresAt}
}

// RegisterPublic mounts the routes that only need API credentials.
func (h *AuthHandler) RegisterPublic(r chi.Router) {
	r.Post("/register", h.register)
	r.Post("/login", h.login)
}

// RegisterProtected mounts the routes that need a bearer token.
func (h *AuthHandler) RegisterProtected(r chi.Router) {
	r.Post("/logout", h.logout)
	r.Get("/profile", h.profile)
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeValid(w, r, registerSchema, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	s, err := h.Service.Register(r.Context(), auth.RegisterInput{Name: req.Name, Email: req.Email, Password: req.Password})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	ok(w, http.StatusCreated, "Registrasi berhasil", viewSession(s))
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeValid(w, r, loginSchema, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	s, err := h.Service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Login berhasil", viewSession(s))
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	if err := h.Service.Logout(r.Context(), p); err != nil {
		writeDomainError(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Logout berhasil", nil)
}

func (h *AuthHandler) profile(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	u, err := h.Service.Profile(r.Context(), p.UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Profile retrieved successfully", map[string]any{"user": viewUser(u)})
}
