// Package session owns the browser session of the console: the token cookie
// and the guard that protects screens.
package session

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultCookieName is the cookie holding the bearer token.
const DefaultCookieName = "carbonseed_token"

// Config holds the cookie settings of a Manager.
type Config struct {
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	CookieName string
	MaxAge     time.Duration
	Secure     bool
}

// Manager is the only code that reads or writes the token cookie.
type Manager struct {
	now    func() time.Time
	name   string
	maxAge time.Duration
	secure bool
}

// NewManager creates a Manager.
func NewManager(cfg *Config) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("session config cannot be nil")
	}

	if cfg.MaxAge < 0 {
		return nil, errors.New("session max age cannot be negative")
	}

	m := &Manager{
		now:    cfg.Now,
		name:   cfg.CookieName,
		maxAge: cfg.MaxAge,
		secure: cfg.Secure,
	}
	if m.name == "" {
		m.name = DefaultCookieName
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m, nil
}

// CookieName returns the name of the token cookie.
func (m *Manager) CookieName() string {
	return m.name
}

// Begin stores token after a successful login.
func (m *Manager) Begin(w http.ResponseWriter, token string) {
	c := &http.Cookie{
		Name:     m.name,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if m.maxAge > 0 {
		c.MaxAge = int(m.maxAge / time.Second)
		c.Expires = m.now().Add(m.maxAge)
	}
	http.SetCookie(w, c)
}

// Token returns the stored token, if any.
func (m *Manager) Token(r *http.Request) (string, bool) {
	c, err := r.Cookie(m.name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// End deletes the stored token.
func (m *Manager) End(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Expired reports whether token is a JWT whose exp claim has passed. The
// signature is not checked; that is the backend's job. Tokens that are not
// JWTs, or carry no exp claim, are never expired here.
func (m *Manager) Expired(token string) bool {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !m.now().Before(claims.ExpiresAt.Time)
}
