package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"carbonseed.io/console/pkg/api"
	"carbonseed.io/console/pkg/metrics"
)

// Paths the guard redirects to.
const (
	LoginPath   = "/login"
	DefaultPath = "/dashboard"
)

// Redirect reasons.
const (
	ReasonNoToken  = "no_token"
	ReasonExpired  = "expired"
	ReasonIdentity = "identity"
	// ReasonUnauthorized is an identity fetch the backend answered with 401.
	ReasonUnauthorized = "unauthorized"
	ReasonRole         = "role"
)

// IdentityFetcher resolves a token to its user.
type IdentityFetcher interface {
	Me(ctx context.Context, token string) (*api.User, error)
}

var _ IdentityFetcher = (*api.Client)(nil)

// Identity is the authenticated caller of one request.
type Identity struct {
	Token string
	User  api.User
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity placed by the guard.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// GuardConfig holds the collaborators of a Guard.
type GuardConfig struct {
	Logger   *slog.Logger
	Manager  *Manager
	Fetcher  IdentityFetcher
	Metrics  *metrics.ConsoleMetrics
	LoginURL string
	HomeURL  string
}

// Guard protects screens. It fetches the identity on every request and
// never caches it.
type Guard struct {
	logger  *slog.Logger
	manager *Manager
	fetcher IdentityFetcher
	metrics *metrics.ConsoleMetrics
	login   string
	home    string
}

// NewGuard creates a Guard.
func NewGuard(cfg *GuardConfig) (*Guard, error) {
	if cfg == nil {
		return nil, errors.New("guard config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Manager == nil {
		return nil, errors.New("session manager cannot be nil")
	}

	if cfg.Fetcher == nil {
		return nil, errors.New("identity fetcher cannot be nil")
	}

	g := &Guard{
		logger:  cfg.Logger,
		manager: cfg.Manager,
		fetcher: cfg.Fetcher,
		metrics: cfg.Metrics,
		login:   cfg.LoginURL,
		home:    cfg.HomeURL,
	}
	if g.login == "" {
		g.login = LoginPath
	}
	if g.home == "" {
		g.home = DefaultPath
	}
	return g, nil
}

// Require serves next only to callers holding a valid session. A non-empty
// role additionally restricts next to users of that role; others are sent
// to the default screen.
func (g *Guard) Require(role api.Role, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := g.manager.Token(r)
		if !ok {
			g.deny(w, r, ReasonNoToken, g.login)
			return
		}

		if g.manager.Expired(token) {
			g.manager.End(w)
			g.deny(w, r, ReasonExpired, g.login)
			return
		}

		user, err := g.fetcher.Me(r.Context(), token)
		if err != nil || user == nil {
			reason := ReasonIdentity
			if errors.Is(err, api.ErrUnauthorized) {
				reason = ReasonUnauthorized
			}
			g.logger.Info("identity check failed", "path", r.URL.Path, "reason", reason, "error", err)
			g.manager.End(w)
			g.deny(w, r, reason, g.login)
			return
		}

		if role != "" && user.Role != role {
			g.logger.Info("role not permitted",
				"path", r.URL.Path,
				"user_id", user.ID,
				"role", string(user.Role),
				"required", string(role),
			)
			g.deny(w, r, ReasonRole, g.home)
			return
		}

		ctx := WithIdentity(r.Context(), Identity{Token: token, User: *user})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (g *Guard) deny(w http.ResponseWriter, r *http.Request, reason, target string) {
	if g.metrics != nil {
		g.metrics.GuardRedirects.WithLabelValues(reason).Inc()
	}
	Redirect(w, r, target)
}

// Redirect sends the browser to target. htmx requests get an HX-Redirect
// header so the whole page navigates instead of swapping a fragment.
func Redirect(w http.ResponseWriter, r *http.Request, target string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
