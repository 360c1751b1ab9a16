package auth

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/kuitang/notesaas/internal/obs"
)

type contextKey string

const userIDKey contextKey = "userID"

// LoginPath is where unauthenticated page requests are sent.
const LoginPath = "/login"

// Middleware attaches the signed-in user to requests.
type Middleware struct {
	sessions *SessionService
}

func NewMiddleware(sessions *SessionService) *Middleware {
	return &Middleware{sessions: sessions}
}

// RequireAuth redirects to the login page unless the request carries a
// valid session.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := m.authenticate(r)
		if !ok {
			target := LoginPath
			if r.Method == http.MethodGet {
				target += "?next=" + url.QueryEscape(r.URL.RequestURI())
			}
			http.Redirect(w, r, target, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), userID)))
	})
}

// OptionalAuth attaches the user when a valid session is present and
// continues either way.
func (m *Middleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID, ok := m.authenticate(r); ok {
			r = r.WithContext(withUser(r.Context(), userID))
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) authenticate(r *http.Request) (string, bool) {
	sessionID, err := GetFromRequest(r)
	if err != nil {
		return "", false
	}
	userID, err := m.sessions.Validate(r.Context(), sessionID)
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			obs.From(r.Context()).With("pkg", "auth").Error("session_validate_failed", "error", err)
		}
		return "", false
	}
	return userID, true
}

func withUser(ctx context.Context, userID string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return obs.WithUserID(ctx, userID)
}

// WithUserID returns ctx carrying userID as if authenticated. Intended for
// tests and internal callers.
func WithUserID(ctx context.Context, userID string) context.Context {
	return withUser(ctx, userID)
}

// GetUserID returns the authenticated user id, or "".
func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}

func IsAuthenticated(ctx context.Context) bool {
	return GetUserID(ctx) != ""
}
