package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kuitang/notesaas/internal/crypto"
	"github.com/kuitang/notesaas/internal/db"
	"github.com/kuitang/notesaas/internal/obs"
	"github.com/kuitang/notesaas/internal/urlutil"
)

const (
	stateCookieName = "oauth_state"
	nextCookieName  = "login_next"
	stateMaxAge     = 600
	// AfterLoginPath is the default landing page after sign-in.
	AfterLoginPath = "/dashboard"
)

// SignInHook runs after the account exists and before the session is
// issued. Failures are logged; sign-in still succeeds.
type SignInHook func(ctx context.Context, user db.User, created bool) error

// Handler serves the sign-in, callback and sign-out routes.
type Handler struct {
	oidc     OIDCClient
	users    *UserService
	sessions *SessionService
	onSignIn SignInHook
}

// NewHandler creates the auth handler. onSignIn may be nil.
func NewHandler(oidcClient OIDCClient, users *UserService, sessions *SessionService, onSignIn SignInHook) *Handler {
	return &Handler{oidc: oidcClient, users: users, sessions: sessions, onSignIn: onSignIn}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /auth/google", h.HandleGoogleLogin)
	mux.HandleFunc("GET /auth/google/callback", h.HandleGoogleCallback)
	mux.HandleFunc("POST /auth/logout", h.HandleLogout)
	mux.HandleFunc("GET /auth/whoami", h.HandleWhoami)
}

// HandleGoogleLogin redirects to the identity provider. The CSRF state
// and the page to return to travel in short-lived cookies.
func (h *Handler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := crypto.RandomToken(32)
	if err != nil {
		http.Error(w, "Failed to generate state", http.StatusInternalServerError)
		return
	}
	h.setShortCookie(w, stateCookieName, state, stateMaxAge)
	if next := r.URL.Query().Get("next"); urlutil.IsLocalPath(next) {
		h.setShortCookie(w, nextCookieName, next, stateMaxAge)
	}
	http.Redirect(w, r, h.oidc.AuthURL(state), http.StatusFound)
}

// HandleGoogleCallback completes sign-in and issues a session.
func (h *Handler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	logger := obs.From(r.Context()).With("pkg", "auth")

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil {
		http.Error(w, "Missing state cookie", http.StatusBadRequest)
		return
	}
	state := r.URL.Query().Get("state")
	if state == "" || subtle.ConstantTimeCompare([]byte(state), []byte(stateCookie.Value)) != 1 {
		http.Error(w, ErrInvalidState.Error(), http.StatusBadRequest)
		return
	}
	h.setShortCookie(w, stateCookieName, "", -1)

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		http.Error(w, "Authentication failed: "+errParam, http.StatusUnauthorized)
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "Missing authorization code", http.StatusBadRequest)
		return
	}

	claims, err := h.oidc.ExchangeCode(r.Context(), code)
	if err != nil {
		logger.Warn("oidc_exchange_failed", "error", err)
		http.Error(w, "Failed to exchange code", http.StatusUnauthorized)
		return
	}
	if !claims.EmailVerified {
		http.Error(w, ErrEmailNotVerified.Error(), http.StatusForbidden)
		return
	}

	user, created, err := h.users.EnsureUser(r.Context(), claims)
	if err != nil {
		logger.Error("ensure_user_failed", "error", err)
		http.Error(w, "Failed to sign in", http.StatusInternalServerError)
		return
	}
	ctx := obs.WithUserID(r.Context(), user.ID)
	if h.onSignIn != nil {
		if err := h.onSignIn(ctx, user, created); err != nil {
			obs.From(ctx).With("pkg", "auth").Warn("sign_in_hook_failed", "error", err)
		}
	}

	sessionID, err := h.sessions.Create(ctx, user.ID)
	if err != nil {
		obs.From(ctx).With("pkg", "auth").Error("session_create_failed", "error", err)
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}
	h.sessions.SetCookie(w, sessionID)
	obs.From(ctx).With("pkg", "auth").Info("signed_in", "new_user", created)

	target := AfterLoginPath
	if next, err := r.Cookie(nextCookieName); err == nil && urlutil.IsLocalPath(next.Value) {
		target = next.Value
		h.setShortCookie(w, nextCookieName, "", -1)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// HandleLogout ends the session and returns to the landing page.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if sessionID, err := GetFromRequest(r); err == nil {
		if err := h.sessions.Delete(r.Context(), sessionID); err != nil {
			obs.From(r.Context()).With("pkg", "auth").Warn("logout_delete_failed", "error", err)
		}
	}
	h.sessions.ClearCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// WhoamiResponse is the response for the whoami endpoint.
type WhoamiResponse struct {
	UserID        string `json:"user_id,omitempty"`
	Email         string `json:"email,omitempty"`
	Authenticated bool   `json:"authenticated"`
}

// HandleWhoami reports the session's user as JSON.
func (h *Handler) HandleWhoami(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	resp := WhoamiResponse{}
	if sessionID, err := GetFromRequest(r); err == nil {
		if userID, err := h.sessions.Validate(r.Context(), sessionID); err == nil {
			resp.UserID = userID
			resp.Authenticated = true
			if user, err := h.users.Get(r.Context(), userID); err == nil {
				resp.Email = user.Email
			} else if !errors.Is(err, ErrUserNotFound) {
				obs.From(r.Context()).With("pkg", "auth").Warn("whoami_user_lookup_failed", "error", err)
			}
		}
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *Handler) setShortCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.sessions.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}
