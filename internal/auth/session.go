package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kuitang/notesaas/internal/clock"
	"github.com/kuitang/notesaas/internal/crypto"
	"github.com/kuitang/notesaas/internal/db"
)

var ErrSessionNotFound = errors.New("session not found")

const (
	SessionDuration   = 30 * 24 * time.Hour
	SessionIDLength   = 32 // bytes; 256 bits
	SessionCookieName = "session_id"
)

// SessionStore persists sessions. Only the SHA3 hash of a session id is
// stored. *db.DB satisfies it.
type SessionStore interface {
	CreateSession(ctx context.Context, arg db.CreateSessionParams) error
	GetValidSession(ctx context.Context, arg db.GetValidSessionParams) (db.Session, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context, now int64) (int64, error)
}

// SessionService issues and checks browser sessions.
type SessionService struct {
	store SessionStore
	clock clock.Clock
	// Secure marks cookies Secure; off only for plain-http local runs.
	Secure bool
}

func NewSessionService(store SessionStore, c clock.Clock, secure bool) *SessionService {
	if c == nil {
		c = clock.Real{}
	}
	return &SessionService{store: store, clock: c, Secure: secure}
}

// Create starts a session for userID and returns the id for the cookie.
func (s *SessionService) Create(ctx context.Context, userID string) (string, error) {
	sessionID, err := crypto.RandomToken(SessionIDLength)
	if err != nil {
		return "", fmt.Errorf("generate session ID: %w", err)
	}
	now := s.clock.Now()
	err = s.store.CreateSession(ctx, db.CreateSessionParams{
		Token:     sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(SessionDuration).Unix(),
		CreatedAt: now.Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return sessionID, nil
}

// Validate returns the user id of an unexpired session.
func (s *SessionService) Validate(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", ErrSessionNotFound
	}
	session, err := s.store.GetValidSession(ctx, db.GetValidSessionParams{
		Token: sessionID,
		Now:   s.clock.Now().Unix(),
	})
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get session: %w", err)
	}
	return session.UserID, nil
}

// Delete ends a session (logout).
func (s *SessionService) Delete(ctx context.Context, sessionID string) error {
	if err := s.store.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Cleanup removes expired sessions and reports how many.
func (s *SessionService) Cleanup(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteExpiredSessions(ctx, s.clock.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("cleanup expired sessions: %w", err)
	}
	return n, nil
}

// SetCookie writes the session cookie.
func (s *SessionService) SetCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(SessionDuration.Seconds()),
	})
}

// ClearCookie expires the session cookie.
func (s *SessionService) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// GetFromRequest reads the session id from the request cookie.
func GetFromRequest(r *http.Request) (string, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if errors.Is(err, http.ErrNoCookie) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}
