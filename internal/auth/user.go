package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kuitang/notesaas/internal/clock"
	"github.com/kuitang/notesaas/internal/db"
	"github.com/kuitang/notesaas/internal/email"
	"github.com/kuitang/notesaas/internal/errs"
	"github.com/kuitang/notesaas/internal/obs"
	"github.com/kuitang/notesaas/internal/urlutil"
)

// ColorSchemes are the selectable page themes; the first is the default.
var ColorSchemes = []string{
	"theme-green",
	"theme-blue",
	"theme-violet",
	"theme-yellow",
	"theme-orange",
	"theme-red",
	"theme-rose",
}

const MaxNameRunes = 100

var (
	ErrUserNotFound       = errs.New(errs.NotFound, "user not found")
	ErrInvalidColorScheme = errs.New(errs.InvalidArgument, "unknown color scheme")
	ErrInvalidName        = errs.New(errs.InvalidArgument, "name must be 1-100 characters")
)

// UserStore is the user storage the service needs. *db.DB satisfies it.
type UserStore interface {
	CreateUser(ctx context.Context, arg db.CreateUserParams) error
	GetUser(ctx context.Context, id string) (db.User, error)
	GetUserByEmail(ctx context.Context, email string) (db.User, error)
	UpdateProfile(ctx context.Context, arg db.UpdateProfileParams) (int64, error)
}

// UserService creates accounts on first sign-in and edits profiles.
type UserService struct {
	store   UserStore
	mailer  email.EmailService
	baseURL string
	clock   clock.Clock
	newID   func() string
}

// NewUserService creates a user service. mailer may be nil.
func NewUserService(store UserStore, mailer email.EmailService, baseURL string, c clock.Clock) *UserService {
	if c == nil {
		c = clock.Real{}
	}
	return &UserService{
		store:   store,
		mailer:  mailer,
		baseURL: strings.TrimRight(baseURL, "/"),
		clock:   c,
		newID:   uuid.NewString,
	}
}

// EnsureUser returns the account for the claims' email, creating it on
// first sign-in. created reports whether a new account was made.
func (s *UserService) EnsureUser(ctx context.Context, claims *Claims) (user db.User, created bool, err error) {
	addr := strings.ToLower(strings.TrimSpace(claims.Email))
	if addr == "" {
		return db.User{}, false, errs.New(errs.InvalidArgument, "identity provider returned no email")
	}

	user, err = s.store.GetUserByEmail(ctx, addr)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return db.User{}, false, fmt.Errorf("look up user: %w", err)
	}

	name := strings.TrimSpace(claims.Name)
	if name == "" {
		name, _, _ = strings.Cut(addr, "@")
	}
	params := db.CreateUserParams{
		ID:        s.newID(),
		Email:     addr,
		Name:      truncateRunes(name, MaxNameRunes),
		CreatedAt: s.clock.Now().UTC().Unix(),
	}
	if err := s.store.CreateUser(ctx, params); err != nil {
		// A concurrent first sign-in may have won the unique email.
		if existing, getErr := s.store.GetUserByEmail(ctx, addr); getErr == nil {
			return existing, false, nil
		}
		return db.User{}, false, fmt.Errorf("create user: %w", err)
	}

	user, err = s.store.GetUser(ctx, params.ID)
	if err != nil {
		return db.User{}, false, fmt.Errorf("read new user: %w", err)
	}
	s.sendWelcome(ctx, user)
	return user, true, nil
}

func (s *UserService) sendWelcome(ctx context.Context, user db.User) {
	if s.mailer == nil {
		return
	}
	err := s.mailer.Send(user.Email, email.TemplateWelcome, email.WelcomeData{
		Name:         user.Name,
		DashboardURL: urlutil.BuildAbsolute(s.baseURL, AfterLoginPath),
	})
	if err != nil {
		obs.From(ctx).With("pkg", "auth").Warn("welcome_email_failed", "error", err)
	}
}

// Get returns a user by id.
func (s *UserService) Get(ctx context.Context, userID string) (db.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return db.User{}, ErrUserNotFound
	}
	if err != nil {
		return db.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// UpdateProfile sets the display name and color scheme.
func (s *UserService) UpdateProfile(ctx context.Context, userID, name, colorScheme string) error {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > MaxNameRunes {
		return ErrInvalidName
	}
	if !slices.Contains(ColorSchemes, colorScheme) {
		return ErrInvalidColorScheme
	}
	n, err := s.store.UpdateProfile(ctx, db.UpdateProfileParams{
		ID:          userID,
		Name:        name,
		ColorScheme: colorScheme,
		UpdatedAt:   s.clock.Now().UTC().Unix(),
	})
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
