// Package notes implements the note lifecycle: live notes, the recycle bin,
// and the moves between them. A note id lives in at most one of the two
// tables at any time.
package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kuitang/notesaas/internal/clock"
	"github.com/kuitang/notesaas/internal/db"
)

// Service handles note operations for any user; every call names its user.
type Service struct {
	store       Store
	tx          Transactor
	entitlement Entitlements
	clock       clock.Clock
	newID       func() string
}

// Option configures a Service.
type Option func(*Service)

// WithTransactor makes bin moves run in a real transaction instead of the
// compensating fallback.
func WithTransactor(tx Transactor) Option {
	return func(s *Service) { s.tx = tx }
}

// WithClock replaces the clock. Intended for tests.
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithIDGenerator replaces uuid.NewString. Intended for tests.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// NewService creates a notes service over store, gated by ent.
func NewService(store Store, ent Entitlements, opts ...Option) *Service {
	s := &Service{
		store:       store,
		entitlement: ent,
		clock:       clock.Real{},
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create adds a live note after the entitlement check.
func (s *Service) Create(ctx context.Context, userID string, in Input) (*Note, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	title, description, err := normalize(in)
	if err != nil {
		return nil, err
	}
	if err := s.checkQuota(ctx, userID); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC().Unix()
	row := db.CreateNoteParams{
		ID:          s.newID(),
		UserID:      userID,
		Title:       title,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateNote(ctx, row); err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}

	n := fromDB(db.Note(row))
	return &n, nil
}

// Get returns a live note owned by userID.
func (s *Service) Get(ctx context.Context, userID, noteID string) (*Note, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	row, err := s.store.GetNote(ctx, db.GetNoteParams{ID: noteID, UserID: userID})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read note: %w", err)
	}
	n := fromDB(row)
	return &n, nil
}

// List returns the user's live notes, pinned first, then newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Note, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	rows, err := s.store.ListNotes(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	out := make([]Note, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromDB(r))
	}
	return out, nil
}

// Update overwrites title and description of a live note.
func (s *Service) Update(ctx context.Context, userID, noteID string, in Input) (*Note, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	title, description, err := normalize(in)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC().Unix()
	affected, err := s.store.UpdateNote(ctx, db.UpdateNoteParams{
		ID:          noteID,
		UserID:      userID,
		Title:       title,
		Description: description,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update note: %w", err)
	}
	if affected == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, userID, noteID)
}

// TogglePin flips the pinned flag. The flag is re-read immediately before
// the write; two concurrent toggles may both read the same value, in which
// case the last writer wins.
func (s *Service) TogglePin(ctx context.Context, userID, noteID string) (*Note, error) {
	current, err := s.Get(ctx, userID, noteID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC().Unix()
	affected, err := s.store.SetNotePinned(ctx, db.SetNotePinnedParams{
		ID:        noteID,
		UserID:    userID,
		Pinned:    boolToInt(!current.Pinned),
		UpdatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to toggle pin: %w", err)
	}
	if affected == 0 {
		// Binned between the read and the write.
		return nil, ErrNotFound
	}
	current.Pinned = !current.Pinned
	current.UpdatedAt = time.Unix(now, 0).UTC()
	return current, nil
}

func (s *Service) checkQuota(ctx context.Context, userID string) error {
	decision, err := s.entitlement.CanCreateNote(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to check entitlement: %w", err)
	}
	if !decision.Allowed {
		return ErrQuotaExceeded
	}
	return nil
}
