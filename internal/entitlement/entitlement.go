// Package entitlement decides whether a user may hold another live note.
// Free users are capped at FreeNoteLimit; an active subscription lifts the cap.
package entitlement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kuitang/notesaas/internal/db"
	"github.com/kuitang/notesaas/internal/errs"
)

const (
	// FreeNoteLimit is the live-note cap without an active subscription.
	FreeNoteLimit = 10

	// ApproachingLimitAt is the live-note count at which the dashboard warns.
	ApproachingLimitAt = 8

	// Unlimited is reported as Remaining for subscribers.
	Unlimited = -1

	// ReasonQuota explains a denied Decision.
	ReasonQuota = "quota"

	// StatusActive is the only subscription status that lifts the cap.
	StatusActive = "active"
)

// ErrUnauthorized is returned when no user identity is supplied.
var ErrUnauthorized = errs.New(errs.Unauthenticated, "sign in required")

// Store is the read-only slice of storage the resolver needs.
// *db.Queries and *db.DB satisfy it.
type Store interface {
	GetSubscriptionByUser(ctx context.Context, userID string) (db.Subscription, error)
	CountNotes(ctx context.Context, userID string) (int64, error)
}

// Decision is the outcome of CanCreateNote.
type Decision struct {
	Allowed   bool
	Reason    string
	Remaining int
	Active    bool
}

// Usage summarizes a user's note quota for display.
type Usage struct {
	Count       int
	Limit       int
	Remaining   int
	Active      bool
	Approaching bool
	AtLimit     bool
}

// Resolver answers entitlement questions from current storage state.
// It never writes.
type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// IsActive reports whether the user holds a subscription with status active.
// A missing subscription row is the free tier, not an error.
func (r *Resolver) IsActive(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, ErrUnauthorized
	}
	sub, err := r.store.GetSubscriptionByUser(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load subscription: %w", err)
	}
	return sub.Status == StatusActive, nil
}

// CanCreateNote decides whether userID may add one more live note.
// The count is read at call time, so two concurrent creates at count 9 can
// both be allowed; the cap is soft by one.
func (r *Resolver) CanCreateNote(ctx context.Context, userID string) (Decision, error) {
	u, err := r.Usage(ctx, userID)
	if err != nil {
		return Decision{}, err
	}
	if u.Active {
		return Decision{Allowed: true, Remaining: Unlimited, Active: true}, nil
	}
	if u.Count < FreeNoteLimit {
		return Decision{Allowed: true, Remaining: FreeNoteLimit - u.Count}, nil
	}
	return Decision{Allowed: false, Reason: ReasonQuota, Remaining: 0}, nil
}

// Usage reports the user's live-note count against the free limit.
func (r *Resolver) Usage(ctx context.Context, userID string) (Usage, error) {
	active, err := r.IsActive(ctx, userID)
	if err != nil {
		return Usage{}, err
	}
	count, err := r.store.CountNotes(ctx, userID)
	if err != nil {
		return Usage{}, fmt.Errorf("failed to count notes: %w", err)
	}

	u := Usage{Count: int(count), Limit: FreeNoteLimit, Active: active}
	if active {
		u.Limit = Unlimited
		u.Remaining = Unlimited
		return u, nil
	}
	u.Remaining = max(FreeNoteLimit-u.Count, 0)
	u.Approaching = u.Count >= ApproachingLimitAt && u.Count < FreeNoteLimit
	u.AtLimit = u.Count >= FreeNoteLimit
	return u, nil
}
