package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/kuitang/notesaas/internal/clock"
	"github.com/kuitang/notesaas/internal/db"
	"github.com/kuitang/notesaas/internal/errs"
)

// EventType names the provider events the reconciler understands.
type EventType string

const (
	EventCheckoutCompleted       EventType = "checkout_completed"
	EventInvoicePaymentSucceeded EventType = "invoice_payment_succeeded"
)

// Details is the subscription state as reported by the provider.
type Details struct {
	Status      string
	PlanID      string
	Interval    string
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// Event is a verified, provider-neutral billing event.
type Event struct {
	ID             string
	Type           EventType
	SubscriptionID string
	CustomerID     string
	Details        Details
}

// Outcome reports what handling an event did to local state.
type Outcome int

const (
	// OutcomeNoop: nothing matched; not an error.
	OutcomeNoop Outcome = iota
	OutcomeCreated
	OutcomeUpdated
	// OutcomeIgnored: the event is not one we act on, or names a customer we
	// do not know.
	OutcomeIgnored
	// OutcomeDuplicate: the event id was already processed.
	OutcomeDuplicate
	// OutcomeStale: a checkout for a subscription that is not active arrived
	// while the user holds a different, active one. The active row is kept.
	OutcomeStale
)

// statusActive is the only status that lifts the note cap.
const statusActive = "active"

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	case OutcomeIgnored:
		return "ignored"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeStale:
		return "stale"
	default:
		return "noop"
	}
}

var (
	// ErrUnknownCustomer means no local user carries the event's customer id.
	// Redelivery cannot fix it, so callers drop the event.
	ErrUnknownCustomer = errs.New(errs.FailedPrecondition, "unknown billing customer")

	ErrMalformedEvent = errs.New(errs.InvalidArgument, "malformed billing event")
)

// Store is the storage the reconciler writes through. *db.DB satisfies it.
type Store interface {
	GetUserByStripeCustomerID(ctx context.Context, stripeCustomerID string) (db.User, error)
	UpdateSubscriptionPeriod(ctx context.Context, arg db.UpdateSubscriptionPeriodParams) (int64, error)
	InTx(ctx context.Context, fn func(*db.Queries) error) error
}

// Reconciler mirrors provider subscription state into the subscriptions
// table. Every write is keyed by the provider subscription id, so applying
// the same event twice leaves the same state.
type Reconciler struct {
	store Store
	clock clock.Clock
}

func NewReconciler(store Store, c clock.Clock) *Reconciler {
	if c == nil {
		c = clock.Real{}
	}
	return &Reconciler{store: store, clock: c}
}

// Apply mutates local subscription state for one verified event.
func (r *Reconciler) Apply(ctx context.Context, ev Event) (Outcome, error) {
	if ev.SubscriptionID == "" {
		return OutcomeIgnored, fmt.Errorf("%w: event %s has no subscription id", ErrMalformedEvent, ev.ID)
	}
	switch ev.Type {
	case EventCheckoutCompleted:
		return r.applyCheckout(ctx, ev)
	case EventInvoicePaymentSucceeded:
		return r.applyPayment(ctx, ev)
	default:
		return OutcomeIgnored, nil
	}
}

func (r *Reconciler) applyCheckout(ctx context.Context, ev Event) (Outcome, error) {
	user, err := r.store.GetUserByStripeCustomerID(ctx, ev.CustomerID)
	if errors.Is(err, sql.ErrNoRows) || ev.CustomerID == "" {
		return OutcomeIgnored, fmt.Errorf("%w: customer=%q event=%s", ErrUnknownCustomer, ev.CustomerID, ev.ID)
	}
	if err != nil {
		return OutcomeNoop, fmt.Errorf("look up customer %s: %w", ev.CustomerID, err)
	}

	now := r.clock.Now().UTC().Unix()
	outcome := OutcomeCreated
	err = r.store.InTx(ctx, func(q *db.Queries) error {
		existing, err := q.GetSubscription(ctx, ev.SubscriptionID)
		switch {
		case err == nil && existing.UserID == user.ID:
			outcome = OutcomeUpdated
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("read subscription: %w", err)
		}

		// Checkouts of different subscriptions can arrive in any order.
		// An inactive one never displaces an active one.
		current, err := q.GetSubscriptionByUser(ctx, user.ID)
		switch {
		case err == nil && current.StripeSubscriptionID != ev.SubscriptionID &&
			current.Status == statusActive && ev.Details.Status != statusActive:
			outcome = OutcomeStale
			return nil
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("read current subscription: %w", err)
		}

		replaced, err := q.DeleteOtherSubscriptions(ctx, db.DeleteOtherSubscriptionsParams{
			UserID:               user.ID,
			StripeSubscriptionID: ev.SubscriptionID,
		})
		if err != nil {
			return fmt.Errorf("replace previous subscription: %w", err)
		}
		if replaced > 0 {
			log.Printf("[BILLING] Replaced %d previous subscription(s) for user %s", replaced, user.ID)
		}

		return q.UpsertSubscription(ctx, db.UpsertSubscriptionParams{
			StripeSubscriptionID: ev.SubscriptionID,
			UserID:               user.ID,
			Status:               ev.Details.Status,
			PlanID:               ev.Details.PlanID,
			Interval:             ev.Details.Interval,
			CurrentPeriodStart:   unixOrZero(ev.Details.PeriodStart),
			CurrentPeriodEnd:     unixOrZero(ev.Details.PeriodEnd),
			Now:                  now,
		})
	})
	if err != nil {
		return OutcomeNoop, fmt.Errorf("store subscription %s: %w", ev.SubscriptionID, err)
	}

	if outcome == OutcomeStale {
		log.Printf("[BILLING] Keeping active subscription for user %s; %s arrived with status=%s",
			user.ID, ev.SubscriptionID, ev.Details.Status)
		return outcome, nil
	}
	log.Printf("[BILLING] Subscription %s for user %s %s: status=%s plan=%s",
		ev.SubscriptionID, user.ID, outcome, ev.Details.Status, ev.Details.PlanID)
	return outcome, nil
}

func (r *Reconciler) applyPayment(ctx context.Context, ev Event) (Outcome, error) {
	updated, err := r.store.UpdateSubscriptionPeriod(ctx, db.UpdateSubscriptionPeriodParams{
		StripeSubscriptionID: ev.SubscriptionID,
		Status:               ev.Details.Status,
		PlanID:               ev.Details.PlanID,
		Interval:             ev.Details.Interval,
		CurrentPeriodStart:   unixOrZero(ev.Details.PeriodStart),
		CurrentPeriodEnd:     unixOrZero(ev.Details.PeriodEnd),
		UpdatedAt:            r.clock.Now().UTC().Unix(),
	})
	if err != nil {
		return OutcomeNoop, fmt.Errorf("update subscription %s: %w", ev.SubscriptionID, err)
	}
	if updated == 0 {
		// The invoice can arrive before checkout.session.completed.
		log.Printf("[BILLING] No local subscription %s yet, payment event %s is a no-op", ev.SubscriptionID, ev.ID)
		return OutcomeNoop, nil
	}
	log.Printf("[BILLING] Subscription %s renewed: status=%s period_end=%s",
		ev.SubscriptionID, ev.Details.Status, ev.Details.PeriodEnd.UTC().Format(time.DateOnly))
	return OutcomeUpdated, nil
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
