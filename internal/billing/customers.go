package billing

import (
	"context"
	"fmt"

	"github.com/kuitang/notesaas/internal/clock"
	"github.com/kuitang/notesaas/internal/db"
)

// CustomerStore persists the user to provider-customer link.
type CustomerStore interface {
	GetUser(ctx context.Context, id string) (db.User, error)
	SetStripeCustomerID(ctx context.Context, arg db.SetStripeCustomerIDParams) (int64, error)
}

// Customers links local users to provider customers.
type Customers struct {
	store CustomerStore
	svc   BillingService
	clock clock.Clock
}

func NewCustomers(store CustomerStore, svc BillingService, c clock.Clock) *Customers {
	if c == nil {
		c = clock.Real{}
	}
	return &Customers{store: store, svc: svc, clock: c}
}

// EnsureCustomer returns the user's provider customer id, creating and
// storing one on first use. Webhooks resolve users through this id.
func (c *Customers) EnsureCustomer(ctx context.Context, userID string) (string, error) {
	user, err := c.store.GetUser(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load user %s: %w", userID, err)
	}
	if user.StripeCustomerID.Valid && user.StripeCustomerID.String != "" {
		return user.StripeCustomerID.String, nil
	}

	customerID, err := c.svc.CreateCustomer(ctx, user.ID, user.Email, user.Name)
	if err != nil {
		return "", err
	}
	_, err = c.store.SetStripeCustomerID(ctx, db.SetStripeCustomerIDParams{
		ID:               user.ID,
		StripeCustomerID: customerID,
		UpdatedAt:        c.clock.Now().UTC().Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("store customer id for user %s: %w", user.ID, err)
	}
	return customerID, nil
}
