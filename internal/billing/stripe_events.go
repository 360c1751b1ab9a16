package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/subscription"
)

const (
	stripeCheckoutCompleted       = "checkout.session.completed"
	stripeInvoicePaymentSucceeded = "invoice.payment_succeeded"
)

// SubscriptionFetcher reads the current state of a subscription from the
// provider. Webhook payloads carry only ids, so details are fetched.
type SubscriptionFetcher interface {
	FetchSubscription(ctx context.Context, subscriptionID string) (Details, error)
}

// StripeFetcher reads subscriptions through the Stripe API using the
// package-level key set by NewStripeService.
type StripeFetcher struct{}

func (StripeFetcher) FetchSubscription(ctx context.Context, subscriptionID string) (Details, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := subscription.Get(subscriptionID, params)
	if err != nil {
		return Details{}, fmt.Errorf("retrieve subscription %s: %w", subscriptionID, err)
	}
	return detailsFromStripe(sub), nil
}

func detailsFromStripe(sub *stripe.Subscription) Details {
	d := Details{Status: string(sub.Status)}
	if sub.Items == nil || len(sub.Items.Data) == 0 {
		return d
	}
	item := sub.Items.Data[0]
	if item.Price != nil {
		d.PlanID = item.Price.ID
		if item.Price.Recurring != nil {
			d.Interval = string(item.Price.Recurring.Interval)
		}
	}
	if item.CurrentPeriodStart > 0 {
		d.PeriodStart = time.Unix(item.CurrentPeriodStart, 0).UTC()
	}
	if item.CurrentPeriodEnd > 0 {
		d.PeriodEnd = time.Unix(item.CurrentPeriodEnd, 0).UTC()
	}
	return d
}

// MockFetcher serves subscription details from memory.
type MockFetcher struct {
	mu   sync.Mutex
	subs map[string]Details
	// Default answers ids that were never Set.
	Default Details
}

func NewMockFetcher() *MockFetcher {
	return &MockFetcher{
		subs: make(map[string]Details),
		Default: Details{
			Status:   "active",
			PlanID:   "price_mock_monthly",
			Interval: "month",
		},
	}
}

// Set registers the details returned for subscriptionID.
func (m *MockFetcher) Set(subscriptionID string, d Details) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[subscriptionID] = d
}

func (m *MockFetcher) FetchSubscription(_ context.Context, subscriptionID string) (Details, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.subs[subscriptionID]; ok {
		return d, nil
	}
	return m.Default, nil
}

// translateStripeEvent converts a verified Stripe event into a reconciler
// Event. ok is false for event types (or shapes) we do not act on.
func translateStripeEvent(ctx context.Context, event stripe.Event, fetcher SubscriptionFetcher) (ev Event, ok bool, err error) {
	ev = Event{ID: event.ID}

	switch event.Type {
	case stripeCheckoutCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return ev, false, fmt.Errorf("unmarshal checkout session: %w", err)
		}
		if sess.Subscription == nil || sess.Subscription.ID == "" {
			// One-off payments carry no subscription.
			return ev, false, nil
		}
		ev.Type = EventCheckoutCompleted
		ev.SubscriptionID = sess.Subscription.ID
		if sess.Customer != nil {
			ev.CustomerID = sess.Customer.ID
		}

	case stripeInvoicePaymentSucceeded:
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return ev, false, fmt.Errorf("unmarshal invoice: %w", err)
		}
		if invoice.Parent == nil || invoice.Parent.SubscriptionDetails == nil ||
			invoice.Parent.SubscriptionDetails.Subscription == nil {
			return ev, false, nil
		}
		ev.Type = EventInvoicePaymentSucceeded
		ev.SubscriptionID = invoice.Parent.SubscriptionDetails.Subscription.ID
		if invoice.Customer != nil {
			ev.CustomerID = invoice.Customer.ID
		}

	default:
		return ev, false, nil
	}

	ev.Details, err = fetcher.FetchSubscription(ctx, ev.SubscriptionID)
	if err != nil {
		return ev, false, err
	}
	return ev, true, nil
}
