package billing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/kuitang/notesaas/internal/clock"
	"github.com/kuitang/notesaas/internal/db"
	"github.com/kuitang/notesaas/internal/email"
	"github.com/kuitang/notesaas/internal/errs"
	"github.com/kuitang/notesaas/internal/obs"
	"github.com/kuitang/notesaas/internal/urlutil"
)

// ErrInvalidSignature is returned when the Stripe-Signature header does not
// verify. Nothing is read or written in that case.
var ErrInvalidSignature = errs.New(errs.InvalidArgument, "invalid webhook signature")

// ProcessorStore is the storage the webhook processor needs. *db.DB
// satisfies it.
type ProcessorStore interface {
	Store
	IsWebhookEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkWebhookEventProcessed(ctx context.Context, eventID string, processedAt int64) error
}

// Processor verifies Stripe webhooks and feeds them to the Reconciler.
type Processor struct {
	secret     string
	baseURL    string
	store      ProcessorStore
	reconciler *Reconciler
	fetcher    SubscriptionFetcher
	mailer     email.EmailService
	clock      clock.Clock
}

// NewProcessor wires a webhook processor. mailer may be nil.
func NewProcessor(webhookSecret, baseURL string, store ProcessorStore, fetcher SubscriptionFetcher, mailer email.EmailService, c clock.Clock) *Processor {
	if c == nil {
		c = clock.Real{}
	}
	return &Processor{
		secret:     webhookSecret,
		baseURL:    baseURL,
		store:      store,
		reconciler: NewReconciler(store, c),
		fetcher:    fetcher,
		mailer:     mailer,
		clock:      c,
	}
}

// Reconciler exposes the processor's reconciler, e.g. for mock checkout.
func (p *Processor) Reconciler() *Reconciler {
	return p.reconciler
}

// HandleWebhook verifies, de-duplicates and applies one Stripe event.
// A returned error other than ErrInvalidSignature means nothing was
// recorded and the provider should redeliver.
func (p *Processor) HandleWebhook(ctx context.Context, payload []byte, sigHeader string) (Outcome, error) {
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, p.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return OutcomeIgnored, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	ctx = obs.WithEventID(ctx, event.ID)

	processed, err := p.store.IsWebhookEventProcessed(ctx, event.ID)
	if err != nil {
		return OutcomeNoop, fmt.Errorf("check webhook idempotency: %w", err)
	}
	if processed {
		log.Printf("[BILLING] Webhook event %s already processed, skipping", event.ID)
		return OutcomeDuplicate, nil
	}

	ev, ok, err := translateStripeEvent(ctx, event, p.fetcher)
	if err != nil {
		return OutcomeNoop, fmt.Errorf("handle %s: %w", event.Type, err)
	}

	outcome := OutcomeIgnored
	if !ok {
		log.Printf("[BILLING] Ignoring webhook event type: %s", event.Type)
	} else {
		outcome, err = p.reconciler.Apply(ctx, ev)
		switch {
		case errors.Is(err, ErrUnknownCustomer), errors.Is(err, ErrMalformedEvent):
			log.Printf("[BILLING] Dropping event %s: %v", event.ID, err)
			outcome = OutcomeIgnored
		case err != nil:
			return OutcomeNoop, fmt.Errorf("handle %s: %w", event.Type, err)
		}
	}

	if err := p.store.MarkWebhookEventProcessed(ctx, event.ID, p.clock.Now().Unix()); err != nil {
		log.Printf("[BILLING] Warning: failed to mark event %s as processed: %v", event.ID, err)
	}

	obs.From(ctx).With("pkg", "billing").Info("webhook_applied", "type", string(event.Type), "outcome", outcome.String())
	if outcome == OutcomeCreated && ev.Details.Status == statusActive {
		p.notifyActive(ctx, ev)
	}
	return outcome, nil
}

func (p *Processor) notifyActive(ctx context.Context, ev Event) {
	if p.mailer == nil {
		return
	}
	user, err := p.store.GetUserByStripeCustomerID(ctx, ev.CustomerID)
	if err != nil {
		log.Printf("[BILLING] Warning: no user for activation email (customer %s): %v", ev.CustomerID, err)
		return
	}
	if err := p.mailer.Send(user.Email, email.TemplateSubscriptionActive, activationData(user, ev, p.baseURL)); err != nil {
		log.Printf("[BILLING] Warning: failed to send activation email to user %s: %v", user.ID, err)
	}
}

func activationData(user db.User, ev Event, baseURL string) email.SubscriptionActiveData {
	data := email.SubscriptionActiveData{
		Name:       user.Name,
		Plan:       ev.Details.PlanID,
		Interval:   ev.Details.Interval,
		BillingURL: urlutil.BuildAbsolute(baseURL, PagePath),
	}
	if data.Name == "" {
		data.Name = user.Email
	}
	if !ev.Details.PeriodEnd.IsZero() {
		data.RenewsOn = ev.Details.PeriodEnd.UTC().Format(time.DateOnly)
	}
	return data
}
