// Package billing connects users to Stripe: customers, hosted checkout, the
// customer portal, and the webhook-driven mirror of subscription state.
package billing

import (
	"context"
	"fmt"
	"log"

	"github.com/stripe/stripe-go/v82"
	portalsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"

	"github.com/kuitang/notesaas/internal/errs"
	"github.com/kuitang/notesaas/internal/urlutil"
)

// Plan is a purchasable billing interval.
type Plan string

const (
	PlanMonthly Plan = "monthly"
	PlanAnnual  Plan = "annual"
)

// PagePath is the billing page checkout and the portal return to.
const PagePath = "/dashboard/billing"

var ErrInvalidPlan = errs.New(errs.InvalidArgument, "unknown plan")

// ParsePlan validates a plan name from a form.
func ParsePlan(s string) (Plan, error) {
	switch p := Plan(s); p {
	case PlanMonthly, PlanAnnual:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q (must be 'monthly' or 'annual')", ErrInvalidPlan, s)
	}
}

// BillingService is the provider surface used by the web layer.
type BillingService interface {
	CreateCustomer(ctx context.Context, userID, email, name string) (customerID string, err error)
	// CreateCheckoutSession returns the URL the browser is sent to.
	CreateCheckoutSession(ctx context.Context, customerID, userID string, plan Plan, baseURL string) (checkoutURL string, err error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (portalURL string, err error)
	IsMock() bool
}

// Config holds Stripe billing configuration.
type Config struct {
	SecretKey     string
	WebhookSecret string
	PriceMonthly  string
	PriceAnnual   string
}

// Service implements BillingService with real Stripe API calls.
type Service struct {
	config Config
}

// NewService sets the global Stripe key and returns the real service.
func NewService(cfg Config) *Service {
	stripe.Key = cfg.SecretKey
	log.Printf("[BILLING] Initialized Stripe billing service")
	return &Service{config: cfg}
}

func (s *Service) IsMock() bool { return false }

func (s *Service) CreateCustomer(ctx context.Context, userID, email, name string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID)

	c, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("create customer: %w", err)
	}
	log.Printf("[BILLING] Created Stripe customer %s for user %s", c.ID, userID)
	return c.ID, nil
}

func (s *Service) priceFor(plan Plan) (string, error) {
	switch plan {
	case PlanMonthly:
		return s.config.PriceMonthly, nil
	case PlanAnnual:
		return s.config.PriceAnnual, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPlan, plan)
	}
}

// CreateCheckoutSession creates a hosted Checkout session for a subscription.
func (s *Service) CreateCheckoutSession(ctx context.Context, customerID, userID string, plan Plan, baseURL string) (string, error) {
	priceID, err := s.priceFor(plan)
	if err != nil {
		return "", err
	}

	params := &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer: stripe.String(customerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		ClientReferenceID: stripe.String(userID),
		SuccessURL:        stripe.String(urlutil.BuildAbsolute(baseURL, PagePath+"?checkout=success")),
		CancelURL:         stripe.String(urlutil.BuildAbsolute(baseURL, PagePath+"?checkout=cancelled")),
	}
	params.Context = ctx

	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

// CreatePortalSession creates a Stripe Customer Portal session.
func (s *Service) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	sess, err := portalsession.New(params)
	if err != nil {
		return "", fmt.Errorf("create portal session: %w", err)
	}
	return sess.URL, nil
}
