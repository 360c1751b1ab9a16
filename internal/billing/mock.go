package billing

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sync/atomic"

	"github.com/kuitang/notesaas/internal/clock"
	"github.com/kuitang/notesaas/internal/urlutil"
)

// MockService implements BillingService without Stripe (--test, --no-stripe).
// When built with a Reconciler, checkout activates the subscription at once
// so the paid tier can be exercised locally.
type MockService struct {
	reconciler *Reconciler
	clock      clock.Clock
	seq        atomic.Int64
}

// NewMockService creates a mock billing service. reconciler may be nil.
func NewMockService(reconciler *Reconciler, c clock.Clock) *MockService {
	if c == nil {
		c = clock.Real{}
	}
	log.Println("[BILLING] Using mock billing service")
	return &MockService{reconciler: reconciler, clock: c}
}

func (m *MockService) IsMock() bool { return true }

func (m *MockService) CreateCustomer(_ context.Context, userID, email, _ string) (string, error) {
	log.Printf("[BILLING-MOCK] CreateCustomer: userID=%s email=%s", userID, email)
	return "cus_mock_" + userID, nil
}

func (m *MockService) CreateCheckoutSession(ctx context.Context, customerID, userID string, plan Plan, baseURL string) (string, error) {
	if _, err := ParsePlan(string(plan)); err != nil {
		return "", err
	}
	log.Printf("[BILLING-MOCK] CreateCheckoutSession: customer=%s plan=%s", customerID, plan)

	if m.reconciler != nil {
		now := m.clock.Now().UTC()
		interval, end := "month", now.AddDate(0, 1, 0)
		if plan == PlanAnnual {
			interval, end = "year", now.AddDate(1, 0, 0)
		}
		n := m.seq.Add(1)
		_, err := m.reconciler.Apply(ctx, Event{
			ID:             fmt.Sprintf("evt_mock_%d", n),
			Type:           EventCheckoutCompleted,
			SubscriptionID: "sub_mock_" + userID,
			CustomerID:     customerID,
			Details: Details{
				Status:      "active",
				PlanID:      "price_mock_" + string(plan),
				Interval:    interval,
				PeriodStart: now,
				PeriodEnd:   end,
			},
		})
		if err != nil {
			return "", fmt.Errorf("mock checkout: %w", err)
		}
	}
	return urlutil.BuildAbsolute(baseURL, PagePath+"?checkout=success&mock="+url.QueryEscape(string(plan))), nil
}

func (m *MockService) CreatePortalSession(_ context.Context, customerID, returnURL string) (string, error) {
	log.Printf("[BILLING-MOCK] CreatePortalSession: customer=%s", customerID)
	return returnURL + "?mock_portal=true", nil
}
