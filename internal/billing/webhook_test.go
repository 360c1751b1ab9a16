package billing

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	stripewebhook "github.com/stripe/stripe-go/v82/webhook"
	"pgregory.net/rapid"

	"github.com/kuitang/notesaas/internal/clock"
	"github.com/kuitang/notesaas/internal/db"
	"github.com/kuitang/notesaas/internal/email"
	"github.com/kuitang/notesaas/internal/testdb"
)

const testSecret = "whsec_notesaas_test"

type harness struct {
	db        *db.DB
	fetcher   *MockFetcher
	mailer    *email.MockEmailService
	processor *Processor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	d := testdb.New(t)
	h := &harness{db: d, fetcher: NewMockFetcher(), mailer: email.NewMockEmailService()}
	h.processor = NewProcessor(testSecret, "https://notes.example.com", d, h.fetcher, h.mailer, clock.NewFake(epoch))
	return h
}

func signedEvent(t *testing.T, id, eventType string, object map[string]any) (payload []byte, header string) {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":          id,
		"object":      "event",
		"api_version": stripe.APIVersion,
		"type":        eventType,
		"data":        map[string]any{"object": object},
	})
	require.NoError(t, err)
	signed := stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testSecret,
		Timestamp: time.Now(),
	})
	return signed.Payload, signed.Header
}

func checkoutObject(customerID, subscriptionID string) map[string]any {
	return map[string]any{
		"id":           "cs_test_1",
		"object":       "checkout.session",
		"mode":         "subscription",
		"customer":     customerID,
		"subscription": subscriptionID,
	}
}

func invoiceObject(customerID, subscriptionID string) map[string]any {
	return map[string]any{
		"id":       "in_test_1",
		"object":   "invoice",
		"customer": customerID,
		"parent": map[string]any{
			"type":                 "subscription_details",
			"subscription_details": map[string]any{"subscription": subscriptionID},
		},
	}
}

func processedCount(t *testing.T, d *db.DB) int {
	t.Helper()
	var n int
	require.NoError(t, d.SQL().QueryRow(`SELECT COUNT(*) FROM processed_webhook_events`).Scan(&n))
	return n
}

func TestHandleWebhook_InvalidSignatureTouchesNothing(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	seedCustomer(t, h.db, "u1", "cus_1")
	payload, _ := signedEvent(t, "evt_1", stripeCheckoutCompleted, checkoutObject("cus_1", "sub_1"))

	_, err := h.processor.HandleWebhook(context.Background(), payload, "t=1,v1=deadbeef")
	require.ErrorIs(t, err, ErrInvalidSignature)

	assert.Zero(t, processedCount(t, h.db))
	assert.Zero(t, countSubscriptions(t, h.db, "u1"))
}

func testHandleWebhook_TamperedPayloadRejected(t *rapid.T, h *harness, payload []byte, header string) {
	i := rapid.IntRange(0, len(payload)-1).Draw(t, "index")
	b := rapid.Byte().Filter(func(b byte) bool { return b != payload[i] }).Draw(t, "byte")
	tampered := append([]byte(nil), payload...)
	tampered[i] = b

	_, err := h.processor.HandleWebhook(context.Background(), tampered, header)
	if err == nil {
		t.Fatalf("tampered payload accepted (byte %d)", i)
	}
}

func TestHandleWebhook_TamperedPayloadRejected(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	payload, header := signedEvent(t, "evt_tamper", stripeCheckoutCompleted, checkoutObject("cus_1", "sub_1"))
	rapid.Check(t, func(rt *rapid.T) {
		testHandleWebhook_TamperedPayloadRejected(rt, h, payload, header)
	})
	assert.Zero(t, processedCount(t, h.db))
}

func TestHandleWebhook_CheckoutCreatesSubscriptionAndEmails(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	seedCustomer(t, h.db, "u1", "cus_1")
	h.fetcher.Set("sub_1", Details{
		Status:      "active",
		PlanID:      "price_monthly",
		Interval:    "month",
		PeriodStart: epoch,
		PeriodEnd:   epoch.AddDate(0, 1, 0),
	})
	ctx := context.Background()

	payload, header := signedEvent(t, "evt_checkout", stripeCheckoutCompleted, checkoutObject("cus_1", "sub_1"))
	outcome, err := h.processor.HandleWebhook(ctx, payload, header)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)

	sub, err := h.db.GetSubscriptionByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "sub_1", sub.StripeSubscriptionID)
	assert.Equal(t, "active", sub.Status)

	require.Equal(t, 1, h.mailer.Count())
	sent := h.mailer.LastEmail()
	assert.Equal(t, "u1@example.com", sent.To)
	assert.Equal(t, email.TemplateSubscriptionActive, sent.Template)
	data := sent.Data.(email.SubscriptionActiveData)
	assert.Equal(t, "2026-04-01", data.RenewsOn)
	assert.Equal(t, "https://notes.example.com/dashboard/billing", data.BillingURL)
}

func TestHandleWebhook_RepeatedEventIDIsIdempotent(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	seedCustomer(t, h.db, "u1", "cus_1")
	ctx := context.Background()

	payload, header := signedEvent(t, "evt_repeat", stripeCheckoutCompleted, checkoutObject("cus_1", "sub_1"))
	first, err := h.processor.HandleWebhook(ctx, payload, header)
	require.NoError(t, err)
	second, err := h.processor.HandleWebhook(ctx, payload, header)
	require.NoError(t, err)

	assert.Equal(t, OutcomeCreated, first)
	assert.Equal(t, OutcomeDuplicate, second)
	assert.Equal(t, 1, processedCount(t, h.db))
	assert.Equal(t, 1, countSubscriptions(t, h.db, "u1"))
	assert.Equal(t, 1, h.mailer.Count())
}

func TestHandleWebhook_RedeliveryUnderNewEventIDUpdates(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	seedCustomer(t, h.db, "u1", "cus_1")
	ctx := context.Background()

	for i, id := range []string{"evt_a", "evt_b"} {
		payload, header := signedEvent(t, id, stripeCheckoutCompleted, checkoutObject("cus_1", "sub_1"))
		outcome, err := h.processor.HandleWebhook(ctx, payload, header)
		require.NoError(t, err)
		if i == 0 {
			assert.Equal(t, OutcomeCreated, outcome)
		} else {
			assert.Equal(t, OutcomeUpdated, outcome)
		}
	}
	assert.Equal(t, 1, countSubscriptions(t, h.db, "u1"))
	assert.Equal(t, 1, h.mailer.Count())
}

func TestHandleWebhook_UnknownCustomerIsAcknowledged(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	payload, header := signedEvent(t, "evt_ghost", stripeCheckoutCompleted, checkoutObject("cus_ghost", "sub_1"))
	outcome, err := h.processor.HandleWebhook(ctx, payload, header)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)

	processed, err := h.db.IsWebhookEventProcessed(ctx, "evt_ghost")
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Zero(t, h.mailer.Count())
}

func TestHandleWebhook_InvoiceBeforeCheckoutThenAfter(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	seedCustomer(t, h.db, "u1", "cus_1")
	ctx := context.Background()

	payload, header := signedEvent(t, "evt_invoice_early", stripeInvoicePaymentSucceeded, invoiceObject("cus_1", "sub_1"))
	outcome, err := h.processor.HandleWebhook(ctx, payload, header)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, outcome)
	assert.Zero(t, countSubscriptions(t, h.db, "u1"))

	payload, header = signedEvent(t, "evt_checkout", stripeCheckoutCompleted, checkoutObject("cus_1", "sub_1"))
	_, err = h.processor.HandleWebhook(ctx, payload, header)
	require.NoError(t, err)

	h.fetcher.Set("sub_1", Details{Status: "past_due", PlanID: "price_monthly", Interval: "month"})
	payload, header = signedEvent(t, "evt_invoice_late", stripeInvoicePaymentSucceeded, invoiceObject("cus_1", "sub_1"))
	outcome, err = h.processor.HandleWebhook(ctx, payload, header)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)

	sub, err := h.db.GetSubscription(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, "past_due", sub.Status)
}

func TestHandleWebhook_UnhandledTypeIgnored(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	payload, header := signedEvent(t, "evt_other", "customer.created", map[string]any{"id": "cus_1", "object": "customer"})

	outcome, err := h.processor.HandleWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
	assert.Equal(t, 1, processedCount(t, h.db))
}

func TestHandleWebhook_StorageFailureIsRetryable(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	payload, header := signedEvent(t, "evt_down", stripeCheckoutCompleted, checkoutObject("cus_1", "sub_1"))
	require.NoError(t, h.db.Close())

	outcome, err := h.processor.HandleWebhook(context.Background(), payload, header)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidSignature)
	assert.Equal(t, OutcomeNoop, outcome)
}

func TestDetailsFromStripe(t *testing.T) {
	t.Parallel()
	sub := &stripe.Subscription{
		Status: stripe.SubscriptionStatusActive,
		Items: &stripe.SubscriptionItemList{Data: []*stripe.SubscriptionItem{{
			Price: &stripe.Price{
				ID:        "price_annual",
				Recurring: &stripe.PriceRecurring{Interval: stripe.PriceRecurringIntervalYear},
			},
			CurrentPeriodStart: epoch.Unix(),
			CurrentPeriodEnd:   epoch.AddDate(1, 0, 0).Unix(),
		}}},
	}
	d := detailsFromStripe(sub)
	assert.Equal(t, "active", d.Status)
	assert.Equal(t, "price_annual", d.PlanID)
	assert.Equal(t, "year", d.Interval)
	assert.True(t, d.PeriodEnd.Equal(epoch.AddDate(1, 0, 0)))

	empty := detailsFromStripe(&stripe.Subscription{Status: stripe.SubscriptionStatusIncomplete})
	assert.Equal(t, "incomplete", empty.Status)
	assert.Empty(t, empty.PlanID)
}
