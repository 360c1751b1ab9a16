package web

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/kuitang/notesaas/internal/billing"
	"github.com/kuitang/notesaas/internal/logutil"
)

// maxWebhookBytes matches the payload cap Stripe documents for events.
const maxWebhookBytes = 65536

// HandleStripeWebhook answers 400 when the signature fails, 200 when the
// event was applied or deliberately ignored, and 500 when nothing could
// be recorded so Stripe redelivers.
func (h *WebHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.Webhooks == nil {
		http.Error(w, "billing not configured", http.StatusServiceUnavailable)
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		log.Printf("[BILLING] Webhook body read failed: %v", err)
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	outcome, err := h.Webhooks.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if errors.Is(err, billing.ErrInvalidSignature) {
		log.Printf("[BILLING] Webhook rejected: %v headers=%s", err, logutil.Headers(r.Header))
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}
	if err != nil {
		log.Printf("[BILLING] Webhook error: %v payload=%s", err, logutil.EventPreview(payload, 512))
		http.Error(w, "webhook processing failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"received": true, "outcome": outcome.String()})
}
