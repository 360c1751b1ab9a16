package web

import (
	"database/sql"
	"errors"
	"log"
	"net/http"

	"github.com/kuitang/notesaas/internal/auth"
	"github.com/kuitang/notesaas/internal/billing"
	"github.com/kuitang/notesaas/internal/urlutil"
)

// HandleBilling shows quota usage, the current subscription and the plan
// buttons.
func (h *WebHandler) HandleBilling(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())
	data := BillingData{
		PageData: h.pageData(r, "Billing", "billing"),
		Usage:    h.usage(r, userID),
		Mock:     h.Billing != nil && h.Billing.IsMock(),
	}
	if h.Subscriptions != nil {
		sub, err := h.Subscriptions.GetSubscriptionByUser(r.Context(), userID)
		switch {
		case err == nil:
			data.Subscription = &sub
		case !errors.Is(err, sql.ErrNoRows):
			logFor(r).Warn("subscription_lookup_failed", "error", err)
		}
	}
	switch r.URL.Query().Get("checkout") {
	case "success":
		data.Flash, data.FlashType = flashMessages["checkout_success"].text, flashMessages["checkout_success"].kind
	case "cancelled":
		data.Flash, data.FlashType = flashMessages["checkout_cancel"].text, flashMessages["checkout_cancel"].kind
	}
	h.render(w, r, http.StatusOK, "billing.html", data)
}

// HandleCheckout starts hosted checkout for the chosen plan.
func (h *WebHandler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	if h.Billing == nil || h.Customers == nil {
		http.Error(w, "billing not configured", http.StatusServiceUnavailable)
		return
	}
	plan, err := billing.ParsePlan(r.FormValue("plan"))
	if err != nil {
		redirectWithFlash(w, r, billingPath, "invalid_plan")
		return
	}
	userID := auth.GetUserID(r.Context())

	customerID, err := h.Customers.EnsureCustomer(r.Context(), userID)
	if err != nil {
		log.Printf("[BILLING] EnsureCustomer failed for user=%s: %v", userID, err)
		redirectWithFlash(w, r, billingPath, "billing_error")
		return
	}
	checkoutURL, err := h.Billing.CreateCheckoutSession(r.Context(), customerID, userID, plan, h.BaseURL)
	if err != nil {
		log.Printf("[BILLING] CreateCheckoutSession error: %v", err)
		redirectWithFlash(w, r, billingPath, "billing_error")
		return
	}
	http.Redirect(w, r, checkoutURL, http.StatusSeeOther)
}

// HandlePortal sends the user to the provider's customer portal.
func (h *WebHandler) HandlePortal(w http.ResponseWriter, r *http.Request) {
	if h.Billing == nil || h.Customers == nil {
		http.Error(w, "billing not configured", http.StatusServiceUnavailable)
		return
	}
	userID := auth.GetUserID(r.Context())
	customerID, err := h.Customers.EnsureCustomer(r.Context(), userID)
	if err != nil {
		log.Printf("[BILLING] EnsureCustomer failed for user=%s: %v", userID, err)
		redirectWithFlash(w, r, billingPath, "billing_error")
		return
	}
	portalURL, err := h.Billing.CreatePortalSession(r.Context(), customerID, urlutil.BuildAbsolute(h.BaseURL, billingPath))
	if err != nil {
		log.Printf("[BILLING] CreatePortalSession error: %v", err)
		redirectWithFlash(w, r, billingPath, "billing_error")
		return
	}
	http.Redirect(w, r, portalURL, http.StatusSeeOther)
}
