package web

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/kuitang/notesaas/internal/auth"
	"github.com/kuitang/notesaas/internal/billing"
	"github.com/kuitang/notesaas/internal/db"
	"github.com/kuitang/notesaas/internal/entitlement"
	"github.com/kuitang/notesaas/internal/export"
	"github.com/kuitang/notesaas/internal/notes"
	"github.com/kuitang/notesaas/internal/urlutil"
)

// SubscriptionReader reads the mirrored subscription row. *db.DB
// satisfies it.
type SubscriptionReader interface {
	GetSubscriptionByUser(ctx context.Context, userID string) (db.Subscription, error)
}

// Deps are the services the web handlers call. Exporter and Limit may be
// nil; the export button and rate limiting are then disabled.
type Deps struct {
	Renderer      *Renderer
	Notes         *notes.Service
	Users         *auth.UserService
	Entitlements  *entitlement.Resolver
	Subscriptions SubscriptionReader
	Billing       billing.BillingService
	Customers     *billing.Customers
	Webhooks      *billing.Processor
	Exporter      *export.Exporter
	// Limit wraps mutating routes, usually ratelimit.Middleware.
	Limit   func(http.Handler) http.Handler
	BaseURL string
}

// WebHandler serves the pages and form actions.
type WebHandler struct {
	Deps
}

func NewWebHandler(deps Deps) *WebHandler {
	deps.BaseURL = strings.TrimRight(deps.BaseURL, "/")
	return &WebHandler{Deps: deps}
}

// RegisterRoutes registers every page, form action and the webhook.
func (h *WebHandler) RegisterRoutes(mux *http.ServeMux, mw *auth.Middleware) {
	page := func(fn http.HandlerFunc) http.Handler { return mw.RequireAuth(fn) }
	action := func(fn http.HandlerFunc) http.Handler {
		var next http.Handler = fn
		if h.Limit != nil {
			next = h.Limit(next)
		}
		return mw.RequireAuth(next)
	}

	mux.Handle("GET /{$}", mw.OptionalAuth(http.HandlerFunc(h.HandleLanding)))
	mux.Handle("GET /login", mw.OptionalAuth(http.HandlerFunc(h.HandleLogin)))

	mux.Handle("GET /dashboard", page(h.HandleDashboard))
	mux.Handle("GET /dashboard/new", page(h.HandleNewNotePage))
	mux.Handle("POST /dashboard/new", action(h.HandleCreateNote))
	mux.Handle("GET /dashboard/show/{id}", page(h.HandleShowNote))
	mux.Handle("GET /dashboard/new/{id}", page(h.HandleEditNotePage))
	mux.Handle("POST /dashboard/new/{id}", action(h.HandleUpdateNote))
	mux.Handle("POST /dashboard/notes/{id}/pin", action(h.HandleTogglePin))
	mux.Handle("POST /dashboard/notes/{id}/delete", action(h.HandleSoftDelete))

	mux.Handle("GET /dashboard/recycle-bin", page(h.HandleRecycleBin))
	mux.Handle("POST /dashboard/recycle-bin/{id}/restore", action(h.HandleRestore))
	mux.Handle("POST /dashboard/recycle-bin/{id}/purge", action(h.HandlePurge))
	mux.Handle("POST /dashboard/recycle-bin/empty", action(h.HandleEmptyBin))

	mux.Handle("GET /dashboard/settings", page(h.HandleSettings))
	mux.Handle("POST /dashboard/settings", action(h.HandleUpdateSettings))
	mux.Handle("POST /dashboard/settings/export", action(h.HandleExport))

	mux.Handle("GET /dashboard/billing", page(h.HandleBilling))
	mux.Handle("POST /dashboard/billing/checkout", action(h.HandleCheckout))
	mux.Handle("POST /dashboard/billing/portal", action(h.HandlePortal))

	mux.HandleFunc("POST /api/webhook/stripe", h.HandleStripeWebhook)
}

// PageData is the layout data every page gets.
type PageData struct {
	Title     string
	User      *db.User
	Theme     string
	Nav       string
	Flash     string
	FlashType string // "success", "error", "info"
	Error     string
}

type LoginPageData struct {
	PageData
	Next string
}

type DashboardData struct {
	PageData
	Notes []notes.Note
	Usage entitlement.Usage
}

type NoteFormData struct {
	PageData
	// Note is nil on the new-note page.
	Note        *notes.Note
	FormTitle   string
	Description string
	Format      notes.Format
	Usage       entitlement.Usage
}

type NoteViewData struct {
	PageData
	Note *notes.Note
}

type RecycleBinData struct {
	PageData
	Entries       []notes.BinEntry
	RetentionDays int
	Usage         entitlement.Usage
}

type SettingsData struct {
	PageData
	Name          string
	ColorScheme   string
	ColorSchemes  []string
	ExportEnabled bool
}

type BillingData struct {
	PageData
	Usage        entitlement.Usage
	Subscription *db.Subscription
	Mock         bool
}

type ErrorPageData struct {
	PageData
	Message   string
	ErrorCode int
}

// flashMessages maps the ?flash= codes redirects carry to display text.
var flashMessages = map[string]struct{ text, kind string }{
	"created":          {"Note created.", "success"},
	"updated":          {"Note saved.", "success"},
	"deleted":          {"Note moved to the recycle bin.", "success"},
	"restored":         {"Note restored.", "success"},
	"purged":           {"Note permanently deleted.", "success"},
	"emptied":          {"Recycle bin emptied.", "success"},
	"settings_saved":   {"Settings saved.", "success"},
	"not_found":        {"That note no longer exists.", "error"},
	"quota":            {"You have reached the free plan's note limit. Subscribe to keep writing.", "error"},
	"checkout_success": {"Thanks! Your subscription is being activated.", "success"},
	"checkout_cancel":  {"Checkout cancelled.", "info"},
	"export_disabled":  {"Export is not available on this server.", "error"},
	"billing_error":    {"The payment provider could not be reached. Try again shortly.", "error"},
	"invalid_plan":     {"Unknown plan.", "error"},
}

// pageData loads the signed-in user for the layout and applies any flash.
func (h *WebHandler) pageData(r *http.Request, title, nav string) PageData {
	pd := PageData{Title: title, Nav: nav, Theme: auth.ColorSchemes[0]}
	if userID := auth.GetUserID(r.Context()); userID != "" {
		if user, err := h.Users.Get(r.Context(), userID); err == nil {
			pd.User = &user
			pd.Theme = user.ColorScheme
		} else {
			logFor(r).Warn("page_user_lookup_failed", "error", err)
		}
	}
	if f, ok := flashMessages[r.URL.Query().Get("flash")]; ok {
		pd.Flash, pd.FlashType = f.text, f.kind
	}
	return pd
}

func (h *WebHandler) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	if err := h.Renderer.RenderStatus(w, status, name, data); err != nil {
		logFor(r).Error("render_failed", "template", name, "error", err)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// HandleLanding shows the landing page, or the dashboard when signed in.
func (h *WebHandler) HandleLanding(w http.ResponseWriter, r *http.Request) {
	if auth.IsAuthenticated(r.Context()) {
		http.Redirect(w, r, auth.AfterLoginPath, http.StatusFound)
		return
	}
	h.render(w, r, http.StatusOK, "landing.html", h.pageData(r, "Notes that keep up with you", ""))
}

// HandleLogin shows the sign-in page.
func (h *WebHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	next := urlutil.LocalPathOr(r.URL.Query().Get("next"), "")
	if auth.IsAuthenticated(r.Context()) {
		target := auth.AfterLoginPath
		if next != "" {
			target = next
		}
		http.Redirect(w, r, target, http.StatusFound)
		return
	}
	h.render(w, r, http.StatusOK, "login.html", LoginPageData{
		PageData: h.pageData(r, "Sign in", ""),
		Next:     next,
	})
}

func redirectWithFlash(w http.ResponseWriter, r *http.Request, target, flash string) {
	if flash != "" {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + "flash=" + url.QueryEscape(flash)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
