package auth

import (
	"context"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/kuitang/notesaas/internal/clock"
	"github.com/kuitang/notesaas/internal/crypto"
)

const mockCodeTTL = 10 * time.Minute

// LocalMockOIDCProvider stands in for Google when running with --no-oidc.
// It serves a local page where the developer picks the email to sign in as
// and issues single-use codes that ExchangeCode accepts.
type LocalMockOIDCProvider struct {
	clock clock.Clock

	mu    sync.Mutex
	codes map[string]pendingCode
}

type pendingCode struct {
	email    string
	name     string
	issuedAt time.Time
}

func NewLocalMockOIDCProvider(c clock.Clock) *LocalMockOIDCProvider {
	if c == nil {
		c = clock.Real{}
	}
	return &LocalMockOIDCProvider{clock: c, codes: make(map[string]pendingCode)}
}

func (p *LocalMockOIDCProvider) AuthURL(state string) string {
	return "/auth/mock-oidc/authorize?state=" + url.QueryEscape(state)
}

// ExchangeCode redeems a code once. Expired and unknown codes fail.
func (p *LocalMockOIDCProvider) ExchangeCode(_ context.Context, code string) (*Claims, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pending, ok := p.codes[code]
	if !ok {
		return nil, ErrCodeExchangeFailed
	}
	delete(p.codes, code)
	if p.clock.Now().Sub(pending.issuedAt) > mockCodeTTL {
		return nil, ErrCodeExchangeFailed
	}
	return &Claims{
		Sub:           "mock-" + pending.email,
		Email:         pending.email,
		Name:          pending.name,
		EmailVerified: true,
	}, nil
}

func (p *LocalMockOIDCProvider) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /auth/mock-oidc/authorize", p.handleAuthorize)
	mux.HandleFunc("POST /auth/mock-oidc/authorize", p.handleConsent)
}

var mockConsentPage = template.Must(template.New("consent").Parse(`<!DOCTYPE html>
<html><head><title>Mock Google Sign-In</title>
<style>
body { font-family: system-ui; max-width: 400px; margin: 80px auto; padding: 0 20px; }
.note { background: #fff3cd; border: 1px solid #ffc107; border-radius: 8px; padding: 12px; margin: 16px 0; }
input { width: 100%; padding: 10px; border: 1px solid #ccc; border-radius: 6px; box-sizing: border-box; margin-bottom: 12px; }
button { width: 100%; padding: 10px; background: #4285F4; color: white; border: none; border-radius: 6px; }
</style></head>
<body>
<h1>Mock Google Sign-In</h1>
<div class="note">Local development only. Production signs in with Google.</div>
<form method="POST" action="/auth/mock-oidc/authorize">
<input type="hidden" name="state" value="{{.State}}">
<label for="email">Email</label>
<input type="email" id="email" name="email" value="test@example.com" required autofocus>
<label for="name">Name</label>
<input type="text" id="name" name="name" value="Test User">
<button type="submit">Sign In</button>
</form>
</body></html>`))

func (p *LocalMockOIDCProvider) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	if state == "" {
		http.Error(w, "Missing state parameter", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = mockConsentPage.Execute(w, struct{ State string }{state})
}

func (p *LocalMockOIDCProvider) handleConsent(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	state := r.FormValue("state")
	email := strings.TrimSpace(r.FormValue("email"))
	if state == "" || email == "" {
		http.Error(w, "Missing state or email", http.StatusBadRequest)
		return
	}

	code, err := crypto.RandomToken(32)
	if err != nil {
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	p.mu.Lock()
	p.codes[code] = pendingCode{
		email:    email,
		name:     strings.TrimSpace(r.FormValue("name")),
		issuedAt: p.clock.Now(),
	}
	p.mu.Unlock()

	callback := "/auth/google/callback?code=" + url.QueryEscape(code) + "&state=" + url.QueryEscape(state)
	http.Redirect(w, r, callback, http.StatusFound)
}
