package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kuitang/notesaas/internal/clock"
)

func consent(t interface {
	Fatalf(string, ...any)
}, p *LocalMockOIDCProvider, state, addr, name string) (code string) {
	body := strings.NewReader(url.Values{"state": {state}, "email": {addr}, "name": {name}}.Encode())
	req := httptest.NewRequest(http.MethodPost, "/auth/mock-oidc/authorize", body)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	p.handleConsent(rr, req)

	if rr.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rr.Code)
	}
	loc, err := url.Parse(rr.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	if loc.Path != "/auth/google/callback" {
		t.Fatalf("unexpected callback path %q", loc.Path)
	}
	if loc.Query().Get("state") != state {
		t.Fatalf("state not echoed: got %q want %q", loc.Query().Get("state"), state)
	}
	return loc.Query().Get("code")
}

func testLocalMockOIDC_CodeRoundTrip(t *rapid.T) {
	p := NewLocalMockOIDCProvider(clock.NewFake(epoch))
	state := rapid.StringMatching(`[a-zA-Z0-9_-]{16,24}`).Draw(t, "state")
	addr := rapid.StringMatching(`[a-z]{1,10}@[a-z]{2,8}\.test`).Draw(t, "email")

	code := consent(t, p, state, addr, "Dev")
	claims, err := p.ExchangeCode(context.Background(), code)
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if claims.Email != addr || !claims.EmailVerified || claims.Name != "Dev" {
		t.Fatalf("unexpected claims %+v", claims)
	}

	if _, err := p.ExchangeCode(context.Background(), code); err == nil {
		t.Fatalf("code redeemed twice")
	}
}

func TestLocalMockOIDC_CodeRoundTrip(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testLocalMockOIDC_CodeRoundTrip)
}

func TestLocalMockOIDC_CodeExpires(t *testing.T) {
	t.Parallel()
	fake := clock.NewFake(epoch)
	p := NewLocalMockOIDCProvider(fake)
	code := consent(t, p, "state-1", "dev@example.test", "")

	fake.Advance(mockCodeTTL + time.Second)
	_, err := p.ExchangeCode(context.Background(), code)
	assert.ErrorIs(t, err, ErrCodeExchangeFailed)
}

func TestLocalMockOIDC_AuthorizePage(t *testing.T) {
	t.Parallel()
	p := NewLocalMockOIDCProvider(nil)
	mux := http.NewServeMux()
	p.RegisterRoutes(mux)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, p.AuthURL(`"><script>`), nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `name="email"`)
	assert.NotContains(t, rr.Body.String(), "<script>")

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/auth/mock-oidc/authorize", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLocalMockOIDC_MissingEmailRejected(t *testing.T) {
	t.Parallel()
	p := NewLocalMockOIDCProvider(nil)
	body := strings.NewReader(url.Values{"state": {"s"}}.Encode())
	req := httptest.NewRequest(http.MethodPost, "/auth/mock-oidc/authorize", body)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	p.handleConsent(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
