package logutil

import (
	"net/http"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestHeaders_RedactsSignatureAndCookie(t *testing.T) {
	t.Parallel()
	h := http.Header{}
	h.Set("Stripe-Signature", "t=1,v1=deadbeef")
	h.Set("Content-Type", "application/json")
	h.Set("Cookie", "session_id=abc")

	assert.Equal(t, `content-type="application/json"; cookie="[REDACTED]"; stripe-signature="[REDACTED]"`, Headers(h))
	assert.Equal(t, "{}", Headers(nil))
}

func TestEventPreview_RedactsCustomerData(t *testing.T) {
	t.Parallel()
	body := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"customer_details":{"email":"a@b.test"},"customer":"cus_1","customer_email":"c@d.test","items":[{"name":"Jane"}]}}}`)
	got := EventPreview(body, 0)
	assert.NotContains(t, got, "a@b.test")
	assert.NotContains(t, got, "c@d.test")
	assert.NotContains(t, got, "Jane")
	assert.Contains(t, got, "cus_1")
	assert.Contains(t, got, "evt_1")
	assert.Contains(t, got, "checkout.session.completed")

	assert.Equal(t, "not json", EventPreview([]byte("not json"), 0))
}

func TestSensitive(t *testing.T) {
	t.Parallel()
	for _, k := range []string{"Authorization", "customer_email", "client_secret", "Set-Cookie", "billing_details", "email"} {
		assert.True(t, Sensitive(k), k)
	}
	for _, k := range []string{"customer", "status", "id", "current_period_end", "plan_name"} {
		assert.False(t, Sensitive(k), k)
	}
}

func testTruncate_Bounded(t *rapid.T) {
	s := rapid.String().Draw(t, "s")
	n := rapid.IntRange(1, 64).Draw(t, "n")
	got := Truncate(s, n)
	if strings.Contains(got, "\n") {
		t.Fatalf("preview contains newline: %q", got)
	}
	if len(got) > n+len(truncated) {
		t.Fatalf("preview too long: %d > %d", len(got), n)
	}
	if utf8.ValidString(s) && !utf8.ValidString(got) {
		t.Fatalf("truncation split a rune: %q", got)
	}
}

func TestTruncate_Bounded(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testTruncate_Bounded)
}

func FuzzTruncate_Bounded(f *testing.F) {
	f.Fuzz(rapid.MakeFuzz(testTruncate_Bounded))
}
