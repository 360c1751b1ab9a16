// Package logutil shapes billing webhook requests for logs. Stripe events
// carry customer names, emails and addresses, none of which belong in a
// log line.
package logutil

import (
	"encoding/json"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	redacted  = "[REDACTED]"
	truncated = "...[truncated]"
)

var (
	// exactFields are Stripe object keys that hold customer data as a whole.
	exactFields = []string{"authorization", "name", "shipping", "customerdetails", "billingdetails"}
	// partialFields match anywhere in a key, e.g. customer_email.
	partialFields = []string{"email", "phone", "address", "token", "secret", "password", "apikey", "cookie", "signature"}
)

// Sensitive reports whether a header or JSON key should be redacted.
func Sensitive(key string) bool {
	k := strings.ToLower(strings.TrimSpace(key))
	k = strings.NewReplacer("-", "", "_", "").Replace(k)
	if slices.Contains(exactFields, k) {
		return true
	}
	return slices.ContainsFunc(partialFields, func(part string) bool {
		return strings.Contains(k, part)
	})
}

// Headers renders h as sorted key="value" pairs with sensitive values
// replaced.
func Headers(h http.Header) string {
	if len(h) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString("; ")
		}
		v := strings.Join(h.Values(k), ", ")
		if Sensitive(k) {
			v = redacted
		}
		b.WriteString(strings.ToLower(k))
		b.WriteByte('=')
		b.WriteString(strconv.Quote(v))
	}
	return b.String()
}

// EventPreview redacts a webhook body and cuts it to limit bytes on one
// line. Bodies that are not JSON are only truncated.
func EventPreview(body []byte, limit int) string {
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return Truncate(string(body), limit)
	}
	scrub(payload)
	out, err := json.Marshal(payload)
	if err != nil {
		return Truncate(string(body), limit)
	}
	return Truncate(string(out), limit)
}

func scrub(v any) {
	switch node := v.(type) {
	case map[string]any:
		for k, child := range node {
			if Sensitive(k) {
				node[k] = redacted
				continue
			}
			scrub(child)
		}
	case []any:
		for _, child := range node {
			scrub(child)
		}
	}
}

// Truncate flattens newlines and keeps at most limit bytes of s without
// splitting a UTF-8 sequence. limit <= 0 keeps everything.
func Truncate(s string, limit int) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "\n", `\n`)
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + truncated
}
