package ratelimit

import (
	"context"
	"net/http"
	"strconv"

	"github.com/kuitang/notesaas/internal/obs"
)

// RetryAfterSeconds is sent in the Retry-After header of a 429.
const RetryAfterSeconds = 1

// PaidFunc reports whether a user is on the paid tier.
// entitlement.Resolver.IsActive satisfies it.
type PaidFunc func(ctx context.Context, userID string) (bool, error)

// Middleware enforces per-user limits. Requests without a user pass
// through; the auth middleware deals with them. A tier lookup failure
// falls back to the free tier.
func Middleware(l *Limiter, userID func(*http.Request) string, paid PaidFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := userID(r)
			if id == "" {
				next.ServeHTTP(w, r)
				return
			}

			tier := TierFree
			if paid != nil {
				isPaid, err := paid(r.Context(), id)
				if err != nil {
					obs.From(r.Context()).With("pkg", "ratelimit").Warn("tier_lookup_failed", "error", err)
				} else if isPaid {
					tier = TierPaid
				}
			}

			ok, remaining := l.Allow(id, tier)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !ok {
				obs.From(r.Context()).With("pkg", "ratelimit").Info("rate_limited", "tier", tier.String())
				w.Header().Set("Retry-After", strconv.Itoa(RetryAfterSeconds))
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte("Too Many Requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
