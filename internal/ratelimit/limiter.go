// Package ratelimit throttles mutating dashboard requests per user. Active
// subscribers get a larger bucket than free users.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kuitang/notesaas/internal/clock"
)

// Tier selects which bucket size applies to a user.
type Tier int

const (
	TierFree Tier = iota
	TierPaid
)

func (t Tier) String() string {
	if t == TierPaid {
		return "paid"
	}
	return "free"
}

// Config defines the bucket sizes per tier.
type Config struct {
	FreeRPS         float64
	FreeBurst       int
	PaidRPS         float64
	PaidBurst       int
	CleanupInterval time.Duration // idle limiters older than this are dropped
}

// DefaultConfig allows a human clicking through forms plenty of room.
var DefaultConfig = Config{
	FreeRPS:         2,
	FreeBurst:       20,
	PaidRPS:         10,
	PaidBurst:       100,
	CleanupInterval: time.Hour,
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
	tier     Tier
}

// Limiter holds one token bucket per user.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	config   Config
	clock    clock.Clock

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewLimiter creates a limiter and starts its idle-cleanup goroutine.
// Call Stop on shutdown.
func NewLimiter(config Config, c clock.Clock) *Limiter {
	if c == nil {
		c = clock.Real{}
	}
	l := &Limiter{
		limiters: make(map[string]*limiterEntry),
		config:   config,
		clock:    c,
		stopCh:   make(chan struct{}),
	}
	l.wg.Add(1)
	go l.cleanupLoop()
	return l
}

// Allow consumes one token from the user's bucket. The remaining token
// count is returned for the X-RateLimit-Remaining header.
func (l *Limiter) Allow(userID string, tier Tier) (bool, int) {
	now := l.clock.Now()
	lim := l.limiterFor(userID, tier, now)
	ok := lim.AllowN(now, 1)
	remaining := int(lim.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return ok, remaining
}

// limiterFor returns the user's bucket. A tier change replaces the bucket
// so an upgrade takes effect on the next request.
func (l *Limiter) limiterFor(userID string, tier Tier, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.limiters[userID]
	if ok && entry.tier == tier {
		entry.lastUsed = now
		return entry.limiter
	}

	rps, burst := l.config.FreeRPS, l.config.FreeBurst
	if tier == TierPaid {
		rps, burst = l.config.PaidRPS, l.config.PaidBurst
	}
	entry = &limiterEntry{
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
		lastUsed: now,
		tier:     tier,
	}
	l.limiters[userID] = entry
	return entry.limiter
}

// Cleanup drops limiters idle for longer than the cleanup interval.
func (l *Limiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.clock.Now().Add(-l.config.CleanupInterval)
	for userID, entry := range l.limiters {
		if entry.lastUsed.Before(cutoff) {
			delete(l.limiters, userID)
		}
	}
}

func (l *Limiter) cleanupLoop() {
	defer l.wg.Done()
	ticker := time.NewTicker(l.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.Cleanup()
		case <-l.stopCh:
			return
		}
	}
}

// Stop ends the cleanup goroutine and waits for it.
func (l *Limiter) Stop() {
	close(l.stopCh)
	l.wg.Wait()
}

// Len returns the number of tracked users.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
