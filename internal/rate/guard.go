// Package rate keeps callers inside a per-provider request budget using
// token buckets.
package rate

import (
	"fmt"
	"sync"
	"time"
)

// RateLimitError is returned when calls are blocked.
type RateLimitError struct {
	Provider string
	Reason   string
	RetryAt  time.Time
}

func (e RateLimitError) Error() string {
	if e.RetryAt.IsZero() {
		return fmt.Sprintf("%s rate limited: %s", e.Provider, e.Reason)
	}
	return fmt.Sprintf("%s rate limited: %s (retry at %s)", e.Provider, e.Reason, e.RetryAt.UTC().Format(time.RFC3339))
}

type Decision struct {
	Allowed bool
	Reason  string
	RetryAt time.Time
}

type bucket struct {
	window   Window
	capacity int
	tokens   float64
	last     time.Time
}

// Guard enforces rate limits for a provider. It is safe for concurrent
// use.
type Guard struct {
	decl Declaration
	mu   sync.Mutex
	// buckets are mutated under mu
	buckets []*bucket
}

func NewGuard(decl Declaration) *Guard {
	g := &Guard{decl: decl}
	for window, limit := range decl.Limits() {
		g.buckets = append(g.buckets, &bucket{
			window:   window,
			capacity: limit,
			tokens:   float64(limit),
		})
	}
	return g
}

// ShouldCall consumes one token when the budget allows it.
func (g *Guard) ShouldCall(now time.Time) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.decl.HasLimits() {
		return Decision{Allowed: false, Reason: "disabled"}
	}

	for _, b := range g.buckets {
		if b.capacity <= 0 {
			return Decision{Allowed: false, Reason: "disabled"}
		}
		refill(b, now)
		if b.tokens < 1 {
			retryAt := now.Add(b.window.Duration() / time.Duration(b.capacity))
			return Decision{Allowed: false, Reason: "budget", RetryAt: retryAt}
		}
	}
	for _, b := range g.buckets {
		b.tokens--
		remainingGauge.WithLabelValues(g.decl.ProviderName(), b.window.String()).Set(b.tokens)
	}

	return Decision{Allowed: true}
}

// Allow is ShouldCall as an error. Refusals are counted.
func (g *Guard) Allow(now time.Time) error {
	decision := g.ShouldCall(now)
	if decision.Allowed {
		return nil
	}
	blockedCounter.WithLabelValues(g.decl.ProviderName(), decision.Reason).Inc()
	return RateLimitError{
		Provider: g.decl.ProviderName(),
		Reason:   decision.Reason,
		RetryAt:  decision.RetryAt,
	}
}

func refill(b *bucket, now time.Time) {
	if b.last.IsZero() {
		b.last = now
		return
	}
	elapsed := now.Sub(b.last).Seconds()
	if elapsed <= 0 {
		return
	}
	refillRate := float64(b.capacity) / b.window.Duration().Seconds()
	b.tokens = min(float64(b.capacity), b.tokens+elapsed*refillRate)
	b.last = now
}
