// Package ratelimit provides fixed-window request throttling. The in-memory
// MemoryLimiter covers a single process; the Redis-backed Limiter provides
// the same policy across replicas using the INCR + EXPIRE pattern.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aegis/trust-service/internal/metrics"
)

// Rule defines a rate limiting policy: an identifying name (also the key
// namespace), the maximum number of requests allowed in the window, and the
// window duration.
type Rule struct {
	Name   string        // key namespace (e.g., "moderate", "auth")
	Limit  int           // max count in the window
	Window time.Duration // time window
}

// Standard rules used by the API routes.
var (
	// RuleModerate allows 30 moderation submissions per minute per client.
	RuleModerate = Rule{Name: "moderate", Limit: 30, Window: 1 * time.Minute}

	// RuleAuth allows 5 authentication attempts per 5 minutes per client.
	RuleAuth = Rule{Name: "auth", Limit: 5, Window: 5 * time.Minute}

	// RuleSecurityAdmin allows 10 security admin mutations per minute per client.
	RuleSecurityAdmin = Rule{Name: "security", Limit: 10, Window: 1 * time.Minute}
)

// Checker is the limiter interface consumed by the HTTP layer. Both
// MemoryLimiter and the Redis-backed Limiter satisfy it.
type Checker interface {
	CheckContext(ctx context.Context, identifier string, rule Rule) Decision
}

// Decision is the outcome of a rate limit check.
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	ResetTime time.Time `json:"resetTime"`
}

// sweepInterval is how often the janitor removes expired records,
// independent of whether the keys are checked again.
const sweepInterval = 1 * time.Minute

type record struct {
	count int
	reset time.Time
}

// MemoryLimiter is a fixed-window counter per key for one process. The
// window is a hard reset at its boundary, so bursts straddling a boundary
// can briefly pass up to twice the limit; that is an accepted property of
// fixed-window limiting.
type MemoryLimiter struct {
	mu      sync.Mutex
	records map[string]*record
	now     func() time.Time
	stop    chan struct{}
	stopped sync.Once
}

// NewMemoryLimiter creates a limiter and starts its background janitor.
// Call Stop to release the janitor goroutine.
func NewMemoryLimiter() *MemoryLimiter {
	l := &MemoryLimiter{
		records: make(map[string]*record),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go l.janitor()
	return l
}

// Check applies rule to the identifier and returns the decision. A new key
// or an expired window starts a fresh window with count 1.
func (l *MemoryLimiter) Check(identifier string, rule Rule) Decision {
	key := rule.Name + ":" + identifier
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[key]
	if !ok || now.After(rec.reset) {
		rec = &record{count: 1, reset: now.Add(rule.Window)}
		l.records[key] = rec
		return Decision{Allowed: true, Remaining: rule.Limit - 1, ResetTime: rec.reset}
	}

	if rec.count >= rule.Limit {
		metrics.RateLimitDenials.WithLabelValues(rule.Name).Inc()
		return Decision{Allowed: false, Remaining: 0, ResetTime: rec.reset}
	}

	rec.count++
	return Decision{Allowed: true, Remaining: rule.Limit - rec.count, ResetTime: rec.reset}
}

// CheckContext implements Checker. The in-memory limiter never blocks, so
// the context goes unused.
func (l *MemoryLimiter) CheckContext(_ context.Context, identifier string, rule Rule) Decision {
	return l.Check(identifier, rule)
}

// Stop halts the janitor. Safe to call more than once.
func (l *MemoryLimiter) Stop() {
	l.stopped.Do(func() { close(l.stop) })
}

// janitor periodically removes records whose window already ended, bounding
// memory for keys that go idle.
func (l *MemoryLimiter) janitor() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			removed := l.sweep()
			if removed > 0 {
				slog.Debug("rate limit sweep", "removed", removed)
			}
		}
	}
}

func (l *MemoryLimiter) sweep() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, rec := range l.records {
		if now.After(rec.reset) {
			delete(l.records, key)
			removed++
		}
	}
	return removed
}
