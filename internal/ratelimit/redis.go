package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aegis/trust-service/internal/metrics"
)

// Limiter enforces the same fixed-window policy as MemoryLimiter but against
// Redis, so the count is shared across replicas. The window is defined by
// setting the key's expiry on the first increment.
type Limiter struct {
	client *redis.Client
}

// NewLimiter creates a Limiter backed by the given Redis client.
func NewLimiter(client *redis.Client) *Limiter {
	return &Limiter{client: client}
}

// Allow checks whether the identifier is within the rate limit defined by
// rule. It increments the counter in Redis and sets the expiry on first
// access.
//
// Returns true if the request is allowed, false if rate limited. On Redis
// errors the method fails open (returns true) so that a Redis outage does
// not block legitimate traffic.
func (l *Limiter) Allow(ctx context.Context, identifier string, rule Rule) (bool, error) {
	key := "rl:" + rule.Name + ":" + identifier

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		slog.Warn("rate limit INCR failed, failing open", "key", key, "err", err)
		return true, err
	}

	// On the first increment, set the expiry to define the window boundary.
	if count == 1 {
		if err := l.client.Expire(ctx, key, rule.Window).Err(); err != nil {
			slog.Warn("rate limit EXPIRE failed, failing open", "key", key, "err", err)
			// The key exists but has no TTL, so it would persist. Best effort:
			// delete it so it doesn't throttle the identifier forever.
			l.client.Del(ctx, key)
			return true, err
		}
	}

	return int(count) <= rule.Limit, nil
}

// CheckContext implements Checker on top of Allow/Remaining/ResetAfter so
// the HTTP layer can swap the Redis limiter in for multi-replica
// deployments. Redis errors fail open as in Allow.
func (l *Limiter) CheckContext(ctx context.Context, identifier string, rule Rule) Decision {
	allowed, err := l.Allow(ctx, identifier, rule)
	if err != nil {
		return Decision{Allowed: true, Remaining: rule.Limit, ResetTime: time.Now().Add(rule.Window)}
	}
	if !allowed {
		metrics.RateLimitDenials.WithLabelValues(rule.Name).Inc()
	}

	remaining, _ := l.Remaining(ctx, identifier, rule)
	resetAfter, err := l.ResetAfter(ctx, identifier, rule)
	if err != nil || resetAfter <= 0 {
		resetAfter = rule.Window
	}
	return Decision{Allowed: allowed, Remaining: remaining, ResetTime: time.Now().Add(resetAfter)}
}

// Remaining returns the number of requests the identifier has left in the
// current window for the given rule. Returns the full limit if the key does
// not exist yet. On Redis errors it returns the full limit (fail open).
func (l *Limiter) Remaining(ctx context.Context, identifier string, rule Rule) (int, error) {
	key := "rl:" + rule.Name + ":" + identifier

	count, err := l.client.Get(ctx, key).Int()
	if err == redis.Nil {
		return rule.Limit, nil
	}
	if err != nil {
		slog.Warn("rate limit GET failed, failing open", "key", key, "err", err)
		return rule.Limit, err
	}

	remaining := rule.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// ResetAfter returns how long until the identifier's current window ends.
// Zero means no active window.
func (l *Limiter) ResetAfter(ctx context.Context, identifier string, rule Rule) (time.Duration, error) {
	key := "rl:" + rule.Name + ":" + identifier

	ttl, err := l.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}
