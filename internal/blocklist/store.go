// Package blocklist provides IP-based blocking backed by Redis. Block
// records are stored as simple key-value pairs with TTL-based expiry:
//
//	Key:   block:<ip>
//	Value: <reason>
//	TTL:   block duration
package blocklist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// BlockPrefix is the Redis key prefix for block records.
	BlockPrefix = "block:"

	// OffensesPrefix is the Redis key prefix for offense counters used by
	// the escalating block system.
	OffensesPrefix = "offenses:"

	// Escalating block durations.
	Block15Min  = 15 * time.Minute // 1st offense
	Block1Hour  = 1 * time.Hour    // 2nd offense
	Block24Hour = 24 * time.Hour   // 3rd+ offense

	// OffensesTTL is how long the offense counter lives in Redis. After 24h
	// without new offenses the counter resets to zero.
	OffensesTTL = 24 * time.Hour

	// AutoBlockThreshold is the number of offenses within OffensesTTL that
	// triggers an automatic block.
	AutoBlockThreshold = 3
)

// Store manages IP block records in Redis.
type Store struct {
	client *redis.Client
}

// NewStore creates a new blocklist store using the provided Redis client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// IsBlocked checks if an IP is currently blocked.
// Returns (isBlocked, remainingSeconds, reason, error).
// If the IP is not blocked, isBlocked is false and the other return values
// are zero/empty. Redis errors are returned so callers can decide how to
// handle them (the recommended policy is fail-open).
func (s *Store) IsBlocked(ctx context.Context, ip string) (bool, int, string, error) {
	key := BlockPrefix + ip

	reason, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, 0, "", nil
	}
	if err != nil {
		return false, 0, "", err
	}

	// Key exists; get the remaining TTL.
	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		// We know the block exists but can't read the TTL. Report blocked
		// with 0 remaining rather than swallowing the block.
		return true, 0, reason, nil
	}

	remaining := 0
	if ttl > 0 {
		remaining = int(ttl.Seconds())
	}

	return true, remaining, reason, nil
}

// Block sets a block on an IP with the given duration and reason.
// The block automatically expires after the specified duration.
func (s *Store) Block(ctx context.Context, ip string, duration time.Duration, reason string) error {
	key := BlockPrefix + ip
	return s.client.Set(ctx, key, reason, duration).Err()
}

// Unblock removes a block from an IP immediately.
func (s *Store) Unblock(ctx context.Context, ip string) error {
	key := BlockPrefix + ip
	return s.client.Del(ctx, key).Err()
}

// BlockedIP describes one active block for dashboard listings.
type BlockedIP struct {
	IP               string `json:"ip"`
	Reason           string `json:"reason"`
	RemainingSeconds int    `json:"remainingSeconds"`
}

// List returns every currently blocked IP with its reason and remaining
// duration. Intended for the admin dashboard; iterates with SCAN so it is
// safe on a shared Redis.
func (s *Store) List(ctx context.Context) ([]BlockedIP, error) {
	var out []BlockedIP

	iter := s.client.Scan(ctx, 0, BlockPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		ip := key[len(BlockPrefix):]
		blocked, remaining, reason, err := s.IsBlocked(ctx, ip)
		if err != nil || !blocked {
			continue // expired between SCAN and GET, or transient error
		}
		out = append(out, BlockedIP{IP: ip, Reason: reason, RemainingSeconds: remaining})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("blocklist: scan: %w", err)
	}
	return out, nil
}

// escalationDuration returns the block duration for a given offense count.
func escalationDuration(offenseCount int) time.Duration {
	switch {
	case offenseCount <= 1:
		return Block15Min
	case offenseCount == 2:
		return Block1Hour
	default:
		return Block24Hour
	}
}

// OffenseCount returns the current offense counter for an IP. Returns 0 if
// the key does not exist (no offenses recorded or counter expired).
func (s *Store) OffenseCount(ctx context.Context, ip string) (int, error) {
	key := OffensesPrefix + ip
	val, err := s.client.Get(ctx, key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

// Escalate increments the offense counter for an IP and applies a block
// whose duration escalates with the number of offenses:
//
//	1st offense  -> 15 minutes
//	2nd offense  -> 1 hour
//	3rd+ offense -> 24 hours
//
// The offense counter has a 24h TTL set on first increment, so counters
// naturally expire if there is no new activity.
//
// Returns the block duration that was applied.
func (s *Store) Escalate(ctx context.Context, ip string, reason string) (time.Duration, error) {
	key := OffensesPrefix + ip

	// Atomically increment the counter.
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("blocklist: escalate incr: %w", err)
	}

	// Set TTL only on first increment so the window doesn't slide.
	if count == 1 {
		if err := s.client.Expire(ctx, key, OffensesTTL).Err(); err != nil {
			return 0, fmt.Errorf("blocklist: escalate expire: %w", err)
		}
	}

	duration := escalationDuration(int(count))
	if err := s.Block(ctx, ip, duration, reason); err != nil {
		return 0, fmt.Errorf("blocklist: escalate block: %w", err)
	}

	return duration, nil
}

// RecordOffense increments the offense counter for an IP and checks whether
// the auto-block threshold has been reached.
//
// If the threshold is met or exceeded, a block with escalating duration is
// applied. Returns (blocked, duration, error).
func (s *Store) RecordOffense(ctx context.Context, ip string, reason string) (bool, time.Duration, error) {
	key := OffensesPrefix + ip

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("blocklist: offense incr: %w", err)
	}

	// Set TTL only on first increment so the 24h window doesn't slide.
	if count == 1 {
		if err := s.client.Expire(ctx, key, OffensesTTL).Err(); err != nil {
			return false, 0, fmt.Errorf("blocklist: offense expire: %w", err)
		}
	}

	// Auto-block when the threshold is reached.
	if count >= AutoBlockThreshold {
		duration := escalationDuration(int(count))
		if err := s.Block(ctx, ip, duration, reason); err != nil {
			return false, 0, fmt.Errorf("blocklist: offense block: %w", err)
		}
		return true, duration, nil
	}

	return false, 0, nil
}
