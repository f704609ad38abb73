// Package session manages issued session tokens. Token records are stored
// as Redis hashes with TTL-based expiry so revocation and natural expiry
// both work across replicas.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// TokenPrefix is the Redis key prefix for all token hashes.
	TokenPrefix = "token:"

	// DefaultTTL is the time-to-live for token keys unless overridden.
	DefaultTTL = 1 * time.Hour
)

// Record is a session token's server-side state stored in Redis.
type Record struct {
	ID        string `redis:"id" json:"id"`
	UserID    string `redis:"user_id" json:"userId"`
	ClientIP  string `redis:"client_ip" json:"clientIP"`
	CreatedAt int64  `redis:"created_at" json:"createdAt"` // unix timestamp
	LastSeen  int64  `redis:"last_seen" json:"lastSeen"`   // unix timestamp
}

// Store manages token records in Redis.
type Store struct {
	client *redis.Client
}

// NewStore creates a token store backed by the given Redis client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Create stores a new token record with the given TTL. ttl <= 0 uses
// DefaultTTL.
func (s *Store) Create(ctx context.Context, rec Record, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	key := TokenPrefix + rec.ID

	fields := map[string]interface{}{
		"id":         rec.ID,
		"user_id":    rec.UserID,
		"client_ip":  rec.ClientIP,
		"created_at": rec.CreatedAt,
		"last_seen":  rec.LastSeen,
	}

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("session: create token: %w", err)
	}
	return nil
}

// Get retrieves a token record. Returns nil if not found or expired.
func (s *Store) Get(ctx context.Context, tokenID string) (*Record, error) {
	key := TokenPrefix + tokenID
	var rec Record
	if err := s.client.HGetAll(ctx, key).Scan(&rec); err != nil {
		return nil, err
	}
	if rec.ID == "" {
		return nil, nil // not found
	}
	return &rec, nil
}

// Touch updates the token's last-seen timestamp and refreshes its TTL.
func (s *Store) Touch(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	key := TokenPrefix + tokenID
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, "last_seen", time.Now().Unix())
	pipe.Expire(ctx, key, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// Revoke removes a token record immediately.
func (s *Store) Revoke(ctx context.Context, tokenID string) error {
	return s.client.Del(ctx, TokenPrefix+tokenID).Err()
}
