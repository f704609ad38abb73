package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// tokenBytes is the entropy of a generated token secret.
const tokenBytes = 32

// DefaultSessionTTL is the lifetime of a session token unless the caller
// overrides it.
const DefaultSessionTTL = 1 * time.Hour

// SessionToken is an issued credential: a random secret plus identifying
// metadata and an expiry.
type SessionToken struct {
	ID        string            `json:"id"`
	Secret    string            `json:"token"`
	IssuedAt  time.Time         `json:"issuedAt"`
	ExpiresAt time.Time         `json:"expiresAt"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Expired reports whether the token is past its expiry at the given time.
func (t SessionToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// GenerateToken returns a hex-encoded random secret with tokenBytes bytes of
// CSPRNG entropy.
func GenerateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("security: generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// NewSessionToken issues a session token with the given lifetime and
// metadata. ttl <= 0 uses DefaultSessionTTL.
func NewSessionToken(ttl time.Duration, metadata map[string]string) (SessionToken, error) {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	secret, err := GenerateToken()
	if err != nil {
		return SessionToken{}, err
	}
	now := time.Now()
	return SessionToken{
		ID:        uuid.NewString(),
		Secret:    secret,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
		Metadata:  metadata,
	}, nil
}
