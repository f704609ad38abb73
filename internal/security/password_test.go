package security

import (
	"strings"
	"testing"
	"time"
)

func TestValidateComplexity(t *testing.T) {
	tests := []struct {
		password string
		valid    bool
		strength Strength
	}{
		{"123456", false, StrengthWeak},
		{"Password123!", true, StrengthMedium},
		{"MyVerySecurePassword123!", true, StrengthStrong},
		{"short1!", false, StrengthWeak},
		{"nouppercase123!", false, StrengthWeak},
		{"NOLOWERCASE123!", false, StrengthWeak},
		{"NoDigitsHere!", false, StrengthWeak},
		{"NoSpecials123", false, StrengthWeak},
		{"Ok1!butshort", true, StrengthMedium},
	}

	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			got := ValidateComplexity(tt.password)
			if got.Valid != tt.valid {
				t.Errorf("ValidateComplexity(%q).Valid = %v, want %v (problems: %v)",
					tt.password, got.Valid, tt.valid, got.Problems)
			}
			if got.Strength != tt.strength {
				t.Errorf("ValidateComplexity(%q).Strength = %s, want %s",
					tt.password, got.Strength, tt.strength)
			}
			if !got.Valid && len(got.Problems) == 0 {
				t.Errorf("invalid password must report problems")
			}
		})
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	if testing.Short() {
		t.Skip("bcrypt at cost 12 is slow")
	}

	hash, err := HashPassword("Correct-Horse-7")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !strings.HasPrefix(hash, "$2a$12$") {
		t.Errorf("expected bcrypt cost-12 hash, got prefix %q", hash[:7])
	}

	if !VerifyPassword(hash, "Correct-Horse-7") {
		t.Error("correct password rejected")
	}
	if VerifyPassword(hash, "wrong-password") {
		t.Error("wrong password accepted")
	}
}

// A corrupt hash reads as a mismatch, never as a distinguishable error.
func TestVerifyPassword_CorruptHash(t *testing.T) {
	if VerifyPassword("not-a-bcrypt-hash", "anything") {
		t.Error("corrupt hash must read as rejection")
	}
}

func TestGenerateToken(t *testing.T) {
	a, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	b, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	// 32 bytes hex-encoded.
	if len(a) != 64 {
		t.Errorf("token length = %d, want 64", len(a))
	}
	if a == b {
		t.Error("two generated tokens are identical")
	}
}

func TestNewSessionToken(t *testing.T) {
	tok, err := NewSessionToken(30*time.Minute, map[string]string{"user_id": "u1"})
	if err != nil {
		t.Fatalf("NewSessionToken: %v", err)
	}
	if tok.ID == "" || tok.Secret == "" {
		t.Fatal("token missing id or secret")
	}
	if got := tok.ExpiresAt.Sub(tok.IssuedAt); got != 30*time.Minute {
		t.Errorf("ttl = %s, want 30m", got)
	}
	if tok.Metadata["user_id"] != "u1" {
		t.Error("metadata not carried")
	}
	if tok.Expired(tok.IssuedAt.Add(time.Minute)) {
		t.Error("token expired too early")
	}
	if !tok.Expired(tok.IssuedAt.Add(31 * time.Minute)) {
		t.Error("token not expired after ttl")
	}
}

func TestNewSessionToken_DefaultTTL(t *testing.T) {
	tok, err := NewSessionToken(0, nil)
	if err != nil {
		t.Fatalf("NewSessionToken: %v", err)
	}
	if got := tok.ExpiresAt.Sub(tok.IssuedAt); got != DefaultSessionTTL {
		t.Errorf("ttl = %s, want %s", got, DefaultSessionTTL)
	}
}
