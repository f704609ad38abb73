package security

import (
	"fmt"
	"log/slog"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is the adaptive hash work factor. 12 keeps verification around
// a quarter second on current hardware, slow enough to blunt offline attacks.
const bcryptCost = 12

// Strength tiers for password complexity.
type Strength string

const (
	StrengthWeak   Strength = "WEAK"
	StrengthMedium Strength = "MEDIUM"
	StrengthStrong Strength = "STRONG"
)

// Complexity rules.
const (
	minPasswordLength    = 8
	strongPasswordLength = 16
)

// ComplexityResult reports whether a password meets the policy and how
// strong it is.
type ComplexityResult struct {
	Valid    bool     `json:"isValid"`
	Strength Strength `json:"strength"`
	Problems []string `json:"problems,omitempty"`
}

// HashPassword hashes a plaintext password with bcrypt. Errors propagate:
// a caller that cannot hash must fail its operation rather than store
// anything weaker.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("security: hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches the stored hash. Any
// verification error, including a corrupt hash, reads as a mismatch so the
// response cannot be used as an oracle; the underlying error is logged
// server-side for diagnosis.
func VerifyPassword(hash, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return true
	}
	if err != bcrypt.ErrMismatchedHashAndPassword {
		slog.Warn("password verification error", "err", err)
	}
	return false
}

// ValidateComplexity checks a password against the policy: minimum length
// plus required upper, lower, digit, and special character classes. Any
// failed rule yields WEAK. Valid passwords are MEDIUM, or STRONG at
// strongPasswordLength and above.
func ValidateComplexity(password string) ComplexityResult {
	var problems []string
	if len(password) < minPasswordLength {
		problems = append(problems, fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			special = true
		}
	}
	if !upper {
		problems = append(problems, "must contain an uppercase letter")
	}
	if !lower {
		problems = append(problems, "must contain a lowercase letter")
	}
	if !digit {
		problems = append(problems, "must contain a digit")
	}
	if !special {
		problems = append(problems, "must contain a special character")
	}

	if len(problems) > 0 {
		return ComplexityResult{Valid: false, Strength: StrengthWeak, Problems: problems}
	}
	if len(password) >= strongPasswordLength {
		return ComplexityResult{Valid: true, Strength: StrengthStrong}
	}
	return ComplexityResult{Valid: true, Strength: StrengthMedium}
}
