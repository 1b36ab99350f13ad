package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"

	"github.com/BradenHooton/loginguard/internal/models"
)

const (
	PBKDF2Iterations = 100000
	SaltHexLength    = 64 // 32 random bytes, hex encoded
	KeyLength        = 32
	MaxPasswordLen   = 128
)

// PasswordValidationError holds validation error details (internal use only)
type PasswordValidationError struct {
	Errors []string
}

func (e *PasswordValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "password validation failed"
	}
	return "password does not meet policy: " + strings.Join(e.Errors, "; ")
}

// Common weak passwords to reject
var commonPasswords = map[string]bool{
	"password":     true,
	"12345678":     true,
	"qwerty":       true,
	"abc123":       true,
	"password123":  true,
	"password123!": true,
	"123456":       true,
	"admin":        true,
	"letmein":      true,
	"welcome":      true,
	"monkey":       true,
	"dragon":       true,
	"master":       true,
	"123123":       true,
	"passw0rd":     true,
	"shadow":       true,
	"sunshine":     true,
	"princess":     true,
	"starwars":     true,
	"football":     true,
	"trustno1":     true,
}

// HashPassword returns salt(64 hex chars) || PBKDF2-HMAC-SHA256(password, salt) in hex.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}

	raw := make([]byte, SaltHexLength/2)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	salt := hex.EncodeToString(raw)

	return salt + derive(password, salt), nil
}

func derive(password, salt string) string {
	key := pbkdf2.Key([]byte(password), []byte(salt), PBKDF2Iterations, KeyLength, sha256.New)
	return hex.EncodeToString(key)
}

// VerifyPassword reports whether candidate matches stored. It never panics;
// malformed stored values simply fail. Hashes starting with "$2" are checked
// as bcrypt.
func VerifyPassword(stored, candidate string) bool {
	if strings.HasPrefix(stored, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(candidate)) == nil
	}

	if len(stored) != SaltHexLength+KeyLength*2 {
		return false
	}

	salt, want := stored[:SaltHexLength], stored[SaltHexLength:]
	got := derive(candidate, salt)
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// ValidatePassword enforces the configured password policy for new credentials.
func ValidatePassword(password string, policy models.PasswordPolicy) error {
	errors := make([]string, 0)

	if len(password) < policy.MinLength {
		errors = append(errors, fmt.Sprintf("must be at least %d characters", policy.MinLength))
	}
	if len(password) > MaxPasswordLen {
		errors = append(errors, fmt.Sprintf("must be at most %d characters", MaxPasswordLen))
	}

	hasUpper := false
	hasDigit := false
	hasSpecial := false

	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if policy.RequireUppercase && !hasUpper {
		errors = append(errors, "must contain at least one uppercase letter")
	}
	if policy.RequireNumbers && !hasDigit {
		errors = append(errors, "must contain at least one digit")
	}
	if policy.RequireSpecial && !hasSpecial {
		errors = append(errors, "must contain at least one special character")
	}

	if commonPasswords[strings.ToLower(password)] {
		errors = append(errors, "is too common, please choose a more unique password")
	}

	if len(errors) > 0 {
		return &PasswordValidationError{Errors: errors}
	}

	return nil
}
