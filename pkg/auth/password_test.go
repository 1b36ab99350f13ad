package auth

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/BradenHooton/loginguard/internal/models"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	stored, err := HashPassword("password1")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	if len(stored) != SaltHexLength+KeyLength*2 {
		t.Errorf("stored length = %d, want %d", len(stored), SaltHexLength+KeyLength*2)
	}
	if !VerifyPassword(stored, "password1") {
		t.Error("VerifyPassword() with correct password = false")
	}
	if VerifyPassword(stored, "password2") {
		t.Error("VerifyPassword() with wrong password = true")
	}
}

func TestHashPassword_UniqueSalts(t *testing.T) {
	a, _ := HashPassword("same")
	b, _ := HashPassword("same")
	if a[:SaltHexLength] == b[:SaltHexLength] {
		t.Error("two hashes share a salt")
	}
}

func TestHashPassword_Empty(t *testing.T) {
	if _, err := HashPassword(""); err == nil {
		t.Error("HashPassword(\"\") error = nil, want error")
	}
}

// Stored values produced by other PBKDF2 implementations using the same
// salt-prefix layout must verify.
func TestVerifyPassword_KnownVector(t *testing.T) {
	stored := strings.Repeat("a", 64) + "0fc62c0d72c48f0da09df5be1e505617c8f4b5790c7f70e23862ee00dbeda180"

	if !VerifyPassword(stored, "password1") {
		t.Error("VerifyPassword() rejected known vector")
	}
}

func TestVerifyPassword_Malformed(t *testing.T) {
	for _, stored := range []string{"", "short", strings.Repeat("z", 127), strings.Repeat("a", 200)} {
		if VerifyPassword(stored, "password1") {
			t.Errorf("VerifyPassword(%q) = true", stored)
		}
	}
}

func TestVerifyPassword_Bcrypt(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("legacy-pass"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}

	if !VerifyPassword(string(hashed), "legacy-pass") {
		t.Error("VerifyPassword() rejected bcrypt hash")
	}
	if VerifyPassword(string(hashed), "other") {
		t.Error("VerifyPassword() accepted wrong bcrypt password")
	}
}

func TestValidatePassword(t *testing.T) {
	strict := models.DefaultSecuritySettings().PasswordPolicy
	lenient := models.PasswordPolicy{MinLength: 4}

	tests := []struct {
		name       string
		password   string
		policy     models.PasswordPolicy
		shouldFail bool
	}{
		{"valid strong password", "SecureP@ss123", strict, false},
		{"too short", "Pa@1", strict, true},
		{"missing uppercase", "securepass@123", strict, true},
		{"missing digit", "SecurePass@xyz", strict, true},
		{"missing special character", "SecurePass123", strict, true},
		{"common password rejected", "password123", lenient, true},
		{"lenient policy accepts plain", "bluesky", lenient, false},
		{"too long", strings.Repeat("Aa1@", 40), strict, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password, tt.policy)
			if tt.shouldFail && err == nil {
				t.Errorf("expected error, got nil")
			}
			if !tt.shouldFail && err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestPasswordValidationError_ListsProblems(t *testing.T) {
	err := ValidatePassword("abc", models.DefaultSecuritySettings().PasswordPolicy)
	if err == nil {
		t.Fatal("expected error")
	}
	pve, ok := err.(*PasswordValidationError)
	if !ok {
		t.Fatalf("error type = %T", err)
	}
	if len(pve.Errors) < 3 {
		t.Errorf("Errors = %v, want length, uppercase, digit, special", pve.Errors)
	}
}
