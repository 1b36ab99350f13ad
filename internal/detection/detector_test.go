package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSuspicious_SafeInputs(t *testing.T) {
	safe := []string{
		"",
		"alice",
		"user_01",
		"ALICE",
		"password1",
		"P@ssw0rd!",
		"alice@example.com",
		"Gordon Ramsay",
	}

	for _, in := range safe {
		assert.False(t, IsSuspicious(in), "IsSuspicious(%q)", in)
	}
}

func TestIsSuspicious_Payloads(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"classic tautology", "' OR 1=1 --"},
		{"comment terminator", "admin'--"},
		{"mixed case select", "SeLeCt * FrOm users"},
		{"union select", "x UNION SELECT password FROM users"},
		{"url encoded union", "union%20select"},
		{"url encoded tautology", "1%3D1"},
		{"plus as space", "drop+table+users"},
		{"spaced out keyword", "u n i o n   s e l e c t"},
		{"inline comment", "SELECT/**/password/**/FROM users"},
		{"time based", "sleep(5)"},
		{"pg sleep", "x pg_sleep"},
		{"statement terminator", "bob; truncate users"},
		{"hex blob with punctuation", "x=0x4142"},
		{"char encoding", "char(65,66)"},
		{"subquery", "exists (select 1)"},
		{"hash comment", "admin#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, IsSuspicious(tt.input), "IsSuspicious(%q)", tt.input)
		})
	}
}

// Passwords containing comment or terminator characters are rejected. This is
// accepted behaviour for the login form.
func TestIsSuspicious_PunctuationFalsePositives(t *testing.T) {
	for _, in := range []string{"Tr0ub4dor#3", "hunter2;", "it's-me", "Border Collie"} {
		assert.True(t, IsSuspicious(in), "IsSuspicious(%q)", in)
	}
}

func TestMatch_ReportsSignature(t *testing.T) {
	sig, hit := Match("1 OR 1=1")
	assert.True(t, hit)
	assert.NotEmpty(t, sig)

	sig, hit = Match("alice")
	assert.False(t, hit)
	assert.Empty(t, sig)
}

func TestNormalize(t *testing.T) {
	normalized, compressed := Normalize("  SELECT+%2A  FROM\tusers ")

	assert.Equal(t, "select * from users", normalized)
	assert.Equal(t, "select*fromusers", compressed)
}

func TestUnquote_MalformedEscapesKept(t *testing.T) {
	assert.Equal(t, "100%", unquote("100%"))
	assert.Equal(t, "%zz ok", unquote("%zz%20ok"))
	assert.Equal(t, "a'b", unquote("a%27b"))
}

func TestSignatures_Compiled(t *testing.T) {
	assert.Len(t, Signatures, len(signatureSources))
}
