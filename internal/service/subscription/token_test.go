package subscription

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateToken_Format(t *testing.T) {
	for i := 0; i < 200; i++ {
		tok := GenerateToken()
		assert.Len(t, tok, TokenLength)
		assert.True(t, ValidTokenFormat(tok), "token %q", tok)
	}
}

func TestGenerateToken_Unique(t *testing.T) {
	seen := make(map[string]bool, 1000)
	for i := 0; i < 1000; i++ {
		tok := GenerateToken()
		assert.False(t, seen[tok], "duplicate token %q", tok)
		seen[tok] = true
	}
}

func TestGenerateToken_UsesWholeAlphabet(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 400; i++ {
		sb.WriteString(GenerateToken())
	}
	all := sb.String()
	for _, c := range tokenAlphabet {
		assert.Contains(t, all, string(c))
	}
}

func TestValidTokenFormat(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"valid", "abcdeABCDE0123456789vwxyz", true},
		{"too short", "abc", false},
		{"too long", strings.Repeat("a", TokenLength+1), false},
		{"empty", "", false},
		{"punctuation", "abcdeABCDE0123456789vwxy-", false},
		{"non ascii", "abcdeABCDE0123456789vwxé", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidTokenFormat(tt.token))
		})
	}
}
