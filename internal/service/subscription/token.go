package subscription

import "crypto/rand"

// TokenLength is the number of characters in a confirmation token.
const TokenLength = 25

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Largest multiple of len(tokenAlphabet) that fits in a byte; bytes at or
// above it are rejected so every character is equally likely.
const tokenRejectAbove = 256 - 256%len(tokenAlphabet)

// GenerateToken returns a fresh token of TokenLength characters drawn
// uniformly from [A-Za-z0-9].
func GenerateToken() string {
	out := make([]byte, 0, TokenLength)
	buf := make([]byte, TokenLength*2)
	for len(out) < TokenLength {
		// crypto/rand.Read never returns an error.
		_, _ = rand.Read(buf)
		for _, b := range buf {
			if int(b) >= tokenRejectAbove {
				continue
			}
			out = append(out, tokenAlphabet[int(b)%len(tokenAlphabet)])
			if len(out) == TokenLength {
				break
			}
		}
	}
	return string(out)
}

// ValidTokenFormat reports whether s could have come from GenerateToken.
func ValidTokenFormat(s string) bool {
	if len(s) != TokenLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}
