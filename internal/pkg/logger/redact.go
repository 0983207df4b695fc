package logger

import "strings"

// RedactEmail masks the local part of an address for safe logging.
// "john.doe@example.com" -> "jo***@example.com"; local parts of two
// characters or fewer are fully masked.
func RedactEmail(email string) string {
	local, domain, ok := strings.Cut(strings.TrimSpace(email), "@")
	if !ok || strings.Contains(domain, "@") {
		return "***@***"
	}
	if len(local) > 2 {
		return local[:2] + "***@" + domain
	}
	return "***@" + domain
}
