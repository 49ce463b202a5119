package utils

import (
	"strings"
	"unicode"
)

// NormalizeString trims surrounding whitespace and collapses inner runs of spaces.
func NormalizeString(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeEmail normalizes email addresses (lowercase and trim)
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone keeps digits and a leading +.
func NormalizePhone(phone string) string {
	cleaned := strings.TrimSpace(phone)
	if cleaned == "" {
		return ""
	}

	var result strings.Builder
	for i, r := range cleaned {
		if i == 0 && r == '+' {
			result.WriteRune(r)
		} else if unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// IsValidEmail performs basic email validation
func IsValidEmail(email string) bool {
	normalized := NormalizeEmail(email)
	if normalized == "" || strings.ContainsAny(normalized, " \t\r\n") {
		return false
	}

	parts := strings.Split(normalized, "@")
	if len(parts) != 2 {
		return false
	}

	local, domain := parts[0], parts[1]
	return len(local) > 0 && len(domain) > 2 && strings.Contains(domain, ".") &&
		!strings.HasPrefix(domain, ".") && !strings.HasSuffix(domain, ".")
}

// IsValidPhone performs basic phone validation
func IsValidPhone(phone string) bool {
	normalized := NormalizePhone(phone)
	digits := strings.TrimPrefix(normalized, "+")
	if len(digits) < 7 || len(digits) > 15 {
		return false
	}
	return true
}
