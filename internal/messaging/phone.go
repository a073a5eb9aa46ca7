package messaging

import "strings"

// NormalizeE164 ensures the value begins with + and only contains digits afterward.
func NormalizeE164(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	digits := sanitizePhone(value)
	if digits == "" {
		return ""
	}
	return "+" + digits
}

func sanitizePhone(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// MaskPhone returns the last 4 digits of a phone number for logging.
func MaskPhone(phone string) string {
	digits := sanitizePhone(phone)
	if len(digits) <= 4 {
		return "****"
	}
	return "***" + digits[len(digits)-4:]
}
