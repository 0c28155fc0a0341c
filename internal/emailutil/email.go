package emailutil

import (
	"regexp"
	"strings"
)

// addressPattern accepts local@domain.tld with no whitespace and a single @.
// It is intentionally loose: some odd but valid addresses are rejected, but
// nothing without a local part, an @ and a dotted domain gets through.
var addressPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s.]+$`)

// IsValid reports whether email looks like a deliverable address.
func IsValid(email string) bool {
	return addressPattern.MatchString(email)
}

// ExtractDomain extracts domain from email address
func ExtractDomain(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return ""
	}
	return parts[1]
}
