// Package email derives human-readable names from email addresses.
package email

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

func isSeparator(r rune) bool {
	return r == '.' || r == '_' || r == '-' || r == '+'
}

// DisplayName turns the local part of an email address into a human display
// name: "jane.doe@example.com" becomes "Jane Doe". Used when an account is
// provisioned without an explicit name.
func DisplayName(email string) string {
	localPart, _, _ := strings.Cut(email, "@")

	parts := strings.FieldsFunc(localPart, isSeparator)
	if len(parts) == 0 {
		return "Reviewer"
	}

	for i, part := range parts {
		parts[i] = capitalize(part)
	}
	return strings.Join(parts, " ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}

	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
