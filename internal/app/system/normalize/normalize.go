// Package normalize canonicalises user-supplied identifiers before they are
// stored or looked up.
package normalize

import (
	"strings"
	"unicode"
)

// Email trims and lowercases an address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims surrounding space and collapses inner runs of whitespace.
func Name(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Mobile keeps a leading "+" and the digits, and separates a country code
// written with a space ("+91 98765 43210" -> "+91 9876543210").
func Mobile(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	prefix := ""
	rest := s
	if strings.HasPrefix(s, "+") {
		code, tail, ok := strings.Cut(s[1:], " ")
		if ok {
			prefix = "+" + digits(code) + " "
			rest = tail
		} else {
			prefix = "+"
			rest = s[1:]
		}
	}
	return prefix + digits(rest)
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// QueryParam trims a query-string value.
func QueryParam(s string) string {
	return strings.TrimSpace(s)
}
