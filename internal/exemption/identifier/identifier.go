// Package identifier normalizes and validates raw tax identifiers (VAT numbers)
// against the bloc-member country rules and, optionally, the external registry.
package identifier

import (
	"strings"
	"unicode"
)

// Identifier is a normalized tax identifier split into its country prefix and
// body. CountryPrefix is always two ASCII letters.
type Identifier struct {
	CountryPrefix string `json:"country_prefix"`
	Body          string `json:"body"`
}

// String rejoins prefix and body, e.g. "DE123456789".
func (id Identifier) String() string {
	return id.CountryPrefix + id.Body
}

// Country returns the ISO-3166 country the identifier belongs to.
func (id Identifier) Country() string {
	return CountryOf(id.CountryPrefix)
}

// Normalize strips whitespace, hyphens and periods and upper-cases raw.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if unicode.IsSpace(r) || r == '-' || r == '.' {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// Split separates a normalized string into an Identifier. ok is false when
// the string does not start with two ASCII letters.
func Split(normalized string) (Identifier, bool) {
	if len(normalized) < 2 || !isASCIIUpper(normalized[0]) || !isASCIIUpper(normalized[1]) {
		return Identifier{}, false
	}
	prefix := normalized[:2]
	if alias, ok := prefixAliases[prefix]; ok {
		prefix = alias
	}
	return Identifier{CountryPrefix: prefix, Body: normalized[2:]}, true
}

// PrefixOf returns the normalized country prefix of raw, or "" if raw does
// not start with two letters. Used for display without full validation.
func PrefixOf(raw string) string {
	id, ok := Split(Normalize(raw))
	if !ok {
		return ""
	}
	return id.CountryPrefix
}

func isASCIIUpper(c byte) bool {
	return c >= 'A' && c <= 'Z'
}
