package rules

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// stripAccents removes combining marks after canonical decomposition,
// so "é" becomes "e" and "œ" stays expandable via NFKD.
var stripAccents = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize canonicalizes extracted PDF text for approximate matching:
// accents stripped, lower-cased, no-break spaces replaced, whitespace
// runs collapsed to a single space, trimmed. Idempotent.
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	out, _, err := transform.String(stripAccents, s)
	if err != nil {
		// Malformed UTF-8 still has to be matchable, keep the raw bytes
		out = s
	}

	out = strings.ToLower(out)
	out = strings.ReplaceAll(out, "\u00a0", " ")
	out = whitespaceRe.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

// foldDecimals prepares already-normalized text for fixed-amount phrase
// matching: decimal commas become dots so "0,00" and "0.00" compare equal.
func foldDecimals(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.ReplaceAll(s, ",", ".")
	return whitespaceRe.ReplaceAllString(s, " ")
}
