// Package normalize provides canonical text forms shared by the
// detection, indexing and matching stages.
//
// Document numbers are the cross-system join key, so their
// normalization is deliberately lossy: formatting, case and zero
// padding must never block a match. The resulting false-positive risk
// on short numeric codes is mitigated by the prefix-match guard in the
// reconciler.
package normalize

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	dateRe    = regexp.MustCompile(`^\d{1,2}[./]\d{1,2}[./]\d{2,4}$`)
	numericRe = regexp.MustCompile(`^-?\d+([ \x{00A0}]\d{3})*([.,]\d+)?$`)
	spacesRe  = regexp.MustCompile(`\s+`)
	quotesRe  = regexp.MustCompile(`[«»"']`)
)

// Header canonicalizes a header cell for label matching: quotes
// stripped, whitespace collapsed, lowercased.
func Header(value string) string {
	text := quotesRe.ReplaceAllString(value, "")
	text = spacesRe.ReplaceAllString(text, " ")
	return strings.ToLower(strings.TrimSpace(text))
}

// Amount strips plain and non-breaking spaces and converts a decimal
// comma to a dot. It does not validate well-formedness; IsNumeric does.
func Amount(value string) string {
	if value == "" {
		return ""
	}
	value = strings.ReplaceAll(value, " ", "")
	value = strings.ReplaceAll(value, " ", "")
	return strings.ReplaceAll(value, ",", ".")
}

// DocNumber reduces a document number to its canonical join-key form:
// alphanumeric characters only, lowercased, leading zeros stripped.
func DocNumber(value string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(value)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimLeft(b.String(), "0")
}

// IsDate reports whether value looks like a D.M.Y date with dot or
// slash separators and a 2- or 4-digit year.
func IsDate(value string) bool {
	value = strings.TrimSpace(value)
	return value != "" && dateRe.MatchString(value)
}

// IsNumeric reports whether value is an optionally signed, optionally
// thousands-grouped decimal number with either separator, ignoring
// plain and non-breaking spaces.
func IsNumeric(value string) bool {
	if value == "" {
		return false
	}
	text := strings.ReplaceAll(value, " ", "")
	text = strings.ReplaceAll(text, " ", "")
	return numericRe.MatchString(text)
}
