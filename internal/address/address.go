// Package address canonicalizes free-text postal addresses for fuzzy
// comparison. Output is only ever compared, never stored; the original
// text is preserved on the deal.
package address

import (
	"regexp"
	"strings"
)

var (
	punctRe      = regexp.MustCompile(`[.,#\-]`)
	whitespaceRe = regexp.MustCompile(`\s+`)

	// Street-suffix abbreviations applied on word boundaries.
	suffixRes = []struct {
		re   *regexp.Regexp
		repl string
	}{
		{regexp.MustCompile(`\bstreet\b`), "st"},
		{regexp.MustCompile(`\bavenue\b`), "ave"},
		{regexp.MustCompile(`\bboulevard\b`), "blvd"},
		{regexp.MustCompile(`\bdrive\b`), "dr"},
		{regexp.MustCompile(`\blane\b`), "ln"},
		{regexp.MustCompile(`\broad\b`), "rd"},
		{regexp.MustCompile(`\bcourt\b`), "ct"},
		{regexp.MustCompile(`\bcircle\b`), "cir"},
		{regexp.MustCompile(`\bplace\b`), "pl"},
	}

	// Tokens that mark the end of the street portion of an address
	// (unit designators, then state codes used by the lender's market).
	streetCutoffRe = regexp.MustCompile(`\b(apt|unit|suite|ste|city|ca|az|nv|tx|fl|ny|wa|or)\b`)
)

// Normalize lower-cases the text, strips punctuation, abbreviates street
// suffixes and collapses whitespace. Pure function, no failure mode.
func Normalize(text string) string {
	s := strings.ToLower(text)
	s = punctRe.ReplaceAllString(s, " ")
	for _, sub := range suffixRes {
		s = sub.re.ReplaceAllString(s, sub.repl)
	}
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// StreetPortion returns everything in a normalized address before the first
// unit/city/state token. Used for partial matching of a property address
// inside an email subject line.
func StreetPortion(normalized string) string {
	loc := streetCutoffRe.FindStringIndex(normalized)
	if loc == nil {
		return strings.TrimSpace(normalized)
	}
	return strings.TrimSpace(normalized[:loc[0]])
}
