// Package match decides whether an incoming provider sighting refers to a
// venue already in the registry. Matching is geometric: candidates within
// a small radius of the sighting, nearest first, with normalized names
// contributing only to candidate ranking.
package match

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// legalSuffixes are corporate-form tokens that providers append
// inconsistently. They are stripped as whole tokens only, so "Coop" or
// "Gmbhaus" stay intact.
var legalSuffixes = map[string]bool{
	"gmbh": true,
	"ug":   true,
	"ev":   true, // covers "e.V." once periods are stripped
	"inc":  true,
	"llc":  true,
	"ltd":  true,
	"corp": true,
	"co":   true,
}

// foldDiacritics strips combining marks after NFD decomposition, so
// "Café" and "Cafe" normalize identically.
var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize reduces a venue name to its comparison key: lowercase,
// diacritics folded, decorative punctuation and legal suffixes removed,
// whitespace collapsed. Two names with equal keys are considered the
// same name. The key is never stored or displayed.
func Normalize(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	if folded, _, err := transform.String(foldDiacritics, s); err == nil {
		s = folded
	}

	// " - " is a decorative separator ("Hirsch - Live Music"), not a
	// hyphenated name, so only the spaced form becomes a space.
	s = strings.ReplaceAll(s, " - ", " ")
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\'', '’', '"', '“', '”', '`', ',', '.':
			return -1
		}
		return r
	}, s)

	fields := strings.Fields(s)
	kept := fields[:0]
	for _, f := range fields {
		if legalSuffixes[f] {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

// DisplayName cleans an incoming name for storage without flattening it
// the way Normalize does: original casing and punctuation survive, but
// trailing legal-suffix tokens are dropped. "Hirsch Live Music GmbH"
// becomes "Hirsch Live Music".
func DisplayName(name string) string {
	fields := strings.Fields(strings.TrimSpace(name))
	for len(fields) > 1 {
		last := strings.ToLower(strings.Trim(fields[len(fields)-1], ".,"))
		if !legalSuffixes[strings.ReplaceAll(last, ".", "")] {
			break
		}
		fields = fields[:len(fields)-1]
	}
	return strings.Join(fields, " ")
}
