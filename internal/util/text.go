package util

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var reSpaces = regexp.MustCompile(`\s+`)

// NormalizeName trims, collapses whitespace, strips everything that is not
// ASCII after compatibility decomposition and title-cases each word.
// Non-string input yields "".
func NormalizeName(v any) string {
	name, ok := v.(string)
	if !ok {
		return ""
	}
	name = NormalizeSpaces(name)
	name = ToASCII(name)
	name = NormalizeSpaces(name)
	if name == "" {
		return ""
	}
	return titleWords(name)
}

// titleWords upper-cases every letter that follows a non-letter and
// lower-cases the rest, so "d'avila" becomes "D'Avila".
func titleWords(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		isLetter := unicode.IsLetter(r)
		switch {
		case isLetter && !prevLetter:
			b.WriteRune(unicode.ToUpper(r))
		case isLetter:
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
		prevLetter = isLetter
	}
	return b.String()
}

// NameKey is the join key derived from a person name.
func NameKey(name string) string {
	return strings.ToLower(NormalizeName(name))
}

// ToASCII decomposes to NFKD and drops every non-ASCII rune.
func ToASCII(s string) string {
	decomposed := norm.NFKD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if r > unicode.MaxASCII {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Fold lowercases and strips diacritics; used for header and label comparison.
func Fold(s string) string {
	return strings.ToLower(NormalizeSpaces(ToASCII(s)))
}

func NormalizeSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
