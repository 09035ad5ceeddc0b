package util

import (
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultPhoneRegion = "BR"

var (
	reNonDigits      = regexp.MustCompile(`\D+`)
	rePhoneSeparator = regexp.MustCompile(`[,;/|\n\r]+`)
)

// CleanTelephone returns the digit-only national number (area code +
// subscriber). The same input always yields the same key.
func CleanTelephone(input string) string {
	trimmed := strings.TrimSpace(input)
	digits := reNonDigits.ReplaceAllString(trimmed, "")
	if digits == "" {
		return ""
	}

	if number, err := phonenumbers.Parse(trimmed, defaultPhoneRegion); err == nil && phonenumbers.IsValidNumber(number) {
		return phonenumbers.GetNationalSignificantNumber(number)
	}

	if (len(digits) == 12 || len(digits) == 13) && strings.HasPrefix(digits, "55") {
		digits = digits[2:]
	}
	if len(digits) == 11 && strings.HasPrefix(digits, "0") {
		digits = digits[1:]
	}
	return digits
}

// CleanTelephones splits a multi-phone cell and cleans each entry, dropping
// empties and duplicates.
func CleanTelephones(input string) []string {
	parts := rePhoneSeparator.Split(input, -1)
	out := make([]string, 0, len(parts))
	seen := map[string]struct{}{}
	for _, p := range parts {
		clean := CleanTelephone(p)
		if clean == "" {
			continue
		}
		if _, ok := seen[clean]; ok {
			continue
		}
		seen[clean] = struct{}{}
		out = append(out, clean)
	}
	return out
}
