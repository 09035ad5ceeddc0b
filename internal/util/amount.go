package util

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	reDotThousands   = regexp.MustCompile(`^-?\d{1,3}(?:\.\d{3})+(?:,\d+)?$`)
	reCommaThousands = regexp.MustCompile(`^-?\d{1,3}(?:,\d{3})+(?:\.\d+)?$`)
	reCommaDecimal   = regexp.MustCompile(`^-?\d+,\d+$`)
	rePlain          = regexp.MustCompile(`^-?\d+(?:\.\d+)?$`)
)

// ParseAmount reads a monetary cell. Brazilian formatting ("1.234,56") wins
// over US formatting when the string is ambiguous.
func ParseAmount(input string) (float64, bool) {
	s := strings.ReplaceAll(input, "\u00A0", " ")
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, false
	}

	switch {
	case reDotThousands.MatchString(s):
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	case reCommaDecimal.MatchString(s):
		s = strings.ReplaceAll(s, ",", ".")
	case reCommaThousands.MatchString(s):
		s = strings.ReplaceAll(s, ",", "")
	case rePlain.MatchString(s):
	default:
		return 0, false
	}

	parsed, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0, false
	}
	return parsed, true
}

// ParseNumber reads machine-written numbers ("10.125", "-3", "1e3"), as they
// come from typed spreadsheet cells and JSON. NaN and infinities are rejected.
func ParseNumber(input string) (float64, bool) {
	s := strings.TrimSpace(input)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// FormatBRL renders v as "R$ 1.234,56".
func FormatBRL(v float64) string {
	return "R$ " + FormatDecimalBR(v, 2)
}

// FormatDecimalBR formats with dot thousands and comma decimals.
func FormatDecimalBR(v float64, decimals int) string {
	neg := v < 0
	if neg {
		v = -v
	}
	raw := strconv.FormatFloat(v, 'f', decimals, 64)
	intPart, fracPart, _ := strings.Cut(raw, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := b.String()
	if fracPart != "" {
		out += "," + fracPart
	}
	if neg {
		out = "-" + out
	}
	return out
}
