package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

var displayNoise = strings.NewReplacer(
	",", "",
	"%", "",
	"+", "",
	" ", "",
	"\t", "",
	"\n", "",
	"\u00a0", "",
	"\u2212", "-", // unicode minus
)

// ParseDisplayDecimal parses scraped display text such as "+3.21%", "1,234"
// or "-0.5 %". Text that is still not numeric after stripping signs, percent
// marks and thousands separators yields an invalid NullDecimal.
func ParseDisplayDecimal(s string) decimal.NullDecimal {
	clean := displayNoise.Replace(strings.TrimSpace(s))
	if clean == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// NormalizeSign makes a change display carry an explicit sign: values that
// already start with "-" keep it, everything else gets a leading "+".
// Whitespace is trimmed and a duplicated "+" is collapsed.
func NormalizeSign(s string) string {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return s
	case strings.HasPrefix(s, "-"), strings.HasPrefix(s, "\u2212"):
		return "-" + strings.TrimLeft(s, "-\u2212")
	default:
		return "+" + strings.TrimLeft(s, "+")
	}
}

// ContainsAny reports whether s contains any of the given substrings.
func ContainsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
