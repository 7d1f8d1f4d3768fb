// Package utils provides common formatting, parsing and clock helpers for goldenkey.
package utils

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Unknown is the display text for a value that could not be parsed.
const Unknown = "-"

var (
	hundred  = decimal.NewFromInt(100)
	eokPerJo = int64(10000)
)

// FormatTradedValue renders a traded value given in millions of KRW using
// Korean magnitude units: 1억 = 100 million, 1조 = 10,000억.
// e.g., 2500 → "25억", 1234567 → "1조 2345억"
func FormatTradedValue(millions decimal.NullDecimal) string {
	if !millions.Valid {
		return Unknown
	}
	eok := millions.Decimal.Div(hundred).Truncate(0).IntPart()
	if eok >= eokPerJo {
		return fmt.Sprintf("%d조 %d억", eok/eokPerJo, eok%eokPerJo)
	}
	return fmt.Sprintf("%d억", eok)
}

// FormatChangePercent formats a change percent with an explicit sign.
// e.g., 4.5 → "+4.50%", -1.2 → "-1.20%", unknown → "-"
func FormatChangePercent(pct decimal.NullDecimal) string {
	if !pct.Valid {
		return Unknown
	}
	return FormatSignedPercent(pct.Decimal)
}

// FormatSignedPercent formats d with two decimals and an explicit leading sign
// for non-negative values.
func FormatSignedPercent(d decimal.Decimal) string {
	s := d.StringFixed(2)
	if d.Sign() >= 0 {
		return "+" + s + "%"
	}
	return s + "%"
}

// FormatGrouped formats n with comma thousands separators and the given
// number of decimals. e.g., 18302.456 → "18,302.46"
func FormatGrouped(n float64, decimals int) string {
	negative := n < 0
	n = math.Abs(n)
	s := fmt.Sprintf("%.*f", decimals, n)

	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + frac
	if negative {
		return "-" + out
	}
	return out
}
