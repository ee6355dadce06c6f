package parsers

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var currencyMarkers = strings.NewReplacer(
	"₺", "",
	"TRY", "",
	"TL", "",
	"USD", "",
	"EUR", "",
	"$", "",
	"€", "",
	" ", "",
	"\u00a0", "",
	"\u202f", "",
	"\t", "",
)

var numericBody = regexp.MustCompile(`^[0-9][0-9.,]*$`)

// ParseAmount extracts an incoming payment amount from a cell. Negative,
// empty and unparseable cells yield zero, which callers treat as "no amount".
//
// Separators follow Turkish conventions when ambiguous: "1.234,56" and
// "1234,56" use a decimal comma, "1234.56" a decimal point, and "1.234"
// a thousands dot.
func ParseAmount(cell string) decimal.Decimal {
	amount, ok := parseSignedAmount(cell)
	if !ok || amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

// parseSignedAmount keeps the sign so row extraction can tell an outgoing
// transfer from a cell that holds no amount at all.
func parseSignedAmount(cell string) (decimal.Decimal, bool) {
	s := currencyMarkers.Replace(strings.TrimSpace(cell))
	if s == "" {
		return decimal.Zero, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	switch {
	case strings.HasPrefix(s, "-"):
		negative = true
		s = s[1:]
	case strings.HasSuffix(s, "-"):
		negative = true
		s = s[:len(s)-1]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	s = strings.TrimRight(s, ".,")

	if !numericBody.MatchString(s) {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(normalizeSeparators(s))
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d.Round(2), true
}

func normalizeSeparators(s string) string {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			return strings.Replace(strings.ReplaceAll(s, ".", ""), ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 && len(s)-lastComma-1 <= 2 {
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 || len(s)-lastDot-1 > 2 {
			return strings.ReplaceAll(s, ".", "")
		}
		return s
	default:
		return s
	}
}
