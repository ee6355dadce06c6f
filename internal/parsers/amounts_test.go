package parsers

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"thousands and decimal comma", "2.100,00", "2100"},
		{"decimal comma", "1234,56", "1234.56"},
		{"decimal dot", "1234.56", "1234.56"},
		{"thousands dot", "1.234", "1234"},
		{"many thousands dots", "1.234.567", "1234567"},
		{"english grouping", "1,234.56", "1234.56"},
		{"thousands comma", "1,234", "1234"},
		{"plain integer", "350", "350"},
		{"lira sign", "₺350,00", "350"},
		{"TL suffix", "1.250,50 TL", "1250.5"},
		{"TRY suffix", "700 TRY", "700"},
		{"explicit plus", "+350", "350"},
		{"nbsp grouping", "1 250,00", "1250"},
		{"trailing separator", "350,", "350"},
		{"negative", "-500", "0"},
		{"trailing minus", "500,00-", "0"},
		{"parenthesized", "(500,00)", "0"},
		{"text", "EFT", "0"},
		{"mixed text", "350 TL aidat", "0"},
		{"empty", "", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseAmount(tt.input)
			expected := decimal.RequireFromString(tt.expected)
			if !result.Equal(expected) {
				t.Errorf("Expected %s, got %s", expected, result)
			}
		})
	}
}

func TestParseSignedAmountKeepsSign(t *testing.T) {
	d, ok := parseSignedAmount("-1.250,00")
	if !ok {
		t.Fatal("Expected negative amount to parse")
	}
	if !d.Equal(decimal.NewFromInt(-1250)) {
		t.Errorf("Expected -1250, got %s", d)
	}

	if _, ok := parseSignedAmount("abc"); ok {
		t.Error("Expected text to be rejected")
	}
}
