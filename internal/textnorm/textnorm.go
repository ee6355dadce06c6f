// Package textnorm turns free-form Turkish text from bank exports and roster
// records into comparable forms.
//
// Normalization never picks one canonical spelling. Bank exports mix
// diacritic and ASCII spellings of the same name ("Yılmaz", "YILMAZ",
// "Yilmaz"), so every caller receives all variants and compares each pair.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var turkishLower = cases.Lower(language.Turkish)

var asciiFold = strings.NewReplacer(
	"ğ", "g",
	"ü", "u",
	"ş", "s",
	"ı", "i",
	"ö", "o",
	"ç", "c",
)

// Variants returns the normalized forms of text: the Turkish-lowercased
// original first, then its ASCII-folded spelling when that differs.
// Blank input yields a single empty variant.
func Variants(text string) []string {
	lowered := Lower(text)
	if lowered == "" {
		return []string{""}
	}
	folded := fold(lowered)
	if folded == lowered {
		return []string{lowered}
	}
	return []string{lowered, folded}
}

// Lower case-folds with Turkish rules (İ→i, I→ı) and collapses every run of
// punctuation and whitespace to a single space.
func Lower(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return collapse(turkishLower.String(text))
}

// Key is the form used to remember descriptions across imports. It is the
// ASCII variant so the same payer matches however the bank spelled the name.
func Key(text string) string {
	v := Variants(text)
	return v[len(v)-1]
}

// Compact removes every separator from a normalized variant.
func Compact(variant string) string {
	return strings.ReplaceAll(variant, " ", "")
}

// Tokens splits a normalized variant into words longer than one rune.
func Tokens(variant string) []string {
	fields := strings.Fields(variant)
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) > 1 {
			out = append(out, f)
		}
	}
	return out
}

// Digits keeps only the decimal digits of s.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func fold(s string) string {
	s = asciiFold.Replace(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func collapse(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
			continue
		}
		pendingSpace = true
	}
	return b.String()
}
