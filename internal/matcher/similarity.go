package matcher

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"athlete-payment-reconciler/internal/textnorm"
)

// Substring matches never score above this, leaving room for exact and
// whole-word matches to rank higher.
const (
	containmentCeiling = 95.0
	substringCeiling   = 85.0
)

// Similarity scores two free-text strings from 0 to 100. Both sides are
// normalized into their variants and every pair is scored; the best pair wins.
func Similarity(a, b string) float64 {
	best := 0.0
	for _, x := range textnorm.Variants(a) {
		for _, y := range textnorm.Variants(b) {
			if s := variantSimilarity(x, y); s > best {
				best = s
			}
			if best >= 100 {
				return 100
			}
		}
	}
	return best
}

// variantSimilarity is the maximum over all sub-scores of two normalized variants.
func variantSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 100
	}
	if textnorm.Compact(a) == textnorm.Compact(b) {
		return 100
	}

	best := 0.0
	if strings.Contains(a, b) || strings.Contains(b, a) {
		best = lengthRatio(a, b) * containmentCeiling
	}

	ta, tb := textnorm.Tokens(a), textnorm.Tokens(b)
	if coversAll(ta, tb) || coversAll(tb, ta) {
		return 100
	}

	lev := LevenshteinSimilarity(a, b)
	jac := Jaccard(ta, tb)
	sub := LongestCommonSubstringRatio(a, b) * substringCeiling
	combined := 0.4*lev + 0.4*jac + 0.2*sub

	for _, s := range []float64{partialWordMatch(ta, tb), lev, jac, sub, combined} {
		if s > best {
			best = s
		}
	}
	return best
}

// coversAll reports whether every token of from, being at least two, appears in to.
func coversAll(from, to []string) bool {
	if len(from) < 2 {
		return false
	}
	set := tokenSet(to)
	for _, t := range from {
		if !set[t] {
			return false
		}
	}
	return true
}

func partialWordMatch(ta, tb []string) float64 {
	sa, sb := tokenSet(ta), tokenSet(tb)
	longest := len(sa)
	if len(sb) > longest {
		longest = len(sb)
	}
	if longest == 0 {
		return 0
	}
	matches := 0
	for t := range sa {
		if sb[t] {
			matches++
		}
	}
	return float64(matches) / float64(longest) * 100
}

// LevenshteinSimilarity converts edit distance into a 0..100 score relative
// to the longer string.
func LevenshteinSimilarity(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return float64(longest-dist) / float64(longest) * 100
}

// Jaccard scores token set overlap from 0 to 100.
func Jaccard(ta, tb []string) float64 {
	sa, sb := tokenSet(ta), tokenSet(tb)
	union := len(sa)
	intersection := 0
	for t := range sb {
		if sa[t] {
			intersection++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union) * 100
}

// LongestCommonSubstringRatio is the longest run shared by a and b as a
// fraction of the longer string.
func LongestCommonSubstringRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	longest := 0
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1] + 1
				if curr[j] > longest {
					longest = curr[j]
				}
			} else {
				curr[j] = 0
			}
		}
		prev, curr = curr, prev
	}
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	return float64(longest) / float64(maxLen)
}

// WordOverlap scores how much of name appears word by word in description.
// Each name token earns 1 for an exact hit in the description, credit for a
// fuzzy hit at or above floor, and nothing otherwise.
func WordOverlap(description, name string, floor, credit float64) float64 {
	best := 0.0
	for _, dv := range textnorm.Variants(description) {
		descTokens := textnorm.Tokens(dv)
		if len(descTokens) == 0 {
			continue
		}
		for _, nv := range textnorm.Variants(name) {
			nameTokens := textnorm.Tokens(nv)
			if len(nameTokens) == 0 {
				continue
			}
			if s := tokenOverlap(descTokens, nameTokens, floor, credit); s > best {
				best = s
			}
		}
	}
	return best
}

func tokenOverlap(descTokens, nameTokens []string, floor, credit float64) float64 {
	desc := tokenSet(descTokens)
	total := 0.0
	for _, nt := range nameTokens {
		if desc[nt] {
			total++
			continue
		}
		for _, dt := range descTokens {
			if LevenshteinSimilarity(nt, dt) >= floor {
				total += credit
				break
			}
		}
	}
	return total / float64(len(nameTokens)) * 100
}

func lengthRatio(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	if la > lb {
		la, lb = lb, la
	}
	return float64(la) / float64(lb)
}

func tokenSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}
