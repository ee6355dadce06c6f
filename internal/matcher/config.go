// Package matcher scores how well a bank transaction description names an
// athlete or parent, groups athletes into households and ranks candidates
// for rows that could not be matched automatically.
//
// Bank descriptions are noisy concatenations of the sender's name, transfer
// channel ("EFT", "HAVALE") and reference codes, and the sender is usually a
// parent rather than the athlete. No single string metric is reliable on such
// input, so the similarity engine computes several and keeps the most
// optimistic one. False positives are held back later by the confidence
// thresholds in MatchingConfig.
//
// Example usage:
//
//	config := matcher.DefaultMatchingConfig()
//	engine := matcher.NewEngine(config, athletes)
//
//	score := matcher.Similarity("Mehmet Yılmaz EFT", "MEHMET YILMAZ")
//	suggestions := engine.Suggest("AYSE KAYA HAVALE", config.SuggestionLimit)
//	multi := engine.IsLikelyMultiPayment(decimal.NewFromInt(700))
package matcher

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MatchingConfig holds every tuning value of the matching heuristics. The
// defaults are empirical values calibrated on club statements, not derived
// quantities, so they are kept here to be recalibrated without touching the
// algorithms.
type MatchingConfig struct {
	// AmountTolerance is the largest difference between a transaction and a
	// due that still earns amount confidence.
	AmountTolerance decimal.Decimal `json:"amount_tolerance"`

	// AmountWeight is the amount confidence of an exact amount match.
	AmountWeight float64 `json:"amount_weight"`

	// AmountDecay is the confidence lost per currency unit of difference.
	AmountDecay float64 `json:"amount_decay"`

	// NameWeight scales name confidence in the combined auto-match score.
	NameWeight float64 `json:"name_weight"`

	// AutoMatchThreshold is the combined confidence a due must exceed to be
	// matched automatically.
	AutoMatchThreshold float64 `json:"auto_match_threshold"`

	// SuggestionFloor is the score a candidate must exceed to be suggested.
	SuggestionFloor float64 `json:"suggestion_floor"`

	// SiblingRelevanceFloor is the score a sibling must exceed on its own
	// before it is flagged and boosted.
	SiblingRelevanceFloor float64 `json:"sibling_relevance_floor"`

	// SiblingBonus is added to flagged siblings, capped at 100.
	SiblingBonus float64 `json:"sibling_bonus"`

	// SiblingTieWindow lets a sibling outrank a non-sibling scoring up to this
	// many points higher.
	SiblingTieWindow float64 `json:"sibling_tie_window"`

	// ParentBoost multiplies parent-name similarity. Transfers are usually
	// sent by a parent.
	ParentBoost float64 `json:"parent_boost"`

	// FuzzyTokenFloor is the per-token Levenshtein similarity that counts as
	// a fuzzy word hit.
	FuzzyTokenFloor float64 `json:"fuzzy_token_floor"`

	// FuzzyTokenCredit is the credit of a fuzzy word hit. Exact hits earn 1.
	FuzzyTokenCredit float64 `json:"fuzzy_token_credit"`

	// SuggestionLimit is the default number of suggestions per row.
	SuggestionLimit int `json:"suggestion_limit"`

	// CommonFees are the usual monthly fees. Multiples of them suggest a
	// payment for several athletes.
	CommonFees []decimal.Decimal `json:"common_fees"`

	// FeeMultipliers are the household sizes checked against CommonFees.
	FeeMultipliers []int `json:"fee_multipliers"`

	// MultiTolerance is the allowed distance from a fee multiple.
	MultiTolerance decimal.Decimal `json:"multi_tolerance"`

	// MultiAbsoluteThreshold marks every amount at or above it as a likely
	// multi-athlete payment.
	MultiAbsoluteThreshold decimal.Decimal `json:"multi_absolute_threshold"`
}

// DefaultCommonFees returns 300, 350, ... 1000.
func DefaultCommonFees() []decimal.Decimal {
	var fees []decimal.Decimal
	for fee := int64(300); fee <= 1000; fee += 50 {
		fees = append(fees, decimal.NewFromInt(fee))
	}
	return fees
}

// DefaultMatchingConfig returns the calibrated defaults
func DefaultMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		AmountTolerance:        decimal.NewFromInt(30),
		AmountWeight:           40,
		AmountDecay:            1.3,
		NameWeight:             0.6,
		AutoMatchThreshold:     25,
		SuggestionFloor:        15,
		SiblingRelevanceFloor:  25,
		SiblingBonus:           15,
		SiblingTieWindow:       5,
		ParentBoost:            1.2,
		FuzzyTokenFloor:        70,
		FuzzyTokenCredit:       0.8,
		SuggestionLimit:        8,
		CommonFees:             DefaultCommonFees(),
		FeeMultipliers:         []int{2, 3, 4, 5},
		MultiTolerance:         decimal.NewFromInt(150),
		MultiAbsoluteThreshold: decimal.NewFromInt(500),
	}
}

// StrictMatchingConfig only auto-matches when the name clearly agrees as well
// as the amount.
func StrictMatchingConfig() *MatchingConfig {
	config := DefaultMatchingConfig()
	config.AmountTolerance = decimal.NewFromInt(5)
	config.AutoMatchThreshold = 60
	config.SuggestionFloor = 30
	config.SuggestionLimit = 5
	return config
}

// Validate checks if the matching configuration is valid
func (mc *MatchingConfig) Validate() error {
	if mc.AmountTolerance.IsNegative() {
		return fmt.Errorf("amount tolerance cannot be negative: %s", mc.AmountTolerance)
	}

	if mc.AmountWeight < 0 || mc.AmountWeight > 100 {
		return fmt.Errorf("amount weight must be between 0 and 100: %f", mc.AmountWeight)
	}

	if mc.AmountDecay < 0 {
		return fmt.Errorf("amount decay cannot be negative: %f", mc.AmountDecay)
	}

	if mc.NameWeight < 0 || mc.NameWeight > 1 {
		return fmt.Errorf("name weight must be between 0 and 1: %f", mc.NameWeight)
	}

	for name, v := range map[string]float64{
		"auto match threshold":    mc.AutoMatchThreshold,
		"suggestion floor":        mc.SuggestionFloor,
		"sibling relevance floor": mc.SiblingRelevanceFloor,
		"sibling bonus":           mc.SiblingBonus,
		"sibling tie window":      mc.SiblingTieWindow,
		"fuzzy token floor":       mc.FuzzyTokenFloor,
	} {
		if v < 0 || v > 100 {
			return fmt.Errorf("%s must be between 0 and 100: %f", name, v)
		}
	}

	if mc.ParentBoost < 1 {
		return fmt.Errorf("parent boost must be at least 1: %f", mc.ParentBoost)
	}

	if mc.FuzzyTokenCredit < 0 || mc.FuzzyTokenCredit > 1 {
		return fmt.Errorf("fuzzy token credit must be between 0 and 1: %f", mc.FuzzyTokenCredit)
	}

	if mc.SuggestionLimit <= 0 {
		return fmt.Errorf("suggestion limit must be positive: %d", mc.SuggestionLimit)
	}

	for _, fee := range mc.CommonFees {
		if !fee.IsPositive() {
			return fmt.Errorf("common fees must be positive: %s", fee)
		}
	}

	for _, k := range mc.FeeMultipliers {
		if k < 2 {
			return fmt.Errorf("fee multipliers must be at least 2: %d", k)
		}
	}

	if mc.MultiTolerance.IsNegative() {
		return fmt.Errorf("multi tolerance cannot be negative: %s", mc.MultiTolerance)
	}

	if !mc.MultiAbsoluteThreshold.IsPositive() {
		return fmt.Errorf("multi absolute threshold must be positive: %s", mc.MultiAbsoluteThreshold)
	}

	return nil
}

// Clone creates a deep copy of the matching configuration
func (mc *MatchingConfig) Clone() *MatchingConfig {
	if mc == nil {
		return nil
	}

	clone := *mc
	clone.CommonFees = append([]decimal.Decimal(nil), mc.CommonFees...)
	clone.FeeMultipliers = append([]int(nil), mc.FeeMultipliers...)
	return &clone
}

// AmountConfidence scores how close a transaction amount is to a due amount.
// Differences beyond AmountTolerance earn nothing.
func (mc *MatchingConfig) AmountConfidence(transaction, due decimal.Decimal) float64 {
	diff := transaction.Sub(due).Abs()
	if diff.GreaterThan(mc.AmountTolerance) {
		return 0
	}
	d, _ := diff.Float64()
	score := mc.AmountWeight - mc.AmountDecay*d
	if score < 0 {
		return 0
	}
	return score
}

// String returns a human-readable description of the configuration
func (mc *MatchingConfig) String() string {
	return fmt.Sprintf("MatchingConfig{AmountTolerance: %s, AutoMatch: >%.0f, SuggestionFloor: >%.0f, ParentBoost: %.2f, Limit: %d, MultiThreshold: %s}",
		mc.AmountTolerance, mc.AutoMatchThreshold, mc.SuggestionFloor, mc.ParentBoost, mc.SuggestionLimit, mc.MultiAbsoluteThreshold)
}
