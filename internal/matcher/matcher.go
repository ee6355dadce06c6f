package matcher

import (
	"sort"

	"github.com/shopspring/decimal"

	"athlete-payment-reconciler/internal/models"
	"athlete-payment-reconciler/pkg/logger"
)

// Engine ranks roster athletes against transaction descriptions
type Engine struct {
	config   *MatchingConfig
	athletes []models.Athlete
	siblings *SiblingIndex
	logger   logger.Logger
}

// NewEngine creates an engine over a roster snapshot. A nil config uses the defaults.
func NewEngine(config *MatchingConfig, athletes []models.Athlete) *Engine {
	if config == nil {
		config = DefaultMatchingConfig()
	}
	e := &Engine{
		config:   config,
		athletes: athletes,
		siblings: FindSiblings(athletes),
		logger:   logger.GetGlobalLogger().WithComponent("matcher"),
	}
	e.logger.WithFields(logger.Fields{
		"athletes":       len(athletes),
		"sibling_groups": len(e.siblings.Groups()),
	}).Debug("Created matching engine")
	return e
}

// Config returns the engine configuration
func (e *Engine) Config() *MatchingConfig {
	return e.config
}

// Siblings returns the households found in the roster
func (e *Engine) Siblings() *SiblingIndex {
	return e.siblings
}

// NameConfidence scores how well description names the athlete or the
// parent, taking the best of string similarity and word overlap.
func (e *Engine) NameConfidence(description string, athlete models.Athlete) float64 {
	best := 0.0
	for _, name := range []string{athlete.FullName(), athlete.ParentFullName()} {
		if name == "" {
			continue
		}
		for _, s := range []float64{
			Similarity(description, name),
			WordOverlap(description, name, e.config.FuzzyTokenFloor, e.config.FuzzyTokenCredit),
		} {
			if s > best {
				best = s
			}
		}
	}
	return best
}

// suggestionScore is the ranking score of one athlete before sibling handling.
func (e *Engine) suggestionScore(description string, athlete models.Athlete) float64 {
	score := 0.0
	if name := athlete.FullName(); name != "" {
		score = Similarity(description, name)
		if s := WordOverlap(description, name, e.config.FuzzyTokenFloor, e.config.FuzzyTokenCredit); s > score {
			score = s
		}
	}
	if parent := athlete.ParentFullName(); parent != "" {
		boosted := Similarity(description, parent) * e.config.ParentBoost
		if boosted > 100 {
			boosted = 100
		}
		if boosted > score {
			score = boosted
		}
		if s := WordOverlap(description, parent, e.config.FuzzyTokenFloor, e.config.FuzzyTokenCredit); s > score {
			score = s
		}
	}
	return score
}

// Suggest proposes up to limit athletes for description, best first.
// Siblings are flagged and boosted only when they already look relevant on
// their own. A non-positive limit uses the configured default.
func (e *Engine) Suggest(description string, limit int) []models.Suggestion {
	if limit <= 0 {
		limit = e.config.SuggestionLimit
	}

	var out []models.Suggestion
	for _, a := range e.athletes {
		score := e.suggestionScore(description, a)
		sibling := false
		if e.siblings.HasSiblings(a.ID) && score > e.config.SiblingRelevanceFloor {
			sibling = true
			score += e.config.SiblingBonus
			if score > 100 {
				score = 100
			}
		}
		if score <= e.config.SuggestionFloor {
			continue
		}
		out = append(out, models.Suggestion{
			AthleteID:   a.ID,
			AthleteName: a.FullName(),
			ParentName:  a.ParentFullName(),
			Similarity:  score,
			IsSibling:   sibling,
		})
	}

	rankSuggestions(out, e.config.SiblingTieWindow)

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// rankSuggestions orders by score, letting a sibling outrank a non-sibling
// that scores at most window points higher. Equal ranks keep input order.
func rankSuggestions(out []models.Suggestion, window float64) {
	rank := func(s models.Suggestion) float64 {
		if s.IsSibling {
			return s.Similarity + window
		}
		return s.Similarity
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := rank(out[i]), rank(out[j])
		if ri != rj {
			return ri > rj
		}
		if out[i].IsSibling != out[j].IsSibling {
			return out[i].IsSibling
		}
		return out[i].Similarity > out[j].Similarity
	})
}

// IsLikelyMultiPayment reports whether amount probably covers more than one
// athlete's fee
func (e *Engine) IsLikelyMultiPayment(amount decimal.Decimal) bool {
	return IsLikelyMultiPayment(amount, e.config)
}

// IsLikelyMultiPayment is true when amount lies within MultiTolerance of a
// common fee times a household size, or reaches MultiAbsoluteThreshold.
func IsLikelyMultiPayment(amount decimal.Decimal, config *MatchingConfig) bool {
	if amount.GreaterThanOrEqual(config.MultiAbsoluteThreshold) {
		return true
	}
	for _, fee := range config.CommonFees {
		for _, k := range config.FeeMultipliers {
			expected := fee.Mul(decimal.NewFromInt(int64(k)))
			if amount.Sub(expected).Abs().LessThanOrEqual(config.MultiTolerance) {
				return true
			}
		}
	}
	return false
}
