// Package catalog deduplicates normalized products into canonical master
// products so that prices can be compared across retailers.
package catalog

import (
	"math"
	"strings"

	"github.com/Veraticus/the-receipts-must-flow/internal/model"
)

// Weights are the relative weights of the match signals.
type Weights struct {
	Name     float64 `mapstructure:"name" validate:"gte=0"`
	Brand    float64 `mapstructure:"brand" validate:"gte=0"`
	Size     float64 `mapstructure:"size" validate:"gte=0"`
	Keywords float64 `mapstructure:"keywords" validate:"gte=0"`
}

// MatchConfig tunes the fuzzy matcher.
type MatchConfig struct {
	Weights   Weights `mapstructure:"weights"`
	Threshold float64 `mapstructure:"threshold" validate:"gte=0,lt=1"`
}

// DefaultMatchConfig returns the default configuration.
func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		Weights: Weights{
			Name:     0.40,
			Brand:    0.25,
			Size:     0.20,
			Keywords: 0.15,
		},
		Threshold: 0.6,
	}
}

// MatchResult is the best accepted candidate.
type MatchResult struct {
	Product model.MasterProduct
	Score   float64
	Exact   bool
}

// Matcher scores a normalized product against master product candidates.
type Matcher struct {
	config MatchConfig
}

// NewMatcher creates a matcher. A zero config selects the defaults.
func NewMatcher(config MatchConfig) *Matcher {
	if config == (MatchConfig{}) {
		config = DefaultMatchConfig()
	}
	return &Matcher{config: config}
}

// Match returns the best candidate scoring strictly above the threshold.
// An identical normalized name short-circuits with score 1.0.
func (m *Matcher) Match(product model.NormalizedProduct, candidates []model.MasterProduct) (MatchResult, bool) {
	for _, candidate := range candidates {
		if candidate.NormalizedName == product.NormalizedName {
			return MatchResult{Product: candidate, Score: 1.0, Exact: true}, true
		}
	}

	var best MatchResult
	found := false
	for _, candidate := range candidates {
		score := m.Score(product, candidate)
		if score <= m.config.Threshold {
			continue
		}
		if !found || score > best.Score {
			best = MatchResult{Product: candidate, Score: score}
			found = true
		}
	}
	return best, found
}

// Score computes the weighted similarity between product and candidate. A
// signal that does not apply is left out of both numerator and denominator.
func (m *Matcher) Score(product model.NormalizedProduct, candidate model.MasterProduct) float64 {
	w := m.config.Weights
	sum := w.Name * nameSimilarity(product.NormalizedName, candidate.NormalizedName)
	applicable := w.Name

	pc := product.Components
	cc := candidate.Components()

	if pc.Brand != "" && cc.Brand != "" {
		applicable += w.Brand
		if strings.EqualFold(pc.Brand, cc.Brand) {
			sum += w.Brand
		}
	}

	if pc.HasSizeAndUnit() && cc.HasSizeAndUnit() {
		applicable += w.Size
		if pc.Unit == cc.Unit && math.Abs(pc.Size-cc.Size) < 1e-9 {
			sum += w.Size
		}
	}

	if len(candidate.Keywords) > 0 {
		applicable += w.Keywords
		sum += w.Keywords * jaccard(product.Keywords, candidate.Keywords)
	}

	if applicable == 0 {
		return 0
	}
	return sum / applicable
}

// Match uses the default matcher.
func Match(product model.NormalizedProduct, candidates []model.MasterProduct) (MatchResult, bool) {
	return defaultMatcher.Match(product, candidates)
}

var defaultMatcher = NewMatcher(DefaultMatchConfig())
