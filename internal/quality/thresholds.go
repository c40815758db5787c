// Package quality runs post-hoc heuristic checks over a fully categorized
// receipt and separates findings the user must see from those that can be
// resolved silently.
package quality

// Thresholds are the tunable cutoffs of the validator.
type Thresholds struct {
	// TotalTolerance is the accepted gap between declared and summed totals,
	// as a fraction of the declared total.
	TotalTolerance float64 `mapstructure:"total_tolerance" validate:"gt=0,lt=1"`
	// HighSeverityMultiplier escalates a total mismatch to high severity
	// once the gap exceeds this multiple of the tolerance.
	HighSeverityMultiplier float64 `mapstructure:"high_severity_multiplier" validate:"gte=1"`

	MinItemConfidence  float64 `mapstructure:"min_item_confidence" validate:"gte=0,lte=1"`
	NewItemConfidence  float64 `mapstructure:"new_item_confidence" validate:"gte=0,lte=1"`
	PriceAnomalyFactor float64 `mapstructure:"price_anomaly_factor" validate:"gt=1"`

	PatternBreakMinItems       int     `mapstructure:"pattern_break_min_items" validate:"gte=1"`
	PatternBreakMeanConfidence float64 `mapstructure:"pattern_break_mean_confidence" validate:"gte=0,lte=1"`
	StoreCategoryConfidence    float64 `mapstructure:"store_category_confidence" validate:"gte=0,lte=1"`

	HistoryMonths int `mapstructure:"history_months" validate:"gte=1"`
}

// DefaultThresholds returns the default cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TotalTolerance:             0.02,
		HighSeverityMultiplier:     2,
		MinItemConfidence:          0.7,
		NewItemConfidence:          0.85,
		PriceAnomalyFactor:         3,
		PatternBreakMinItems:       2,
		PatternBreakMeanConfidence: 0.75,
		StoreCategoryConfidence:    0.8,
		HistoryMonths:              3,
	}
}
