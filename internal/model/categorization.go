package model

import "time"

// Method records which waterfall stage produced a categorization.
type Method string

// Categorization method constants.
const (
	MethodCache          Method = "cache"
	MethodUserCorrection Method = "user_correction"
	MethodRule           Method = "rule"
	MethodStorePattern   Method = "store_pattern"
	MethodAI             Method = "ai"
)

// Valid reports whether m is a known method.
func (m Method) Valid() bool {
	switch m {
	case MethodCache, MethodUserCorrection, MethodRule, MethodStorePattern, MethodAI:
		return true
	}
	return false
}

// CategorizationResult is the single winning categorization for an item.
type CategorizationResult struct {
	Detail       Detail  `json:"-"`
	CategoryID   string  `json:"category_id"`
	CategoryName string  `json:"category_name"`
	Method       Method  `json:"method"`
	Subcategory  string  `json:"subcategory,omitempty"`
	Confidence   float64 `json:"confidence"`
}

// Detail is the stage-specific payload of a categorization result. The set of
// implementations is closed; switch over them exhaustively.
type Detail interface {
	method() Method
}

// CacheHit is produced by the static dictionary stage.
type CacheHit struct {
	Key string
}

// CorrectionHit is produced by a stored user override.
type CorrectionHit struct {
	CorrectedAt time.Time
}

// RuleHit is produced by the keyword rule stage.
type RuleHit struct {
	Keyword string
}

// StorePatternHit is produced by a retailer brand pattern.
type StorePatternHit struct {
	Store   string
	Pattern string
}

// AIHit is produced by the external classifier.
type AIHit struct {
	Provider string
}

// DefaultResult marks the fallthrough "other" result.
type DefaultResult struct{}

func (CacheHit) method() Method        { return MethodCache }
func (CorrectionHit) method() Method   { return MethodUserCorrection }
func (RuleHit) method() Method         { return MethodRule }
func (StorePatternHit) method() Method { return MethodStorePattern }
func (AIHit) method() Method           { return MethodAI }
func (DefaultResult) method() Method   { return MethodRule }

// NewResult builds a result whose Method always agrees with its detail.
func NewResult(category Category, confidence float64, detail Detail) CategorizationResult {
	return CategorizationResult{
		CategoryID:   category.ID,
		CategoryName: category.Name,
		Confidence:   confidence,
		Method:       detail.method(),
		Detail:       detail,
	}
}

// IsDefault reports whether the result is the fallthrough "other" result.
func (r CategorizationResult) IsDefault() bool {
	_, ok := r.Detail.(DefaultResult)
	return ok
}

// Correction is a user override of a category, used as supervised signal.
type Correction struct {
	CreatedAt      time.Time
	ID             string
	UserID         string
	RawName        string
	NormalizedName string
	CategoryID     string
}

// Suggestion is an external classifier's answer for one product name.
type Suggestion struct {
	CategoryID string
	Provider   string
	Confidence float64
}
