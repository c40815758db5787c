package model

// IssueType classifies a quality finding.
type IssueType string

// Issue type constants.
const (
	IssueTotalMismatch IssueType = "total_mismatch"
	IssueUnusualItem   IssueType = "unusual_item"
	IssuePatternBreak  IssueType = "pattern_break"
	IssueOCRError      IssueType = "ocr_error"
)

// Severity ranks a quality finding.
type Severity string

// Severity constants.
const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank orders severities so that findings can be sorted high first.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// ValidationIssue is a single quality finding.
type ValidationIssue struct {
	ItemRef    *int      `json:"item_ref,omitempty"`
	Type       IssueType `json:"type"`
	Severity   Severity  `json:"severity"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
}

// IsCritical reports whether the finding must reach the user. High findings
// always do; medium findings do unless they are unusual-item notes.
func (i ValidationIssue) IsCritical() bool {
	switch i.Severity {
	case SeverityHigh:
		return true
	case SeverityMedium:
		return i.Type != IssueUnusualItem
	}
	return false
}

// ValidationResult aggregates the findings for one receipt.
type ValidationResult struct {
	ReceiptID             string            `json:"receipt_id"`
	Critical              []ValidationIssue `json:"critical"`
	AutoResolved          []ValidationIssue `json:"auto_resolved"`
	Passed                bool              `json:"passed"`
	RequiresUserAttention bool              `json:"requires_user_attention"`
}

// Issues returns every finding, critical first.
func (r ValidationResult) Issues() []ValidationIssue {
	out := make([]ValidationIssue, 0, len(r.Critical)+len(r.AutoResolved))
	out = append(out, r.Critical...)
	return append(out, r.AutoResolved...)
}

// UserHistory is a read-only snapshot of a user's recent purchases.
type UserHistory struct {
	CommonCategories  map[string]struct{}
	CommonStores      map[string]struct{}
	AveragePriceByKey map[string]float64
	CategoryByStore   map[string]map[string]struct{}
}

// NewUserHistory returns an empty snapshot with all maps allocated.
func NewUserHistory() UserHistory {
	return UserHistory{
		CommonCategories:  make(map[string]struct{}),
		CommonStores:      make(map[string]struct{}),
		AveragePriceByKey: make(map[string]float64),
		CategoryByStore:   make(map[string]map[string]struct{}),
	}
}

// HasSeen reports whether the user bought a product with this key before.
func (h UserHistory) HasSeen(key string) bool {
	_, ok := h.AveragePriceByKey[key]
	return ok
}

// HasCategory reports whether the user bought anything in the category.
func (h UserHistory) HasCategory(categoryID string) bool {
	_, ok := h.CommonCategories[categoryID]
	return ok
}

// StoreHasCategory reports whether the store was ever associated with the category.
func (h UserHistory) StoreHasCategory(store, categoryID string) bool {
	cats, ok := h.CategoryByStore[store]
	if !ok {
		return false
	}
	_, ok = cats[categoryID]
	return ok
}
