package quality

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Veraticus/the-receipts-must-flow/internal/categorize"
	"github.com/Veraticus/the-receipts-must-flow/internal/model"
)

// Validator checks categorized receipts against a user's purchase history.
// It never writes anything and holds no per-receipt state.
type Validator struct {
	chains     *categorize.StorePatterns
	thresholds Thresholds
}

// NewValidator creates a validator. A nil chain table uses the built-in one.
func NewValidator(thresholds Thresholds, chains *categorize.StorePatterns) *Validator {
	if chains == nil {
		chains = categorize.DefaultStorePatterns()
	}
	return &Validator{thresholds: thresholds, chains: chains}
}

// Validate runs every check over items with the default thresholds.
func Validate(receiptID string, items []model.ProcessedItem, declaredTotal float64, merchant string, history model.UserHistory) model.ValidationResult {
	return NewValidator(DefaultThresholds(), nil).Validate(receiptID, items, declaredTotal, merchant, history)
}

// Validate runs the independent checks and splits the findings into critical
// and auto-resolved ones.
func (v *Validator) Validate(receiptID string, items []model.ProcessedItem, declaredTotal float64, merchant string, history model.UserHistory) model.ValidationResult {
	var issues []model.ValidationIssue
	issues = append(issues, v.checkTotal(items, declaredTotal)...)
	issues = append(issues, v.checkUnusualItems(items, history)...)
	issues = append(issues, v.checkPatternBreaks(items, v.storeKey(merchant), history)...)
	issues = append(issues, v.checkStoreMismatch(items, merchant)...)

	result := model.ValidationResult{
		ReceiptID:    receiptID,
		Critical:     []model.ValidationIssue{},
		AutoResolved: []model.ValidationIssue{},
	}
	for _, issue := range issues {
		if issue.IsCritical() {
			result.Critical = append(result.Critical, issue)
		} else {
			result.AutoResolved = append(result.AutoResolved, issue)
		}
	}

	bySeverity := func(a, b model.ValidationIssue) int {
		return b.Severity.Rank() - a.Severity.Rank()
	}
	slices.SortStableFunc(result.Critical, bySeverity)
	slices.SortStableFunc(result.AutoResolved, bySeverity)

	result.Passed = len(result.Critical) == 0
	result.RequiresUserAttention = !result.Passed
	return result
}

// checkTotal compares the declared total with the sum of price times quantity.
// Amounts are compared in whole cents and the tolerance in basis points so
// that a gap of exactly the tolerance is accepted.
func (v *Validator) checkTotal(items []model.ProcessedItem, declaredTotal float64) []model.ValidationIssue {
	if declaredTotal <= 0 {
		return nil
	}

	var sum float64
	for _, item := range items {
		sum += item.Raw.Amount()
	}

	declaredCents := toCents(declaredTotal)
	gapCents := declaredCents - toCents(sum)
	if gapCents < 0 {
		gapCents = -gapCents
	}

	toleranceBP := math.Round(v.thresholds.TotalTolerance * 10000)
	gap := float64(gapCents) * 10000
	allowed := float64(declaredCents) * toleranceBP
	if gap <= allowed {
		return nil
	}

	severity := model.SeverityMedium
	if gap > allowed*v.thresholds.HighSeverityMultiplier {
		severity = model.SeverityHigh
	}

	return []model.ValidationIssue{{
		Type:     model.IssueTotalMismatch,
		Severity: severity,
		Message: fmt.Sprintf("Items add up to %.2f лв but the receipt total is %.2f лв (%.1f%% gap)",
			float64(toCents(sum))/100, declaredTotal, float64(gapCents)*100/float64(declaredCents)),
		Suggestion: "Check for missing, duplicated or misread lines",
	}}
}

// checkUnusualItems flags confidently categorized items that are new to the
// user or priced far above what they usually pay. Items under the minimum
// confidence are left alone; the decider already routes them to review.
func (v *Validator) checkUnusualItems(items []model.ProcessedItem, history model.UserHistory) []model.ValidationIssue {
	var issues []model.ValidationIssue
	for _, item := range items {
		confidence := item.Confidence()
		if confidence < v.thresholds.MinItemConfidence {
			continue
		}

		key := item.Normalized.NormalizedName
		ref := item.Index

		if !history.HasSeen(key) && confidence < v.thresholds.NewItemConfidence {
			issues = append(issues, model.ValidationIssue{
				Type:       model.IssueUnusualItem,
				Severity:   model.SeverityMedium,
				ItemRef:    &ref,
				Message:    fmt.Sprintf("First purchase of %q", item.Normalized.DisplayName),
				Suggestion: "Confirm the category",
			})
			continue
		}

		avg, ok := history.AveragePriceByKey[key]
		if !ok || avg <= 0 {
			continue
		}
		if price := UnitPrice(item.Raw); price > avg*v.thresholds.PriceAnomalyFactor {
			issues = append(issues, model.ValidationIssue{
				Type:       model.IssueUnusualItem,
				Severity:   model.SeverityLow,
				ItemRef:    &ref,
				Message:    fmt.Sprintf("%q costs %.2f лв, usually %.2f лв", item.Normalized.DisplayName, price, avg),
				Suggestion: "Possibly a bulk purchase",
			})
		}
	}
	return issues
}

// checkPatternBreaks flags categories that are new for the user or for the
// merchant.
func (v *Validator) checkPatternBreaks(items []model.ProcessedItem, store string, history model.UserHistory) []model.ValidationIssue {
	type stats struct {
		sum      float64
		count    int
		lowCount int
	}
	byCategory := make(map[string]*stats)
	for _, item := range items {
		if !item.HasCategory() {
			continue
		}
		s, ok := byCategory[item.CategoryID()]
		if !ok {
			s = &stats{}
			byCategory[item.CategoryID()] = s
		}
		s.sum += item.Confidence()
		s.count++
		if item.Confidence() < v.thresholds.StoreCategoryConfidence {
			s.lowCount++
		}
	}

	var issues []model.ValidationIssue
	for _, category := range model.Categories {
		s, ok := byCategory[category.ID]
		if !ok {
			continue
		}

		mean := s.sum / float64(s.count)
		if !history.HasCategory(category.ID) &&
			s.count >= v.thresholds.PatternBreakMinItems &&
			mean < v.thresholds.PatternBreakMeanConfidence {
			issues = append(issues, model.ValidationIssue{
				Type:     model.IssuePatternBreak,
				Severity: model.SeverityMedium,
				Message: fmt.Sprintf("%d items in %s, a category you have not bought before",
					s.count, category.Name),
				Suggestion: "Review the categories of these items",
			})
		}

		if store != "" && s.lowCount > 0 && !history.StoreHasCategory(store, category.ID) {
			issues = append(issues, model.ValidationIssue{
				Type:     model.IssuePatternBreak,
				Severity: model.SeverityLow,
				Message:  fmt.Sprintf("%s has not been seen at this store before", category.Name),
			})
		}
	}
	return issues
}

// checkStoreMismatch flags items carrying another chain's private label,
// which usually means the merchant or the line was misread.
func (v *Validator) checkStoreMismatch(items []model.ProcessedItem, merchant string) []model.ValidationIssue {
	own, ok := v.chains.LookupChain(merchant)
	if !ok {
		return nil
	}

	var issues []model.ValidationIssue
	for _, item := range items {
		name := strings.ToLower(item.Raw.Name)
		for _, chain := range v.chains.Chains() {
			if chain.ID == own.ID {
				continue
			}
			label, found := findLabel(name, chain.Labels)
			if !found {
				continue
			}
			ref := item.Index
			issues = append(issues, model.ValidationIssue{
				Type:     model.IssueOCRError,
				Severity: model.SeverityHigh,
				ItemRef:  &ref,
				Message: fmt.Sprintf("%q carries the %s label %q on a %s receipt",
					item.Raw.Name, chain.ID, label, own.ID),
				Suggestion: "Check the merchant name and this line for misreads",
			})
			break
		}
	}
	return issues
}

// storeKey maps a merchant name to the key history is grouped by: the chain
// id for known chains, else the trimmed lowercase name.
func (v *Validator) storeKey(merchant string) string {
	return StoreKey(v.chains, merchant)
}

// StoreKey is the history grouping key for merchant.
func StoreKey(chains *categorize.StorePatterns, merchant string) string {
	if chain, ok := chains.LookupChain(merchant); ok {
		return chain.ID
	}
	return strings.ToLower(strings.TrimSpace(merchant))
}

// UnitPrice returns the per-unit price of a line.
func UnitPrice(item model.RawLineItem) float64 {
	if item.UnitPrice > 0 {
		return item.UnitPrice
	}
	if item.Quantity > 0 {
		return item.TotalPrice / item.Quantity
	}
	return item.TotalPrice
}

func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// findLabel reports the first label occurring in name as a whole word.
func findLabel(name string, labels []string) (string, bool) {
	for _, label := range labels {
		if containsWord(name, label) {
			return label, true
		}
	}
	return "", false
}

func containsWord(s, word string) bool {
	for start := 0; start <= len(s)-len(word); {
		idx := strings.Index(s[start:], word)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(word)
		if boundaryBefore(s, idx) && boundaryAfter(s, end) {
			return true
		}
		start = idx + 1
	}
	return false
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
