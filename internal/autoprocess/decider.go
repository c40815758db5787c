// Package autoprocess decides whether a categorized receipt can be posted to
// the budget without the user, and persists the accepted part.
package autoprocess

import (
	"math"

	"github.com/Veraticus/the-receipts-must-flow/internal/model"
)

// Decide routes items to auto-save or review according to prefs.
//
// With AlwaysReview, or with AutoProcessReceipts disabled, nothing is
// auto-saved. Otherwise an item is auto-saved when it carries a category and
// its confidence reaches the threshold; every other item is uncertain.
func Decide(items []model.ProcessedItem, prefs model.Preferences) model.ProcessingResult {
	result := model.ProcessingResult{
		TotalAmount:    totalAmount(items),
		ConfidenceRate: confidenceRate(items),
		AutoSavedItems: []model.ProcessedItem{},
		UncertainItems: []model.ProcessedItem{},
	}

	if prefs.AlwaysReview || !prefs.AutoProcessReceipts {
		result.UncertainItems = append(result.UncertainItems, items...)
		result.RequiresReview = true
		result.Status = model.ReceiptStatusManualReview
		if !prefs.AlwaysReview {
			result.Status = model.ReceiptStatusPendingReview
		}
		result.CategoryBreakdown = []model.CategoryTotal{}
		return result
	}

	for _, item := range items {
		if item.HasCategory() && item.Confidence() >= prefs.ConfidenceThreshold {
			result.AutoSavedItems = append(result.AutoSavedItems, item)
		} else {
			result.UncertainItems = append(result.UncertainItems, item)
		}
	}

	switch {
	case len(result.UncertainItems) == 0:
		result.Status = model.ReceiptStatusCompleted
		result.AutoProcessed = true
	case len(result.AutoSavedItems) > 0:
		result.Status = model.ReceiptStatusPendingReview
		result.AutoProcessed = true
		result.RequiresReview = true
	default:
		result.Status = model.ReceiptStatusManualReview
		result.RequiresReview = true
	}

	result.CategoryBreakdown = Breakdown(result.AutoSavedItems)
	return result
}

// Breakdown totals items per category in taxonomy order.
func Breakdown(items []model.ProcessedItem) []model.CategoryTotal {
	totals := make(map[string]*model.CategoryTotal)
	for _, item := range items {
		id := item.CategoryID()
		if id == "" {
			continue
		}
		t, ok := totals[id]
		if !ok {
			t = &model.CategoryTotal{CategoryID: id}
			totals[id] = t
		}
		t.Amount += item.Raw.Amount()
		t.ItemCount++
	}

	out := make([]model.CategoryTotal, 0, len(totals))
	for _, c := range model.Categories {
		if t, ok := totals[c.ID]; ok {
			t.Amount = roundCents(t.Amount)
			out = append(out, *t)
		}
	}
	return out
}

func totalAmount(items []model.ProcessedItem) float64 {
	var sum float64
	for _, item := range items {
		sum += item.Raw.Amount()
	}
	return roundCents(sum)
}

// confidenceRate averages over scored items only; an unscored item does not
// count as zero.
func confidenceRate(items []model.ProcessedItem) float64 {
	var sum float64
	var n int
	for _, item := range items {
		if c := item.Confidence(); c != 0 {
			sum += c
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
