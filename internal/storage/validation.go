// Package storage provides the data persistence layer for the receipt pipeline.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/the-receipts-must-flow/internal/common"
	"github.com/Veraticus/the-receipts-must-flow/internal/model"
	"github.com/Veraticus/the-receipts-must-flow/internal/service"
)

// Validation errors.
var (
	ErrNilContext          = errors.New("context cannot be nil")
	ErrEmptyString         = errors.New("string parameter cannot be empty")
	ErrNilParameter        = errors.New("parameter cannot be nil")
	ErrInvalidReceipt      = errors.New("invalid receipt")
	ErrInvalidLineItem     = errors.New("invalid line item")
	ErrInvalidStatus       = errors.New("invalid receipt status")
	ErrInvalidCorrection   = errors.New("invalid correction")
	ErrInvalidProduct      = errors.New("invalid master product")
	ErrInvalidAlias        = errors.New("invalid product alias")
	ErrInvalidPreferences  = errors.New("invalid preferences")
	ErrInvalidBudgetDelta  = errors.New("invalid budget delta")
	ErrInvalidCategoryID   = errors.New("unknown category id")
	ErrInvalidMethodString = errors.New("invalid categorization method")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateCategory(id string) error {
	if _, ok := model.LookupCategory(id); !ok {
		return fmt.Errorf("%w: %q", ErrInvalidCategoryID, id)
	}
	return nil
}

// validateReceipt validates a receipt envelope.
func validateReceipt(receipt *model.Receipt) error {
	if receipt == nil {
		return fmt.Errorf("%w: receipt", ErrNilParameter)
	}
	if strings.TrimSpace(receipt.ID) == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidReceipt)
	}
	if strings.TrimSpace(receipt.UserID) == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidReceipt)
	}
	if receipt.DeclaredTotal < 0 {
		return fmt.Errorf("%w: negative declared total", ErrInvalidReceipt)
	}
	for i, item := range receipt.Items {
		if strings.TrimSpace(item.Name) == "" {
			return fmt.Errorf("%w: item at index %d has no name", ErrInvalidReceipt, i)
		}
	}
	return nil
}

// validateLineItems validates categorized receipt lines.
func validateLineItems(items []model.StoredLineItem) error {
	if items == nil {
		return fmt.Errorf("%w: line items", ErrNilParameter)
	}

	seen := make(map[int]struct{}, len(items))
	for i, item := range items {
		if strings.TrimSpace(item.RawName) == "" {
			return fmt.Errorf("%w: item at index %d has no name", ErrInvalidLineItem, i)
		}
		if _, dup := seen[item.Position]; dup {
			return fmt.Errorf("%w: duplicate position %d", ErrInvalidLineItem, item.Position)
		}
		seen[item.Position] = struct{}{}

		if item.CategoryID != "" {
			if err := validateCategory(item.CategoryID); err != nil {
				return fmt.Errorf("item at index %d: %w", i, err)
			}
		}
		if item.Method != "" && !item.Method.Valid() {
			return fmt.Errorf("%w: %s", ErrInvalidMethodString, item.Method)
		}
		if item.Confidence < 0 || item.Confidence > 1 {
			return fmt.Errorf("%w: confidence must be between 0 and 1", ErrInvalidLineItem)
		}
		if !item.NeedsReview && item.CategoryID == "" {
			return fmt.Errorf("%w: item at index %d is accepted without a category", ErrInvalidLineItem, i)
		}
	}
	return nil
}

// validateReceiptUpdate validates a receipt-level outcome.
func validateReceiptUpdate(update service.ReceiptUpdate) error {
	switch update.Status {
	case model.ReceiptStatusNew,
		model.ReceiptStatusCompleted,
		model.ReceiptStatusPendingReview,
		model.ReceiptStatusManualReview:
	default:
		return fmt.Errorf("%w: %s", ErrInvalidStatus, update.Status)
	}
	if update.AutoCategorizedCount < 0 || update.ManualReviewCount < 0 {
		return fmt.Errorf("%w: negative item counts", ErrInvalidReceipt)
	}
	return nil
}

// validateCorrection validates a user correction.
func validateCorrection(correction *model.Correction) error {
	if correction == nil {
		return fmt.Errorf("%w: correction", ErrNilParameter)
	}
	if strings.TrimSpace(correction.UserID) == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidCorrection)
	}
	if strings.TrimSpace(correction.NormalizedName) == "" {
		return fmt.Errorf("%w: missing normalized name", ErrInvalidCorrection)
	}
	if err := validateCategory(correction.CategoryID); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCorrection, err)
	}
	return nil
}

// validateMasterProduct validates a catalog entry.
func validateMasterProduct(product *model.MasterProduct) error {
	if product == nil {
		return fmt.Errorf("%w: master product", ErrNilParameter)
	}
	if strings.TrimSpace(product.ID) == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidProduct)
	}
	if strings.TrimSpace(product.NormalizedName) == "" {
		return fmt.Errorf("%w: missing normalized name", ErrInvalidProduct)
	}
	if err := validateCategory(product.CategoryID); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProduct, err)
	}
	if product.Size < 0 {
		return fmt.Errorf("%w: negative size", ErrInvalidProduct)
	}
	return nil
}

// validateAlias validates a retailer alias.
func validateAlias(alias *model.ProductAlias) error {
	if alias == nil {
		return fmt.Errorf("%w: alias", ErrNilParameter)
	}
	if strings.TrimSpace(alias.RawName) == "" {
		return fmt.Errorf("%w: missing raw name", ErrInvalidAlias)
	}
	if strings.TrimSpace(alias.MasterProductID) == "" {
		return fmt.Errorf("%w: missing master product ID", ErrInvalidAlias)
	}
	return nil
}

// validatePreferences validates per-user settings.
func validatePreferences(prefs *model.Preferences) error {
	if prefs == nil {
		return fmt.Errorf("%w: preferences", ErrNilParameter)
	}
	if strings.TrimSpace(prefs.UserID) == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidPreferences)
	}
	if err := common.ValidateStruct(prefs); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPreferences, err)
	}
	return nil
}

// validateDeltas validates budget ledger changes.
func validateDeltas(deltas []model.BudgetDelta) error {
	for i, d := range deltas {
		if strings.TrimSpace(d.UserID) == "" {
			return fmt.Errorf("%w: delta at index %d has no user", ErrInvalidBudgetDelta, i)
		}
		if err := validateCategory(d.Category); err != nil {
			return fmt.Errorf("delta at index %d: %w", i, err)
		}
		if len(d.Month) != len("2006-01") || d.Month[4] != '-' {
			return fmt.Errorf("%w: month %q is not YYYY-MM", ErrInvalidBudgetDelta, d.Month)
		}
	}
	return nil
}
