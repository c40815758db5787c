// Package model defines the core domain models used throughout the application.
package model

import "time"

// RawLineItem is a single product line as produced by the OCR step.
type RawLineItem struct {
	Name       string  `json:"name"`
	Quantity   float64 `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	TotalPrice float64 `json:"total_price"`
}

// Amount returns price times quantity for the line. A missing quantity counts
// as one unit and a missing unit price falls back to the printed line total.
func (i RawLineItem) Amount() float64 {
	qty := i.Quantity
	if qty <= 0 {
		qty = 1
	}
	if i.UnitPrice > 0 {
		return i.UnitPrice * qty
	}
	return i.TotalPrice
}

// ReceiptStatus tracks where a receipt is in the review lifecycle.
type ReceiptStatus string

// Receipt status constants.
const (
	ReceiptStatusNew           ReceiptStatus = "new"
	ReceiptStatusCompleted     ReceiptStatus = "completed"
	ReceiptStatusPendingReview ReceiptStatus = "pending_review"
	ReceiptStatusManualReview  ReceiptStatus = "manual_review"
)

// Receipt is the receipt-level envelope handed over by the OCR step.
type Receipt struct {
	PurchaseDate  time.Time     `json:"purchase_date"`
	ID            string        `json:"id"`
	UserID        string        `json:"user_id"`
	MerchantName  string        `json:"merchant"`
	Items         []RawLineItem `json:"items"`
	DeclaredTotal float64       `json:"declared_total"`
}

// Month returns the budget month (YYYY-MM) of the purchase, read in the zone
// the date carries. A receipt without a purchase date has no month.
func (r Receipt) Month() string {
	if r.PurchaseDate.IsZero() {
		return ""
	}
	return r.PurchaseDate.Format("2006-01")
}

// ProcessedItem is a line item after normalization and categorization.
type ProcessedItem struct {
	Result          *CategorizationResult
	Raw             RawLineItem
	MasterProductID string
	Normalized      NormalizedProduct
	Index           int
}

// HasCategory reports whether the item carries a usable category.
func (p ProcessedItem) HasCategory() bool {
	return p.Result != nil && p.Result.CategoryID != "" && !p.Result.IsDefault()
}

// Confidence returns the categorization confidence, zero when unscored.
func (p ProcessedItem) Confidence() float64 {
	if p.Result == nil {
		return 0
	}
	return p.Result.Confidence
}

// CategoryID returns the assigned category id or the empty string.
func (p ProcessedItem) CategoryID() string {
	if p.Result == nil {
		return ""
	}
	return p.Result.CategoryID
}

// StoredReceipt is a persisted receipt with its categorized lines, used to
// rebuild a user's purchase history.
type StoredReceipt struct {
	PurchaseDate         time.Time
	ID                   string
	UserID               string
	MerchantName         string
	Status               ReceiptStatus
	Items                []StoredLineItem
	DeclaredTotal        float64
	AutoCategorizedCount int
	ManualReviewCount    int
	AutoProcessed        bool
}

// StoredLineItem is a persisted, categorized receipt line.
type StoredLineItem struct {
	RawName         string
	NormalizedName  string
	CategoryID      string
	Method          Method
	MasterProductID string
	Amount          float64
	Quantity        float64
	UnitPrice       float64
	Confidence      float64
	Position        int
	NeedsReview     bool
}
