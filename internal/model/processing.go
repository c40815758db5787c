package model

// Preferences are the per-user auto-processing settings.
type Preferences struct {
	UserID              string  `json:"user_id" mapstructure:"-"`
	ConfidenceThreshold float64 `json:"confidence_threshold" mapstructure:"confidence_threshold" validate:"min=0.5,max=0.95"`
	AutoProcessReceipts bool    `json:"auto_process_receipts" mapstructure:"auto_process_receipts"`
	AlwaysReview        bool    `json:"always_review" mapstructure:"always_review"`
}

// DefaultPreferences returns the settings used when a user has none stored.
func DefaultPreferences() Preferences {
	return Preferences{
		AutoProcessReceipts: true,
		ConfidenceThreshold: 0.70,
		AlwaysReview:        false,
	}
}

// CategoryTotal is the amount spent in one category on a receipt.
type CategoryTotal struct {
	CategoryID string  `json:"category_id"`
	Amount     float64 `json:"amount"`
	ItemCount  int     `json:"item_count"`
}

// ProcessingResult is the routing decision for a receipt's items.
type ProcessingResult struct {
	Status            ReceiptStatus   `json:"status"`
	AutoSavedItems    []ProcessedItem `json:"-"`
	UncertainItems    []ProcessedItem `json:"-"`
	CategoryBreakdown []CategoryTotal `json:"category_breakdown"`
	TotalAmount       float64         `json:"total_amount"`
	ConfidenceRate    float64         `json:"confidence_rate"`
	AutoProcessed     bool            `json:"auto_processed"`
	RequiresReview    bool            `json:"requires_review"`
}

// BudgetDelta is an additive change to a monthly budget ledger entry.
type BudgetDelta struct {
	UserID      string  `json:"user_id"`
	Category    string  `json:"category"`
	Month       string  `json:"month"`
	AmountDelta float64 `json:"amount_delta"`
}

// BudgetEntry is a monthly ledger row.
type BudgetEntry struct {
	UserID   string
	Category string
	Month    string
	Spent    float64
}
