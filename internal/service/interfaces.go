// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/the-receipts-must-flow/internal/model"
)

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Receipt operations
	SaveReceipt(ctx context.Context, receipt *model.Receipt) error
	GetReceipt(ctx context.Context, id string) (*model.StoredReceipt, error)
	SaveLineItems(ctx context.Context, receiptID string, items []model.StoredLineItem) error
	UpdateReceiptStatus(ctx context.Context, receiptID string, update ReceiptUpdate) error
	GetCompletedReceipts(ctx context.Context, userID string, since time.Time) ([]model.StoredReceipt, error)

	// Correction operations
	SaveCorrection(ctx context.Context, correction *model.Correction) error
	GetLatestCorrection(ctx context.Context, userID, normalizedName string) (*model.Correction, error)

	// Catalog operations
	CreateMasterProduct(ctx context.Context, product *model.MasterProduct) error
	GetMasterProduct(ctx context.Context, id string) (*model.MasterProduct, error)
	GetMasterProductByName(ctx context.Context, normalizedName string) (*model.MasterProduct, error)
	ListMasterProducts(ctx context.Context, categoryID string) ([]model.MasterProduct, error)
	SaveAlias(ctx context.Context, alias *model.ProductAlias) error
	GetAlias(ctx context.Context, rawName, store string) (*model.ProductAlias, error)
	GetAliases(ctx context.Context, masterProductID string) ([]model.ProductAlias, error)

	// Preference operations
	GetPreferences(ctx context.Context, userID string) (*model.Preferences, error)
	SavePreferences(ctx context.Context, prefs *model.Preferences) error

	// Budget operations
	ApplyBudgetDeltas(ctx context.Context, receiptID string, deltas []model.BudgetDelta) error
	GetBudgetEntries(ctx context.Context, userID, month string) ([]model.BudgetEntry, error)

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
	// Include all Storage methods for use within transaction
	Storage
}

// ReceiptUpdate is the receipt-level outcome written after auto-processing.
type ReceiptUpdate struct {
	Status               model.ReceiptStatus
	AutoCategorizedCount int
	ManualReviewCount    int
	AutoProcessed        bool
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
