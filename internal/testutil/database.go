// Package testutil provides shared test helpers for the receipt pipeline:
// an isolated, migrated database and fluent builders for receipt fixtures.
package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/Veraticus/the-receipts-must-flow/internal/model"
	"github.com/Veraticus/the-receipts-must-flow/internal/service"
	"github.com/Veraticus/the-receipts-must-flow/internal/storage"
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a new in-memory, migrated test database that is closed
// when the test ends.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()
	return SetupTestDBWithOptions(t, TestDBOptions{})
}

// TestDBOptions provides configuration options for test database setup.
type TestDBOptions struct {
	CustomSetup    func(context.Context, service.Storage) error
	Preferences    []model.Preferences
	Receipts       []*model.Receipt
	SkipMigrations bool
}

// SetupTestDBWithOptions creates a test database with custom options.
func SetupTestDBWithOptions(t *testing.T, opts TestDBOptions) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	ctx := context.Background()

	if !opts.SkipMigrations {
		if err := store.Migrate(ctx); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
	}

	for i := range opts.Preferences {
		if err := store.SavePreferences(ctx, &opts.Preferences[i]); err != nil {
			t.Fatalf("failed to seed preferences for %q: %v", opts.Preferences[i].UserID, err)
		}
	}

	for _, receipt := range opts.Receipts {
		if err := store.SaveReceipt(ctx, receipt); err != nil {
			t.Fatalf("failed to seed receipt %q: %v", receipt.ID, err)
		}
	}

	if opts.CustomSetup != nil {
		if err := opts.CustomSetup(ctx, store); err != nil {
			t.Fatalf("custom setup failed: %v", err)
		}
	}

	return &TestDB{
		Storage: store,
		t:       t,
	}
}

// WithTransaction executes fn within a database transaction that is always
// rolled back afterwards.
func (db *TestDB) WithTransaction(fn func(tx service.Transaction) error) error {
	ctx := context.Background()
	tx, err := db.Storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	return fn(tx)
}

// SeedCompleted stores receipt with every line accepted under the given
// categories and marks it completed. It is the quickest way to give a user
// purchase history.
func (db *TestDB) SeedCompleted(receipt *model.Receipt, categories ...string) {
	db.t.Helper()
	ctx := context.Background()

	if len(categories) != len(receipt.Items) {
		db.t.Fatalf("receipt %q has %d items but %d categories", receipt.ID, len(receipt.Items), len(categories))
	}
	if err := db.Storage.SaveReceipt(ctx, receipt); err != nil {
		db.t.Fatalf("failed to seed receipt %q: %v", receipt.ID, err)
	}

	items := make([]model.StoredLineItem, len(receipt.Items))
	for i, raw := range receipt.Items {
		items[i] = model.StoredLineItem{
			Position:       i,
			RawName:        raw.Name,
			NormalizedName: raw.Name,
			CategoryID:     categories[i],
			Method:         model.MethodRule,
			Confidence:     0.9,
			Amount:         raw.Amount(),
			Quantity:       raw.Quantity,
			UnitPrice:      raw.UnitPrice,
		}
	}
	if err := db.Storage.SaveLineItems(ctx, receipt.ID, items); err != nil {
		db.t.Fatalf("failed to seed lines for %q: %v", receipt.ID, err)
	}
	if err := db.Storage.UpdateReceiptStatus(ctx, receipt.ID, service.ReceiptUpdate{
		Status:               model.ReceiptStatusCompleted,
		AutoProcessed:        true,
		AutoCategorizedCount: len(items),
	}); err != nil {
		db.t.Fatalf("failed to complete receipt %q: %v", receipt.ID, err)
	}
}

// MustReceipt loads a stored receipt or fails the test.
func (db *TestDB) MustReceipt(id string) *model.StoredReceipt {
	db.t.Helper()
	receipt, err := db.Storage.GetReceipt(context.Background(), id)
	if err != nil {
		db.t.Fatalf("failed to load receipt %q: %v", id, err)
	}
	return receipt
}

// Spent returns the ledger amount for a user's category in month, zero when
// nothing has been posted.
func (db *TestDB) Spent(userID, month, category string) float64 {
	db.t.Helper()
	entries, err := db.Storage.GetBudgetEntries(context.Background(), userID, month)
	if err != nil {
		db.t.Fatalf("failed to load budget for %q: %v", userID, err)
	}
	for _, e := range entries {
		if e.Category == category {
			return e.Spent
		}
	}
	return 0
}
