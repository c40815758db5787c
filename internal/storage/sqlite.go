package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/Veraticus/the-receipts-must-flow/internal/common"
	"github.com/Veraticus/the-receipts-must-flow/internal/model"
	"github.com/Veraticus/the-receipts-must-flow/internal/service"
)

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new database transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", mapError(err))
	}

	return &sqliteTransaction{
		tx:      tx,
		storage: s,
	}, nil
}

// withTx runs fn inside a transaction owned by the storage itself.
func (s *SQLiteStorage) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", mapError(err))
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", mapError(err))
	}
	return nil
}

// mapError translates driver errors into the application's sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrNotFound
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch {
		case sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked:
			return fmt.Errorf("%w: %v", common.ErrDatabaseBusy, err)
		case sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %v", common.ErrDuplicateEntry, err)
		case sqliteErr.Code == sqlite3.ErrCorrupt || sqliteErr.Code == sqlite3.ErrNotADB:
			return fmt.Errorf("%w: %v", common.ErrDatabaseCorrupted, err)
		}
	}
	return err
}

// sqliteTransaction wraps sql.Tx to implement service.Transaction.
type sqliteTransaction struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTransaction) Commit() error {
	return mapError(t.tx.Commit())
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}

// Transaction methods delegate to the main storage with the transaction.
func (t *sqliteTransaction) SaveReceipt(ctx context.Context, receipt *model.Receipt) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateReceipt(receipt); err != nil {
		return err
	}
	return t.storage.saveReceiptTx(ctx, t.tx, receipt)
}

func (t *sqliteTransaction) GetReceipt(ctx context.Context, id string) (*model.StoredReceipt, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return t.storage.getReceiptTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) SaveLineItems(ctx context.Context, receiptID string, items []model.StoredLineItem) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(receiptID, "receiptID"); err != nil {
		return err
	}
	if err := validateLineItems(items); err != nil {
		return err
	}
	return t.storage.saveLineItemsTx(ctx, t.tx, receiptID, items)
}

func (t *sqliteTransaction) UpdateReceiptStatus(ctx context.Context, receiptID string, update service.ReceiptUpdate) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(receiptID, "receiptID"); err != nil {
		return err
	}
	if err := validateReceiptUpdate(update); err != nil {
		return err
	}
	return t.storage.updateReceiptStatusTx(ctx, t.tx, receiptID, update)
}

func (t *sqliteTransaction) GetCompletedReceipts(ctx context.Context, userID string, since time.Time) ([]model.StoredReceipt, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	return t.storage.getCompletedReceiptsTx(ctx, t.tx, userID, since)
}

func (t *sqliteTransaction) SaveCorrection(ctx context.Context, correction *model.Correction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCorrection(correction); err != nil {
		return err
	}
	return t.storage.saveCorrectionTx(ctx, t.tx, correction)
}

func (t *sqliteTransaction) GetLatestCorrection(ctx context.Context, userID, normalizedName string) (*model.Correction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getLatestCorrectionTx(ctx, t.tx, userID, normalizedName)
}

func (t *sqliteTransaction) CreateMasterProduct(ctx context.Context, product *model.MasterProduct) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateMasterProduct(product); err != nil {
		return err
	}
	return t.storage.createMasterProductTx(ctx, t.tx, product)
}

func (t *sqliteTransaction) GetMasterProduct(ctx context.Context, id string) (*model.MasterProduct, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return t.storage.getMasterProductTx(ctx, t.tx, "id", id)
}

func (t *sqliteTransaction) GetMasterProductByName(ctx context.Context, normalizedName string) (*model.MasterProduct, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(normalizedName, "normalizedName"); err != nil {
		return nil, err
	}
	return t.storage.getMasterProductTx(ctx, t.tx, "normalized_name", normalizedName)
}

func (t *sqliteTransaction) ListMasterProducts(ctx context.Context, categoryID string) ([]model.MasterProduct, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.listMasterProductsTx(ctx, t.tx, categoryID)
}

func (t *sqliteTransaction) SaveAlias(ctx context.Context, alias *model.ProductAlias) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAlias(alias); err != nil {
		return err
	}
	return t.storage.saveAliasTx(ctx, t.tx, alias)
}

func (t *sqliteTransaction) GetAlias(ctx context.Context, rawName, store string) (*model.ProductAlias, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(rawName, "rawName"); err != nil {
		return nil, err
	}
	return t.storage.getAliasTx(ctx, t.tx, rawName, store)
}

func (t *sqliteTransaction) GetAliases(ctx context.Context, masterProductID string) ([]model.ProductAlias, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getAliasesTx(ctx, t.tx, masterProductID)
}

func (t *sqliteTransaction) GetPreferences(ctx context.Context, userID string) (*model.Preferences, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	return t.storage.getPreferencesTx(ctx, t.tx, userID)
}

func (t *sqliteTransaction) SavePreferences(ctx context.Context, prefs *model.Preferences) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePreferences(prefs); err != nil {
		return err
	}
	return t.storage.savePreferencesTx(ctx, t.tx, prefs)
}

func (t *sqliteTransaction) ApplyBudgetDeltas(ctx context.Context, receiptID string, deltas []model.BudgetDelta) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(receiptID, "receiptID"); err != nil {
		return err
	}
	if err := validateDeltas(deltas); err != nil {
		return err
	}
	return t.storage.applyBudgetDeltasTx(ctx, t.tx, receiptID, deltas)
}

func (t *sqliteTransaction) GetBudgetEntries(ctx context.Context, userID, month string) ([]model.BudgetEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getBudgetEntriesTx(ctx, t.tx, userID, month)
}

func (t *sqliteTransaction) Migrate(_ context.Context) error {
	// Migrations should not be run within a transaction
	return fmt.Errorf("migrations cannot be run within a transaction")
}

func (t *sqliteTransaction) BeginTx(_ context.Context) (service.Transaction, error) {
	// Nested transactions not supported
	return nil, fmt.Errorf("nested transactions not supported")
}

func (t *sqliteTransaction) Close() error {
	// Transactions should be committed or rolled back, not closed
	return fmt.Errorf("transactions must be committed or rolled back, not closed")
}

// queryable is an interface satisfied by both *sql.DB and *sql.Tx.
type queryable interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}
