package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 5

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

func execAll(tx *sql.Tx, queries []string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}
	return nil
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Receipts and line items",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS receipts (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					merchant TEXT NOT NULL DEFAULT '',
					declared_total REAL NOT NULL DEFAULT 0,
					purchase_date DATETIME NOT NULL,
					status TEXT NOT NULL DEFAULT 'new',
					auto_processed INTEGER NOT NULL DEFAULT 0,
					auto_categorized_count INTEGER NOT NULL DEFAULT 0,
					manual_review_count INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_receipts_user_status_date ON receipts(user_id, status, purchase_date)`,

				`CREATE TABLE IF NOT EXISTS line_items (
					receipt_id TEXT NOT NULL,
					position INTEGER NOT NULL,
					raw_name TEXT NOT NULL,
					normalized_name TEXT NOT NULL DEFAULT '',
					category_id TEXT NOT NULL DEFAULT '',
					method TEXT NOT NULL DEFAULT '',
					confidence REAL NOT NULL DEFAULT 0,
					master_product_id TEXT NOT NULL DEFAULT '',
					quantity REAL NOT NULL DEFAULT 0,
					unit_price REAL NOT NULL DEFAULT 0,
					amount REAL NOT NULL DEFAULT 0,
					needs_review INTEGER NOT NULL DEFAULT 1,
					PRIMARY KEY (receipt_id, position),
					FOREIGN KEY (receipt_id) REFERENCES receipts(id) ON DELETE CASCADE
				)`,
				`CREATE INDEX idx_line_items_normalized ON line_items(normalized_name)`,
			})
		},
	},
	{
		Version:     2,
		Description: "Master product catalog and retailer aliases",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS master_products (
					id TEXT PRIMARY KEY,
					normalized_name TEXT NOT NULL UNIQUE,
					display_name TEXT NOT NULL,
					category_id TEXT NOT NULL,
					brand TEXT NOT NULL DEFAULT '',
					size REAL NOT NULL DEFAULT 0,
					unit TEXT NOT NULL DEFAULT '',
					fat_content_pct REAL,
					keywords TEXT NOT NULL DEFAULT '[]',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_master_products_category ON master_products(category_id)`,

				`CREATE TABLE IF NOT EXISTS product_aliases (
					raw_name TEXT NOT NULL,
					store TEXT NOT NULL DEFAULT '',
					master_product_id TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (raw_name, store),
					FOREIGN KEY (master_product_id) REFERENCES master_products(id)
				)`,
				`CREATE INDEX idx_product_aliases_master ON product_aliases(master_product_id)`,
			})
		},
	},
	{
		Version:     3,
		Description: "User category corrections",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS corrections (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					raw_name TEXT NOT NULL,
					normalized_name TEXT NOT NULL,
					category_id TEXT NOT NULL,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_corrections_lookup ON corrections(user_id, normalized_name, created_at)`,
			})
		},
	},
	{
		Version:     4,
		Description: "Per-user processing preferences",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS preferences (
					user_id TEXT PRIMARY KEY,
					auto_process_receipts INTEGER NOT NULL DEFAULT 1,
					confidence_threshold REAL NOT NULL DEFAULT 0.7,
					always_review INTEGER NOT NULL DEFAULT 0,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)
			`)
			return err
		},
	},
	{
		Version:     5,
		Description: "Monthly budget ledger with per-receipt application records",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS budget_ledger (
					user_id TEXT NOT NULL,
					category TEXT NOT NULL,
					month TEXT NOT NULL,
					spent REAL NOT NULL DEFAULT 0,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (user_id, category, month)
				)`,
				`CREATE TABLE IF NOT EXISTS budget_applications (
					id TEXT NOT NULL UNIQUE,
					receipt_id TEXT NOT NULL,
					category TEXT NOT NULL,
					month TEXT NOT NULL,
					amount REAL NOT NULL,
					applied_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (receipt_id, category, month)
				)`,
			})
		},
	},
}

// Migrate runs all pending migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion reports the database's current schema version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
