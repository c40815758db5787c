package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/the-receipts-must-flow/internal/common"
	"github.com/Veraticus/the-receipts-must-flow/internal/model"
)

const masterProductColumns = `id, normalized_name, display_name, category_id, brand, size, unit,
	fat_content_pct, keywords, created_at`

// CreateMasterProduct inserts a new catalog entry. Master products are never
// updated in place.
func (s *SQLiteStorage) CreateMasterProduct(ctx context.Context, product *model.MasterProduct) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateMasterProduct(product); err != nil {
		return err
	}
	return s.createMasterProductTx(ctx, s.db, product)
}

func (s *SQLiteStorage) createMasterProductTx(ctx context.Context, q queryable, product *model.MasterProduct) error {
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now()
	}

	keywords, err := json.Marshal(nonNil(product.Keywords))
	if err != nil {
		return fmt.Errorf("failed to encode keywords: %w", err)
	}

	var fat sql.NullFloat64
	if product.FatContentPct != nil {
		fat = sql.NullFloat64{Float64: *product.FatContentPct, Valid: true}
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO master_products (`+masterProductColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, product.ID, product.NormalizedName, product.DisplayName, product.CategoryID,
		product.Brand, product.Size, product.Unit, fat, string(keywords), product.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create master product: %w", mapError(err))
	}
	return nil
}

// GetMasterProduct retrieves a master product by id.
func (s *SQLiteStorage) GetMasterProduct(ctx context.Context, id string) (*model.MasterProduct, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getMasterProductTx(ctx, s.db, "id", id)
}

// GetMasterProductByName retrieves a master product by its normalized name.
func (s *SQLiteStorage) GetMasterProductByName(ctx context.Context, normalizedName string) (*model.MasterProduct, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(normalizedName, "normalizedName"); err != nil {
		return nil, err
	}
	return s.getMasterProductTx(ctx, s.db, "normalized_name", normalizedName)
}

// getMasterProductTx looks a product up by one of its unique columns.
func (s *SQLiteStorage) getMasterProductTx(ctx context.Context, q queryable, column, value string) (*model.MasterProduct, error) {
	if column != "id" && column != "normalized_name" {
		return nil, fmt.Errorf("unsupported lookup column %q", column)
	}

	row := q.QueryRowContext(ctx, `
		SELECT `+masterProductColumns+`
		FROM master_products
		WHERE `+column+` = ?
	`, value)

	product, err := scanMasterProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("master product %s: %w", value, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return product, nil
}

// ListMasterProducts returns catalog entries, optionally for one category.
func (s *SQLiteStorage) ListMasterProducts(ctx context.Context, categoryID string) ([]model.MasterProduct, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.listMasterProductsTx(ctx, s.db, categoryID)
}

func (s *SQLiteStorage) listMasterProductsTx(ctx context.Context, q queryable, categoryID string) ([]model.MasterProduct, error) {
	query := `SELECT ` + masterProductColumns + ` FROM master_products`
	var args []any
	if categoryID != "" {
		query += ` WHERE category_id = ?`
		args = append(args, categoryID)
	}
	query += ` ORDER BY normalized_name`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query master products: %w", mapError(err))
	}
	defer func() { _ = rows.Close() }()

	var products []model.MasterProduct
	for rows.Next() {
		product, err := scanMasterProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *product)
	}
	return products, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMasterProduct(row scanner) (*model.MasterProduct, error) {
	var p model.MasterProduct
	var fat sql.NullFloat64
	var keywords string

	err := row.Scan(
		&p.ID,
		&p.NormalizedName,
		&p.DisplayName,
		&p.CategoryID,
		&p.Brand,
		&p.Size,
		&p.Unit,
		&fat,
		&keywords,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan master product: %w", err)
	}

	if fat.Valid {
		v := fat.Float64
		p.FatContentPct = &v
	}
	if err := json.Unmarshal([]byte(keywords), &p.Keywords); err != nil {
		return nil, fmt.Errorf("failed to decode keywords of %s: %w", p.ID, err)
	}
	return &p, nil
}

// SaveAlias records a retailer-specific raw string for a master product.
// Saving an existing (raw name, store) pair returns common.ErrDuplicateEntry.
func (s *SQLiteStorage) SaveAlias(ctx context.Context, alias *model.ProductAlias) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAlias(alias); err != nil {
		return err
	}
	return s.saveAliasTx(ctx, s.db, alias)
}

func (s *SQLiteStorage) saveAliasTx(ctx context.Context, q queryable, alias *model.ProductAlias) error {
	if alias.CreatedAt.IsZero() {
		alias.CreatedAt = time.Now()
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO product_aliases (raw_name, store, master_product_id, created_at)
		VALUES (?, ?, ?, ?)
	`, alias.RawName, strings.ToLower(alias.Store), alias.MasterProductID, alias.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save alias: %w", mapError(err))
	}
	return nil
}

// GetAlias resolves a raw string printed by store.
func (s *SQLiteStorage) GetAlias(ctx context.Context, rawName, store string) (*model.ProductAlias, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(rawName, "rawName"); err != nil {
		return nil, err
	}
	return s.getAliasTx(ctx, s.db, rawName, store)
}

func (s *SQLiteStorage) getAliasTx(ctx context.Context, q queryable, rawName, store string) (*model.ProductAlias, error) {
	var a model.ProductAlias
	err := q.QueryRowContext(ctx, `
		SELECT raw_name, store, master_product_id, created_at
		FROM product_aliases
		WHERE raw_name = ? AND store = ?
	`, rawName, strings.ToLower(store)).Scan(
		&a.RawName,
		&a.Store,
		&a.MasterProductID,
		&a.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alias: %w", mapError(err))
	}
	return &a, nil
}

// GetAliases lists every alias of a master product.
func (s *SQLiteStorage) GetAliases(ctx context.Context, masterProductID string) ([]model.ProductAlias, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getAliasesTx(ctx, s.db, masterProductID)
}

func (s *SQLiteStorage) getAliasesTx(ctx context.Context, q queryable, masterProductID string) ([]model.ProductAlias, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT raw_name, store, master_product_id, created_at
		FROM product_aliases
		WHERE master_product_id = ?
		ORDER BY store, raw_name
	`, masterProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to query aliases: %w", mapError(err))
	}
	defer func() { _ = rows.Close() }()

	var aliases []model.ProductAlias
	for rows.Next() {
		var a model.ProductAlias
		if err := rows.Scan(&a.RawName, &a.Store, &a.MasterProductID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alias: %w", err)
		}
		aliases = append(aliases, a)
	}
	return aliases, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
