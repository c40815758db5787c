package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/the-receipts-must-flow/internal/common"
	"github.com/Veraticus/the-receipts-must-flow/internal/model"
	"github.com/Veraticus/the-receipts-must-flow/internal/service"
)

// SaveReceipt stores the receipt envelope. Its raw lines are stored as
// unreviewed items unless the receipt already has lines.
func (s *SQLiteStorage) SaveReceipt(ctx context.Context, receipt *model.Receipt) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateReceipt(receipt); err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.saveReceiptTx(ctx, tx, receipt)
	})
}

func (s *SQLiteStorage) saveReceiptTx(ctx context.Context, q queryable, receipt *model.Receipt) error {
	purchaseDate := receipt.PurchaseDate
	if purchaseDate.IsZero() {
		purchaseDate = time.Now()
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO receipts (id, user_id, merchant, declared_total, purchase_date, status)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			merchant = excluded.merchant,
			declared_total = excluded.declared_total,
			purchase_date = excluded.purchase_date,
			updated_at = CURRENT_TIMESTAMP
	`, receipt.ID, receipt.UserID, receipt.MerchantName, receipt.DeclaredTotal,
		purchaseDate.UTC(), model.ReceiptStatusNew)
	if err != nil {
		return fmt.Errorf("failed to save receipt: %w", mapError(err))
	}

	var existing int
	if err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM line_items WHERE receipt_id = ?`, receipt.ID,
	).Scan(&existing); err != nil {
		return fmt.Errorf("failed to count line items: %w", err)
	}
	if existing > 0 {
		return nil
	}

	for i, item := range receipt.Items {
		_, err := q.ExecContext(ctx, `
			INSERT INTO line_items (receipt_id, position, raw_name, quantity, unit_price, amount, needs_review)
			VALUES (?, ?, ?, ?, ?, ?, 1)
		`, receipt.ID, i, item.Name, item.Quantity, item.UnitPrice, item.Amount())
		if err != nil {
			return fmt.Errorf("failed to save raw line %d: %w", i, mapError(err))
		}
	}
	return nil
}

// GetReceipt retrieves a receipt with all of its lines.
func (s *SQLiteStorage) GetReceipt(ctx context.Context, id string) (*model.StoredReceipt, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getReceiptTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getReceiptTx(ctx context.Context, q queryable, id string) (*model.StoredReceipt, error) {
	var r model.StoredReceipt
	var status string
	err := q.QueryRowContext(ctx, `
		SELECT id, user_id, merchant, declared_total, purchase_date, status,
		       auto_processed, auto_categorized_count, manual_review_count
		FROM receipts
		WHERE id = ?
	`, id).Scan(
		&r.ID,
		&r.UserID,
		&r.MerchantName,
		&r.DeclaredTotal,
		&r.PurchaseDate,
		&status,
		&r.AutoProcessed,
		&r.AutoCategorizedCount,
		&r.ManualReviewCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("receipt %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt: %w", mapError(err))
	}
	r.Status = model.ReceiptStatus(status)

	rows, err := q.QueryContext(ctx, `
		SELECT position, raw_name, normalized_name, category_id, method, confidence,
		       master_product_id, quantity, unit_price, amount, needs_review
		FROM line_items
		WHERE receipt_id = ?
		ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query line items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		item, err := scanLineItem(rows)
		if err != nil {
			return nil, err
		}
		r.Items = append(r.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate line items: %w", err)
	}

	return &r, nil
}

func scanLineItem(rows *sql.Rows) (model.StoredLineItem, error) {
	var item model.StoredLineItem
	var method string
	err := rows.Scan(
		&item.Position,
		&item.RawName,
		&item.NormalizedName,
		&item.CategoryID,
		&method,
		&item.Confidence,
		&item.MasterProductID,
		&item.Quantity,
		&item.UnitPrice,
		&item.Amount,
		&item.NeedsReview,
	)
	if err != nil {
		return item, fmt.Errorf("failed to scan line item: %w", err)
	}
	item.Method = model.Method(method)
	return item, nil
}

// SaveLineItems replaces the receipt's lines with categorized ones.
func (s *SQLiteStorage) SaveLineItems(ctx context.Context, receiptID string, items []model.StoredLineItem) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(receiptID, "receiptID"); err != nil {
		return err
	}
	if err := validateLineItems(items); err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.saveLineItemsTx(ctx, tx, receiptID, items)
	})
}

func (s *SQLiteStorage) saveLineItemsTx(ctx context.Context, q queryable, receiptID string, items []model.StoredLineItem) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM line_items WHERE receipt_id = ?`, receiptID); err != nil {
		return fmt.Errorf("failed to clear line items: %w", mapError(err))
	}

	for _, item := range items {
		_, err := q.ExecContext(ctx, `
			INSERT INTO line_items (
				receipt_id, position, raw_name, normalized_name, category_id, method,
				confidence, master_product_id, quantity, unit_price, amount, needs_review
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, receiptID, item.Position, item.RawName, item.NormalizedName, item.CategoryID,
			string(item.Method), item.Confidence, item.MasterProductID, item.Quantity,
			item.UnitPrice, item.Amount, item.NeedsReview)
		if err != nil {
			return fmt.Errorf("failed to save line item %d: %w", item.Position, mapError(err))
		}
	}
	return nil
}

// UpdateReceiptStatus records the receipt-level processing outcome.
func (s *SQLiteStorage) UpdateReceiptStatus(ctx context.Context, receiptID string, update service.ReceiptUpdate) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(receiptID, "receiptID"); err != nil {
		return err
	}
	if err := validateReceiptUpdate(update); err != nil {
		return err
	}
	return s.updateReceiptStatusTx(ctx, s.db, receiptID, update)
}

func (s *SQLiteStorage) updateReceiptStatusTx(ctx context.Context, q queryable, receiptID string, update service.ReceiptUpdate) error {
	result, err := q.ExecContext(ctx, `
		UPDATE receipts
		SET status = ?, auto_processed = ?, auto_categorized_count = ?,
		    manual_review_count = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, string(update.Status), update.AutoProcessed, update.AutoCategorizedCount,
		update.ManualReviewCount, receiptID)
	if err != nil {
		return fmt.Errorf("failed to update receipt: %w", mapError(err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("receipt %s: %w", receiptID, common.ErrNotFound)
	}
	return nil
}

// GetCompletedReceipts returns the user's receipts since the given time with
// their accepted lines, in one query. Receipts that are partially reviewed
// contribute the lines that were auto-saved.
func (s *SQLiteStorage) GetCompletedReceipts(ctx context.Context, userID string, since time.Time) ([]model.StoredReceipt, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	return s.getCompletedReceiptsTx(ctx, s.db, userID, since)
}

func (s *SQLiteStorage) getCompletedReceiptsTx(ctx context.Context, q queryable, userID string, since time.Time) ([]model.StoredReceipt, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT r.id, r.merchant, r.declared_total, r.purchase_date, r.status,
		       li.position, li.raw_name, li.normalized_name, li.category_id, li.method,
		       li.confidence, li.master_product_id, li.quantity, li.unit_price, li.amount
		FROM receipts r
		LEFT JOIN line_items li ON li.receipt_id = r.id AND li.needs_review = 0
		WHERE r.user_id = ?
		  AND r.status IN (?, ?)
		  AND r.purchase_date >= ?
		ORDER BY r.purchase_date, r.id, li.position
	`, userID, string(model.ReceiptStatusCompleted), string(model.ReceiptStatusPendingReview), since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query receipts: %w", mapError(err))
	}
	defer func() { _ = rows.Close() }()

	var receipts []model.StoredReceipt
	for rows.Next() {
		var (
			r                                           model.StoredReceipt
			status                                      string
			position                                    sql.NullInt64
			rawName, normalized, category, method, mpID sql.NullString
			confidence, quantity, unitPrice, amount     sql.NullFloat64
		)
		if err := rows.Scan(
			&r.ID, &r.MerchantName, &r.DeclaredTotal, &r.PurchaseDate, &status,
			&position, &rawName, &normalized, &category, &method,
			&confidence, &mpID, &quantity, &unitPrice, &amount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan receipt: %w", err)
		}

		if len(receipts) == 0 || receipts[len(receipts)-1].ID != r.ID {
			r.UserID = userID
			r.Status = model.ReceiptStatus(status)
			receipts = append(receipts, r)
		}
		if !position.Valid {
			continue
		}

		current := &receipts[len(receipts)-1]
		current.Items = append(current.Items, model.StoredLineItem{
			Position:        int(position.Int64),
			RawName:         rawName.String,
			NormalizedName:  normalized.String,
			CategoryID:      category.String,
			Method:          model.Method(method.String),
			Confidence:      confidence.Float64,
			MasterProductID: mpID.String,
			Quantity:        quantity.Float64,
			UnitPrice:       unitPrice.Float64,
			Amount:          amount.Float64,
		})
	}

	return receipts, rows.Err()
}
