package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/Veraticus/the-receipts-must-flow/internal/common"
	"github.com/Veraticus/the-receipts-must-flow/internal/model"
)

// ApplyBudgetDeltas adds each delta to its monthly ledger entry, creating the
// entry when absent. Every (receipt, category, month) is applied at most once;
// when all deltas were applied before, common.ErrAlreadyApplied is returned
// and the ledger is untouched.
func (s *SQLiteStorage) ApplyBudgetDeltas(ctx context.Context, receiptID string, deltas []model.BudgetDelta) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(receiptID, "receiptID"); err != nil {
		return err
	}
	if err := validateDeltas(deltas); err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.applyBudgetDeltasTx(ctx, tx, receiptID, deltas)
	})
}

func (s *SQLiteStorage) applyBudgetDeltasTx(ctx context.Context, q queryable, receiptID string, deltas []model.BudgetDelta) error {
	if len(deltas) == 0 {
		return nil
	}

	applied := 0
	for _, d := range deltas {
		result, err := q.ExecContext(ctx, `
			INSERT INTO budget_applications (id, receipt_id, category, month, amount)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(receipt_id, category, month) DO NOTHING
		`, uuid.New().String(), receiptID, d.Category, d.Month, d.AmountDelta)
		if err != nil {
			return fmt.Errorf("failed to record budget application: %w", mapError(err))
		}

		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check rows affected: %w", err)
		}
		if n == 0 {
			continue
		}

		_, err = q.ExecContext(ctx, `
			INSERT INTO budget_ledger (user_id, category, month, spent)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(user_id, category, month) DO UPDATE SET
				spent = spent + excluded.spent,
				updated_at = CURRENT_TIMESTAMP
		`, d.UserID, d.Category, d.Month, d.AmountDelta)
		if err != nil {
			return fmt.Errorf("failed to update budget ledger: %w", mapError(err))
		}
		applied++
	}

	if applied == 0 {
		return fmt.Errorf("receipt %s: %w", receiptID, common.ErrAlreadyApplied)
	}
	return nil
}

// GetBudgetEntries returns the user's ledger rows for a month (YYYY-MM).
func (s *SQLiteStorage) GetBudgetEntries(ctx context.Context, userID, month string) ([]model.BudgetEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getBudgetEntriesTx(ctx, s.db, userID, month)
}

func (s *SQLiteStorage) getBudgetEntriesTx(ctx context.Context, q queryable, userID, month string) ([]model.BudgetEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT user_id, category, month, spent
		FROM budget_ledger
		WHERE user_id = ? AND month = ?
		ORDER BY category
	`, userID, month)
	if err != nil {
		return nil, fmt.Errorf("failed to query budget ledger: %w", mapError(err))
	}
	defer func() { _ = rows.Close() }()

	var entries []model.BudgetEntry
	for rows.Next() {
		var e model.BudgetEntry
		if err := rows.Scan(&e.UserID, &e.Category, &e.Month, &e.Spent); err != nil {
			return nil, fmt.Errorf("failed to scan budget entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
