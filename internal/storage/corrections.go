package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/the-receipts-must-flow/internal/common"
	"github.com/Veraticus/the-receipts-must-flow/internal/model"
)

// SaveCorrection appends a user override. Earlier corrections are kept as
// history; the most recent one wins on lookup.
func (s *SQLiteStorage) SaveCorrection(ctx context.Context, correction *model.Correction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCorrection(correction); err != nil {
		return err
	}
	return s.saveCorrectionTx(ctx, s.db, correction)
}

func (s *SQLiteStorage) saveCorrectionTx(ctx context.Context, q queryable, correction *model.Correction) error {
	if correction.ID == "" {
		correction.ID = uuid.New().String()
	}
	if correction.CreatedAt.IsZero() {
		correction.CreatedAt = time.Now()
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO corrections (id, user_id, raw_name, normalized_name, category_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, correction.ID, correction.UserID, correction.RawName, correction.NormalizedName,
		correction.CategoryID, correction.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save correction: %w", mapError(err))
	}
	return nil
}

// GetLatestCorrection returns the user's most recent override for the
// normalized name, or common.ErrNotFound.
func (s *SQLiteStorage) GetLatestCorrection(ctx context.Context, userID, normalizedName string) (*model.Correction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getLatestCorrectionTx(ctx, s.db, userID, normalizedName)
}

func (s *SQLiteStorage) getLatestCorrectionTx(ctx context.Context, q queryable, userID, normalizedName string) (*model.Correction, error) {
	var c model.Correction
	err := q.QueryRowContext(ctx, `
		SELECT id, user_id, raw_name, normalized_name, category_id, created_at
		FROM corrections
		WHERE user_id = ? AND normalized_name = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`, userID, normalizedName).Scan(
		&c.ID,
		&c.UserID,
		&c.RawName,
		&c.NormalizedName,
		&c.CategoryID,
		&c.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get correction: %w", mapError(err))
	}
	return &c, nil
}
