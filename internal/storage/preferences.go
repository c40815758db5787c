package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Veraticus/the-receipts-must-flow/internal/common"
	"github.com/Veraticus/the-receipts-must-flow/internal/model"
)

// GetPreferences returns the stored settings for userID, or
// common.ErrNotFound when the user never saved any.
func (s *SQLiteStorage) GetPreferences(ctx context.Context, userID string) (*model.Preferences, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	return s.getPreferencesTx(ctx, s.db, userID)
}

func (s *SQLiteStorage) getPreferencesTx(ctx context.Context, q queryable, userID string) (*model.Preferences, error) {
	var p model.Preferences
	err := q.QueryRowContext(ctx, `
		SELECT user_id, auto_process_receipts, confidence_threshold, always_review
		FROM preferences
		WHERE user_id = ?
	`, userID).Scan(
		&p.UserID,
		&p.AutoProcessReceipts,
		&p.ConfidenceThreshold,
		&p.AlwaysReview,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", mapError(err))
	}
	return &p, nil
}

// SavePreferences creates or replaces a user's settings.
func (s *SQLiteStorage) SavePreferences(ctx context.Context, prefs *model.Preferences) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePreferences(prefs); err != nil {
		return err
	}
	return s.savePreferencesTx(ctx, s.db, prefs)
}

func (s *SQLiteStorage) savePreferencesTx(ctx context.Context, q queryable, prefs *model.Preferences) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO preferences (user_id, auto_process_receipts, confidence_threshold, always_review)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			auto_process_receipts = excluded.auto_process_receipts,
			confidence_threshold = excluded.confidence_threshold,
			always_review = excluded.always_review,
			updated_at = CURRENT_TIMESTAMP
	`, prefs.UserID, prefs.AutoProcessReceipts, prefs.ConfidenceThreshold, prefs.AlwaysReview)
	if err != nil {
		return fmt.Errorf("failed to save preferences: %w", mapError(err))
	}
	return nil
}

// PreferencesReader reads stored per-user settings.
type PreferencesReader interface {
	GetPreferences(ctx context.Context, userID string) (*model.Preferences, error)
}

// PreferencesOrDefault returns the user's settings, falling back to the
// defaults when none are stored.
func PreferencesOrDefault(ctx context.Context, store PreferencesReader, userID string, defaults model.Preferences) (model.Preferences, error) {
	prefs, err := store.GetPreferences(ctx, userID)
	if errors.Is(err, common.ErrNotFound) {
		defaults.UserID = userID
		return defaults, nil
	}
	if err != nil {
		return model.Preferences{}, err
	}
	return *prefs, nil
}
