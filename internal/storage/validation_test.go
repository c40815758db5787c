package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Veraticus/the-receipts-must-flow/internal/common"
	"github.com/Veraticus/the-receipts-must-flow/internal/model"
	"github.com/Veraticus/the-receipts-must-flow/internal/service"
)

func TestValidateContext(t *testing.T) {
	tests := []struct {
		ctx     context.Context
		name    string
		wantErr bool
	}{
		{
			name:    "valid context",
			ctx:     context.Background(),
			wantErr: false,
		},
		{
			name:    "nil context",
			ctx:     nil,
			wantErr: true,
		},
		{
			name: "canceled context still valid",
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			}(),
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateContext(tt.ctx)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateContext() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateString(t *testing.T) {
	tests := []struct {
		name      string
		str       string
		paramName string
		wantErr   bool
	}{
		{
			name:      "valid string",
			str:       "test",
			paramName: "param",
			wantErr:   false,
		},
		{
			name:      "empty string",
			str:       "",
			paramName: "param",
			wantErr:   true,
		},
		{
			name:      "whitespace only",
			str:       "   ",
			paramName: "param",
			wantErr:   true,
		},
		{
			name:      "string with spaces",
			str:       "  test  ",
			paramName: "param",
			wantErr:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateString(tt.str, tt.paramName)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateString() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !strings.Contains(err.Error(), tt.paramName) {
				t.Errorf("validateString() error should contain param name %s, got %v", tt.paramName, err)
			}
		})
	}
}


func TestValidateLineItems(t *testing.T) {
	tests := []struct {
		name    string
		items   []model.StoredLineItem
		wantErr error
	}{
		{
			name:  "accepted and pending lines",
			items: []model.StoredLineItem{{Position: 0, RawName: "мляко", CategoryID: "dairy", Method: model.MethodRule, Confidence: 0.95}, {Position: 1, RawName: "xyz", NeedsReview: true}},
		},
		{
			name:  "empty slice is allowed",
			items: []model.StoredLineItem{},
		},
		{
			name:    "nil slice",
			items:   nil,
			wantErr: ErrNilParameter,
		},
		{
			name:    "missing name",
			items:   []model.StoredLineItem{{Position: 0, CategoryID: "dairy"}},
			wantErr: ErrInvalidLineItem,
		},
		{
			name:    "duplicate position",
			items:   []model.StoredLineItem{{Position: 0, RawName: "a", NeedsReview: true}, {Position: 0, RawName: "b", NeedsReview: true}},
			wantErr: ErrInvalidLineItem,
		},
		{
			name:    "unknown category",
			items:   []model.StoredLineItem{{Position: 0, RawName: "a", CategoryID: "groceries"}},
			wantErr: ErrInvalidCategoryID,
		},
		{
			name:    "unknown method",
			items:   []model.StoredLineItem{{Position: 0, RawName: "a", CategoryID: "dairy", Method: "magic"}},
			wantErr: ErrInvalidMethodString,
		},
		{
			name:    "confidence out of range",
			items:   []model.StoredLineItem{{Position: 0, RawName: "a", CategoryID: "dairy", Confidence: 1.2}},
			wantErr: ErrInvalidLineItem,
		},
		{
			name:    "accepted without category",
			items:   []model.StoredLineItem{{Position: 0, RawName: "a"}},
			wantErr: ErrInvalidLineItem,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateLineItems(tt.items)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateReceiptUpdate(t *testing.T) {
	assert.NoError(t, validateReceiptUpdate(service.ReceiptUpdate{Status: model.ReceiptStatusCompleted}))
	assert.ErrorIs(t, validateReceiptUpdate(service.ReceiptUpdate{Status: "done"}), ErrInvalidStatus)
	assert.ErrorIs(t, validateReceiptUpdate(service.ReceiptUpdate{Status: model.ReceiptStatusCompleted, ManualReviewCount: -1}), ErrInvalidReceipt)
}

func TestValidatePreferences(t *testing.T) {
	tests := []struct {
		prefs   *model.Preferences
		name    string
		wantErr bool
	}{
		{name: "defaults", prefs: &model.Preferences{UserID: "u1", AutoProcessReceipts: true, ConfidenceThreshold: 0.7}},
		{name: "lower bound", prefs: &model.Preferences{UserID: "u1", ConfidenceThreshold: 0.5}},
		{name: "upper bound", prefs: &model.Preferences{UserID: "u1", ConfidenceThreshold: 0.95}},
		{name: "below range", prefs: &model.Preferences{UserID: "u1", ConfidenceThreshold: 0.49}, wantErr: true},
		{name: "above range", prefs: &model.Preferences{UserID: "u1", ConfidenceThreshold: 0.96}, wantErr: true},
		{name: "missing user", prefs: &model.Preferences{ConfidenceThreshold: 0.7}, wantErr: true},
		{name: "nil", prefs: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePreferences(tt.prefs)
			if (err != nil) != tt.wantErr {
				t.Errorf("validatePreferences() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidatePreferences_FollowsStructTags(t *testing.T) {
	for _, threshold := range []float64{0, 0.49, 0.4999, 0.5, 0.7, 0.95, 0.9501, 1} {
		prefs := &model.Preferences{UserID: "u1", ConfidenceThreshold: threshold}
		tagErr := common.ValidateStruct(prefs)
		err := validatePreferences(prefs)
		assert.Equal(t, tagErr == nil, err == nil, "threshold %v", threshold)
		if err != nil {
			assert.ErrorIs(t, err, ErrInvalidPreferences)
		}
	}
}

func TestValidateDeltas(t *testing.T) {
	valid := model.BudgetDelta{UserID: "u1", Category: "dairy", Month: "2026-05", AmountDelta: 3.5}
	assert.NoError(t, validateDeltas([]model.BudgetDelta{valid}))

	badMonth := valid
	badMonth.Month = "May 2026"
	assert.ErrorIs(t, validateDeltas([]model.BudgetDelta{badMonth}), ErrInvalidBudgetDelta)

	badCategory := valid
	badCategory.Category = "groceries"
	assert.ErrorIs(t, validateDeltas([]model.BudgetDelta{badCategory}), ErrInvalidCategoryID)

	noUser := valid
	noUser.UserID = ""
	assert.ErrorIs(t, validateDeltas([]model.BudgetDelta{noUser}), ErrInvalidBudgetDelta)
}
